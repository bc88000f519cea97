package comm

import (
	"encoding/json"
	"time"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

// NATS subjects shared by drawsvc and socketsvc.
const (
	SubjectDrawEvents   = "draw.events"
	SubjectDrawSnapshot = "draw.snapshot"
)

// Envelope types.
const (
	TypeDrawUpdated   = "draw-updated"
	TypeDrawSnapshot  = "draw-snapshot"
	TypeWatchDraw     = "watch-draw"
	TypeUnwatchDraw   = "unwatch-draw"
	TypeCeremonyFrame = "ceremony-frame"
	TypeError         = "error"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "watch-draw", "ceremony-frame"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
}

// NewMessage marshals data into an envelope of the given type.
func NewMessage(typ string, data interface{}, socketId string) (*WSMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &WSMessage{Type: typ, Data: raw, SocketId: socketId}, nil
}

// TicketView is what a viewer may know about a ticket: its digits and the
// owner's display name.
type TicketView struct {
	ID       string `json:"id"`
	Numbers  string `json:"numbers"`
	UserName string `json:"userName,omitempty"`
}

// DrawSnapshot is the persisted state of a draw as it travels to viewers.
type DrawSnapshot struct {
	DrawID           string                `json:"drawId"`
	Name             string                `json:"name"`
	Prize            string                `json:"prize,omitempty"`
	Status           models.DrawStatus     `json:"status"`
	AnnouncementDate time.Time             `json:"announcementDate"`
	RoundWinners     map[int][]string      `json:"roundWinners"`
	WinningTicketID  string                `json:"winningTicketId,omitempty"`
	WinnerID         string                `json:"winnerId,omitempty"`
	Tickets          map[string]TicketView `json:"tickets"`
	At               time.Time             `json:"at"`
}

// Rounds returns a copy of the persisted rounds.
func (s *DrawSnapshot) Rounds() models.RoundWinners {
	return models.RoundWinners(s.RoundWinners).Clone()
}

type SnapshotRequest struct {
	DrawID string `json:"drawId"`
}

type WatchRequest struct {
	DrawID string `json:"drawId"`
}

type ErrorData struct {
	Message string `json:"message"`
}
