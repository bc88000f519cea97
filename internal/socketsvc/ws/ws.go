package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/prizedraw-services/internal/ceremony"
	"github.com/avvvet/prizedraw-services/internal/comm"
)

// SnapshotSource loads the persisted state of a draw.
type SnapshotSource interface {
	RequestSnapshot(drawID string) (*comm.DrawSnapshot, error)
}

// Client serialises writes to one connection; gorilla allows a single writer.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *Client) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Ws struct {
	connMap   sync.Map // socketId -> *Client
	viewerMap sync.Map // socketId -> *ceremony.Viewer

	Snapshots SnapshotSource
	clock     ceremony.Clock
	pacing    ceremony.Pacing
}

func NewWs(clock ceremony.Clock, pacing ceremony.Pacing) *Ws {
	return &Ws{clock: clock, pacing: pacing}
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case comm.TypeWatchDraw:
		s.handleWatch(socketId, message)
	case comm.TypeUnwatchDraw:
		s.stopViewer(socketId)
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

func (s *Ws) handleWatch(socketId string, msg *comm.WSMessage) {
	var payload comm.WatchRequest
	if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.DrawID == "" {
		s.SendError(socketId, "drawId is required")
		return
	}

	viewer := ceremony.NewViewer(payload.DrawID, s.clock, s.pacing, func(f ceremony.Frame) {
		s.send(socketId, comm.TypeCeremonyFrame, f)
	})

	// a socket watches one draw at a time. The viewer is registered before the
	// snapshot request so updates published meanwhile still reach it.
	if prev, loaded := s.viewerMap.Swap(socketId, viewer); loaded {
		prev.(*ceremony.Viewer).Stop()
	}

	snap, err := s.Snapshots.RequestSnapshot(payload.DrawID)
	if err != nil {
		log.Errorf("snapshot of draw %s for socket %s: %v", payload.DrawID, socketId, err)
		s.viewerMap.CompareAndDelete(socketId, viewer)
		viewer.Stop()
		s.SendError(socketId, err.Error())
		return
	}
	viewer.Start(snap)

	log.Infof("socket %s watching draw %s", socketId, payload.DrawID)
}

// DrawUpdated forwards a committed draw state to every viewer of that draw.
func (s *Ws) DrawUpdated(snap *comm.DrawSnapshot) {
	s.viewerMap.Range(func(key, value interface{}) bool {
		v := value.(*ceremony.Viewer)
		if v.DrawID() == snap.DrawID {
			v.Update(snap)
		}
		return true
	})
}

func (s *Ws) stopViewer(socketId string) {
	if v, ok := s.viewerMap.LoadAndDelete(socketId); ok {
		v.(*ceremony.Viewer).Stop()
	}
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.stopViewer(socketId)
	s.connMap.Delete(socketId)
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, &Client{conn: conn})
}

func (s *Ws) GetConnection(socketId string) (*Client, bool) {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return c.(*Client), true
}

func (s *Ws) SendError(socketId, text string) {
	s.send(socketId, comm.TypeError, comm.ErrorData{Message: text})
}

// send socket message to the web client
func (s *Ws) send(socketId, typ string, data interface{}) {
	c, ok := s.GetConnection(socketId)
	if !ok {
		return
	}
	msg, err := comm.NewMessage(typ, data, socketId)
	if err != nil {
		log.Errorf("unable to marshal %s for socket %s: %v", typ, socketId, err)
		return
	}
	if err := c.WriteJSON(msg); err != nil {
		log.Warnf("write to socket %s: %v", socketId, err)
	}
}
