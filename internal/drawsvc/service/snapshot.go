package service

import (
	"time"

	"github.com/avvvet/prizedraw-services/internal/comm"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

// BuildSnapshot projects a draw for viewers. Only tickets that made it into a
// persisted round are included, never the whole pool.
func BuildSnapshot(d *models.Draw, pool []*models.TicketWithUser, at time.Time) *comm.DrawSnapshot {
	snap := &comm.DrawSnapshot{
		DrawID:           d.ID,
		Name:             d.Name,
		Prize:            d.Prize,
		Status:           d.Status,
		AnnouncementDate: d.AnnouncementDate,
		RoundWinners:     map[int][]string(d.RoundWinners.Clone()),
		WinningTicketID:  d.WinningTicketID,
		WinnerID:         d.WinnerID,
		Tickets:          map[string]comm.TicketView{},
		At:               at,
	}
	if snap.RoundWinners == nil {
		snap.RoundWinners = map[int][]string{}
	}

	byID := make(map[string]*models.TicketWithUser, len(pool))
	for _, t := range pool {
		byID[t.ID] = t
	}
	for _, ids := range d.RoundWinners {
		for _, id := range ids {
			view := comm.TicketView{ID: id}
			if t, ok := byID[id]; ok {
				view.Numbers = t.Numbers
				if t.User != nil {
					view.UserName = t.User.Name
				}
			}
			snap.Tickets[id] = view
		}
	}
	return snap
}
