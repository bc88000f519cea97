package service

import (
	"context"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

type PoolService struct {
	tickets TicketRepository
}

func NewPoolService(tickets TicketRepository) *PoolService {
	return &PoolService{tickets: tickets}
}

// GetTicketsForDraw returns every ticket of the draw joined with its owner.
func (s *PoolService) GetTicketsForDraw(ctx context.Context, drawID string) ([]*models.TicketWithUser, error) {
	return s.tickets.GetTicketsForDraw(ctx, drawID)
}

// IDs returns the ticket ids of pool in pool order.
func IDs(pool []*models.TicketWithUser) []string {
	ids := make([]string, 0, len(pool))
	for _, t := range pool {
		ids = append(ids, t.ID)
	}
	return ids
}

func FindTicket(pool []*models.TicketWithUser, id string) *models.TicketWithUser {
	for _, t := range pool {
		if t.ID == id {
			return t
		}
	}
	return nil
}
