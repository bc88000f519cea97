package service

import (
	"context"
	"time"

	"github.com/avvvet/prizedraw-services/internal/comm"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

type DrawRepository interface {
	GetDraw(ctx context.Context, id string) (*models.Draw, error)
	CreateDraw(ctx context.Context, d *models.Draw) error
	FindDueDraws(ctx context.Context, now time.Time, statuses []models.DrawStatus) ([]*models.Draw, error)
	SaveRoundWinners(ctx context.Context, res models.RoundResult) error
	RefreshStatuses(ctx context.Context, now time.Time) (int64, error)
}

type TicketRepository interface {
	GetTicketsForDraw(ctx context.Context, drawID string) ([]*models.TicketWithUser, error)
	TicketExists(ctx context.Context, drawID, numbers string) (bool, error)
	CreateTicket(ctx context.Context, t *models.Ticket) error
}

type UserRepository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	AppendTicket(ctx context.Context, userID, ticketID string) error
}

// Publisher fans committed draw state out to viewers.
type Publisher interface {
	PublishDrawUpdate(snapshot *comm.DrawSnapshot) error
}
