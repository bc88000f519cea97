// Package store holds the draw, ticket and user persistence backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrRoundAlreadySet is returned when another writer committed the round first.
	ErrRoundAlreadySet = errors.New("round winners already persisted")

	// ErrRoundOutOfOrder is returned when the previous round is not persisted yet.
	ErrRoundOutOfOrder = errors.New("previous round not persisted")

	ErrDuplicateTicket = errors.New("numbers already taken for this draw")
	ErrDuplicatePhone  = errors.New("phone already registered")
)

// Store is the full method set every backend provides.
type Store interface {
	GetDraw(ctx context.Context, id string) (*models.Draw, error)
	CreateDraw(ctx context.Context, d *models.Draw) error
	FindDueDraws(ctx context.Context, now time.Time, statuses []models.DrawStatus) ([]*models.Draw, error)
	SaveRoundWinners(ctx context.Context, res models.RoundResult) error
	RefreshStatuses(ctx context.Context, now time.Time) (int64, error)

	GetTicketsForDraw(ctx context.Context, drawID string) ([]*models.TicketWithUser, error)
	TicketExists(ctx context.Context, drawID, numbers string) (bool, error)
	CreateTicket(ctx context.Context, t *models.Ticket) error

	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	AppendTicket(ctx context.Context, userID, ticketID string) error

	Close(ctx context.Context) error
}
