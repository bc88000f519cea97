package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/selector"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/store"
)

var (
	ErrNumbersTaken = errors.New("numbers already taken for this draw")
	ErrDrawClosed   = errors.New("draw is not open for ticket sales")
)

type TicketService struct {
	draws    DrawRepository
	tickets  TicketRepository
	users    UserRepository
	selector *selector.Selector
	now      func() time.Time
}

func NewTicketService(draws DrawRepository, tickets TicketRepository, users UserRepository, sel *selector.Selector) *TicketService {
	return &TicketService{
		draws:    draws,
		tickets:  tickets,
		users:    users,
		selector: sel,
		now:      time.Now,
	}
}

// QuickPick returns random ticket numbers.
func (s *TicketService) QuickPick() string {
	return s.selector.Digits(models.TicketDigits)
}

// Purchase records a ticket for the user. The existence check gives the usual
// answer; the unique index of the store catches two buyers racing for the
// same numbers.
func (s *TicketService) Purchase(ctx context.Context, userID, drawID, numbers string, isReferral bool) (*models.Ticket, error) {
	if err := models.ValidateNumbers(numbers); err != nil {
		return nil, err
	}

	d, err := s.draws.GetDraw(ctx, drawID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if now.Before(d.StartDate) || !now.Before(d.EndDate) ||
		d.Status == models.StatusAnnouncing || d.Status == models.StatusFinished {
		return nil, ErrDrawClosed
	}

	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	taken, err := s.tickets.TicketExists(ctx, drawID, numbers)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrNumbersTaken
	}

	t := &models.Ticket{
		ID:           uuid.NewString(),
		DrawID:       drawID,
		UserID:       userID,
		Numbers:      numbers,
		PurchaseDate: now.UTC(),
		IsReferral:   isReferral,
	}
	if err := s.tickets.CreateTicket(ctx, t); err != nil {
		if errors.Is(err, store.ErrDuplicateTicket) {
			return nil, ErrNumbersTaken
		}
		return nil, err
	}

	if err := s.users.AppendTicket(ctx, userID, t.ID); err != nil {
		// the ticket stands, only the back-reference is missing
		log.Errorf("append ticket %s to user %s: %v", t.ID, userID, err)
	}
	return t, nil
}

func (s *TicketService) SetClock(now func() time.Time) {
	s.now = now
}
