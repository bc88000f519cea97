package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avvvet/prizedraw-services/internal/comm"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

var ErrInvalidDraw = errors.New("invalid draw")

type NewDraw struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Prize            string          `json:"prize"`
	TicketPrice      decimal.Decimal `json:"ticketPrice"`
	StartDate        time.Time       `json:"startDate"`
	EndDate          time.Time       `json:"endDate"`
	AnnouncementDate time.Time       `json:"announcementDate"`
}

type DrawService struct {
	draws DrawRepository
	pool  *PoolService
	now   func() time.Time
}

func NewDrawService(draws DrawRepository, pool *PoolService) *DrawService {
	return &DrawService{draws: draws, pool: pool, now: time.Now}
}

func (s *DrawService) GetDraw(ctx context.Context, id string) (*models.Draw, error) {
	return s.draws.GetDraw(ctx, id)
}

// CreateDraw validates the schedule and stores a new draw. Its initial status
// follows from where now falls in the schedule.
func (s *DrawService) CreateDraw(ctx context.Context, in NewDraw) (*models.Draw, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.Join(ErrInvalidDraw, errors.New("name is required"))
	}
	if !in.StartDate.Before(in.EndDate) {
		return nil, errors.Join(ErrInvalidDraw, errors.New("start date must be before end date"))
	}
	if in.AnnouncementDate.Before(in.EndDate) {
		return nil, errors.Join(ErrInvalidDraw, errors.New("announcement date must not be before end date"))
	}
	if in.TicketPrice.IsNegative() {
		return nil, errors.Join(ErrInvalidDraw, errors.New("ticket price must not be negative"))
	}

	now := s.now()
	status := models.StatusUpcoming
	switch {
	case !now.Before(in.EndDate):
		status = models.StatusAwaitingAnnouncement
	case !now.Before(in.StartDate):
		status = models.StatusActive
	}

	d := &models.Draw{
		ID:               uuid.NewString(),
		Name:             name,
		Description:      in.Description,
		Prize:            in.Prize,
		TicketPrice:      in.TicketPrice,
		StartDate:        in.StartDate.UTC(),
		EndDate:          in.EndDate.UTC(),
		AnnouncementDate: in.AnnouncementDate.UTC(),
		Status:           status,
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}
	if err := s.draws.CreateDraw(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Snapshot returns the viewer projection of the draw's persisted state.
func (s *DrawService) Snapshot(ctx context.Context, id string) (*comm.DrawSnapshot, error) {
	d, err := s.draws.GetDraw(ctx, id)
	if err != nil {
		return nil, err
	}

	var pool []*models.TicketWithUser
	if len(d.RoundWinners) > 0 {
		if pool, err = s.pool.GetTicketsForDraw(ctx, id); err != nil {
			return nil, err
		}
	}
	return BuildSnapshot(d, pool, s.now()), nil
}

func (s *DrawService) SetClock(now func() time.Time) {
	s.now = now
}
