package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/metrics"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/selector"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/store"
)

var (
	ErrNotDue           = errors.New("draw is not due for announcement")
	ErrDrawFinished     = errors.New("draw already finished")
	ErrInsufficientPool = errors.New("not enough tickets to announce draw")
)

// AdvanceResult describes what one Advance or Run call committed. Round and
// TicketIDs refer to the last committed round.
type AdvanceResult struct {
	DrawID    string   `json:"drawId"`
	Round     int      `json:"round,omitempty"`
	TicketIDs []string `json:"ticketIds,omitempty"`
	Rounds    []int    `json:"rounds,omitempty"`
	Finished  bool     `json:"finished"`
	Advanced  bool     `json:"advanced"`
}

type Engine struct {
	draws      DrawRepository
	pool       *PoolService
	selector   *selector.Selector
	publisher  Publisher
	minTickets int
	now        func() time.Time
}

func NewEngine(draws DrawRepository, pool *PoolService, sel *selector.Selector, pub Publisher, minTickets int) *Engine {
	if minTickets < 1 {
		minTickets = models.MinTicketsForAnnouncement
	}
	return &Engine{
		draws:      draws,
		pool:       pool,
		selector:   sel,
		publisher:  pub,
		minTickets: minTickets,
		now:        time.Now,
	}
}

// SetClock replaces the time source used for eligibility and timestamps.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) MinTickets() int {
	return e.minTickets
}

func (e *Engine) eligible(d *models.Draw, now time.Time) error {
	if d.Status == models.StatusFinished {
		return ErrDrawFinished
	}
	if !d.Announceable(now) {
		return ErrNotDue
	}
	return nil
}

// Advance commits exactly one round of the draw.
func (e *Engine) Advance(ctx context.Context, drawID string) (*AdvanceResult, error) {
	d, err := e.draws.GetDraw(ctx, drawID)
	if err != nil {
		return nil, err
	}
	if err := e.eligible(d, e.now()); err != nil {
		return nil, err
	}

	pool, err := e.pool.GetTicketsForDraw(ctx, drawID)
	if err != nil {
		return nil, fmt.Errorf("load pool of draw %s: %w", drawID, err)
	}
	return e.Run(ctx, d, pool, 1)
}

// Run commits up to maxRounds consecutive rounds for an already loaded draw.
// A round lost to a concurrent writer ends the run without an error.
func (e *Engine) Run(ctx context.Context, d *models.Draw, pool []*models.TicketWithUser, maxRounds int) (*AdvanceResult, error) {
	now := e.now()
	if err := e.eligible(d, now); err != nil {
		return nil, err
	}
	if len(pool) < e.minTickets {
		return nil, ErrInsufficientPool
	}

	logger := log.WithField("draw", d.ID)
	result := &AdvanceResult{DrawID: d.ID}
	rounds := d.RoundWinners.Clone()
	if rounds == nil {
		rounds = make(models.RoundWinners)
	}
	ids := IDs(pool)

	for i := 0; i < maxRounds; i++ {
		r := rounds.NextRound()
		if r == 0 {
			result.Finished = true
			break
		}

		candidates := ids
		if r > models.FirstRound {
			candidates = rounds[r-1]
		}
		picked := e.selector.SelectRound(candidates, models.RoundTarget(r))

		res := models.RoundResult{
			DrawID:    d.ID,
			Round:     r,
			TicketIDs: picked,
			Status:    models.StatusAnnouncing,
			At:        now,
		}
		if r == models.FinalRound {
			if len(picked) != 1 {
				return result, fmt.Errorf("draw %s: final round picked %d tickets", d.ID, len(picked))
			}
			res.Status = models.StatusFinished
			res.WinningTicketID = picked[0]
			if t := FindTicket(pool, picked[0]); t != nil {
				res.WinnerID = t.UserID
			}
		}

		err := e.draws.SaveRoundWinners(ctx, res)
		if errors.Is(err, store.ErrRoundAlreadySet) {
			metrics.RoundConflict()
			logger.WithField("round", r).Info("round already committed by another writer, discarding selection")
			break
		}
		if err != nil {
			return result, fmt.Errorf("save round %d: %w", r, err)
		}

		metrics.RoundCommitted(r)
		logger.WithFields(log.Fields{"round": r, "tickets": len(picked)}).Info("round committed")

		rounds[r] = picked
		d.RoundWinners = rounds.Clone()
		d.Status = res.Status
		d.UpdatedAt = now
		if r == models.FinalRound {
			d.WinningTicketID = res.WinningTicketID
			d.WinnerID = res.WinnerID
			d.PrizeStatus = models.PrizePending
		}

		result.Round = r
		result.TicketIDs = picked
		result.Rounds = append(result.Rounds, r)
		result.Advanced = true
		e.publish(d, pool, now)

		if r == models.FinalRound {
			result.Finished = true
			break
		}
	}
	return result, nil
}

func (e *Engine) publish(d *models.Draw, pool []*models.TicketWithUser, now time.Time) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishDrawUpdate(BuildSnapshot(d, pool, now)); err != nil {
		log.Warnf("publish update of draw %s: %v", d.ID, err)
	}
}
