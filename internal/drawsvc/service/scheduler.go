package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/metrics"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

type SweepResult struct {
	Processed []string `json:"processedDraws"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
}

type Scheduler struct {
	draws         DrawRepository
	pool          *PoolService
	engine        *Engine
	roundsPerTick int
	concurrency   int
}

func NewScheduler(draws DrawRepository, pool *PoolService, engine *Engine, roundsPerTick, concurrency int) *Scheduler {
	if roundsPerTick < 1 {
		roundsPerTick = models.FinalRound
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		draws:         draws,
		pool:          pool,
		engine:        engine,
		roundsPerTick: roundsPerTick,
		concurrency:   concurrency,
	}
}

type sweepOutcome int

const (
	outcomeSkipped sweepOutcome = iota
	outcomeProcessed
	outcomeFailed
)

// Sweep advances every due draw. Failures of single draws are logged and
// counted; only a failing due-draw query is returned.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	start := time.Now()

	if n, err := s.draws.RefreshStatuses(ctx, now); err != nil {
		log.Warnf("refresh draw statuses: %v", err)
	} else if n > 0 {
		log.Infof("refreshed status of %d draws", n)
	}

	due, err := s.draws.FindDueDraws(ctx, now, models.AnnounceableStatuses)
	if err != nil {
		return nil, fmt.Errorf("query due draws: %w", err)
	}

	outcomes := make([]sweepOutcome, len(due))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, d := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, d *models.Draw) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = s.process(ctx, d)
		}(i, d)
	}
	wg.Wait()

	result := &SweepResult{Processed: []string{}}
	for i, o := range outcomes {
		switch o {
		case outcomeProcessed:
			result.Processed = append(result.Processed, due[i].ID)
		case outcomeSkipped:
			result.Skipped++
		case outcomeFailed:
			result.Failed++
		}
	}

	metrics.Sweep(time.Since(start), len(result.Processed), result.Skipped, result.Failed)
	log.Infof("sweep done: %d due, %d processed, %d skipped, %d failed",
		len(due), len(result.Processed), result.Skipped, result.Failed)
	return result, nil
}

func (s *Scheduler) process(ctx context.Context, d *models.Draw) (outcome sweepOutcome) {
	logger := log.WithField("draw", d.ID)
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic while advancing draw: %v", r)
			outcome = outcomeFailed
		}
	}()

	pool, err := s.pool.GetTicketsForDraw(ctx, d.ID)
	if err != nil {
		logger.Errorf("load ticket pool: %v", err)
		return outcomeFailed
	}
	if len(pool) < s.engine.MinTickets() {
		logger.Infof("skipping draw with %d tickets, need %d", len(pool), s.engine.MinTickets())
		return outcomeSkipped
	}

	res, err := s.engine.Run(ctx, d, pool, s.roundsPerTick)
	switch {
	case errors.Is(err, ErrNotDue), errors.Is(err, ErrDrawFinished), errors.Is(err, ErrInsufficientPool):
		logger.Infof("skipping draw: %v", err)
		return outcomeSkipped
	case err != nil:
		logger.Errorf("advance draw: %v", err)
		if res != nil && res.Advanced {
			return outcomeProcessed
		}
		return outcomeFailed
	}

	if res.Advanced {
		return outcomeProcessed
	}
	return outcomeSkipped
}
