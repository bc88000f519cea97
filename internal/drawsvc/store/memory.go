package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

// MemoryStore keeps everything in process. It honours the same conditional
// round write as the database backends, which makes it usable for tests and
// for running drawsvc without a database (STORE_DRIVER=memory).
type MemoryStore struct {
	mu      sync.RWMutex
	draws   map[string]*models.Draw
	tickets map[string]*models.Ticket
	order   []string // ticket insertion order
	users   map[string]*models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		draws:   make(map[string]*models.Draw),
		tickets: make(map[string]*models.Ticket),
		users:   make(map[string]*models.User),
	}
}

func cloneDraw(d *models.Draw) *models.Draw {
	c := *d
	c.RoundWinners = d.RoundWinners.Clone()
	return &c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.TicketIDs = append([]string(nil), u.TicketIDs...)
	return &c
}

func (s *MemoryStore) GetDraw(ctx context.Context, id string) (*models.Draw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.draws[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDraw(d), nil
}

func (s *MemoryStore) CreateDraw(ctx context.Context, d *models.Draw) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draws[d.ID] = cloneDraw(d)
	return nil
}

func (s *MemoryStore) FindDueDraws(ctx context.Context, now time.Time, statuses []models.DrawStatus) ([]*models.Draw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[models.DrawStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	var due []*models.Draw
	for _, d := range s.draws {
		if !d.AnnouncementDate.After(now) && wanted[d.Status] {
			due = append(due, cloneDraw(d))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].AnnouncementDate.Equal(due[j].AnnouncementDate) {
			return due[i].ID < due[j].ID
		}
		return due[i].AnnouncementDate.Before(due[j].AnnouncementDate)
	})
	return due, nil
}

func (s *MemoryStore) SaveRoundWinners(ctx context.Context, res models.RoundResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.draws[res.DrawID]
	if !ok {
		return ErrNotFound
	}
	if d.RoundWinners.Has(res.Round) {
		return ErrRoundAlreadySet
	}
	if res.Round > models.FirstRound && !d.RoundWinners.Has(res.Round-1) {
		return ErrRoundOutOfOrder
	}

	if d.RoundWinners == nil {
		d.RoundWinners = make(models.RoundWinners)
	}
	d.RoundWinners[res.Round] = append([]string(nil), res.TicketIDs...)
	d.Status = res.Status
	d.UpdatedAt = res.At
	if res.Round == models.FinalRound {
		d.WinningTicketID = res.WinningTicketID
		d.WinnerID = res.WinnerID
		d.PrizeStatus = models.PrizePending
	}
	return nil
}

func (s *MemoryStore) RefreshStatuses(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for _, d := range s.draws {
		// due draws are left to the announcement path
		if !d.AnnouncementDate.After(now) {
			continue
		}
		next := d.Status
		switch d.Status {
		case models.StatusUpcoming:
			if !d.EndDate.After(now) {
				next = models.StatusAwaitingAnnouncement
			} else if !d.StartDate.After(now) {
				next = models.StatusActive
			}
		case models.StatusActive:
			if !d.EndDate.After(now) {
				next = models.StatusAwaitingAnnouncement
			}
		}
		if next != d.Status {
			d.Status = next
			d.UpdatedAt = now
			changed++
		}
	}
	return changed, nil
}

func (s *MemoryStore) GetTicketsForDraw(ctx context.Context, drawID string) ([]*models.TicketWithUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pool []*models.TicketWithUser
	for _, id := range s.order {
		t := s.tickets[id]
		if t.DrawID != drawID {
			continue
		}
		entry := &models.TicketWithUser{Ticket: *t}
		if u, ok := s.users[t.UserID]; ok {
			entry.User = cloneUser(u)
		}
		pool = append(pool, entry)
	}
	return pool, nil
}

func (s *MemoryStore) TicketExists(ctx context.Context, drawID, numbers string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tickets {
		if t.DrawID == drawID && t.Numbers == numbers {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CreateTicket(ctx context.Context, t *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tickets {
		if existing.DrawID == t.DrawID && existing.Numbers == t.Numbers {
			return ErrDuplicateTicket
		}
	}
	c := *t
	s.tickets[t.ID] = &c
	s.order = append(s.order, t.ID)
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Phone == phone {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Phone == u.Phone {
			return ErrDuplicatePhone
		}
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *MemoryStore) AppendTicket(ctx context.Context, userID, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.TicketIDs = append(u.TicketIDs, ticketID)
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
