package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/selector"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/store"
)

func newSalesFixture(t *testing.T) (*store.MemoryStore, *TicketService, *UserService, *models.Draw) {
	t.Helper()
	s := store.NewMemoryStore()

	draws := NewDrawService(s, NewPoolService(s))
	draws.SetClock(func() time.Time { return testNow })
	d, err := draws.CreateDraw(context.Background(), NewDraw{
		Name:             "Weekly",
		TicketPrice:      decimal.NewFromInt(10),
		StartDate:        testNow.Add(-time.Hour),
		EndDate:          testNow.Add(time.Hour),
		AnnouncementDate: testNow.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, d.Status)

	tickets := NewTicketService(s, s, s, selector.New(1))
	tickets.SetClock(func() time.Time { return testNow })
	return s, tickets, NewUserService(s, []string{"0911000000"}), d
}

func TestPurchase(t *testing.T) {
	ctx := context.Background()
	s, tickets, users, d := newSalesFixture(t)

	u, err := users.GetOrCreateUser(ctx, "Sara", "0922000000")
	require.NoError(t, err)

	tk, err := tickets.Purchase(ctx, u.ID, d.ID, "004217", false)
	require.NoError(t, err)
	assert.Equal(t, "004217", tk.Numbers)

	_, err = tickets.Purchase(ctx, u.ID, d.ID, "004217", true)
	assert.ErrorIs(t, err, ErrNumbersTaken)

	_, err = tickets.Purchase(ctx, u.ID, d.ID, "42", false)
	assert.ErrorIs(t, err, models.ErrInvalidNumbers)

	stored, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{tk.ID}, stored.TicketIDs)
}

// raceStore hides existing tickets from the pre-check, as a concurrent buyer would.
type raceStore struct {
	*store.MemoryStore
}

func (raceStore) TicketExists(ctx context.Context, drawID, numbers string) (bool, error) {
	return false, nil
}

func TestPurchaseRaceHitsUniqueIndex(t *testing.T) {
	ctx := context.Background()
	s, _, users, d := newSalesFixture(t)
	racing := NewTicketService(s, raceStore{s}, s, selector.New(2))
	racing.SetClock(func() time.Time { return testNow })

	u, err := users.GetOrCreateUser(ctx, "Sara", "0922000000")
	require.NoError(t, err)

	_, err = racing.Purchase(ctx, u.ID, d.ID, "111111", false)
	require.NoError(t, err)
	_, err = racing.Purchase(ctx, u.ID, d.ID, "111111", false)
	assert.ErrorIs(t, err, ErrNumbersTaken)
}

func TestPurchaseOutsideWindow(t *testing.T) {
	ctx := context.Background()
	_, tickets, users, d := newSalesFixture(t)
	u, err := users.GetOrCreateUser(ctx, "Sara", "0922000000")
	require.NoError(t, err)

	tickets.SetClock(func() time.Time { return testNow.Add(90 * time.Minute) })
	_, err = tickets.Purchase(ctx, u.ID, d.ID, "123456", false)
	assert.ErrorIs(t, err, ErrDrawClosed)
}

func TestQuickPick(t *testing.T) {
	_, tickets, _, _ := newSalesFixture(t)
	for i := 0; i < 50; i++ {
		assert.NoError(t, models.ValidateNumbers(tickets.QuickPick()))
	}
}

func TestGetOrCreateUserResolvesRole(t *testing.T) {
	ctx := context.Background()
	_, _, users, _ := newSalesFixture(t)

	admin, err := users.GetOrCreateUser(ctx, "Ops", "0911000000")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	again, err := users.GetOrCreateUser(ctx, "Ops renamed", "0911000000")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	plain, err := users.GetOrCreateUser(ctx, "Sara", "0922000000")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, plain.Role)

	_, err = users.GetOrCreateUser(ctx, "Nobody", "  ")
	assert.ErrorIs(t, err, ErrInvalidPhone)
}

func TestCreateDrawValidation(t *testing.T) {
	draws := NewDrawService(store.NewMemoryStore(), nil)
	_, err := draws.CreateDraw(context.Background(), NewDraw{
		Name:             "Backwards",
		StartDate:        testNow,
		EndDate:          testNow.Add(-time.Hour),
		AnnouncementDate: testNow,
	})
	assert.ErrorIs(t, err, ErrInvalidDraw)
}
