package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("MIN_TICKETS", "")
	t.Setenv("ROUNDS_PER_TICK", "")
	t.Setenv("ADMIN_PHONES", "")
	t.Setenv("CEREMONY_INTERMISSION", "")

	cfg := Load()
	assert.Equal(t, "mongo", cfg.StoreDriver)
	assert.Equal(t, 20, cfg.MinTickets)
	assert.Equal(t, 4, cfg.RoundsPerTick)
	assert.Empty(t, cfg.AdminPhones)
	assert.Equal(t, 10*time.Second, cfg.Intermission)
	assert.Equal(t, 300*time.Millisecond, cfg.DigitInterval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("MIN_TICKETS", "5")
	t.Setenv("ROUNDS_PER_TICK", "0")
	t.Setenv("ADMIN_PHONES", " 0911000000, ,0922000000")
	t.Setenv("CTL_INTERVAL", "30s")
	t.Setenv("CEREMONY_TICKET_GAP", "nope")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 5, cfg.MinTickets)
	assert.Equal(t, 4, cfg.RoundsPerTick, "values below one fall back")
	assert.Equal(t, []string{"0911000000", "0922000000"}, cfg.AdminPhones)
	assert.Equal(t, 30*time.Second, cfg.CtlInterval)
	assert.Equal(t, time.Second, cfg.TicketGap)
}

func TestPacingFollowsCeremonySettings(t *testing.T) {
	t.Setenv("CEREMONY_DIGIT_INTERVAL", "100ms")
	t.Setenv("CEREMONY_FINALE_COUNTDOWN", "3s")

	p := Load().Pacing()
	assert.Equal(t, 100*time.Millisecond, p.Digit)
	assert.Equal(t, 3*time.Second, p.FinaleCountdown)
	assert.Equal(t, 2*time.Second, p.RoundHold)
}
