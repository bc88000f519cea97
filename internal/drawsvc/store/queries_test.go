package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

func lookup(d bson.D, key string) (interface{}, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func TestRoundFilterGuardsRoundOrder(t *testing.T) {
	first := roundFilter(models.RoundResult{DrawID: "d1", Round: 1})
	require.Len(t, first, 2)
	v, ok := lookup(first, "roundWinners.1")
	require.True(t, ok)
	assert.Equal(t, bson.D{{Key: "$exists", Value: false}}, v)

	third := roundFilter(models.RoundResult{DrawID: "d1", Round: 3})
	id, _ := lookup(third, "_id")
	assert.Equal(t, "d1", id)
	v, ok = lookup(third, "roundWinners.3")
	require.True(t, ok)
	assert.Equal(t, bson.D{{Key: "$exists", Value: false}}, v)
	v, ok = lookup(third, "roundWinners.2")
	require.True(t, ok, "previous round must be present")
	assert.Equal(t, bson.D{{Key: "$exists", Value: true}}, v)
}

func TestRoundUpdateFinalSetsWinner(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	upd := roundUpdate(models.RoundResult{
		DrawID: "d1", Round: models.FinalRound, TicketIDs: []string{"t9"},
		Status: models.StatusFinished, WinningTicketID: "t9", WinnerID: "u9", At: at,
	})
	set, ok := lookup(upd, "$set")
	require.True(t, ok)

	fields := set.(bson.D)
	for key, want := range map[string]interface{}{
		"roundWinners.4":  []string{"t9"},
		"status":          string(models.StatusFinished),
		"winningTicketId": "t9",
		"winnerId":        "u9",
		"prizeStatus":     string(models.PrizePending),
	} {
		got, ok := lookup(fields, key)
		require.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}

	mid := roundUpdate(models.RoundResult{DrawID: "d1", Round: 2, Status: models.StatusAnnouncing})
	set, _ = lookup(mid, "$set")
	ids, _ := lookup(set.(bson.D), "roundWinners.2")
	assert.Equal(t, []string{}, ids)
	_, hasWinner := lookup(set.(bson.D), "winningTicketId")
	assert.False(t, hasWinner)
}

func TestRefreshFiltersSkipDueDraws(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for name, f := range map[string]bson.D{
		"close": closeEndedFilter(now),
		"open":  openStartedFilter(now),
	} {
		v, ok := lookup(f, "announcementDate")
		require.True(t, ok, name)
		assert.Equal(t, bson.D{{Key: "$gt", Value: now}}, v, name)
	}
}

func TestSaveRoundQuery(t *testing.T) {
	query, args, err := saveRoundQuery(models.RoundResult{
		DrawID: "d1", Round: 1, TicketIDs: []string{"a", "b"}, Status: models.StatusAnnouncing,
	})
	require.NoError(t, err)
	assert.Contains(t, query, "NOT (round_winners ? $2)")
	assert.Contains(t, query, "($6 OR round_winners ? $7)")
	require.Len(t, args, 7)
	assert.Equal(t, "d1", args[0])
	assert.Equal(t, "1", args[1])
	assert.Equal(t, `["a","b"]`, args[2])
	assert.Equal(t, true, args[5], "round one needs no previous round")
	assert.Equal(t, "0", args[6])

	query, args, err = saveRoundQuery(models.RoundResult{
		DrawID: "d1", Round: models.FinalRound, TicketIDs: []string{"a"},
		Status: models.StatusFinished, WinningTicketID: "a", WinnerID: "u1",
	})
	require.NoError(t, err)
	assert.Contains(t, query, "NOT (round_winners ? $2)")
	assert.Contains(t, query, "winning_ticket_id = $8")
	require.Len(t, args, 10)
	assert.Equal(t, false, args[5])
	assert.Equal(t, "3", args[6])
	assert.Equal(t, "a", args[7])
	assert.Equal(t, "u1", args[8])
	assert.Equal(t, string(models.PrizePending), args[9])

	_, args, err = saveRoundQuery(models.RoundResult{DrawID: "d1", Round: 2})
	require.NoError(t, err)
	assert.Equal(t, "[]", args[2])
}

func TestRefreshSQLSkipsDueDraws(t *testing.T) {
	for _, q := range []string{closeEndedSQL, openStartedSQL} {
		assert.True(t, strings.Contains(q, "announcement_date > $1"), q)
	}
}
