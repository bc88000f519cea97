package store

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

func decodeDraw(t *testing.T, raw bson.M) *models.Draw {
	t.Helper()
	b, err := bson.Marshal(raw)
	require.NoError(t, err)

	var doc drawDoc
	require.NoError(t, bson.Unmarshal(b, &doc))
	d, err := doc.toModel()
	require.NoError(t, err)
	return d
}

func TestDrawDocAcceptsLooseInstants(t *testing.T) {
	want := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	d := decodeDraw(t, bson.M{
		"_id":              "d1",
		"status":           "awaiting_announcement",
		"ticketPrice":      25.5,
		"startDate":        want.UnixMilli(),
		"endDate":          want.Format(time.RFC3339),
		"announcementDate": bson.M{"seconds": want.Unix(), "nanoseconds": 0},
		"createdAt":        primitive.NewDateTimeFromTime(want),
	})

	assert.True(t, want.Equal(d.StartDate))
	assert.True(t, want.Equal(d.EndDate))
	assert.True(t, want.Equal(d.AnnouncementDate))
	assert.True(t, want.Equal(d.CreatedAt))
	assert.True(t, decimal.RequireFromString("25.5").Equal(d.TicketPrice))
	assert.True(t, d.UpdatedAt.IsZero())
}

func TestDrawDocRoundWinners(t *testing.T) {
	d := decodeDraw(t, bson.M{
		"_id":    "d1",
		"status": "announcing",
		"roundWinners": bson.M{
			"1": bson.A{"a", "b", "c"},
			"2": bson.A{"b"},
		},
	})
	assert.Equal(t, []string{"a", "b", "c"}, d.RoundWinners[1])
	assert.Equal(t, []string{"b"}, d.RoundWinners[2])
	assert.Equal(t, 3, d.RoundWinners.NextRound())
}

func TestDrawDocRejectsBadData(t *testing.T) {
	for name, raw := range map[string]bson.M{
		"status": {"_id": "d1", "status": "paused"},
		"round":  {"_id": "d1", "status": "announcing", "roundWinners": bson.M{"7": bson.A{"a"}}},
		"id":     {"status": "announcing"},
	} {
		b, err := bson.Marshal(raw)
		require.NoError(t, err, name)

		var doc drawDoc
		require.NoError(t, bson.Unmarshal(b, &doc), name)
		_, err = doc.toModel()
		assert.Error(t, err, name)
	}
}

func TestDrawDocDefaultsStatus(t *testing.T) {
	d := decodeDraw(t, bson.M{"_id": "d1"})
	assert.Equal(t, models.StatusUpcoming, d.Status)
}

func TestTicketDocPadsIntegerNumbers(t *testing.T) {
	b, err := bson.Marshal(bson.M{"_id": "t1", "drawId": "d1", "userId": "u1", "numbers": int32(123)})
	require.NoError(t, err)

	var doc ticketDoc
	require.NoError(t, bson.Unmarshal(b, &doc))
	entry, err := doc.toModel()
	require.NoError(t, err)
	assert.Equal(t, "000123", entry.Numbers)
	assert.Nil(t, entry.User)
}

func TestDrawDocRoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	in := &models.Draw{
		ID:               "d1",
		Name:             "Spring",
		TicketPrice:      decimal.RequireFromString("10.00"),
		AnnouncementDate: at,
		Status:           models.StatusAnnouncing,
		RoundWinners:     models.RoundWinners{1: {"a", "b"}},
	}

	b, err := bson.Marshal(newDrawDoc(in))
	require.NoError(t, err)

	var raw bson.M
	require.NoError(t, bson.Unmarshal(b, &raw))
	assert.Equal(t, "10", raw["ticketPrice"])
	assert.Nil(t, raw["startDate"])

	var doc drawDoc
	require.NoError(t, bson.Unmarshal(b, &doc))
	out, err := doc.toModel()
	require.NoError(t, err)
	assert.True(t, at.Equal(out.AnnouncementDate))
	assert.Equal(t, in.RoundWinners, out.RoundWinners)
}
