package ceremony

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avvvet/prizedraw-services/internal/comm"
)

func snapshot(rounds map[int][]string) *comm.DrawSnapshot {
	tickets := map[string]comm.TicketView{}
	for _, ids := range rounds {
		for _, id := range ids {
			tickets[id] = comm.TicketView{ID: id, Numbers: "12345" + id[len(id)-1:], UserName: "owner of " + id}
		}
	}
	return &comm.DrawSnapshot{DrawID: "d1", RoundWinners: rounds, Tickets: tickets}
}

var roundOne = []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8", "t9", "t0"}

func TestReconstructResumesAfterRoundTwo(t *testing.T) {
	snap := snapshot(map[int][]string{
		1: roundOne,
		2: {"t3", "t7", "t9"},
	})

	fresh := Reconstruct(snap, nil)
	assert.Equal(t, 1, fresh.Stage)
	assert.True(t, fresh.StagePersisted)
	assert.Equal(t, roundOne, fresh.Pending)
	assert.Equal(t, PhaseRevealing, fresh.Phase)

	resumed := Reconstruct(snap, FastForward(snap))
	assert.Equal(t, 3, resumed.Stage)
	assert.False(t, resumed.StagePersisted)
	assert.Empty(t, resumed.Pending)
	assert.Equal(t, roundOne, resumed.Revealed[1])
	assert.Equal(t, []string{"t3", "t7", "t9"}, resumed.Revealed[2])
	assert.Equal(t, PhaseIntermission, resumed.Phase)
}

func TestReconstructIgnoresUnpersistedAndDuplicateReveals(t *testing.T) {
	snap := snapshot(map[int][]string{1: {"t1", "t2", "t3"}})

	p := Reconstruct(snap, map[int][]string{
		1: {"t2", "t2", "bogus"},
		2: {"t1"},
	})
	assert.Equal(t, 1, p.Stage)
	assert.Equal(t, []string{"t2"}, p.Revealed[1])
	assert.Equal(t, []string{"t1", "t3"}, p.Pending)
	assert.NotContains(t, p.Revealed, 2)
}

func TestReconstructPhases(t *testing.T) {
	all := map[int][]string{1: {"t1", "t2", "t3"}, 2: {"t1", "t3"}, 3: {"t3"}, 4: {"t3"}}

	assert.Equal(t, PhaseAwaiting, Reconstruct(snapshot(map[int][]string{}), nil).Phase)
	assert.Equal(t, PhaseAwaiting, Reconstruct(nil, nil).Phase)

	done := Reconstruct(snapshot(all), FastForward(snapshot(all)))
	assert.Equal(t, 5, done.Stage)
	assert.Equal(t, PhaseFinished, done.Phase)

	partial := map[int][]string{1: all[1], 2: all[2], 3: all[3]}
	finale := Reconstruct(snapshot(all), partial)
	assert.Equal(t, 4, finale.Stage)
	assert.True(t, finale.StagePersisted)
	assert.Equal(t, PhaseFinale, finale.Phase)
	assert.Equal(t, []string{"t3"}, finale.Pending)
}
