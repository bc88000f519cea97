// Package ceremony turns persisted round results into the paced reveal a
// viewer watches. It never decides anything: every ticket it shows comes from
// a persisted round.
package ceremony

import (
	"github.com/avvvet/prizedraw-services/internal/comm"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

type Phase string

const (
	PhaseAwaiting      Phase = "awaiting"
	PhaseAnnouncing    Phase = "announcing"
	PhaseRevealing     Phase = "revealing"
	PhaseRoundComplete Phase = "round_complete"
	PhaseIntermission  Phase = "intermission"
	PhaseFinale        Phase = "finale"
	PhaseFinished      Phase = "finished"
)

// Projection is where a viewer stands given persisted rounds and what it has
// already revealed.
type Projection struct {
	// Stage is the lowest round not fully revealed, FinalRound+1 once all are.
	Stage          int              `json:"stage"`
	StagePersisted bool             `json:"stagePersisted"`
	Pending        []string         `json:"pending"`
	Revealed       map[int][]string `json:"revealed"`
	Phase          Phase            `json:"phase"`
}

// Reconstruct projects snap against the announced reveal set. Announced ids
// that are not part of the persisted round are ignored.
func Reconstruct(snap *comm.DrawSnapshot, announced map[int][]string) Projection {
	var rounds models.RoundWinners
	if snap != nil {
		rounds = models.RoundWinners(snap.RoundWinners)
	}

	p := Projection{
		Stage:    models.FinalRound + 1,
		Pending:  []string{},
		Revealed: make(map[int][]string),
	}

	for r := models.FirstRound; r <= models.FinalRound; r++ {
		persisted, ok := rounds[r]
		if !ok {
			p.Stage = r
			break
		}

		shown := make(map[string]bool, len(announced[r]))
		for _, id := range announced[r] {
			shown[id] = true
		}
		var revealed, pending []string
		for _, id := range persisted {
			if shown[id] {
				revealed = append(revealed, id)
				delete(shown, id)
			} else {
				pending = append(pending, id)
			}
		}
		if len(revealed) > 0 {
			p.Revealed[r] = revealed
		}
		if len(pending) > 0 {
			p.Stage = r
			p.StagePersisted = true
			p.Pending = pending
			break
		}
	}

	switch {
	case p.Stage > models.FinalRound:
		p.Phase = PhaseFinished
	case !p.StagePersisted && p.Stage == models.FirstRound:
		p.Phase = PhaseAwaiting
	case !p.StagePersisted:
		p.Phase = PhaseIntermission
	case p.Stage == models.FinalRound:
		p.Phase = PhaseFinale
	default:
		p.Phase = PhaseRevealing
	}
	return p
}

// FastForward is the reveal set of a viewer joining mid-ceremony: everything
// already persisted counts as shown.
func FastForward(snap *comm.DrawSnapshot) map[int][]string {
	out := make(map[int][]string)
	if snap == nil {
		return out
	}
	for r, ids := range snap.RoundWinners {
		if r >= models.FirstRound && r <= models.FinalRound {
			out[r] = append([]string(nil), ids...)
		}
	}
	return out
}
