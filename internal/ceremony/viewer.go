package ceremony

import (
	"sync"
	"time"

	"github.com/avvvet/prizedraw-services/internal/comm"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

type Pacing struct {
	Digit           time.Duration
	TicketGap       time.Duration
	RoundHold       time.Duration
	Intermission    time.Duration
	FinaleCountdown time.Duration
}

func DefaultPacing() Pacing {
	return Pacing{
		Digit:           300 * time.Millisecond,
		TicketGap:       time.Second,
		RoundHold:       2 * time.Second,
		Intermission:    10 * time.Second,
		FinaleCountdown: 5 * time.Second,
	}
}

// Frame is one rendered state of the ceremony.
type Frame struct {
	DrawID          string           `json:"drawId"`
	Phase           Phase            `json:"phase"`
	Round           int              `json:"round,omitempty"`
	TicketID        string           `json:"ticketId,omitempty"`
	Numbers         string           `json:"numbers,omitempty"` // digits shown so far
	UserName        string           `json:"userName,omitempty"`
	Done            bool             `json:"done,omitempty"` // ticket fully shown
	Countdown       int              `json:"countdown,omitempty"`
	Revealed        map[int][]string `json:"revealed"`
	WinningTicketID string           `json:"winningTicketId,omitempty"`
	At              time.Time        `json:"at"`
}

// Viewer runs the ceremony for one connected client. All state changes happen
// under mu; frames are handed to emit after mu is released, in order. emit
// must not call back into the viewer.
type Viewer struct {
	mu     sync.Mutex
	emitMu sync.Mutex

	clock  Clock
	pacing Pacing
	emit   func(Frame)

	drawID   string
	snap     *comm.DrawSnapshot
	revealed map[int][]string
	seen     map[int]map[string]bool

	phase     Phase
	round     int
	ticket    string
	digits    int
	countdown int

	timer   Timer
	gen     uint64
	started bool
	stopped bool
	out     []Frame
}

func NewViewer(drawID string, clock Clock, pacing Pacing, emit func(Frame)) *Viewer {
	if clock == nil {
		clock = RealClock()
	}
	return &Viewer{
		clock:    clock,
		pacing:   pacing,
		emit:     emit,
		drawID:   drawID,
		revealed: make(map[int][]string),
		seen:     make(map[int]map[string]bool),
	}
}

func (v *Viewer) DrawID() string {
	return v.drawID
}

// Start fast-forwards through everything already persisted and shows the
// resulting state. Only rounds that arrive later are animated. An update fed
// before Start wins over snap when it carries more rounds.
func (v *Viewer) Start(snap *comm.DrawSnapshot) {
	v.mu.Lock()
	if v.started || v.stopped {
		v.mu.Unlock()
		return
	}
	v.started = true
	if v.snap == nil || (snap != nil && len(snap.RoundWinners) >= len(v.snap.RoundWinners)) {
		v.snap = snap
	}
	for r, ids := range FastForward(v.snap) {
		for _, id := range ids {
			v.markRevealed(r, id)
		}
	}
	v.resume()
	if len(v.out) == 0 {
		v.frame(v.phase)
	}
	v.unlockAndFlush()
}

// Update feeds newly persisted state. Snapshots of another draw or with fewer
// rounds than already known are dropped.
func (v *Viewer) Update(snap *comm.DrawSnapshot) {
	if snap == nil {
		return
	}
	v.mu.Lock()
	if v.stopped || snap.DrawID != v.drawID {
		v.mu.Unlock()
		return
	}
	if v.snap != nil && len(snap.RoundWinners) < len(v.snap.RoundWinners) {
		v.mu.Unlock()
		return
	}
	v.snap = snap
	if v.started && v.timer == nil {
		v.resume()
	}
	v.unlockAndFlush()
}

// Stop cancels pending timers; callbacks already in flight become no-ops.
func (v *Viewer) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.stopped = true
	v.gen++
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
}

func (v *Viewer) Phase() Phase {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.phase
}

// Revealed returns a copy of the per-round reveal set.
func (v *Viewer) Revealed() map[int][]string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.copyRevealed()
}

func (v *Viewer) unlockAndFlush() {
	frames := v.out
	v.out = nil
	v.emitMu.Lock()
	v.mu.Unlock()
	defer v.emitMu.Unlock()

	if v.emit == nil {
		return
	}
	for _, f := range frames {
		v.emit(f)
	}
}

func (v *Viewer) schedule(d time.Duration, step func()) {
	v.gen++
	gen := v.gen
	v.timer = v.clock.AfterFunc(d, func() {
		v.mu.Lock()
		if v.stopped || gen != v.gen {
			v.mu.Unlock()
			return
		}
		v.timer = nil
		step()
		v.unlockAndFlush()
	})
}

// resume picks the next step from the projection. Called with mu held and no
// timer pending.
func (v *Viewer) resume() {
	p := Reconstruct(v.snap, v.revealed)

	switch {
	case p.Stage > models.FinalRound:
		if v.phase != PhaseFinished {
			v.round = models.FinalRound
			v.ticket = ""
			v.frame(PhaseFinished)
		}

	case !p.StagePersisted && p.Stage == models.FirstRound:
		if v.phase != PhaseAwaiting {
			v.frame(PhaseAwaiting)
		}

	case !p.StagePersisted:
		// the previous round is fully shown, the next one is not persisted yet
		if v.phase != PhaseIntermission {
			v.round = p.Stage - 1
			v.ticket = ""
			v.countdown = 0
			v.frame(PhaseIntermission)
		}

	case v.phase == PhaseAwaiting && p.Stage == models.FirstRound && len(p.Revealed[models.FirstRound]) == 0:
		v.round = models.FirstRound
		v.frame(PhaseAnnouncing)
		v.schedule(v.pacing.TicketGap, v.resume)

	case p.Stage == models.FinalRound:
		v.startFinale()

	default:
		v.startReveal(PhaseRevealing, p.Stage, p.Pending[0])
	}
}

func (v *Viewer) startReveal(phase Phase, round int, ticketID string) {
	v.phase = phase
	v.round = round
	v.ticket = ticketID
	v.digits = 0
	v.countdown = 0
	v.revealDigit()
}

func (v *Viewer) revealDigit() {
	numbers := v.ticketView(v.ticket).Numbers
	if v.digits < len(numbers) {
		v.digits++
	}
	if v.digits < len(numbers) {
		v.frame(v.phase)
		v.schedule(v.pacing.Digit, v.revealDigit)
		return
	}

	v.markRevealed(v.round, v.ticket)
	v.frame(v.phase)

	p := Reconstruct(v.snap, v.revealed)
	switch {
	case p.StagePersisted && p.Stage == v.round:
		v.schedule(v.pacing.TicketGap, v.resume)
	case v.round < models.FinalRound:
		v.ticket = ""
		v.frame(PhaseRoundComplete)
		v.schedule(v.pacing.RoundHold, v.intermission)
	default:
		v.schedule(v.pacing.RoundHold, v.resume)
	}
}

func (v *Viewer) intermission() {
	v.countdown = int(v.pacing.Intermission / time.Second)
	v.frame(PhaseIntermission)
	v.countdown = 0
	v.schedule(v.pacing.Intermission, v.resume)
}

func (v *Viewer) startFinale() {
	v.round = models.FinalRound
	v.ticket = ""
	v.countdown = v.finaleSteps()
	v.frame(PhaseFinale)
	v.schedule(v.finaleStep(), v.finaleTick)
}

func (v *Viewer) finaleTick() {
	v.countdown--
	if v.countdown > 0 {
		v.frame(PhaseFinale)
		v.schedule(v.finaleStep(), v.finaleTick)
		return
	}

	p := Reconstruct(v.snap, v.revealed)
	if !p.StagePersisted || p.Stage != models.FinalRound {
		v.resume()
		return
	}
	v.startReveal(PhaseFinale, models.FinalRound, p.Pending[0])
}

// finaleSteps is the countdown length in whole seconds, at least one.
func (v *Viewer) finaleSteps() int {
	steps := int(v.pacing.FinaleCountdown / time.Second)
	if steps < 1 {
		steps = 1
	}
	return steps
}

func (v *Viewer) finaleStep() time.Duration {
	return v.pacing.FinaleCountdown / time.Duration(v.finaleSteps())
}

func (v *Viewer) markRevealed(round int, id string) {
	if v.seen[round] == nil {
		v.seen[round] = make(map[string]bool)
	}
	if v.seen[round][id] {
		return
	}
	v.seen[round][id] = true
	v.revealed[round] = append(v.revealed[round], id)
}

func (v *Viewer) ticketView(id string) comm.TicketView {
	if v.snap == nil {
		return comm.TicketView{ID: id}
	}
	if t, ok := v.snap.Tickets[id]; ok {
		return t
	}
	return comm.TicketView{ID: id}
}

func (v *Viewer) copyRevealed() map[int][]string {
	out := make(map[int][]string, len(v.revealed))
	for r, ids := range v.revealed {
		out[r] = append([]string(nil), ids...)
	}
	return out
}

func (v *Viewer) frame(phase Phase) {
	v.phase = phase
	f := Frame{
		DrawID:    v.drawID,
		Phase:     phase,
		Round:     v.round,
		Countdown: v.countdown,
		Revealed:  v.copyRevealed(),
		At:        v.clock.Now(),
	}
	if v.ticket != "" && (phase == PhaseRevealing || phase == PhaseFinale) {
		view := v.ticketView(v.ticket)
		f.TicketID = v.ticket
		n := v.digits
		if n > len(view.Numbers) {
			n = len(view.Numbers)
		}
		f.Numbers = view.Numbers[:n]
		f.Done = v.seen[v.round][v.ticket]
		if f.Done {
			f.UserName = view.UserName
		}
	}
	if phase == PhaseFinished && v.snap != nil {
		f.WinningTicketID = v.snap.WinningTicketID
	}
	v.out = append(v.out, f)
}
