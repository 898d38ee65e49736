/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Round controller
//
// The controller owns the shuffled photo queue, the photo on screen, the
// slider position, the phase of the current round and the running score.
// It is not safe for concurrent use; a session hub is its only caller and
// serializes every command and timer expiry through one goroutine.
//
//	Playing --guess(correct)--> Correct --(correctDelay)--> advance --> Playing
//	Playing --guess(wrong)----> Wrong   --(wrongDelay)----> Playing (same photo)
//	any     --skip------------> Playing (next photo)

package main

import (
	"errors"
	"time"
)

var ErrNoContent = errors.New("no memories to play")

type Phase string

const (
	PhaseEmpty   Phase = "empty"
	PhasePlaying Phase = "playing"
	PhaseCorrect Phase = "correct"
	PhaseWrong   Phase = "wrong"
)

// RoundState is what the presentation layer renders.
type RoundState struct {
	Current     *MemoryRecord
	SliderIndex int
	Phase       Phase
	Score       int
}

// shuffler is satisfied by *math/rand/v2.Rand.
type shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// scheduler runs f once after d. Implementations must deliver f on the
// same goroutine that drives the controller.
type scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type effects interface {
	Celebrate()
}

type Controller struct {
	records []MemoryRecord
	queue   []MemoryRecord

	slider int
	phase  Phase
	score  int

	// bumped on every phase change; deferred transitions compare against it
	token uint64

	shuffle      shuffler
	sched        scheduler
	fx           effects
	correctDelay time.Duration
	wrongDelay   time.Duration
}

func newController(rng shuffler, sched scheduler, fx effects, correctDelay, wrongDelay time.Duration) *Controller {
	return &Controller{
		phase:        PhaseEmpty,
		slider:       defaultSlotIdx,
		shuffle:      rng,
		sched:        sched,
		fx:           fx,
		correctDelay: correctDelay,
		wrongDelay:   wrongDelay,
	}
}

// Initialize starts a session over records. With no records the controller
// stays in PhaseEmpty and returns ErrNoContent.
func (c *Controller) Initialize(records []MemoryRecord) error {
	c.records = nil
	c.queue = nil
	c.score = 0
	c.slider = defaultSlotIdx
	c.token++

	if len(records) == 0 {
		c.phase = PhaseEmpty
		return ErrNoContent
	}

	c.records = append([]MemoryRecord(nil), records...)
	c.queue = c.shuffled()
	c.phase = PhasePlaying

	return nil
}

func (c *Controller) shuffled() []MemoryRecord {
	q := append([]MemoryRecord(nil), c.records...)
	c.shuffle.Shuffle(len(q), func(i, j int) {
		q[i], q[j] = q[j], q[i]
	})
	return q
}

// SelectSlot moves the slider. It reports whether the selection was applied.
func (c *Controller) SelectSlot(index int) bool {
	if c.phase != PhasePlaying || !validSlot(index) {
		return false
	}

	c.slider = index

	return true
}

// SubmitGuess compares the selected slot to the photo on screen. It reports
// whether a guess was evaluated; outside PhasePlaying it does nothing.
func (c *Controller) SubmitGuess() bool {
	if c.phase != PhasePlaying || len(c.queue) == 0 {
		return false
	}

	selected := slots[c.slider]
	current := c.queue[0]

	if selected.Month == current.Month && selected.Year == current.Year {
		c.score++
		c.setPhase(PhaseCorrect)
		c.fx.Celebrate()
		c.schedule(c.correctDelay, func() {
			c.AdvanceRound()
		})
	} else {
		c.setPhase(PhaseWrong)
		c.schedule(c.wrongDelay, func() {
			c.setPhase(PhasePlaying)
		})
	}

	return true
}

// AdvanceRound drops the current photo and shows the next one, reshuffling
// the full record set once the queue runs out. It is also the skip action.
func (c *Controller) AdvanceRound() {
	if c.phase == PhaseEmpty {
		return
	}

	c.queue = c.queue[1:]
	if len(c.queue) == 0 {
		c.queue = c.shuffled()
	}

	c.slider = defaultSlotIdx
	c.setPhase(PhasePlaying)
}

func (c *Controller) setPhase(p Phase) {
	c.phase = p
	c.token++
}

// schedule queues f to close out the phase that is current right now.
// If anything else has changed the phase by the time it fires, f is dropped.
func (c *Controller) schedule(d time.Duration, f func()) {
	token := c.token
	c.sched.AfterFunc(d, func() {
		if c.token != token {
			return
		}
		f()
	})
}

func (c *Controller) State() RoundState {
	s := RoundState{
		SliderIndex: c.slider,
		Phase:       c.phase,
		Score:       c.score,
	}
	if len(c.queue) > 0 {
		cur := c.queue[0]
		s.Current = &cur
	}
	return s
}

// Selected returns the slot under the slider.
func (c *Controller) Selected() MonthSlot {
	return slots[c.slider]
}
