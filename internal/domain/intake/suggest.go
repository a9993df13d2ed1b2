package intake

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BlurGrace is how long a suggestion list stays open after its input loses
// focus, so a pointer pick that is already in flight still lands.
const BlurGrace = 150 * time.Millisecond

// Keys understood by SuggestionList.Key.
const (
	KeyArrowUp   = "ArrowUp"
	KeyArrowDown = "ArrowDown"
	KeyEnter     = "Enter"
)

// ErrUnknownKey is returned for keys other than ArrowUp, ArrowDown and Enter.
var ErrUnknownKey = errors.New("unknown key")

// SuggestionState is a snapshot of a suggestion list.
type SuggestionState struct {
	Items  []string `json:"items"`
	Active int      `json:"active"` // -1 when nothing is highlighted
	Open   bool     `json:"open"`
}

// SuggestionList is the keyboard/pointer state of one autocomplete input.
// Committing an item calls the commit func outside the list's lock.
type SuggestionList struct {
	mu       sync.Mutex
	items    []string
	active   int
	open     bool
	closing  Timer
	closeGen uint64
	sched    Scheduler
	commit   func(ctx context.Context, value string) error
}

// NewSuggestionList creates a closed, empty list.
func NewSuggestionList(sched Scheduler, commit func(ctx context.Context, value string) error) *SuggestionList {
	if sched == nil {
		sched = RealScheduler
	}
	return &SuggestionList{active: -1, sched: sched, commit: commit}
}

// Update replaces the items. The list opens when there is at least one item
// and the highlight resets.
func (s *SuggestionList) Update(items []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelCloseLocked()
	s.items = append([]string(nil), items...)
	s.active = -1
	s.open = len(s.items) > 0
}

// Down moves the highlight to the next item, stopping at the last one.
func (s *SuggestionList) Down() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || len(s.items) == 0 {
		return
	}
	if s.active < len(s.items)-1 {
		s.active++
	}
}

// Up moves the highlight to the previous item, stopping at the first one.
func (s *SuggestionList) Up() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	if s.active > 0 {
		s.active--
	}
}

// Enter commits the highlighted item. It reports false when the list is
// closed or nothing is highlighted.
func (s *SuggestionList) Enter(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	if !s.open || s.active < 0 || s.active >= len(s.items) {
		s.mu.Unlock()
		return "", false, nil
	}
	value := s.items[s.active]
	s.closeLocked()
	s.mu.Unlock()

	return value, true, s.runCommit(ctx, value)
}

// Pick commits item i, as a pointer selection does. It works during the blur
// grace period.
func (s *SuggestionList) Pick(ctx context.Context, i int) (string, bool, error) {
	s.mu.Lock()
	if !s.open || i < 0 || i >= len(s.items) {
		s.mu.Unlock()
		return "", false, nil
	}
	value := s.items[i]
	s.closeLocked()
	s.mu.Unlock()

	return value, true, s.runCommit(ctx, value)
}

// Key dispatches a keyboard key.
func (s *SuggestionList) Key(ctx context.Context, key string) error {
	switch key {
	case KeyArrowDown:
		s.Down()
	case KeyArrowUp:
		s.Up()
	case KeyEnter:
		_, _, err := s.Enter(ctx)
		return err
	default:
		return ErrUnknownKey
	}
	return nil
}

// Blur closes the list after BlurGrace unless it is updated or committed
// first.
func (s *SuggestionList) Blur() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	s.cancelCloseLocked()
	gen := s.closeGen
	s.closing = s.sched.AfterFunc(BlurGrace, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.closeGen {
			return
		}
		s.closing = nil
		s.open = false
		s.active = -1
	})
}

// Reset closes the list and drops its items.
func (s *SuggestionList) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	s.items = nil
}

// State returns a snapshot of the list.
func (s *SuggestionList) State() SuggestionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := append([]string{}, s.items...)
	return SuggestionState{Items: items, Active: s.active, Open: s.open}
}

func (s *SuggestionList) closeLocked() {
	s.cancelCloseLocked()
	s.open = false
	s.active = -1
}

func (s *SuggestionList) cancelCloseLocked() {
	if s.closing != nil {
		s.closing.Stop()
		s.closing = nil
	}
	s.closeGen++
}

func (s *SuggestionList) runCommit(ctx context.Context, value string) error {
	if s.commit == nil {
		return nil
	}
	return s.commit(ctx, value)
}
