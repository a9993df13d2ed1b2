// Package staff is the viewer side of the intake channel: it folds form and
// status updates into one live entry per patient session.
package staff

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/liveintake/intake/internal/platform/broadcast"
)

// Placeholder is shown for a session whose status has not been seen yet.
const Placeholder = "-"

// Entry is the merged view of one patient session.
type Entry struct {
	PatientID string            `json:"patientId"`
	Data      map[string]string `json:"data"`
	Status    broadcast.Status  `json:"status,omitempty"`
	UpdatedAt *time.Time        `json:"updatedAt,omitempty"`
	LastSeen  *time.Time        `json:"lastSeen,omitempty"`
	Indicator string            `json:"indicator"`
}

// Indicator maps a status to the label shown next to a patient.
func Indicator(s broadcast.Status) string {
	switch s {
	case broadcast.StatusTyping, broadcast.StatusIdle, broadcast.StatusSubmitted:
		return string(s)
	}
	return Placeholder
}

type Option func(*Aggregator)

// WithClock overrides the time source used for updatedAt and lastSeen.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithNotify registers fn to run after every applied message with the
// resulting entry.
func WithNotify(fn func(Entry)) Option {
	return func(a *Aggregator) { a.notify = fn }
}

// Aggregator keeps one entry per patientId. Entries are never removed; a
// submitted session stays listed.
type Aggregator struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string

	subMu sync.Mutex
	unsub []func()

	now    func() time.Time
	notify func(Entry)
	logger zerolog.Logger
}

type entry struct {
	data      map[string]string
	status    broadcast.Status
	updatedAt time.Time
	lastSeen  time.Time
}

func NewAggregator(logger zerolog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		entries: make(map[string]*entry),
		now:     time.Now,
		logger:  logger,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Attach subscribes the aggregator to topic on sub. Close detaches it.
func (a *Aggregator) Attach(sub broadcast.Subscriber, topic string) {
	u := sub.Subscribe(topic, a.HandleEnvelope)
	a.subMu.Lock()
	a.unsub = append(a.unsub, u)
	a.subMu.Unlock()
}

// Close removes every subscription made by Attach.
func (a *Aggregator) Close() {
	a.subMu.Lock()
	unsub := a.unsub
	a.unsub = nil
	a.subMu.Unlock()
	for _, u := range unsub {
		u()
	}
}

// HandleEnvelope decodes env and applies it. Envelopes that fail to decode
// are dropped.
func (a *Aggregator) HandleEnvelope(env broadcast.Envelope) {
	msg, err := broadcast.Decode(env)
	if err != nil {
		a.logger.Debug().Err(err).Str("event", string(env.Event)).Msg("dropping malformed message")
		return
	}
	a.Apply(msg)
}

// Apply merges msg into its entry and reports whether anything was applied.
// A form_update overwrites only the keys it carries.
func (a *Aggregator) Apply(msg broadcast.Message) bool {
	var snap Entry

	a.mu.Lock()
	switch m := msg.(type) {
	case broadcast.FormUpdate:
		if m.PatientID == "" || m.Data == nil {
			a.mu.Unlock()
			return false
		}
		e := a.entryLocked(m.PatientID)
		for k, v := range m.Data {
			e.data[k] = v
		}
		e.updatedAt = a.now()
		snap = e.export(m.PatientID)

	case broadcast.StatusUpdate:
		if m.PatientID == "" || !m.Status.Valid() {
			a.mu.Unlock()
			return false
		}
		e := a.entryLocked(m.PatientID)
		e.status = m.Status
		e.lastSeen = a.now()
		snap = e.export(m.PatientID)

	default:
		a.mu.Unlock()
		return false
	}
	a.mu.Unlock()

	if a.notify != nil {
		a.notify(snap)
	}
	return true
}

// Snapshot returns every entry in first-seen order.
func (a *Aggregator) Snapshot() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Entry, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.entries[id].export(id))
	}
	return out
}

func (a *Aggregator) Get(patientID string) (Entry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entries[patientID]
	if !ok {
		return Entry{}, false
	}
	return e.export(patientID), true
}

func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

func (a *Aggregator) entryLocked(id string) *entry {
	e, ok := a.entries[id]
	if !ok {
		e = &entry{data: make(map[string]string)}
		a.entries[id] = e
		a.order = append(a.order, id)
	}
	return e
}

func (e *entry) export(id string) Entry {
	data := make(map[string]string, len(e.data))
	for k, v := range e.data {
		data[k] = v
	}
	out := Entry{
		PatientID: id,
		Data:      data,
		Status:    e.status,
		Indicator: Indicator(e.status),
	}
	if !e.updatedAt.IsZero() {
		t := e.updatedAt
		out.UpdatedAt = &t
	}
	if !e.lastSeen.IsZero() {
		t := e.lastSeen
		out.LastSeen = &t
	}
	return out
}
