package intake

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/liveintake/intake/internal/domain/areas"
	"github.com/liveintake/intake/internal/platform/broadcast"
)

// manualScheduler records scheduled tasks and runs them only when told to.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	sched   *manualScheduler
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{sched: s, delay: d, fn: f}
	s.tasks = append(s.tasks, t)
	return t
}

func (t *manualTask) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// pending returns tasks that were neither stopped nor fired.
func (s *manualScheduler) pending() []*manualTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*manualTask
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (s *manualScheduler) all() []*manualTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*manualTask(nil), s.tasks...)
}

// fireAll runs every pending task, as if its delay had elapsed.
func (s *manualScheduler) fireAll() {
	for _, t := range s.pending() {
		s.mu.Lock()
		t.fired = true
		s.mu.Unlock()
		t.fn()
	}
}

// recorder is an in-memory channel that keeps every published message.
type recorder struct {
	mu   sync.Mutex
	msgs []broadcast.Message
	err  error
}

func (r *recorder) Publish(_ context.Context, env broadcast.Envelope) error {
	if r.err != nil {
		return r.err
	}
	msg, err := broadcast.Decode(env)
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) messages() []broadcast.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast.Message(nil), r.msgs...)
}

func (r *recorder) statuses() []broadcast.Status {
	var out []broadcast.Status
	for _, m := range r.messages() {
		if su, ok := m.(broadcast.StatusUpdate); ok {
			out = append(out, su.Status)
		}
	}
	return out
}

func (r *recorder) count(status broadcast.Status) int {
	n := 0
	for _, s := range r.statuses() {
		if s == status {
			n++
		}
	}
	return n
}

func testDirectory() *areas.Directory {
	return &areas.Directory{Provinces: []areas.Province{
		{Name: "A", Districts: []areas.District{
			{Name: "B", Subdistricts: []areas.Subdistrict{
				{Name: "C", PostalCode: "10110"},
				{Name: "C2", PostalCode: "10120"},
			}},
			{Name: "B2", Subdistricts: []areas.Subdistrict{{Name: "D", PostalCode: "10200"}}},
		}},
		{Name: "Ang Thong", Districts: []areas.District{
			{Name: "Mueang", Subdistricts: []areas.Subdistrict{{Name: "Talat Luang", PostalCode: "14000"}}},
		}},
	}}
}

func sequentialIDs(prefix string) IDFunc {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type fixture struct {
	sched *manualScheduler
	rec   *recorder
	opts  Options
	pub   *Publisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sched := &manualScheduler{}
	rec := &recorder{}
	return &fixture{
		sched: sched,
		rec:   rec,
		pub:   NewPublisher(rec, "patient-form", zerolog.Nop()),
		opts: Options{
			Scheduler: sched,
			NewID:     sequentialIDs("p"),
			Directory: testDirectory(),
			Logger:    zerolog.Nop(),
		},
	}
}

func (fx *fixture) form() *Form {
	return NewForm("", fx.pub, fx.opts)
}

func validRecord() Record {
	return Record{
		FirstName: "Somchai",
		LastName:  "Jaidee",
		DOB:       "1990-04-01",
		Gender:    GenderMale,
		Phone:     "0812345678",
		Email:     "somchai@example.com",
	}
}

func fill(t *testing.T, f *Form, r Record) {
	t.Helper()
	fields := r.Fields()
	for _, name := range FieldNames {
		value := fields[name]
		if value == "" {
			continue
		}
		if err := f.SetField(context.Background(), name, value); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}
}
