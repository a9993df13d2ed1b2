package intake

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
)

// Manager keeps the open forms of this process keyed by their current
// session id. A submitted form is re-keyed under its new id.
type Manager struct {
	mu    sync.RWMutex
	forms map[string]*Form
	order []string // newest first
	pub   *Publisher
	opts  Options
}

func NewManager(pub *Publisher, opts Options) *Manager {
	return &Manager{
		forms: make(map[string]*Form),
		pub:   pub,
		opts:  opts.withDefaults(),
	}
}

// Open starts a blank form. An empty id gets a generated one.
func (m *Manager) Open(id string) (*Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != "" {
		if _, ok := m.forms[id]; ok {
			return nil, ErrSessionExists
		}
	}
	f := NewForm(id, m.pub, m.opts)
	if _, ok := m.forms[f.ID()]; ok {
		f.Close()
		return nil, ErrSessionExists
	}
	m.forms[f.ID()] = f
	m.order = append([]string{f.ID()}, m.order...)
	return f, nil
}

func (m *Manager) Get(id string) (*Form, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.forms[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return f, nil
}

// Views returns a snapshot of every open form, newest first.
func (m *Manager) Views() []View {
	m.mu.RLock()
	forms := make([]*Form, 0, len(m.order))
	for _, id := range m.order {
		forms = append(forms, m.forms[id])
	}
	m.mu.RUnlock()

	views := make([]View, 0, len(forms))
	for _, f := range forms {
		views = append(views, f.View())
	}
	return views
}

// Submit submits the form open under id. On success the form stays open under
// res.NextID.
func (m *Manager) Submit(ctx context.Context, id string) (SubmitResult, ErrorMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[id]
	if !ok {
		return SubmitResult{}, nil, ErrSessionNotFound
	}
	res, errs, err := f.Submit(ctx)
	if err != nil || len(errs) > 0 {
		return res, errs, err
	}

	delete(m.forms, id)
	m.forms[res.NextID] = f
	for i, v := range m.order {
		if v == id {
			m.order[i] = res.NextID
			break
		}
	}
	return res, nil, nil
}

// Close closes and forgets the form open under id.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[id]
	if !ok {
		return ErrSessionNotFound
	}
	f.Close()
	delete(m.forms, id)
	m.removeLocked(id)
	return nil
}

// CloseAll closes every open form.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, f := range m.forms {
		f.Close()
		delete(m.forms, id)
	}
	m.order = nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.forms)
}

func (m *Manager) removeLocked(id string) {
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
