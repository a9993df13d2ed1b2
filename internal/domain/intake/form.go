// Package intake holds the patient-side half of the live intake protocol: the
// form state of one patient session, its validation, and the publisher that
// mirrors every edit onto the shared channel with typing/idle/submitted
// status.
package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/liveintake/intake/internal/domain/areas"
	"github.com/liveintake/intake/internal/platform/broadcast"
)

// DefaultIdleTimeout is the quiet period after the last edit before a session
// is reported idle.
const DefaultIdleTimeout = 5 * time.Second

var (
	ErrFormClosed     = errors.New("form is closed")
	ErrNotSuggestible = errors.New("field has no suggestions")
)

// Options configures forms. Zero values fall back to defaults.
type Options struct {
	IdleTimeout time.Duration
	Scheduler   Scheduler
	NewID       IDFunc
	Directory   *areas.Directory
	Validator   Validator
	Logger      zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.Scheduler == nil {
		o.Scheduler = RealScheduler
	}
	if o.NewID == nil {
		o.NewID = NewSessionID
	}
	if o.Directory == nil {
		o.Directory = &areas.Directory{}
	}
	return o
}

// SubmitResult describes an accepted submission. PhoneE164 is the submitted
// phone number in international form.
type SubmitResult struct {
	SubmittedID string `json:"submittedId"`
	NextID      string `json:"nextId"`
	Record      Record `json:"record"`
	PhoneE164   string `json:"phoneE164"`
}

// View is a read-only snapshot of a form. Located reports whether province,
// district and subdistrict form a path in the area directory.
type View struct {
	ID           string   `json:"id"`
	Record       Record   `json:"record"`
	Districts    []string `json:"districts"`
	Subdistricts []string `json:"subdistricts"`
	Located      bool     `json:"located"`
}

// Form is one patient's intake session. Every mutation replaces the whole
// record, publishes it, publishes "typing" and re-arms the idle task. A form
// owns its idle task and suggestion lists; Close releases them.
type Form struct {
	mu           sync.Mutex
	id           string
	record       Record
	districts    []areas.District
	subdistricts []areas.Subdistrict
	idle         Timer
	idleGen      uint64
	closed       bool
	suggestions  map[string]*SuggestionList
	pub          *Publisher
	opts         Options
}

// NewForm creates a blank form. An empty id is replaced by a generated one.
func NewForm(id string, pub *Publisher, opts Options) *Form {
	opts = opts.withDefaults()
	if id == "" {
		id = opts.NewID()
	}
	return &Form{
		id:          id,
		pub:         pub,
		opts:        opts,
		suggestions: make(map[string]*SuggestionList),
	}
}

// ID returns the current session id. It changes after a successful Submit.
func (f *Form) ID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id
}

// Record returns a copy of the current answers.
func (f *Form) Record() Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record
}

// View returns the record together with the narrowed location options.
func (f *Form) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return View{
		ID:           f.id,
		Record:       f.record,
		Districts:    areas.DistrictNames(f.districts),
		Subdistricts: areas.SubdistrictNames(f.subdistricts),
		Located:      f.opts.Directory.Contains(f.record.Province, f.record.District, f.record.Subdistrict),
	}
}

// SetField sets one field as typed by the patient.
func (f *Form) SetField(ctx context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFormClosed
	}
	if isLocationField(name) && f.record.Get(name) != value {
		f.mutateLocked(ctx, f.cascadeLocked(name, value))
		return nil
	}
	next, err := f.record.With(name, value)
	if err != nil {
		return err
	}
	f.mutateLocked(ctx, next)
	return nil
}

// SelectProvince picks a province, clearing district, subdistrict and postal
// code and narrowing the district options. Names outside the directory are
// accepted and leave the options empty.
func (f *Form) SelectProvince(ctx context.Context, name string) error {
	return f.selectLocation(ctx, FieldProvince, name)
}

// SelectDistrict picks a district, clearing subdistrict and postal code and
// narrowing the subdistrict options.
func (f *Form) SelectDistrict(ctx context.Context, name string) error {
	return f.selectLocation(ctx, FieldDistrict, name)
}

// SelectSubdistrict picks a subdistrict and fills the postal code from the
// directory. The postal code stays editable through SetField.
func (f *Form) SelectSubdistrict(ctx context.Context, name string) error {
	return f.selectLocation(ctx, FieldSubdistrict, name)
}

func (f *Form) selectLocation(ctx context.Context, field, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFormClosed
	}
	f.mutateLocked(ctx, f.cascadeLocked(field, name))
	return nil
}

// cascadeLocked returns the record with a location field set to value and
// everything below it reset. The option lists are narrowed to match.
func (f *Form) cascadeLocked(field, value string) Record {
	next := f.record
	switch field {
	case FieldProvince:
		f.districts = f.opts.Directory.Districts(value)
		f.subdistricts = nil
		next.Province = value
		next.District, next.Subdistrict, next.PostalCode = "", "", ""
	case FieldDistrict:
		f.subdistricts = areas.FindDistrict(f.districts, value)
		next.District = value
		next.Subdistrict, next.PostalCode = "", ""
	case FieldSubdistrict:
		next.Subdistrict = value
		next.PostalCode = areas.FindPostalCode(f.subdistricts, value)
	}
	return next
}

func isLocationField(name string) bool {
	return name == FieldProvince || name == FieldDistrict || name == FieldSubdistrict
}

// Select runs the cascade select for a location field.
func (f *Form) Select(ctx context.Context, field, name string) error {
	switch field {
	case FieldProvince:
		return f.SelectProvince(ctx, name)
	case FieldDistrict:
		return f.SelectDistrict(ctx, name)
	case FieldSubdistrict:
		return f.SelectSubdistrict(ctx, name)
	}
	return fmt.Errorf("%w: %q", ErrNotSuggestible, field)
}

// Candidates returns the current options of a location field.
func (f *Form) Candidates(field string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.candidatesLocked(field)
}

func (f *Form) candidatesLocked(field string) ([]string, error) {
	switch field {
	case FieldProvince:
		return f.opts.Directory.ProvinceNames(), nil
	case FieldDistrict:
		return areas.DistrictNames(f.districts), nil
	case FieldSubdistrict:
		return areas.SubdistrictNames(f.subdistricts), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotSuggestible, field)
}

// Suggestions returns the suggestion list of a location field.
func (f *Form) Suggestions(field string) (*SuggestionList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.candidatesLocked(field); err != nil {
		return nil, err
	}
	list, ok := f.suggestions[field]
	if !ok {
		list = NewSuggestionList(f.opts.Scheduler, func(ctx context.Context, value string) error {
			return f.Select(ctx, field, value)
		})
		f.suggestions[field] = list
	}
	return list, nil
}

// Type records free text in a location field and refreshes its suggestion
// list with the matching options.
func (f *Form) Type(ctx context.Context, field, text string) (SuggestionState, error) {
	list, err := f.Suggestions(field)
	if err != nil {
		return SuggestionState{}, err
	}
	if err := f.SetField(ctx, field, text); err != nil {
		return SuggestionState{}, err
	}
	candidates, err := f.Candidates(field)
	if err != nil {
		return SuggestionState{}, err
	}
	list.Update(areas.Suggest(candidates, text))
	return list.State(), nil
}

// Submit validates the record. When valid it publishes the final record and
// "submitted", then resets the form to blank under a new session id. When
// invalid nothing is published and the field errors are returned.
func (f *Form) Submit(ctx context.Context) (SubmitResult, ErrorMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return SubmitResult{}, nil, ErrFormClosed
	}

	if errs := f.opts.Validator.Validate(f.record); len(errs) > 0 {
		return SubmitResult{}, errs, nil
	}

	f.pub.FormUpdate(ctx, f.id, f.record)
	f.pub.Status(ctx, f.id, broadcast.StatusSubmitted)
	f.stopIdleLocked()

	res := SubmitResult{
		SubmittedID: f.id,
		Record:      f.record,
		PhoneE164:   NormalizePhoneE164(f.record.Phone, f.opts.Validator.region()),
	}
	f.record = Record{}
	f.districts = nil
	f.subdistricts = nil
	for _, list := range f.suggestions {
		list.Reset()
	}
	f.id = f.nextIDLocked()
	res.NextID = f.id

	f.opts.Logger.Info().Str("patient_id", res.SubmittedID).Str("next_id", res.NextID).Msg("intake submitted")
	return res, nil, nil
}

// Close cancels the idle task and suggestion timers. It is safe to call more
// than once.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.stopIdleLocked()
	for _, list := range f.suggestions {
		list.Reset()
	}
}

func (f *Form) mutateLocked(ctx context.Context, next Record) {
	f.record = next
	f.pub.FormUpdate(ctx, f.id, next)
	f.pub.Status(ctx, f.id, broadcast.StatusTyping)
	f.armIdleLocked()
}

// armIdleLocked replaces any pending idle task with a new one. The generation
// check keeps a task that already started firing from publishing.
func (f *Form) armIdleLocked() {
	f.stopIdleLocked()
	gen, id := f.idleGen, f.id
	f.idle = f.opts.Scheduler.AfterFunc(f.opts.IdleTimeout, func() {
		f.fireIdle(gen, id)
	})
}

func (f *Form) stopIdleLocked() {
	if f.idle != nil {
		f.idle.Stop()
		f.idle = nil
	}
	f.idleGen++
}

func (f *Form) fireIdle(gen uint64, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || gen != f.idleGen {
		return
	}
	f.idle = nil
	f.pub.Status(context.Background(), id, broadcast.StatusIdle)
}

func (f *Form) nextIDLocked() string {
	for i := 0; i < 3; i++ {
		if id := f.opts.NewID(); id != f.id {
			return id
		}
	}
	return NewSessionID()
}
