package picker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/marketbook/internal/domain/availability"
)

var (
	ErrPastDate        = errors.New("date is in the past")
	ErrNoDate          = errors.New("no date selected")
	ErrSlotUnavailable = errors.New("time slot is not available")
)

// Fetcher loads one availability window.
type Fetcher interface {
	FetchSlots(ctx context.Context, q availability.Query) ([]availability.TimeSlot, error)
}

// SelectFunc receives every date pick (time == "") and every valid time pick.
type SelectFunc func(date, time string)

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusError
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	case StatusReady:
		return "ready"
	default:
		return "idle"
	}
}

// State is a snapshot of the picker. Slots is never shared with the picker.
type State struct {
	BusinessID      string
	DurationMinutes int
	Date            time.Time // zero when no date is selected
	Time            string
	Slots           []availability.TimeSlot
	Status          Status
	Reason          availability.Reason
	Message         string

	generation uint64
}

func (s State) HasDate() bool { return !s.Date.IsZero() }

func (s State) DateString() string { return availability.FormatDate(s.Date) }

// Picker resolves availability for the date fed in by its host and lets
// the user pick one time on that date. Inputs are controlled by the host;
// picks are reported through the SelectFunc.
type Picker struct {
	fetcher  Fetcher
	onSelect SelectFunc
	onChange func(State)
	now      func() time.Time
	log      *zap.Logger

	mu         sync.Mutex
	gen        uint64
	businessID string
	duration   int
	date       time.Time
	selected   string
	slots      []availability.TimeSlot
	status     Status
	reason     availability.Reason
	message    string

	wg sync.WaitGroup

	notifyMu  sync.Mutex
	delivered uint64
}

type Option func(*Picker)

func WithOnSelect(f SelectFunc) Option { return func(p *Picker) { p.onSelect = f } }

// WithOnChange registers an observer called with a snapshot after each
// transition. Snapshots older than one already delivered are skipped. The
// observer must not call back into the picker.
func WithOnChange(f func(State)) Option { return func(p *Picker) { p.onChange = f } }

func WithClock(now func() time.Time) Option { return func(p *Picker) { p.now = now } }

func WithLogger(l *zap.Logger) Option { return func(p *Picker) { p.log = l } }

func New(f Fetcher, opts ...Option) *Picker {
	p := &Picker{
		fetcher: f,
		now:     time.Now,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Configure sets the business and service duration. A change re-resolves
// the current date.
func (p *Picker) Configure(ctx context.Context, businessID string, durationMinutes int) {
	p.mu.Lock()
	if p.businessID == businessID && p.duration == durationMinutes {
		p.mu.Unlock()
		return
	}
	p.businessID = businessID
	p.duration = durationMinutes
	st := p.resolveLocked(ctx)
	p.mu.Unlock()
	p.notify(st)
}

// SetDate feeds the host's selected date. Setting the same day again is a no-op.
func (p *Picker) SetDate(ctx context.Context, d time.Time) {
	if d.IsZero() {
		p.ClearDate()
		return
	}
	d = availability.Day(d)
	p.mu.Lock()
	if p.date.Equal(d) && p.status != StatusIdle {
		p.mu.Unlock()
		return
	}
	p.date = d
	st := p.resolveLocked(ctx)
	p.mu.Unlock()
	p.notify(st)
}

// ClearDate returns the picker to idle from any state.
func (p *Picker) ClearDate() {
	p.mu.Lock()
	p.date = time.Time{}
	st := p.resolveLocked(context.Background())
	p.mu.Unlock()
	p.notify(st)
}

// SetTime feeds the host's selected time without reporting a pick.
func (p *Picker) SetTime(t string) {
	p.mu.Lock()
	p.selected = t
	st := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(st)
}

// Refresh re-resolves the current inputs.
func (p *Picker) Refresh(ctx context.Context) {
	p.mu.Lock()
	st := p.resolveLocked(ctx)
	p.mu.Unlock()
	p.notify(st)
}

// PickDate is a user date pick: past days are rejected, otherwise the host
// hears (date, "") and the pending time is cleared.
func (p *Picker) PickDate(ctx context.Context, d time.Time) error {
	if d.IsZero() {
		return ErrNoDate
	}
	if availability.IsPast(d, p.now()) {
		return ErrPastDate
	}
	p.mu.Lock()
	p.selected = ""
	same := p.date.Equal(availability.Day(d)) && p.status != StatusIdle
	st := p.snapshotLocked()
	p.mu.Unlock()

	if p.onSelect != nil {
		p.onSelect(availability.FormatDate(d), "")
	}
	if same {
		p.notify(st)
		return nil
	}
	p.SetDate(ctx, d)
	return nil
}

// PickTime is a user time pick. Only times present in the current
// slot set and marked available are accepted.
func (p *Picker) PickTime(t string) error {
	p.mu.Lock()
	if p.date.IsZero() {
		p.mu.Unlock()
		return ErrNoDate
	}
	s, ok := availability.Find(p.slots, t)
	if !ok || !s.Available {
		p.mu.Unlock()
		return ErrSlotUnavailable
	}
	p.selected = t
	date := availability.FormatDate(p.date)
	st := p.snapshotLocked()
	p.mu.Unlock()

	if p.onSelect != nil {
		p.onSelect(date, t)
	}
	p.notify(st)
	return nil
}

func (p *Picker) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Wait blocks until every started fetch has returned.
func (p *Picker) Wait() { p.wg.Wait() }

// resolveLocked starts a new request generation for the current inputs.
// Any response still in flight for an older generation is dropped.
func (p *Picker) resolveLocked(ctx context.Context) State {
	p.gen++
	gen := p.gen
	p.slots = nil
	p.reason = availability.ReasonNone
	p.message = ""

	if p.date.IsZero() {
		p.status = StatusIdle
		return p.snapshotLocked()
	}
	q, ok := availability.NewQuery(p.businessID, p.duration, p.date)
	if !ok {
		p.status = StatusIdle
		return p.snapshotLocked()
	}

	p.status = StatusLoading
	p.wg.Add(1)
	go p.fetch(ctx, gen, q)
	return p.snapshotLocked()
}

func (p *Picker) fetch(ctx context.Context, gen uint64, q availability.Query) {
	defer p.wg.Done()
	all, err := p.fetcher.FetchSlots(ctx, q)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		p.log.Debug("discarding stale availability response",
			zap.String("business_id", q.BusinessID),
			zap.String("date", availability.FormatDate(q.StartDate)),
		)
		return
	}
	date := availability.FormatDate(p.date)
	switch {
	case err != nil:
		p.status = StatusError
		p.reason = availability.ReasonTransport
		p.message = availability.UpstreamMessage(err)
		p.log.Warn("availability fetch failed", zap.String("business_id", q.BusinessID), zap.String("date", date), zap.Error(err))
	default:
		slots, reason := availability.Resolve(all, date)
		if reason != availability.ReasonNone {
			p.status = StatusError
			p.reason = reason
		} else {
			p.status = StatusReady
			p.slots = slots
		}
	}
	st := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(st)
}

func (p *Picker) snapshotLocked() State {
	var slots []availability.TimeSlot
	if len(p.slots) > 0 {
		slots = append([]availability.TimeSlot(nil), p.slots...)
	}
	return State{
		BusinessID:      p.businessID,
		DurationMinutes: p.duration,
		Date:            p.date,
		Time:            p.selected,
		Slots:           slots,
		Status:          p.status,
		Reason:          p.reason,
		Message:         p.message,
		generation:      p.gen,
	}
}

func (p *Picker) notify(st State) {
	if p.onChange == nil {
		return
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	if st.generation < p.delivered {
		return
	}
	p.delivered = st.generation
	p.onChange(st)
}
