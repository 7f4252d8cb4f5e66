package picker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/marketbook/internal/domain/availability"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []availability.Query
	respond func(q availability.Query) ([]availability.TimeSlot, error)
}

func (f *fakeFetcher) FetchSlots(_ context.Context, q availability.Query) ([]availability.TimeSlot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return nil, nil
	}
	return respond(q)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type selection struct{ date, time string }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func fixedClock() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func newTestPicker(f Fetcher) (*Picker, *[]selection) {
	var mu sync.Mutex
	var picks []selection
	p := New(f,
		WithClock(fixedClock),
		WithOnSelect(func(d, t string) {
			mu.Lock()
			picks = append(picks, selection{d, t})
			mu.Unlock()
		}),
	)
	return p, &picks
}

func staticSlots(slots ...availability.TimeSlot) func(availability.Query) ([]availability.TimeSlot, error) {
	return func(availability.Query) ([]availability.TimeSlot, error) { return slots, nil }
}

func TestPicker_ReadyAndPickTime(t *testing.T) {
	f := &fakeFetcher{respond: staticSlots(
		availability.TimeSlot{Date: "2025-06-10", Time: "09:00", Available: true},
		availability.TimeSlot{Date: "2025-06-11", Time: "09:00", Available: true},
	)}
	p, picks := newTestPicker(f)
	p.Configure(context.Background(), "biz-1", 60)
	p.SetDate(context.Background(), day(2025, 6, 10))
	p.Wait()

	st := p.State()
	if st.Status != StatusReady {
		t.Fatalf("expected ready, got %s", st.Status)
	}
	if len(st.Slots) != 1 || st.Slots[0].Time != "09:00" || st.Slots[0].Date != "2025-06-10" {
		t.Fatalf("unexpected slots %+v", st.Slots)
	}

	q := f.calls[0]
	if availability.FormatDate(q.StartDate) != "2025-06-10" || availability.FormatDate(q.EndDate) != "2025-06-17" {
		t.Fatalf("unexpected window %+v", q)
	}

	if err := p.PickTime("09:00"); err != nil {
		t.Fatalf("pick: %v", err)
	}
	if len(*picks) != 1 || (*picks)[0] != (selection{"2025-06-10", "09:00"}) {
		t.Fatalf("unexpected picks %+v", *picks)
	}
	if p.State().Time != "09:00" {
		t.Fatalf("selected time not updated")
	}
}

func TestPicker_ErrorReasons(t *testing.T) {
	cases := []struct {
		name    string
		respond func(availability.Query) ([]availability.TimeSlot, error)
		reason  availability.Reason
		message string
	}{
		{name: "empty window", respond: staticSlots(), reason: availability.ReasonNoSchedule},
		{
			name:    "other dates only",
			respond: staticSlots(availability.TimeSlot{Date: "2025-06-11", Time: "09:00", Available: true}),
			reason:  availability.ReasonNoSlotsForDate,
		},
		{
			name: "transport",
			respond: func(availability.Query) ([]availability.TimeSlot, error) {
				return nil, &availability.FetchError{Status: 503, Message: "Scheduling is down"}
			},
			reason:  availability.ReasonTransport,
			message: "Scheduling is down",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := newTestPicker(&fakeFetcher{respond: tc.respond})
			p.Configure(context.Background(), "biz-1", 30)
			p.SetDate(context.Background(), day(2025, 6, 10))
			p.Wait()

			st := p.State()
			if st.Status != StatusError || st.Reason != tc.reason {
				t.Fatalf("expected error/%s, got %s/%s", tc.reason, st.Status, st.Reason)
			}
			if st.Message != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, st.Message)
			}
			if len(st.Slots) != 0 {
				t.Fatalf("expected no slots, got %+v", st.Slots)
			}
		})
	}
}

func TestPicker_MissingPreconditionsIssueNoRequest(t *testing.T) {
	cases := []struct {
		biz  string
		dur  int
		date time.Time
	}{
		{"", 60, day(2025, 6, 10)},
		{"biz", 0, day(2025, 6, 10)},
		{"biz", -15, day(2025, 6, 10)},
		{"biz", 60, time.Time{}},
	}
	for _, c := range cases {
		f := &fakeFetcher{}
		p, _ := newTestPicker(f)
		p.Configure(context.Background(), c.biz, c.dur)
		p.SetDate(context.Background(), c.date)
		p.Refresh(context.Background())
		p.Wait()
		if f.callCount() != 0 {
			t.Fatalf("expected no request for %q/%d/%v", c.biz, c.dur, c.date)
		}
		if st := p.State(); st.Status != StatusIdle || st.Reason != availability.ReasonNone {
			t.Fatalf("expected silent idle, got %s/%s", st.Status, st.Reason)
		}
	}
}

func TestPicker_UnavailablePickIsNoop(t *testing.T) {
	f := &fakeFetcher{respond: staticSlots(
		availability.TimeSlot{Date: "2025-06-10", Time: "09:00", Available: true},
		availability.TimeSlot{Date: "2025-06-10", Time: "09:30", Available: false},
	)}
	p, picks := newTestPicker(f)
	p.Configure(context.Background(), "biz-1", 60)
	p.SetDate(context.Background(), day(2025, 6, 10))
	p.Wait()

	for _, tm := range []string{"09:30", "13:00"} {
		if err := p.PickTime(tm); !errors.Is(err, ErrSlotUnavailable) {
			t.Fatalf("expected ErrSlotUnavailable for %s, got %v", tm, err)
		}
	}
	if len(*picks) != 0 {
		t.Fatalf("onSelect must not be called, got %+v", *picks)
	}
	if p.State().Time != "" {
		t.Fatalf("selected time must not change")
	}
}

func TestPicker_PickTimeWithoutDate(t *testing.T) {
	p, _ := newTestPicker(&fakeFetcher{})
	if err := p.PickTime("09:00"); !errors.Is(err, ErrNoDate) {
		t.Fatalf("expected ErrNoDate, got %v", err)
	}
}

func TestPicker_StaleResponseDiscarded(t *testing.T) {
	releaseOld := make(chan struct{})
	oldStarted := make(chan struct{})
	f := &fakeFetcher{respond: func(q availability.Query) ([]availability.TimeSlot, error) {
		d := availability.FormatDate(q.StartDate)
		if d == "2025-06-10" {
			close(oldStarted)
			<-releaseOld
			return []availability.TimeSlot{{Date: "2025-06-10", Time: "09:00", Available: true}}, nil
		}
		return []availability.TimeSlot{{Date: d, Time: "14:00", Available: true}}, nil
	}}
	p, _ := newTestPicker(f)
	p.Configure(context.Background(), "biz-1", 60)

	p.SetDate(context.Background(), day(2025, 6, 10))
	<-oldStarted
	p.SetDate(context.Background(), day(2025, 6, 12))

	// let the newer fetch land first, then release the old one
	deadline := time.Now().Add(2 * time.Second)
	for p.State().Status != StatusReady {
		if time.Now().After(deadline) {
			t.Fatalf("newer fetch never resolved")
		}
		time.Sleep(time.Millisecond)
	}
	close(releaseOld)
	p.Wait()

	st := p.State()
	if st.DateString() != "2025-06-12" {
		t.Fatalf("expected date 2025-06-12, got %s", st.DateString())
	}
	if len(st.Slots) != 1 || st.Slots[0].Date != "2025-06-12" || st.Slots[0].Time != "14:00" {
		t.Fatalf("stale slots applied: %+v", st.Slots)
	}
}

func TestPicker_ClearDateReturnsToIdle(t *testing.T) {
	release := make(chan struct{})
	f := &fakeFetcher{respond: func(q availability.Query) ([]availability.TimeSlot, error) {
		<-release
		return []availability.TimeSlot{{Date: "2025-06-10", Time: "09:00", Available: true}}, nil
	}}
	p, _ := newTestPicker(f)
	p.Configure(context.Background(), "biz-1", 60)
	p.SetDate(context.Background(), day(2025, 6, 10))
	if p.State().Status != StatusLoading {
		t.Fatalf("expected loading")
	}

	p.ClearDate()
	close(release)
	p.Wait()

	st := p.State()
	if st.Status != StatusIdle || st.HasDate() || len(st.Slots) != 0 || st.Reason != availability.ReasonNone {
		t.Fatalf("expected clean idle state, got %+v", st)
	}
}

func TestPicker_ClearFromError(t *testing.T) {
	p, _ := newTestPicker(&fakeFetcher{respond: staticSlots()})
	p.Configure(context.Background(), "biz-1", 60)
	p.SetDate(context.Background(), day(2025, 6, 10))
	p.Wait()
	if p.State().Reason != availability.ReasonNoSchedule {
		t.Fatalf("expected no-schedule error")
	}
	p.SetDate(context.Background(), time.Time{})
	if st := p.State(); st.Status != StatusIdle || st.Reason != availability.ReasonNone {
		t.Fatalf("expected idle, got %+v", st)
	}
}

func TestPicker_PickDate(t *testing.T) {
	f := &fakeFetcher{respond: staticSlots(availability.TimeSlot{Date: "2025-06-10", Time: "09:00", Available: true})}
	p, picks := newTestPicker(f)
	p.Configure(context.Background(), "biz-1", 60)

	if err := p.PickDate(context.Background(), day(2025, 5, 31)); !errors.Is(err, ErrPastDate) {
		t.Fatalf("expected ErrPastDate, got %v", err)
	}
	if f.callCount() != 0 || len(*picks) != 0 {
		t.Fatalf("past date must not fetch or report")
	}

	if err := p.PickDate(context.Background(), day(2025, 6, 10)); err != nil {
		t.Fatalf("pick date: %v", err)
	}
	p.Wait()
	if len(*picks) != 1 || (*picks)[0] != (selection{"2025-06-10", ""}) {
		t.Fatalf("unexpected picks %+v", *picks)
	}
	if err := p.PickTime("09:00"); err != nil {
		t.Fatalf("pick time: %v", err)
	}

	// picking the same date again clears the time without refetching
	if err := p.PickDate(context.Background(), day(2025, 6, 10)); err != nil {
		t.Fatalf("pick date again: %v", err)
	}
	if p.State().Time != "" {
		t.Fatalf("expected time cleared")
	}
	if f.callCount() != 1 {
		t.Fatalf("expected one fetch, got %d", f.callCount())
	}

	// today is allowed
	if err := p.PickDate(context.Background(), day(2025, 6, 1)); err != nil {
		t.Fatalf("today should be selectable: %v", err)
	}
	p.Wait()
}

func TestPicker_ConfigureChangeRefetches(t *testing.T) {
	f := &fakeFetcher{respond: staticSlots(availability.TimeSlot{Date: "2025-06-10", Time: "09:00", Available: true})}
	p, _ := newTestPicker(f)
	p.Configure(context.Background(), "biz-1", 60)
	p.SetDate(context.Background(), day(2025, 6, 10))
	p.Wait()

	p.Configure(context.Background(), "biz-1", 60)
	p.Wait()
	if f.callCount() != 1 {
		t.Fatalf("unchanged inputs must not refetch")
	}

	p.Configure(context.Background(), "biz-1", 90)
	p.Wait()
	if f.callCount() != 2 || f.calls[1].DurationMinutes != 90 {
		t.Fatalf("expected refetch with new duration, calls=%+v", f.calls)
	}
}

func TestPicker_OnChangeSeesTransitions(t *testing.T) {
	var mu sync.Mutex
	var seen []Status
	p := New(&fakeFetcher{respond: staticSlots(availability.TimeSlot{Date: "2025-06-10", Time: "09:00", Available: true})},
		WithClock(fixedClock),
		WithOnChange(func(s State) {
			mu.Lock()
			seen = append(seen, s.Status)
			mu.Unlock()
		}),
	)
	p.Configure(context.Background(), "biz-1", 60)
	p.SetDate(context.Background(), day(2025, 6, 10))
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 2 || seen[len(seen)-2] != StatusLoading || seen[len(seen)-1] != StatusReady {
		t.Fatalf("unexpected transitions %v", seen)
	}
}

func TestPresent_Priority(t *testing.T) {
	date := day(2025, 6, 10)
	slots := []availability.TimeSlot{
		{Date: "2025-06-10", Time: "09:00", Available: true},
		{Date: "2025-06-10", Time: "09:30", Available: false},
	}
	cases := []struct {
		name  string
		state State
		want  Condition
	}{
		{name: "no date", state: State{Status: StatusReady, Slots: slots}, want: ConditionNone},
		{name: "loading", state: State{Date: date, Status: StatusLoading}, want: ConditionLoading},
		{name: "error", state: State{Date: date, Status: StatusError, Reason: availability.ReasonNoSlotsForDate}, want: ConditionError},
		{name: "slots", state: State{Date: date, Status: StatusReady, Slots: slots, Time: "09:00"}, want: ConditionSlots},
		{name: "empty", state: State{Date: date, Status: StatusIdle}, want: ConditionEmpty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Present(tc.state).Condition; got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}

	v := Present(State{Date: date, Status: StatusReady, Slots: slots, Time: "09:00"})
	if !v.Slots[0].Selected || v.Slots[0].Disabled {
		t.Fatalf("09:00 should be selected and enabled: %+v", v.Slots[0])
	}
	if v.Slots[1].Selected || !v.Slots[1].Disabled {
		t.Fatalf("09:30 should be disabled: %+v", v.Slots[1])
	}
	if v.Summary != "Tuesday, June 10, 2025 at 9:00 AM" {
		t.Fatalf("unexpected summary %q", v.Summary)
	}

	errView := Present(State{Date: date, Status: StatusError, Reason: availability.ReasonNoSchedule})
	if errView.Message != availability.MessageNoSchedule || len(errView.Slots) != 0 {
		t.Fatalf("unexpected error view %+v", errView)
	}
	if Present(State{Date: date, Status: StatusLoading}).Summary != "" {
		t.Fatalf("summary requires a time")
	}
}

func TestView_WriteText(t *testing.T) {
	v := Present(State{
		Date:   day(2025, 6, 10),
		Status: StatusReady,
		Time:   "09:00",
		Slots:  []availability.TimeSlot{{Date: "2025-06-10", Time: "09:00", Available: true}},
	})
	var b strings.Builder
	if err := v.WriteText(&b); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := b.String()
	if !strings.Contains(out, "* 09:00") || !strings.Contains(out, "Selected: Tuesday, June 10, 2025 at 9:00 AM") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
