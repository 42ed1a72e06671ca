package capacity

import (
	"github.com/benbjohnson/immutable"

	"github.com/towersched/towersched/internal/common/schederrors"
)

// Tracker records how many of m identical machines are available over time and answers
// "when does this width fit" queries for a schedule.
//
// Queries are answered relative to a cursor, which caches the availability at one point in
// time. Feasibility queries only ever move the cursor forward; ResetCursor and SetCursorToTop
// are the only ways to move it back. Issuing queries in increasing time order therefore
// visits each event at most once.
type Tracker interface {
	// Machines returns the total number of machines m.
	Machines() int
	// ResetCursor moves the cursor to time 0.
	ResetCursor()
	// SetCursorToTop moves the cursor to the makespan, where all m machines are available.
	SetCursorToTop()
	// Cursor returns the cursor time and the number of machines available at that time.
	Cursor() (time int, available int)
	// RecordDelta adds delta to the availability change recorded at time.
	RecordDelta(time int, delta int)
	// Place books width machines over [start, start+duration).
	Place(start int, duration int, width int)
	// EarliestFeasibleTime advances the cursor to the first time at which at least width
	// machines are available and returns that time.
	EarliestFeasibleTime(width int) int
	// EarliestFeasibleWindow advances the cursor to the first time t at which at least width
	// machines are available throughout [t, t+duration) and returns t.
	EarliestFeasibleWindow(duration int, width int) int
	// FitsAtCursor reports whether width machines are available throughout
	// [cursor, cursor+duration). The cursor is not moved.
	FitsAtCursor(duration int, width int) bool
	// CapacityProfileFromTop returns, for depths measured downwards from the makespan, the number
	// of machines guaranteed to be available between the makespan and that depth.
	CapacityProfileFromTop() *Profile
	// Makespan returns the time at which the last booked interval ends.
	Makespan() int
	SetMakespan(makespan int)
}

type timeComparer struct{}

func (timeComparer) Compare(a, b int) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// EventTracker is the default Tracker. It stores, for every time at which availability changes,
// the change relative to the time before it. The entry at time 0 holds the initial availability m.
type EventTracker struct {
	m      int
	events *immutable.SortedMap[int, int]
	// Cursor.
	currentTime    int
	availableInGap int
	makespan       int
	// Latest non-zero time at which availability drops.
	// Availability never decreases after this time.
	latestDrop int
}

func NewEventTracker(m int) *EventTracker {
	t := &EventTracker{
		m:      m,
		events: immutable.NewSortedMap[int, int](timeComparer{}).Set(0, m),
	}
	t.ResetCursor()
	return t
}

func (t *EventTracker) Machines() int {
	return t.m
}

func (t *EventTracker) ResetCursor() {
	t.currentTime = 0
	t.availableInGap, _ = t.events.Get(0)
}

func (t *EventTracker) SetCursorToTop() {
	t.currentTime = t.makespan
	t.availableInGap = t.m
}

func (t *EventTracker) Cursor() (int, int) {
	return t.currentTime, t.availableInGap
}

func (t *EventTracker) RecordDelta(time int, delta int) {
	value, _ := t.events.Get(time)
	value += delta
	t.events = t.events.Set(time, value)
	if time > 0 && value < 0 && time > t.latestDrop {
		t.latestDrop = time
	}
	if t.currentTime >= time {
		t.availableInGap += delta
	}
}

func (t *EventTracker) Place(start int, duration int, width int) {
	t.RecordDelta(start, -width)
	t.RecordDelta(start+duration, width)
	if t.makespan < start+duration {
		t.makespan = start + duration
	}
}

func (t *EventTracker) EarliestFeasibleTime(width int) int {
	for t.availableInGap < width {
		time, delta, ok := t.nextEvent(t.currentTime)
		if !ok {
			panic(schederrors.InvariantViolationf(
				"EarliestFeasibleTime",
				"no time after %d with %d of %d machines available", t.currentTime, width, t.m,
			))
		}
		t.currentTime = time
		t.availableInGap += delta
	}
	return t.currentTime
}

func (t *EventTracker) EarliestFeasibleWindow(duration int, width int) int {
	for {
		start := t.EarliestFeasibleTime(width)
		blockedAt, available, blocked := t.firstBlockingEvent(start, start+duration, width)
		if !blocked {
			return start
		}
		// Everything before blockedAt has been scanned, so the cursor may skip ahead.
		t.currentTime = blockedAt
		t.availableInGap = available
	}
}

func (t *EventTracker) FitsAtCursor(duration int, width int) bool {
	if t.availableInGap < width {
		return false
	}
	_, _, blocked := t.firstBlockingEvent(t.currentTime, t.currentTime+duration, width)
	return !blocked
}

// firstBlockingEvent scans the events strictly inside (from, to), starting from the cursor's
// availability at from, and returns the first one at which fewer than width machines remain.
func (t *EventTracker) firstBlockingEvent(from int, to int, width int) (int, int, bool) {
	if from >= t.latestDrop {
		return 0, 0, false
	}
	available := t.availableInGap
	itr := t.events.Iterator()
	itr.Seek(from + 1)
	for !itr.Done() {
		time, delta, _ := itr.Next()
		if time >= to || time > t.latestDrop {
			break
		}
		available += delta
		if available < width {
			return time, available, true
		}
	}
	return 0, 0, false
}

// nextEvent returns the first event strictly after time.
func (t *EventTracker) nextEvent(time int) (int, int, bool) {
	itr := t.events.Iterator()
	itr.Seek(time + 1)
	return itr.Next()
}

// CapacityProfileFromTop walks the events from the top of the schedule down to time 0. Each
// recorded depth maps to the minimum availability over everything between the makespan and that
// depth, so a ceiling lookup gives a safe bound for an interval hanging down from the top.
// The cursor is reset afterwards.
func (t *EventTracker) CapacityProfileFromTop() *Profile {
	availableByDepth := map[int]int{0: t.m}
	available := t.m
	minAvailable := t.m
	itr := t.events.Iterator()
	itr.Last()
	for !itr.Done() {
		time, delta, _ := itr.Prev()
		// available holds the availability over [time, next event).
		if time < t.makespan {
			if available < minAvailable {
				minAvailable = available
			}
			availableByDepth[t.makespan-time] = minAvailable
		}
		available -= delta
	}
	t.ResetCursor()
	return NewProfile(availableByDepth)
}

func (t *EventTracker) Makespan() int {
	return t.makespan
}

func (t *EventTracker) SetMakespan(makespan int) {
	t.makespan = makespan
}

// Events returns a copy of the event map.
func (t *EventTracker) Events() map[int]int {
	rv := make(map[int]int, t.events.Len())
	itr := t.events.Iterator()
	for !itr.Done() {
		time, delta, _ := itr.Next()
		rv[time] = delta
	}
	return rv
}

// AvailableAt returns the number of machines available at time, computed from scratch.
func (t *EventTracker) AvailableAt(time int) int {
	available := 0
	itr := t.events.Iterator()
	for !itr.Done() {
		eventTime, delta, _ := itr.Next()
		if eventTime > time {
			break
		}
		available += delta
	}
	return available
}
