// Package schedule implements the priority queue of per-instance wakeup
// deadlines described in spec.md §4.2: a binary min-heap keyed on absolute
// wakeup time, tie-broken by insertion order, with O(log n) insert/remove/
// reschedule and O(1) peek-min.
package schedule

import (
	"container/heap"
	"time"
)

// Entry is embedded inside an Instance to avoid a separate heap allocation
// per scheduled wakeup. An Instance has at most one active Entry at a time.
type Entry struct {
	Deadline time.Time
	seq      uint64
	index    int // heap index, -1 when not scheduled
	payload  any
}

// Payload returns the value associated with the entry at insert time
// (typically the owning Instance).
func (e *Entry) Payload() any { return e.payload }

// Scheduled reports whether the entry currently sits in a Schedule.
func (e *Entry) Scheduled() bool { return e.index >= 0 }

type heapSlice []*Entry

func (h heapSlice) Len() int { return len(h) }
func (h heapSlice) Less(i, j int) bool {
	if h[i].Deadline.Equal(h[j].Deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].Deadline.Before(h[j].Deadline)
}
func (h heapSlice) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *heapSlice) Push(x any) {
	e := x.(*Entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *heapSlice) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Schedule is a min-heap of Entry pointers ordered by Deadline.
type Schedule struct {
	h       heapSlice
	nextSeq uint64
}

// New creates an empty Schedule.
func New() *Schedule {
	return &Schedule{h: make(heapSlice, 0)}
}

// Insert creates and schedules a new Entry carrying payload, due at
// deadline, returning it so the caller can embed it in an Instance.
func (s *Schedule) Insert(deadline time.Time, payload any) *Entry {
	e := &Entry{Deadline: deadline, seq: s.nextSeq, payload: payload, index: -1}
	s.nextSeq++
	heap.Push(&s.h, e)
	return e
}

// Remove removes e from the schedule. It is a no-op if e is not currently
// scheduled.
func (s *Schedule) Remove(e *Entry) {
	if e == nil || e.index < 0 || e.index >= len(s.h) {
		return
	}
	heap.Remove(&s.h, e.index)
}

// Reschedule updates e's deadline and re-heapifies. If e is not currently
// scheduled, it is inserted fresh.
func (s *Schedule) Reschedule(e *Entry, newDeadline time.Time) {
	if e.index < 0 {
		e.Deadline = newDeadline
		e.seq = s.nextSeq
		s.nextSeq++
		heap.Push(&s.h, e)
		return
	}
	e.Deadline = newDeadline
	heap.Fix(&s.h, e.index)
}

// Earliest returns the entry with the smallest deadline, if any, without
// removing it.
func (s *Schedule) Earliest() (*Entry, bool) {
	if len(s.h) == 0 {
		return nil, false
	}
	return s.h[0], true
}

// PopExpired removes and returns every entry whose deadline is <= now, in
// deadline order.
func (s *Schedule) PopExpired(now time.Time) []*Entry {
	var expired []*Entry
	for len(s.h) > 0 && !s.h[0].Deadline.After(now) {
		e := heap.Pop(&s.h).(*Entry)
		expired = append(expired, e)
	}
	return expired
}

// Len reports the number of scheduled entries.
func (s *Schedule) Len() int { return len(s.h) }

// NextWait returns how long to block in the readiness wait before the next
// deadline fires, clamped to ceiling. If nothing is scheduled, NextWait
// returns ceiling.
func (s *Schedule) NextWait(now time.Time, ceiling time.Duration) time.Duration {
	e, ok := s.Earliest()
	if !ok {
		return ceiling
	}
	d := e.Deadline.Sub(now)
	if d < 0 {
		return 0
	}
	if d > ceiling {
		return ceiling
	}
	return d
}
