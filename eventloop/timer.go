package eventloop

import (
	"container/heap"
	"time"
)

// timer represents a scheduled callback
type timer struct {
	when time.Time
	fn   func()
	seq  uint64
}

// timerHeap is a min-heap of timers, ordered by deadline then scheduling
// order. Only ever accessed on the loop goroutine.
type timerHeap []timer

// Implement heap.Interface for timerHeap
func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(timer))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = timer{}
	*h = old[:n-1]
	return x
}

// ScheduleTimer schedules fn to run on the loop goroutine, once delay has
// elapsed. The deadline is fixed at the time of the call.
//
// The timer is registered via [Loop.Post], so errors are as per Post. Timers
// still pending when the loop terminates are discarded.
func (l *Loop) ScheduleTimer(delay time.Duration, fn func()) error {
	if fn == nil {
		panic("eventloop: nil timer callback")
	}
	t := timer{
		when: time.Now().Add(delay),
		fn:   fn,
		seq:  l.timerSeq.Add(1),
	}
	return l.Post(func(l *Loop, _ any, _ *any) {
		heap.Push(&l.timers, t)
	}, nil)
}

// runTimers executes all expired timers.
func (l *Loop) runTimers() {
	now := time.Now()
	for len(l.timers) > 0 {
		if l.timers[0].when.After(now) {
			break
		}
		t := heap.Pop(&l.timers).(timer)
		l.safeExecute(t.fn)
	}
}

// calculateTimeout determines how long to block in poll.
func (l *Loop) calculateTimeout() time.Duration {
	delay := maxPollDelay
	if len(l.timers) > 0 {
		next := time.Until(l.timers[0].when)
		if next < 0 {
			next = 0
		}
		if next < delay {
			delay = next
		}
	}
	return delay
}
