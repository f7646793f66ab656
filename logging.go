package crossq

import (
	"fmt"
	"runtime/debug"
)

// Log categories, used for rate limiting.
const (
	logCategorySignal   = "signal"
	logCategoryResignal = "resignal"
)

// warnLimited logs a warning for category, unless the category is currently
// rate limited.
func (q *Queue[H]) warnLimited(category string, err error, msg string) {
	if q.logger == nil {
		return
	}
	if _, ok := q.limiter.Allow(category); !ok {
		return
	}
	q.logger.Warning().
		Str("category", category).
		Uint64("owner", q.owner).
		Err(err).
		Log(msg)
}

// logPanic logs a recovered panic, from a posted function.
func (q *Queue[H]) logPanic(e *PanicError) {
	q.logger.Err().
		Str("panic", fmt.Sprint(e.Value)).
		Str("stack", string(e.Stack)).
		Uint64("owner", q.owner).
		Log("crossq: posted function panicked")
}

func newPanicError(r any) *PanicError {
	return &PanicError{Value: r, Stack: debug.Stack()}
}
