// Package goid identifies the calling goroutine.
package goid

import (
	"runtime"
)

// Current returns the id of the calling goroutine, parsed from the header of
// its stack trace ("goroutine N [...]"). It returns 0 if the header cannot be
// parsed, which no live goroutine uses as its id.
func Current() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

func parse(b []byte) uint64 {
	const prefix = "goroutine "
	if len(b) < len(prefix) || string(b[:len(prefix)]) != prefix {
		return 0
	}
	var id uint64
	for _, c := range b[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
