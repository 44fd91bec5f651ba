package logger

import (
	"strings"
	"sync"
)

// Ring keeps the last lines written to it. It is the console sink of the
// interactive pool console, which cannot share stdout with the logger.
type Ring struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
	total uint64
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1
	}
	return &Ring{lines: make([]string, size)}
}

// Write stores each newline-terminated line of p as one entry.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		r.lines[r.next] = line
		r.next = (r.next + 1) % len(r.lines)
		if r.next == 0 {
			r.full = true
		}
		r.total++
	}
	return len(p), nil
}

func (r *Ring) Sync() error { return nil }

// Lines returns up to limit of the most recent lines, oldest first.
// limit <= 0 returns everything held.
func (r *Ring) Lines(limit int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var held []string
	if r.full {
		held = append(held, r.lines[r.next:]...)
	}
	held = append(held, r.lines[:r.next]...)

	if limit > 0 && len(held) > limit {
		held = held[len(held)-limit:]
	}
	return held
}

// Total counts every line ever written.
func (r *Ring) Total() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}
