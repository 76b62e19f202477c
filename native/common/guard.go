package common

import (
	"errors"
	"sync"
)

// ErrReentrantCall indicates a fund-moving entry point was invoked while an
// operation on the same entry point was still in flight.
var ErrReentrantCall = errors.New("reentrant call")

// EntryGuard enforces the busy-flag discipline on fund-moving entry points.
// Each entry point owns one flag that is checked and set atomically on entry
// and cleared on exit, so a collaborator invoked mid-operation cannot re-enter
// while ledger invariants are temporarily inconsistent.
type EntryGuard struct {
	mu   sync.Mutex
	busy map[string]bool
}

// NewEntryGuard constructs an empty guard.
func NewEntryGuard() *EntryGuard {
	return &EntryGuard{busy: make(map[string]bool)}
}

// Enter marks the entry point busy. It fails with ErrReentrantCall when the
// flag is already set.
func (g *EntryGuard) Enter(entry string) error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy[entry] {
		return ErrReentrantCall
	}
	g.busy[entry] = true
	return nil
}

// Exit clears the entry point flag. Safe to call from a deferred statement
// even when Enter failed.
func (g *EntryGuard) Exit(entry string) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, entry)
}
