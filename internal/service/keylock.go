package service

import (
	"fmt"
	"sort"
	"sync"
)

// Locks serializes operations that touch the same entity. One instance
// is shared by every service mutating registry state. Keys are always
// acquired in sorted order so two operations over overlapping entity
// sets cannot deadlock.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocks() *Locks {
	return &Locks{locks: map[string]*sync.Mutex{}}
}

// acquire locks every key and returns a release function. Duplicate keys
// are collapsed.
func (l *Locks) acquire(keys ...string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var held []*sync.Mutex
	var last string
	for i, key := range sorted {
		if i > 0 && key == last {
			continue
		}
		last = key

		l.mu.Lock()
		m, ok := l.locks[key]
		if !ok {
			m = &sync.Mutex{}
			l.locks[key] = m
		}
		l.mu.Unlock()

		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func userKey(id int64) string { return fmt.Sprintf("user:%d", id) }

func propertyKey(id string) string { return "property:" + id }
