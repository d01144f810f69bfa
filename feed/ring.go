// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import "sync"

// ring is a fixed-capacity circular buffer holding the most recent
// records. It tracks the total number of records ever added, so the
// stored span is always the newest min(total, capacity) records and
// new adds overwrite the oldest.
//
// All methods are safe for concurrent use.
type ring struct {
	mu            sync.Mutex
	records       []Record
	capacity      int
	writePosition int
	totalAdded    uint64
}

func newRing(capacity int) *ring {
	return &ring{
		records:  make([]Record, capacity),
		capacity: capacity,
	}
}

// add appends a record, overwriting the oldest when full.
func (r *ring) add(record Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addLocked(record)
}

func (r *ring) addLocked(record Record) {
	r.records[r.writePosition] = record
	r.writePosition = (r.writePosition + 1) % r.capacity
	r.totalAdded++
}

// recent returns up to limit records, newest first.
func (r *ring) recent(limit int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.storedLocked()
	if limit > stored {
		limit = stored
	}
	if limit <= 0 {
		return nil
	}

	records := make([]Record, 0, limit)
	for i := 0; i < limit; i++ {
		position := (r.writePosition - 1 - i) % r.capacity
		if position < 0 {
			position += r.capacity
		}
		records = append(records, r.records[position])
	}
	return records
}

// replace resets the ring to the given records (newest first), used
// when reloading from the store.
func (r *ring) replace(newestFirst []Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make([]Record, r.capacity)
	r.writePosition = 0
	r.totalAdded = 0
	for i := len(newestFirst) - 1; i >= 0; i-- {
		r.addLocked(newestFirst[i])
	}
}

// stored returns how many records the ring currently holds.
func (r *ring) stored() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storedLocked()
}

func (r *ring) storedLocked() int {
	if r.totalAdded > uint64(r.capacity) {
		return r.capacity
	}
	return int(r.totalAdded)
}

// full reports whether older records have been overwritten; when
// false, the ring holds everything ever added.
func (r *ring) full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalAdded >= uint64(r.capacity)
}
