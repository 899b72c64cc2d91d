// Package queue orders pending wash requests. The queue is FIFO over
// EnqueuedAt with the store-assigned sequence as tiebreak; there is no
// priority, no capacity limit and no per-user deduplication (a user may
// hold several entries at once, each independently removable).
package queue

import (
	"sort"

	"github.com/waschgehtab/washd/internal/models"
)

// Sort orders entries in place by EnqueuedAt ascending, ties broken by
// insertion sequence.
func Sort(entries []models.QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].EnqueuedAt != entries[j].EnqueuedAt {
			return entries[i].EnqueuedAt < entries[j].EnqueuedAt
		}
		return entries[i].Seq < entries[j].Seq
	})
}

// PeekHead returns the earliest entry, or false if the queue is empty.
// The input is not assumed sorted.
func PeekHead(entries []models.QueueEntry) (models.QueueEntry, bool) {
	if len(entries) == 0 {
		return models.QueueEntry{}, false
	}
	head := entries[0]
	for _, e := range entries[1:] {
		if e.EnqueuedAt < head.EnqueuedAt ||
			(e.EnqueuedAt == head.EnqueuedAt && e.Seq < head.Seq) {
			head = e
		}
	}
	return head, true
}

// Find returns the entry with the given id, or false.
func Find(entries []models.QueueEntry, entryID string) (models.QueueEntry, bool) {
	for _, e := range entries {
		if e.ID == entryID {
			return e, true
		}
	}
	return models.QueueEntry{}, false
}

// Remove returns the entries without the one matching entryID. Removing
// an absent id returns the input unchanged, so a double removal is a no-op.
func Remove(entries []models.QueueEntry, entryID string) []models.QueueEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.ID != entryID {
			out = append(out, e)
		}
	}
	return out
}
