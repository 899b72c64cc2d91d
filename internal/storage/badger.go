package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/waschgehtab/washd/internal/coordinator"
	"github.com/waschgehtab/washd/internal/models"
	"github.com/waschgehtab/washd/internal/queue"
)

const (
	statusKey   = "machine:status"
	queuePrefix = "queue:"
	userPrefix  = "user:"
	queueSeqKey = "seq:queue"
)

// BadgerStore implements Store with Badger DB. The version precondition is
// checked inside each Update transaction, so the read-check-write of a
// transition is indivisible relative to every other commit.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
	hub *hub
}

func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Clean(path))
	opts.Logger = nil                         // disable badger logs for test clarity
	opts = opts.WithValueLogFileSize(1 << 20) // smaller value log for local dev
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	seq, err := db.GetSequence([]byte(queueSeqKey), 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("queue sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq, hub: newHub()}, nil
}

func (s *BadgerStore) Close() error {
	if s.seq != nil {
		s.seq.Release()
	}
	return s.db.Close()
}

func entryKey(id string) []byte {
	return []byte(queuePrefix + id)
}

func userKey(id string) []byte {
	return []byte(userPrefix + id)
}

func readStatus(txn *badger.Txn) (models.MachineStatus, error) {
	item, err := txn.Get([]byte(statusKey))
	if err == badger.ErrKeyNotFound {
		return models.FreeStatus(), nil
	}
	if err != nil {
		return models.MachineStatus{}, err
	}
	var st models.MachineStatus
	err = item.Value(func(v []byte) error {
		var derr error
		st, derr = models.DecodeStatus(v)
		return derr
	})
	return st, err
}

func readQueue(txn *badger.Txn) ([]models.QueueEntry, error) {
	it := txn.NewIterator(badger.IteratorOptions{
		PrefetchValues: true,
		PrefetchSize:   32,
		Prefix:         []byte(queuePrefix),
	})
	defer it.Close()

	var entries []models.QueueEntry
	for it.Rewind(); it.Valid(); it.Next() {
		var e models.QueueEntry
		err := it.Item().Value(func(v []byte) error {
			return json.Unmarshal(v, &e)
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	queue.Sort(entries)
	return entries, nil
}

func (s *BadgerStore) Snapshot(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		st, err := readStatus(txn)
		if err != nil {
			return err
		}
		entries, err := readQueue(txn)
		if err != nil {
			return err
		}
		snap = models.Snapshot{Status: st, Queue: entries}
		return nil
	})
	return snap, err
}

func (s *BadgerStore) CommitTransition(ctx context.Context, expectedVersion int64, status models.MachineStatus, mut models.QueueMutation) (*models.QueueEntry, error) {
	if err := status.Validate(); err != nil {
		return nil, fmt.Errorf("refusing invalid status: %w", err)
	}

	var appended *models.QueueEntry
	err := s.db.Update(func(txn *badger.Txn) error {
		appended = nil
		current, err := readStatus(txn)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return coordinator.ErrStaleWrite
		}

		data, err := json.Marshal(status)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(statusKey), data); err != nil {
			return err
		}

		switch {
		case mut.Append != nil:
			e := *mut.Append
			e.ID = uuid.NewString()
			n, err := s.seq.Next()
			if err != nil {
				return err
			}
			e.Seq = n
			b, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := txn.Set(entryKey(e.ID), b); err != nil {
				return err
			}
			appended = &e
		case mut.RemoveID != "":
			err := txn.Delete(entryKey(mut.RemoveID))
			if err != nil && err != badger.ErrKeyNotFound {
				return err
			}
		}
		return nil
	})
	if err == badger.ErrConflict {
		// Two transitions raced inside badger itself; same meaning as a
		// failed version check.
		err = coordinator.ErrStaleWrite
	}
	if err != nil {
		return nil, err
	}

	if snap, serr := s.Snapshot(ctx); serr == nil {
		s.hub.broadcast(snap)
	}
	return appended, nil
}

func (s *BadgerStore) SaveProfile(ctx context.Context, p models.UserProfile) error {
	if strings.TrimSpace(p.UserID) == "" || strings.TrimSpace(p.DisplayName) == "" {
		return fmt.Errorf("profile requires uid and name")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return txn.Set(userKey(p.UserID), data)
	})
}

func (s *BadgerStore) GetProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(userID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &p)
		})
	})
	return p, err
}

func (s *BadgerStore) Subscribe() (<-chan models.Snapshot, func()) {
	return s.hub.subscribe()
}
