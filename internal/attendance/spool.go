package attendance

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketPending = []byte("pending")

// Spool is a local bbolt file holding events whose durable write failed.
// Events are kept in insertion order.
type Spool struct {
	db *bbolt.DB
}

// OpenSpool opens or creates the spool file at path.
func OpenSpool(path string) (*Spool, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create spool directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPending)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create spool bucket: %w", err)
	}

	return &Spool{db: db}, nil
}

// Put appends an event.
func (s *Spool) Put(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPending)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
}

// Len returns the number of pending events.
func (s *Spool) Len() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketPending).Stats().KeyN
		return nil
	})
	return n, err
}

type spooled struct {
	key []byte
	ev  Event
}

func (s *Spool) pending() ([]spooled, error) {
	var out []spooled
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPending).ForEach(func(k, v []byte) error {
			var ev Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("decode spooled event %x: %w", k, err)
			}
			out = append(out, spooled{key: append([]byte(nil), k...), ev: ev})
			return nil
		})
	})
	return out, err
}

func (s *Spool) remove(key []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPending).Delete(key)
	})
}

// DrainResult summarizes one Drain pass.
type DrainResult struct {
	Replayed   int // written to the durable store
	Duplicates int // already present, dropped
	Remaining  int
}

// Drain replays pending events in order. An event is dropped once replay
// succeeds or reports ErrDuplicate. The first other error stops the pass and is returned.
func (s *Spool) Drain(ctx context.Context, replay func(context.Context, Event) error) (DrainResult, error) {
	var res DrainResult

	items, err := s.pending()
	if err != nil {
		return res, err
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			res.Remaining = len(items) - i
			return res, err
		}

		err := replay(ctx, item.ev)
		switch {
		case err == nil:
			res.Replayed++
		case errors.Is(err, ErrDuplicate):
			res.Duplicates++
		default:
			res.Remaining = len(items) - i
			return res, err
		}

		if err := s.remove(item.key); err != nil {
			res.Remaining = len(items) - i
			return res, fmt.Errorf("remove spooled event: %w", err)
		}
	}

	return res, nil
}

// Close closes the spool file.
func (s *Spool) Close() error {
	return s.db.Close()
}
