// Package boltstore implements store.Store on top of go.etcd.io/bbolt, an
// embedded, file-backed, ACID transactional key/value store. bbolt's
// Update/View transactions are the literal embodiment of the "opaque
// transactional storage interface" the profiler core is specified
// against: sets become bucket key membership, hashes become nested
// buckets keyed by field, and sorted sets become a nested bucket keyed by
// a sortable encoding of the score so Cursor() iteration comes back in
// score order for free.
package boltstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	"go.etcd.io/bbolt"

	"github.com/flowprofiler/flowprofiler/internal/store"
)

var (
	setsBucket   = []byte("sets")
	hashesBucket = []byte("hashes")
	zsetsBucket  = []byte("zsets")

	byMemberBucket = []byte("byMember")
	byScoreBucket  = []byte("byScore")
)

// Store is a bbolt-backed store.Store.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a bbolt database file at path and
// returns a ready-to-use Store.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{setsBucket, hashesBucket, zsetsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying bbolt database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Size reports the on-disk size of the database file in bytes, for
// startup/health logging.
func (s *Store) Size() (int64, error) {
	fi, err := os.Stat(s.db.Path())
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

var _ store.Store = (*Store)(nil)

func (s *Store) SetAdd(_ context.Context, key string, members ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(setsBucket).CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return err
		}
		for _, m := range members {
			if err := b.Put([]byte(m), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SetIsMember(_ context.Context, key, member string) (ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(setsBucket).Bucket([]byte(key))
		if b == nil {
			return nil
		}
		ok = b.Get([]byte(member)) != nil
		return nil
	})
	return
}

func (s *Store) SetCard(_ context.Context, key string) (n int64, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(setsBucket).Bucket([]byte(key))
		if b == nil {
			return nil
		}
		n = int64(b.Stats().KeyN)
		return nil
	})
	return
}

func (s *Store) SetMembers(_ context.Context, key string) (members []string, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(setsBucket).Bucket([]byte(key))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			members = append(members, string(k))
			return nil
		})
	})
	return
}

func (s *Store) SetRem(_ context.Context, key string, members ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(setsBucket).Bucket([]byte(key))
		if b == nil {
			return nil
		}
		for _, m := range members {
			if err := b.Delete([]byte(m)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) HashSet(_ context.Context, key, field, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(hashesBucket).CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return err
		}
		return b.Put([]byte(field), []byte(value))
	})
}

func (s *Store) HashGet(_ context.Context, key, field string) (value string, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(hashesBucket).Bucket([]byte(key))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(field))
		if v != nil {
			value, ok = string(v), true
		}
		return nil
	})
	return
}

func (s *Store) HashGetAll(_ context.Context, key string) (map[string]string, error) {
	out := make(map[string]string)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(hashesBucket).Bucket([]byte(key))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out, err
}

// scoreKey produces a byte encoding of (score, member) that sorts in
// ascending score order under bbolt's default byte-wise key comparator.
func scoreKey(score float64, member string) []byte {
	bits := math.Float64bits(score)
	if score >= 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	buf := make([]byte, 8+len(member))
	binary.BigEndian.PutUint64(buf, bits)
	copy(buf[8:], member)
	return buf
}

func (s *Store) ZSetAdd(_ context.Context, key string, score float64, member string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.Bucket(zsetsBucket).CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return err
		}
		byMember, err := root.CreateBucketIfNotExists(byMemberBucket)
		if err != nil {
			return err
		}
		byScore, err := root.CreateBucketIfNotExists(byScoreBucket)
		if err != nil {
			return err
		}
		if old := byMember.Get([]byte(member)); old != nil {
			oldScore := math.Float64frombits(binary.BigEndian.Uint64(old))
			if err := byScore.Delete(scoreKey(oldScore, member)); err != nil {
				return err
			}
		}
		scoreBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(scoreBytes, math.Float64bits(score))
		if err := byMember.Put([]byte(member), scoreBytes); err != nil {
			return err
		}
		return byScore.Put(scoreKey(score, member), []byte(member))
	})
}

func (s *Store) zsetOrderedMembers(tx *bbolt.Tx, key string) []string {
	root := tx.Bucket(zsetsBucket).Bucket([]byte(key))
	if root == nil {
		return nil
	}
	byScore := root.Bucket(byScoreBucket)
	if byScore == nil {
		return nil
	}
	var out []string
	byScore.ForEach(func(_, v []byte) error {
		out = append(out, string(v))
		return nil
	})
	return out
}

func (s *Store) ZSetRange(_ context.Context, key string, start, stop int64) (out []string, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		members := s.zsetOrderedMembers(tx, key)
		n := int64(len(members))
		if n == 0 {
			return nil
		}
		if start < 0 {
			start += n
		}
		if stop < 0 {
			stop += n
		}
		if start < 0 {
			start = 0
		}
		if stop >= n {
			stop = n - 1
		}
		if start > stop {
			return nil
		}
		out = append(out, members[start:stop+1]...)
		return nil
	})
	return
}

func (s *Store) ZSetRangeByScore(_ context.Context, key string, min, max float64) (out []string, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(zsetsBucket).Bucket([]byte(key))
		if root == nil {
			return nil
		}
		byMember := root.Bucket(byMemberBucket)
		if byMember == nil {
			return nil
		}
		return byMember.ForEach(func(k, v []byte) error {
			score := math.Float64frombits(binary.BigEndian.Uint64(v))
			if score >= min && score <= max {
				out = append(out, string(k))
			}
			return nil
		})
	})
	return
}

func (s *Store) ZSetScore(_ context.Context, key, member string) (score float64, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(zsetsBucket).Bucket([]byte(key))
		if root == nil {
			return nil
		}
		byMember := root.Bucket(byMemberBucket)
		if byMember == nil {
			return nil
		}
		v := byMember.Get([]byte(member))
		if v == nil {
			return nil
		}
		score = math.Float64frombits(binary.BigEndian.Uint64(v))
		ok = true
		return nil
	})
	return
}

func (s *Store) ZSetCard(_ context.Context, key string) (n int64, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(zsetsBucket).Bucket([]byte(key))
		if root == nil {
			return nil
		}
		byMember := root.Bucket(byMemberBucket)
		if byMember == nil {
			return nil
		}
		n = int64(byMember.Stats().KeyN)
		return nil
	})
	return
}

func (s *Store) FlushDB(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{setsBucket, hashesBucket, zsetsBucket} {
			if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}
