package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"school-secretary/internal/domain"
)

var (
	bucketUsers   = []byte("users")
	bucketByEmail = []byte("users_by_email")
)

// BoltStore keeps users as JSON keyed by id, with an email -> id index.
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// OpenBolt opens (or creates) the database file and its buckets.
func OpenBolt(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketUsers, bucketByEmail} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}
	return &BoltStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) ListEnabled(_ context.Context) ([]domain.DigestUser, error) {
	var out []domain.DigestUser
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(_, v []byte) error {
			var u domain.DigestUser
			if err := json.Unmarshal(v, &u); err != nil {
				return err
			}
			if u.Enabled {
				out = append(out, u)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: list enabled: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

func (s *BoltStore) Get(_ context.Context, id string) (domain.DigestUser, error) {
	var u domain.DigestUser
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		u, err = getUser(tx, id)
		return err
	})
	return u, err
}

func (s *BoltStore) UpsertByEmail(_ context.Context, u domain.DigestUser) (domain.DigestUser, error) {
	email := NormalizeEmail(u.Email)
	if email == "" {
		return domain.DigestUser{}, &domain.ValidationError{Field: "email", Msg: "required"}
	}
	u.Email = email
	now := s.now()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if id := tx.Bucket(bucketByEmail).Get([]byte(email)); id != nil {
			existing, err := getUser(tx, string(id))
			if err != nil {
				return err
			}
			u = mergeUpsert(existing, u, now)
		} else {
			u.ID = uuid.NewString()
			u.CreatedAt = now
			u.UpdatedAt = now
		}
		if err := putUser(tx, u); err != nil {
			return err
		}
		return tx.Bucket(bucketByEmail).Put([]byte(email), []byte(u.ID))
	})
	if err != nil {
		return domain.DigestUser{}, fmt.Errorf("store: upsert %s: %w", email, err)
	}
	return u, nil
}

func (s *BoltStore) UpdateCredential(_ context.Context, id string, cred domain.Credential) error {
	_, err := s.modify(id, func(u *domain.DigestUser) { u.Credential = cred })
	return err
}

func (s *BoltStore) SetEnabled(_ context.Context, id string, enabled bool) (domain.DigestUser, error) {
	return s.modify(id, func(u *domain.DigestUser) { u.Enabled = enabled })
}

// modify reads, changes and writes back one record in a single transaction.
func (s *BoltStore) modify(id string, fn func(u *domain.DigestUser)) (domain.DigestUser, error) {
	var out domain.DigestUser
	err := s.db.Update(func(tx *bbolt.Tx) error {
		u, err := getUser(tx, id)
		if err != nil {
			return err
		}
		fn(&u)
		u.UpdatedAt = s.now()
		out = u
		return putUser(tx, u)
	})
	if err != nil {
		return domain.DigestUser{}, err
	}
	return out, nil
}

func getUser(tx *bbolt.Tx, id string) (domain.DigestUser, error) {
	v := tx.Bucket(bucketUsers).Get([]byte(id))
	if v == nil {
		return domain.DigestUser{}, ErrNotFound
	}
	var u domain.DigestUser
	if err := json.Unmarshal(v, &u); err != nil {
		return domain.DigestUser{}, fmt.Errorf("store: decode user %s: %w", id, err)
	}
	return u, nil
}

func putUser(tx *bbolt.Tx, u domain.DigestUser) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketUsers).Put([]byte(u.ID), data)
}

// mergeUpsert applies a re-enrollment onto the stored record. A new refresh
// token invalidates the cached access token.
func mergeUpsert(existing, in domain.DigestUser, now time.Time) domain.DigestUser {
	out := existing
	if in.RefreshToken != "" && in.RefreshToken != existing.RefreshToken {
		out.RefreshToken = in.RefreshToken
		out.Credential = domain.Credential{}
	}
	if in.TimeZone != "" {
		out.TimeZone = in.TimeZone
	}
	out.Enabled = in.Enabled
	out.UpdatedAt = now
	return out
}
