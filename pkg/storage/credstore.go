// Package storage provides the pebble-backed record store used for
// offline bulk loading of account and auth records. It is read at
// startup; nothing in the request path touches it.
package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
)

// Key prefixes. Records are stored as prefix+name → JSON value.
const (
	PrefixAccount = "/acct/"
	PrefixAuth    = "/auth/"
)

// AuthRecord is the stored credential for one API caller.
type AuthRecord struct {
	Secret string `json:"secret"`
}

// Store wraps a pebble database of prefixed JSON records.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if missing) the store at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open record store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Put stores val as JSON under prefix+name.
func (s *Store) Put(prefix, name string, val any) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s%s: %w", prefix, name, err)
	}
	if err := s.db.Set([]byte(prefix+name), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to store record %s%s: %w", prefix, name, err)
	}
	return nil
}

// AuthSecret returns the shared secret for user, false if no record exists.
func (s *Store) AuthSecret(user string) (string, bool, error) {
	data, closer, err := s.db.Get([]byte(PrefixAuth + user))
	if err == pebble.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get auth record for %s: %w", user, err)
	}
	defer closer.Close()

	var rec AuthRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal auth record for %s: %w", user, err)
	}
	return rec.Secret, true, nil
}

// AllAuthSecrets loads every auth record. Called once at startup so the
// request path never blocks on the store.
func (s *Store) AllAuthSecrets() (map[string]string, error) {
	prefix := []byte(PrefixAuth)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	secrets := make(map[string]string)
	for iter.First(); iter.Valid(); iter.Next() {
		var rec AuthRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // skip malformed entries
		}
		user := string(iter.Key()[len(prefix):])
		secrets[user] = rec.Secret
	}
	return secrets, nil
}

// LoadPrefixedFile bulk-loads a JSON object file: each top-level key
// becomes one prefixed record with its value stored verbatim. Returns the
// number of records written.
func (s *Store) LoadPrefixedFile(path, prefix string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	n := 0
	for name, val := range obj {
		if err := s.db.Set([]byte(prefix+name), val, pebble.Sync); err != nil {
			return n, fmt.Errorf("failed to store record %s%s: %w", prefix, name, err)
		}
		n++
	}
	return n, nil
}

// Each calls fn for every key/value pair in the store, in key order.
func (s *Store) Each(fn func(key, value string) error) error {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(string(iter.Key()), string(iter.Value())); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Clear deletes every record.
func (s *Store) Clear() error {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return err
	}

	var keys [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		k := make([]byte, len(iter.Key()))
		copy(k, iter.Key())
		keys = append(keys, k)
	}
	if err := iter.Close(); err != nil {
		return err
	}

	batch := s.db.NewBatch()
	for _, k := range keys {
		if err := batch.Delete(k, nil); err != nil {
			batch.Close()
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
