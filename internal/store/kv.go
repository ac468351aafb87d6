package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// KV is the durable key-value boundary shared by the availability calendar,
// the read-state trackers and the applied markers. Each key is owned by one
// feature. Writes are full overwrites; there are no cross-key transactions.
type KV interface {
	// Get returns the value for key and whether it is present.
	Get(key string) (string, bool, error)
	// Set overwrites key.
	Set(key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
	// ListKeysWithPrefix returns every key starting with prefix, sorted.
	ListKeysWithPrefix(prefix string) ([]string, error)
}

var _ KV = (*DB)(nil)

// Get implements KV.
func (db *DB) Get(key string) (string, bool, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %q: %w", key, err)
	}
	return v, true, nil
}

// Set implements KV.
func (db *DB) Set(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// Remove implements KV.
func (db *DB) Remove(key string) error {
	if _, err := db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv remove %q: %w", key, err)
	}
	return nil
}

// ListKeysWithPrefix implements KV. Matching is byte-wise, so prefixes
// containing LIKE wildcards behave literally.
func (db *DB) ListKeysWithPrefix(prefix string) ([]string, error) {
	rows, err := db.Query(`
		SELECT key FROM kv
		WHERE substr(key, 1, length(?)) = ?
		ORDER BY key ASC`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("kv list %q: %w", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
