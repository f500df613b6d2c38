package kvstore

import "errors"

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyEmpty    = errors.New("key is empty")
	// ErrConflict is returned when an update keeps losing to concurrent writers.
	ErrConflict = errors.New("kv update conflict")
)

const maxUpdateAttempts = 8

func joinKey(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + "/" + k
}
