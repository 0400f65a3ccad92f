// Package memory provides in-memory implementations of the storage
// interfaces for tests and local development. All stores are safe for
// concurrent use and return copies, never internal pointers.
package memory

import "time"

func now() time.Time {
	return time.Now().UTC()
}

// timeLess orders optional timestamps with nil first.
func timeLess(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.Before(*b)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
