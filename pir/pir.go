// Package pir implements single-server keyword PIR: rows are bucketized
// with cuckoo hashing, every bucket is encoded into one homomorphic
// plaintext, and a multiplicative index-selection protocol returns the
// encrypted content of one bucket without learning which.
package pir

import (
	"fmt"
)

// One database row.
type Row struct {
	Keyword []byte
	Value   []byte
}

func (r Row) String() string {
	return fmt.Sprintf("Row{%q: %d bytes}", r.Keyword, len(r.Value))
}

// ConfigError reports a configuration that cannot produce a usable database.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// CapacityError is returned when cuckoo insertion exceeds its eviction bound.
type CapacityError struct {
	BucketCount      int
	Inserted         int
	Total            int
	MaxEvictionCount int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("cuckoo table with %d buckets full after inserting %d of %d rows (maxEvictionCount %d)",
		e.BucketCount, e.Inserted, e.Total, e.MaxEvictionCount)
}

// InvariantError reports state that can only result from a programming or
// provisioning bug, such as shards of one usecase disagreeing on shape.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Reason
}

// QueryError reports a malformed query. Server state is never modified.
type QueryError struct {
	Reason string
}

func (e *QueryError) Error() string {
	return "invalid query: " + e.Reason
}

func queryErrorf(format string, args ...interface{}) error {
	return &QueryError{Reason: fmt.Sprintf(format, args...)}
}
