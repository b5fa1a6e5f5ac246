package pir

import (
	"encoding/binary"
	"fmt"
)

// Bucket layout:
//
//	uvarint(rowCount) { uvarint(len(keyword)) keyword uvarint(len(value)) value }*
//
// followed by zero padding up to the configured bucket size. An all-zero
// buffer is a valid empty bucket.

func uvarintLen(x int) int {
	var buf [binary.MaxVarintLen64]byte
	return binary.PutUvarint(buf[:], uint64(x))
}

// SerializedRowSize is the number of bytes a row occupies inside a bucket.
func SerializedRowSize(r Row) int {
	return uvarintLen(len(r.Keyword)) + len(r.Keyword) + uvarintLen(len(r.Value)) + len(r.Value)
}

func serializedBucketSize(rows []Row) int {
	size := uvarintLen(len(rows))
	for _, r := range rows {
		size += SerializedRowSize(r)
	}
	return size
}

func serializeBucket(rows []Row, size int) []byte {
	out := make([]byte, size)
	n := binary.PutUvarint(out, uint64(len(rows)))
	for _, r := range rows {
		n += binary.PutUvarint(out[n:], uint64(len(r.Keyword)))
		n += copy(out[n:], r.Keyword)
		n += binary.PutUvarint(out[n:], uint64(len(r.Value)))
		n += copy(out[n:], r.Value)
	}
	return out
}

// ParseBucket decodes the rows of a serialized bucket. Trailing padding is
// ignored.
func ParseBucket(data []byte) ([]Row, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("malformed bucket header")
	}
	if count > uint64(len(data)) {
		return nil, fmt.Errorf("bucket claims %d rows in %d bytes", count, len(data))
	}
	rows := make([]Row, count)
	pos := n
	for i := range rows {
		var err error
		if rows[i].Keyword, pos, err = readField(data, pos); err != nil {
			return nil, fmt.Errorf("row %d keyword: %w", i, err)
		}
		if rows[i].Value, pos, err = readField(data, pos); err != nil {
			return nil, fmt.Errorf("row %d value: %w", i, err)
		}
	}
	return rows, nil
}

func readField(data []byte, pos int) ([]byte, int, error) {
	l, n := binary.Uvarint(data[pos:])
	if n <= 0 {
		return nil, pos, fmt.Errorf("malformed length at offset %d", pos)
	}
	pos += n
	if l > uint64(len(data)-pos) {
		return nil, pos, fmt.Errorf("length %d overruns bucket at offset %d", l, pos)
	}
	field := make([]byte, l)
	copy(field, data[pos:pos+int(l)])
	return field, pos + int(l), nil
}

// findInBucket returns the value stored under keyword in a serialized bucket.
func findInBucket(data, keyword []byte) ([]byte, bool, error) {
	rows, err := ParseBucket(data)
	if err != nil {
		return nil, false, err
	}
	for _, r := range rows {
		if string(r.Keyword) == string(keyword) {
			return r.Value, true, nil
		}
	}
	return nil, false, nil
}
