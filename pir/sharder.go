package pir

import (
	"crypto/sha256"
	"encoding/binary"
)

// ShardOf maps a keyword to a shard. The mapping only depends on the keyword
// and shardCount, so clients compute it locally; changing shardCount
// requires a rebuild.
func ShardOf(keyword []byte, shardCount int) int {
	if shardCount <= 1 {
		return 0
	}
	sum := sha256.Sum256(keyword)
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(shardCount))
}

// ShardRows partitions rows by ShardOf, keeping their relative order.
func ShardRows(rows []Row, shardCount int) [][]Row {
	out := make([][]Row, shardCount)
	for _, r := range rows {
		s := ShardOf(r.Keyword, shardCount)
		out[s] = append(out[s], r)
	}
	return out
}
