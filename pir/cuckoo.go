package pir

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
)

const (
	// cuckooSeed drives victim selection. It is public and fixed so that
	// builds are reproducible.
	cuckooSeed = 0x6b777069

	maxExpansionAttempts = 64

	defaultMaxEvictionCount = 100
)

var hashPrefix = []byte("keyword-pir cuckoo v1")

// BucketCount is either a fixed number of buckets or an expansion policy
// starting from the count implied by TargetLoadFactor.
type BucketCount struct {
	Fixed            int     `json:"fixed,omitempty"`
	ExpansionFactor  float64 `json:"expansionFactor,omitempty"`
	TargetLoadFactor float64 `json:"targetLoadFactor,omitempty"`
}

func FixedBucketCount(n int) BucketCount {
	return BucketCount{Fixed: n}
}

func AllowExpansion(expansionFactor, targetLoadFactor float64) BucketCount {
	return BucketCount{ExpansionFactor: expansionFactor, TargetLoadFactor: targetLoadFactor}
}

func (b BucketCount) IsFixed() bool {
	return b.Fixed > 0
}

type CuckooConfig struct {
	HashFunctionCount       int         `json:"hashFunctionCount"`
	MaxEvictionCount        *int        `json:"maxEvictionCount,omitempty"`
	MaxSerializedBucketSize int         `json:"maxSerializedBucketSize"`
	BucketCount             BucketCount `json:"bucketCount"`
}

func DefaultCuckooConfig() CuckooConfig {
	return CuckooConfig{
		HashFunctionCount:       2,
		MaxEvictionCount:        MaxEvictions(defaultMaxEvictionCount),
		MaxSerializedBucketSize: 1024,
		BucketCount:             AllowExpansion(1.1, 0.9),
	}
}

// MaxEvictions returns a MaxEvictionCount of n. Zero disables eviction.
func MaxEvictions(n int) *int {
	return &n
}

// Evictions is the eviction limit, defaultMaxEvictionCount when unset.
func (c CuckooConfig) Evictions() int {
	if c.MaxEvictionCount == nil {
		return defaultMaxEvictionCount
	}
	return *c.MaxEvictionCount
}

// WithDefaults fills unset fields from DefaultCuckooConfig.
func (c CuckooConfig) WithDefaults() CuckooConfig {
	def := DefaultCuckooConfig()
	if c.HashFunctionCount == 0 {
		c.HashFunctionCount = def.HashFunctionCount
	}
	if c.MaxEvictionCount == nil {
		c.MaxEvictionCount = def.MaxEvictionCount
	}
	if c.MaxSerializedBucketSize == 0 {
		c.MaxSerializedBucketSize = def.MaxSerializedBucketSize
	}
	if c.BucketCount == (BucketCount{}) {
		c.BucketCount = def.BucketCount
	}
	return c
}

func (c CuckooConfig) Validate() error {
	switch {
	case c.HashFunctionCount < 2:
		return configErrorf("hashFunctionCount", "%d, need at least 2", c.HashFunctionCount)
	case c.HashFunctionCount > 255:
		return configErrorf("hashFunctionCount", "%d, at most 255 supported", c.HashFunctionCount)
	case c.Evictions() < 0:
		return configErrorf("maxEvictionCount", "%d is negative", c.Evictions())
	case c.MaxSerializedBucketSize <= uvarintLen(1):
		return configErrorf("maxSerializedBucketSize", "%d cannot hold any row", c.MaxSerializedBucketSize)
	}
	b := c.BucketCount
	if b.IsFixed() {
		return nil
	}
	if b.Fixed < 0 {
		return configErrorf("bucketCount.fixed", "%d is negative", b.Fixed)
	}
	if b.ExpansionFactor <= 1 {
		return configErrorf("bucketCount.expansionFactor", "%v, must be greater than 1", b.ExpansionFactor)
	}
	if b.TargetLoadFactor <= 0 || b.TargetLoadFactor > 1 {
		return configErrorf("bucketCount.targetLoadFactor", "%v, must be in (0, 1]", b.TargetLoadFactor)
	}
	return nil
}

// CandidateBuckets returns the hashFunctionCount candidate positions of a
// keyword. Client and server derive them identically.
func CandidateBuckets(keyword []byte, hashFunctionCount, bucketCount int) []int {
	out := make([]int, hashFunctionCount)
	h := sha256.New()
	var sum [sha256.Size]byte
	for i := range out {
		h.Reset()
		h.Write(hashPrefix)
		h.Write([]byte{byte(i)})
		h.Write(keyword)
		h.Sum(sum[:0])
		out[i] = int(binary.BigEndian.Uint64(sum[:8]) % uint64(bucketCount))
	}
	return out
}

// CuckooTable is an immutable array of buckets. Every row sits in exactly
// one of its candidate buckets.
type CuckooTable struct {
	config  CuckooConfig
	buckets [][]Row
	sizes   []int
	rows    int
}

type pendingRow struct {
	row Row
	// from is the bucket the row was evicted from, -1 for new rows.
	from int
}

// BuildCuckooTable inserts all rows. On a FixedBucketCount overflow it
// returns a *CapacityError. With AllowExpansion, the bucket count grows by
// ExpansionFactor and the build is retried from scratch.
func BuildCuckooTable(rows []Row, config CuckooConfig) (*CuckooTable, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	total := 0
	for i, r := range rows {
		if len(r.Keyword) == 0 {
			return nil, configErrorf("rows", "row %d has an empty keyword", i)
		}
		size := SerializedRowSize(r)
		if size+uvarintLen(1) > config.MaxSerializedBucketSize {
			return nil, configErrorf("maxSerializedBucketSize",
				"%d too small for row %d of %d bytes", config.MaxSerializedBucketSize, i, size)
		}
		total += size
	}

	if config.BucketCount.IsFixed() {
		return buildCuckooTable(rows, config, config.BucketCount.Fixed)
	}

	count := initialBucketCount(len(rows), total, config)
	var err error
	for attempt := 0; attempt < maxExpansionAttempts; attempt++ {
		var table *CuckooTable
		table, err = buildCuckooTable(rows, config, count)
		var capErr *CapacityError
		if !errors.As(err, &capErr) {
			return table, err
		}
		next := int(math.Ceil(float64(count) * config.BucketCount.ExpansionFactor))
		if next <= count {
			next = count + 1
		}
		count = next
	}
	return nil, err
}

func initialBucketCount(rowCount, totalSize int, config CuckooConfig) int {
	perBucket := config.BucketCount.TargetLoadFactor * float64(config.MaxSerializedBucketSize)
	count := int(math.Ceil(float64(totalSize+rowCount) / perBucket))
	if count < 1 {
		count = 1
	}
	return count
}

func buildCuckooTable(rows []Row, config CuckooConfig, bucketCount int) (*CuckooTable, error) {
	if bucketCount < 1 {
		return nil, configErrorf("bucketCount", "%d, need at least one bucket", bucketCount)
	}
	t := &CuckooTable{
		config:  config,
		buckets: make([][]Row, bucketCount),
		sizes:   make([]int, bucketCount),
	}
	for i := range t.sizes {
		t.sizes[i] = uvarintLen(0)
	}
	rnd := rand.New(rand.NewSource(cuckooSeed))
	for i, r := range rows {
		if !t.insert(r, rnd) {
			return nil, &CapacityError{
				BucketCount:      bucketCount,
				Inserted:         i,
				Total:            len(rows),
				MaxEvictionCount: config.Evictions(),
			}
		}
	}
	return t, nil
}

// insert places r, displacing at most MaxEvictionCount times. The table is
// left inconsistent when it fails; callers discard it.
func (t *CuckooTable) insert(r Row, rnd *rand.Rand) bool {
	work := []pendingRow{{row: r, from: -1}}
	evictions := 0
	for len(work) > 0 {
		p := work[len(work)-1]
		work = work[:len(work)-1]

		candidates := CandidateBuckets(p.row.Keyword, t.config.HashFunctionCount, len(t.buckets))
		if t.place(p.row, candidates) {
			continue
		}
		if evictions == t.config.Evictions() {
			return false
		}
		evictions++

		target := t.victimBucket(candidates, p.from, rnd)
		for !t.fits(target, p.row) {
			bucket := t.buckets[target]
			v := rnd.Intn(len(bucket))
			victim := bucket[v]
			t.remove(target, v)
			work = append(work, pendingRow{row: victim, from: target})
		}
		t.add(target, p.row)
	}
	t.rows++
	return true
}

func (t *CuckooTable) place(r Row, candidates []int) bool {
	for _, b := range candidates {
		if t.fits(b, r) {
			t.add(b, r)
			return true
		}
	}
	return false
}

func (t *CuckooTable) victimBucket(candidates []int, from int, rnd *rand.Rand) int {
	alternatives := make([]int, 0, len(candidates))
	for _, b := range candidates {
		if b != from {
			alternatives = append(alternatives, b)
		}
	}
	if len(alternatives) == 0 {
		alternatives = candidates
	}
	return alternatives[rnd.Intn(len(alternatives))]
}

func (t *CuckooTable) fits(b int, r Row) bool {
	n := len(t.buckets[b])
	size := t.sizes[b] - uvarintLen(n) + uvarintLen(n+1) + SerializedRowSize(r)
	return size <= t.config.MaxSerializedBucketSize
}

func (t *CuckooTable) add(b int, r Row) {
	n := len(t.buckets[b])
	t.sizes[b] += uvarintLen(n+1) - uvarintLen(n) + SerializedRowSize(r)
	t.buckets[b] = append(t.buckets[b], r)
}

func (t *CuckooTable) remove(b, i int) {
	bucket := t.buckets[b]
	n := len(bucket)
	t.sizes[b] -= uvarintLen(n) - uvarintLen(n-1) + SerializedRowSize(bucket[i])
	t.buckets[b] = append(bucket[:i:i], bucket[i+1:]...)
}

func (t *CuckooTable) Config() CuckooConfig {
	return t.config
}

func (t *CuckooTable) BucketCount() int {
	return len(t.buckets)
}

func (t *CuckooTable) RowCount() int {
	return t.rows
}

// LoadFactor is the fraction of serialized bucket capacity in use.
func (t *CuckooTable) LoadFactor() float64 {
	used := 0
	for _, s := range t.sizes {
		used += s
	}
	return float64(used) / float64(len(t.buckets)*t.config.MaxSerializedBucketSize)
}

// Bucket returns the rows of bucket b. The slice must not be modified.
func (t *CuckooTable) Bucket(b int) []Row {
	return t.buckets[b]
}

// SerializedBuckets returns every bucket padded to MaxSerializedBucketSize.
func (t *CuckooTable) SerializedBuckets() [][]byte {
	out := make([][]byte, len(t.buckets))
	for i, rows := range t.buckets {
		out[i] = serializeBucket(rows, t.config.MaxSerializedBucketSize)
	}
	return out
}

// Lookup finds keyword among its candidate buckets.
func (t *CuckooTable) Lookup(keyword []byte) ([]byte, bool) {
	for _, b := range CandidateBuckets(keyword, t.config.HashFunctionCount, len(t.buckets)) {
		for _, r := range t.buckets[b] {
			if string(r.Keyword) == string(keyword) {
				return r.Value, true
			}
		}
	}
	return nil, false
}
