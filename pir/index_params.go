package pir

import (
	"fmt"
	"math"
	"strings"

	"keywordpir/he"
)

// KeyCompression trades evaluation key size for server compute. With stride
// s the client only sends column rotation keys for powers 2^(s*i) and the
// server composes the remaining power-of-two rotations.
type KeyCompression int

const (
	NoCompression KeyCompression = iota
	HybridCompression
	MaxCompression
)

func (k KeyCompression) stride() int {
	switch k {
	case HybridCompression:
		return 2
	case MaxCompression:
		return 4
	}
	return 1
}

func (k KeyCompression) String() string {
	switch k {
	case NoCompression:
		return "none"
	case HybridCompression:
		return "hybrid"
	case MaxCompression:
		return "max"
	}
	return fmt.Sprintf("KeyCompression(%d)", int(k))
}

func (k KeyCompression) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *KeyCompression) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "none", "":
		*k = NoCompression
	case "hybrid":
		*k = HybridCompression
	case "max":
		*k = MaxCompression
	default:
		return configErrorf("keyCompression", "unknown value %q, expected none|hybrid|max", text)
	}
	return nil
}

type IndexConfig struct {
	DimensionCount   int            `json:"dimensionCount"`
	UnevenDimensions bool           `json:"unevenDimensions"`
	KeyCompression   KeyCompression `json:"keyCompression"`
}

func DefaultIndexConfig() IndexConfig {
	return IndexConfig{DimensionCount: 2, UnevenDimensions: true, KeyCompression: NoCompression}
}

func (c IndexConfig) WithDefaults() IndexConfig {
	if c.DimensionCount == 0 {
		c.DimensionCount = DefaultIndexConfig().DimensionCount
	}
	return c
}

// IndexParameter is the public shape of an encoded bucket array. Client and
// server must agree on it exactly.
type IndexParameter struct {
	EntryCount     int
	EntrySize      int
	Dimensions     []int
	KeyCompression KeyCompression
}

func (p IndexParameter) Equal(o IndexParameter) bool {
	if p.EntryCount != o.EntryCount || p.EntrySize != o.EntrySize || p.KeyCompression != o.KeyCompression {
		return false
	}
	if len(p.Dimensions) != len(o.Dimensions) {
		return false
	}
	for i := range p.Dimensions {
		if p.Dimensions[i] != o.Dimensions[i] {
			return false
		}
	}
	return true
}

func (p IndexParameter) String() string {
	return fmt.Sprintf("entries=%d,size=%d,dims=%v,keys=%s", p.EntryCount, p.EntrySize, p.Dimensions, p.KeyCompression)
}

// NewIndexParameter factors entryCount into cfg.DimensionCount dimensions
// and rejects shapes the encryption parameters cannot evaluate.
func NewIndexParameter(ctx he.Context, entryCount, entrySize int, cfg IndexConfig) (IndexParameter, error) {
	cfg = cfg.WithDefaults()
	if entryCount < 1 {
		return IndexParameter{}, configErrorf("entryCount", "%d, need at least one entry", entryCount)
	}
	if cfg.DimensionCount < 1 {
		return IndexParameter{}, configErrorf("dimensionCount", "%d, need at least one dimension", cfg.DimensionCount)
	}
	if capacity := ctx.SlotCount() * ctx.BytesPerSlot(); entrySize < 1 || entrySize > capacity {
		return IndexParameter{}, configErrorf("maxSerializedBucketSize",
			"%d bytes, a plaintext holds between 1 and %d bytes", entrySize, capacity)
	}

	var dims []int
	if cfg.UnevenDimensions {
		dims = unevenDimensions(entryCount, cfg.DimensionCount)
	} else {
		dims = evenDimensions(entryCount, cfg.DimensionCount)
	}
	for i, d := range dims {
		if d > ctx.SlotCount()/2 {
			return IndexParameter{}, configErrorf("dimensionCount",
				"dimension %d has size %d, more than the %d slots of a row", i, d, ctx.SlotCount()/2)
		}
	}

	p := IndexParameter{
		EntryCount:     entryCount,
		EntrySize:      entrySize,
		Dimensions:     dims,
		KeyCompression: cfg.KeyCompression,
	}
	if err := checkNoiseBudget(ctx, p); err != nil {
		return IndexParameter{}, err
	}
	return p, nil
}

// coordinates returns the row-major position of index:
// index = c1*(d2*...*dk) + c2*(d3*...*dk) + ... + ck.
func (p IndexParameter) coordinates(index int) []int {
	coords := make([]int, len(p.Dimensions))
	for i := len(p.Dimensions) - 1; i >= 0; i-- {
		coords[i] = index % p.Dimensions[i]
		index /= p.Dimensions[i]
	}
	return coords
}

func (p IndexParameter) capacity() int {
	n := 1
	for _, d := range p.Dimensions {
		n *= d
	}
	return n
}

// GaloisElements lists the rotation keys the server needs to expand
// selectors for p.
func GaloisElements(ctx he.Context, p IndexParameter) []uint64 {
	s := p.KeyCompression.stride()
	logCols := log2Ceil(ctx.SlotCount() / 2)
	var els []uint64
	for i := 0; s*i < logCols; i++ {
		els = append(els, ctx.GaloisElementForColumnRotation(1<<(s*i)))
	}
	return append(els, ctx.GaloisElementForRowRotation())
}

func evenDimensions(n, k int) []int {
	d := ceilRoot(n, k)
	dims := make([]int, k)
	for i := range dims {
		dims[i] = d
	}
	return dims
}

// unevenDimensions picks each dimension as the ceiling root of what is still
// to be covered, so the product is at least n and dimensions differ by at
// most one step.
func unevenDimensions(n, k int) []int {
	dims := make([]int, k)
	remaining := n
	for i := range dims {
		dims[i] = ceilRoot(remaining, k-i)
		remaining = (remaining + dims[i] - 1) / dims[i]
	}
	return dims
}

// ceilRoot returns the smallest d with d^k >= n.
func ceilRoot(n, k int) int {
	if n <= 1 {
		return 1
	}
	d := int(math.Ceil(math.Pow(float64(n), 1/float64(k))))
	for d > 1 && powAtLeast(d-1, k, n) {
		d--
	}
	for !powAtLeast(d, k, n) {
		d++
	}
	return d
}

func powAtLeast(d, k, n int) bool {
	p := 1
	for i := 0; i < k; i++ {
		p *= d
		if p >= n {
			return true
		}
	}
	return p >= n
}

func log2Ceil(n int) int {
	k := 0
	for 1<<k < n {
		k++
	}
	return k
}
