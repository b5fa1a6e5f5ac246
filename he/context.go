// Package he wraps a lattigo parameter set into the small set of capabilities
// the PIR engine needs: encoding, plaintext and ciphertext multiplication,
// rotations, and key material generation.
package he

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"
)

// Context is an opaque handle on a parameter set. Implementations are safe
// for concurrent use.
type Context interface {
	Scheme() Scheme
	Config() Config
	Parameters() rlwe.Parameters

	LogN() int
	// SlotCount is the number of plaintext slots, arranged as two rows of
	// SlotCount/2 columns.
	SlotCount() int
	// BytesPerSlot is the number of bytes packed into one slot.
	BytesPerSlot() int
	LogPlaintextModulus() int
	MaxLevel() int
	// LogQLevel returns the bit size of the ciphertext prime at the given level.
	LogQLevel(level int) int
	// LogQ returns the total ciphertext modulus size in bits up to level.
	LogQ(level int) int

	Encode(values []uint64, level int) (*rlwe.Plaintext, error)
	Decode(pt *rlwe.Plaintext) ([]uint64, error)
	EncodeBytes(data []byte, level int) (*rlwe.Plaintext, error)
	DecodeBytes(pt *rlwe.Plaintext, n int) ([]byte, error)

	NewEvaluator(evk rlwe.EvaluationKeySet) Evaluator
	NewKeyGenerator() *rlwe.KeyGenerator
	NewEncryptor(sk *rlwe.SecretKey) *rlwe.Encryptor
	NewDecryptor(sk *rlwe.SecretKey) *rlwe.Decryptor

	GaloisElementForColumnRotation(k int) uint64
	GaloisElementForRowRotation() uint64
}

type context struct {
	config Config
	scheme Scheme

	// BFV shares the BGV parameters; its evaluator is scale invariant.
	params bgv.Parameters

	bytesPerSlot int
	encoders     sync.Pool
}

// NewContext validates cfg and builds the corresponding lattigo parameters.
func NewContext(cfg Config) (Context, error) {
	cfg = cfg.WithDefaults()
	scheme, err := SchemeString(cfg.Scheme)
	if err != nil {
		return nil, err
	}

	literal := bgv.ParametersLiteral{
		LogN:             cfg.LogN,
		LogQ:             cfg.LogQ,
		LogP:             cfg.LogP,
		PlaintextModulus: cfg.PlaintextModulus,
	}

	ctx := &context{config: cfg, scheme: scheme}
	if ctx.params, err = bgv.NewParametersFromLiteral(literal); err != nil {
		return nil, fmt.Errorf("invalid %s parameters %s: %w", scheme, cfg, err)
	}

	ctx.bytesPerSlot = (bits.Len64(cfg.PlaintextModulus) - 1) / 8
	if ctx.bytesPerSlot < 1 {
		return nil, fmt.Errorf("plaintext modulus %d too small, need at least 9 bits", cfg.PlaintextModulus)
	}

	params := ctx.params
	ctx.encoders.New = func() interface{} {
		return bgv.NewEncoder(params)
	}
	return ctx, nil
}

func (c *context) Scheme() Scheme              { return c.scheme }
func (c *context) Config() Config              { return c.config }
func (c *context) Parameters() rlwe.Parameters { return c.params.Parameters }
func (c *context) LogN() int                   { return c.params.LogN() }
func (c *context) SlotCount() int              { return c.params.MaxSlots() }
func (c *context) BytesPerSlot() int           { return c.bytesPerSlot }
func (c *context) MaxLevel() int               { return c.params.MaxLevel() }

func (c *context) LogPlaintextModulus() int {
	return bits.Len64(c.params.PlaintextModulus())
}

func (c *context) LogQLevel(level int) int {
	return bits.Len64(c.params.Q()[level])
}

func (c *context) LogQ(level int) int {
	total := 0
	for i := 0; i <= level; i++ {
		total += c.LogQLevel(i)
	}
	return total
}

func (c *context) Encode(values []uint64, level int) (*rlwe.Plaintext, error) {
	if len(values) > c.SlotCount() {
		return nil, fmt.Errorf("cannot encode %d values into %d slots", len(values), c.SlotCount())
	}
	if len(values) < c.SlotCount() {
		padded := make([]uint64, c.SlotCount())
		copy(padded, values)
		values = padded
	}
	pt := bgv.NewPlaintext(c.params, level)
	ecd := c.encoders.Get().(*bgv.Encoder)
	defer c.encoders.Put(ecd)
	if err := ecd.Encode(values, pt); err != nil {
		return nil, err
	}
	return pt, nil
}

func (c *context) Decode(pt *rlwe.Plaintext) ([]uint64, error) {
	values := make([]uint64, c.SlotCount())
	ecd := c.encoders.Get().(*bgv.Encoder)
	defer c.encoders.Put(ecd)
	if err := ecd.Decode(pt, values); err != nil {
		return nil, err
	}
	return values, nil
}

func (c *context) EncodeBytes(data []byte, level int) (*rlwe.Plaintext, error) {
	if capacity := c.SlotCount() * c.bytesPerSlot; len(data) > capacity {
		return nil, fmt.Errorf("cannot encode %d bytes into a plaintext holding %d bytes", len(data), capacity)
	}
	return c.Encode(BytesToSlots(data, c.bytesPerSlot), level)
}

func (c *context) DecodeBytes(pt *rlwe.Plaintext, n int) ([]byte, error) {
	values, err := c.Decode(pt)
	if err != nil {
		return nil, err
	}
	out := SlotsToBytes(values, c.bytesPerSlot)
	if n > len(out) {
		return nil, fmt.Errorf("plaintext holds %d bytes, requested %d", len(out), n)
	}
	return out[:n], nil
}

func (c *context) NewEvaluator(evk rlwe.EvaluationKeySet) Evaluator {
	if c.scheme == BFV {
		return bfvEvaluator{bgv.NewEvaluator(c.params, evk, true)}
	}
	return bgvEvaluator{bgv.NewEvaluator(c.params, evk)}
}

func (c *context) NewKeyGenerator() *rlwe.KeyGenerator {
	return rlwe.NewKeyGenerator(c.params)
}

func (c *context) NewEncryptor(sk *rlwe.SecretKey) *rlwe.Encryptor {
	return rlwe.NewEncryptor(c.params, sk)
}

func (c *context) NewDecryptor(sk *rlwe.SecretKey) *rlwe.Decryptor {
	return rlwe.NewDecryptor(c.params, sk)
}

func (c *context) GaloisElementForColumnRotation(k int) uint64 {
	return c.params.GaloisElement(k)
}

func (c *context) GaloisElementForRowRotation() uint64 {
	return c.params.GaloisElementOrderTwoOrthogonalSubgroup()
}

// BytesToSlots packs data big-endian, perSlot bytes per slot. The last slot
// is zero padded.
func BytesToSlots(data []byte, perSlot int) []uint64 {
	values := make([]uint64, (len(data)+perSlot-1)/perSlot)
	for i, b := range data {
		values[i/perSlot] |= uint64(b) << (8 * uint(perSlot-1-i%perSlot))
	}
	return values
}

// SlotsToBytes is the inverse of BytesToSlots.
func SlotsToBytes(values []uint64, perSlot int) []byte {
	out := make([]byte, len(values)*perSlot)
	for i := range out {
		out[i] = byte(values[i/perSlot] >> (8 * uint(perSlot-1-i%perSlot)))
	}
	return out
}
