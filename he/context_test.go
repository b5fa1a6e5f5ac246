package he

import (
	"math/bits"
	"testing"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"gotest.tools/assert"
)

func testConfig(scheme Scheme) Config {
	return Config{
		Scheme:           scheme.String(),
		LogN:             12,
		LogQ:             []int{54, 54, 54},
		LogP:             []int{55},
		PlaintextModulus: 65537,
	}
}

func TestSlotPacking(t *testing.T) {
	data := []byte("keyword private information retrieval")
	for _, perSlot := range []int{1, 2, 3} {
		slots := BytesToSlots(data, perSlot)
		assert.Equal(t, len(slots), (len(data)+perSlot-1)/perSlot)
		out := SlotsToBytes(slots, perSlot)
		assert.DeepEqual(t, out[:len(data)], data)
	}
}

func TestSchemeString(t *testing.T) {
	s, err := SchemeString("BFV")
	assert.NilError(t, err)
	assert.Equal(t, s, BFV)
	s, err = SchemeString("")
	assert.NilError(t, err)
	assert.Equal(t, s, BGV)
	_, err = SchemeString("ckks")
	assert.ErrorContains(t, err, "unknown homomorphic scheme")
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{LogN: 12}.WithDefaults()
	assert.Equal(t, cfg.Scheme, "bgv")
	assert.Equal(t, cfg.PlaintextModulus, uint64(65537))
	assert.Check(t, cfg.Equal(Config{LogN: 12, LogQ: []int{54, 54, 54}}))
	assert.Check(t, !cfg.Equal(DefaultConfig()))
}

func TestEncryptDecryptBytes(t *testing.T) {
	for _, scheme := range []Scheme{BGV, BFV} {
		ctx, err := NewContext(testConfig(scheme))
		assert.NilError(t, err)
		assert.Equal(t, ctx.SlotCount(), 4096)
		assert.Equal(t, ctx.BytesPerSlot(), 2)
		assert.Equal(t, ctx.LogPlaintextModulus(), 17)
		// Generated primes may be one bit longer than requested.
		total := 0
		for _, q := range ctx.Parameters().Q() {
			total += bits.Len64(q)
		}
		assert.Equal(t, ctx.LogQ(ctx.MaxLevel()), total)
		assert.Check(t, total >= 162)

		sk := ctx.NewKeyGenerator().GenSecretKeyNew()
		data := []byte{0xff, 0xff, 0x00, 0x01, 0x80}

		pt, err := ctx.EncodeBytes(data, ctx.MaxLevel())
		assert.NilError(t, err)
		ct, err := ctx.NewEncryptor(sk).EncryptNew(pt)
		assert.NilError(t, err)

		out, err := ctx.DecodeBytes(ctx.NewDecryptor(sk).DecryptNew(ct), len(data))
		assert.NilError(t, err)
		assert.DeepEqual(t, out, data)
	}
}

func TestEncodeTooLarge(t *testing.T) {
	ctx, err := NewContext(testConfig(BGV))
	assert.NilError(t, err)
	_, err = ctx.EncodeBytes(make([]byte, ctx.SlotCount()*ctx.BytesPerSlot()+1), ctx.MaxLevel())
	assert.ErrorContains(t, err, "cannot encode")
}

func TestEvaluatorProducts(t *testing.T) {
	for _, scheme := range []Scheme{BGV, BFV} {
		t.Run(scheme.String(), func(t *testing.T) {
			ctx, err := NewContext(testConfig(scheme))
			assert.NilError(t, err)
			kgen := ctx.NewKeyGenerator()
			sk := kgen.GenSecretKeyNew()
			eval := ctx.NewEvaluator(rlwe.NewMemEvaluationKeySet(kgen.GenRelinearizationKeyNew(sk)))

			a := []uint64{1, 2, 3, 4}
			b := []uint64{5, 6, 7, 8}
			ptA, err := ctx.Encode(a, ctx.MaxLevel())
			assert.NilError(t, err)
			ptB, err := ctx.Encode(b, ctx.MaxLevel())
			assert.NilError(t, err)
			enc := ctx.NewEncryptor(sk)
			ctA, err := enc.EncryptNew(ptA)
			assert.NilError(t, err)
			ctB, err := enc.EncryptNew(ptB)
			assert.NilError(t, err)
			dec := ctx.NewDecryptor(sk)

			prod, err := eval.MulPlain(ctA, ptB)
			assert.NilError(t, err)
			out, err := ctx.Decode(dec.DecryptNew(prod))
			assert.NilError(t, err)
			assert.DeepEqual(t, out[:4], []uint64{5, 12, 21, 32})

			prod, err = eval.MulRelin(ctA, ctB)
			assert.NilError(t, err)
			assert.NilError(t, eval.FinishMultiplication(prod))
			assert.Equal(t, prod.Degree(), 1)
			out, err = ctx.Decode(dec.DecryptNew(prod))
			assert.NilError(t, err)
			assert.DeepEqual(t, out[:4], []uint64{5, 12, 21, 32})
		})
	}
}
