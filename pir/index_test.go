package pir

import (
	"errors"
	"testing"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"gotest.tools/assert"

	"keywordpir/he"
)

func testContext(t *testing.T, scheme he.Scheme) he.Context {
	cfg := TestEncryptionConfig()
	cfg.Scheme = scheme.String()
	ctx, err := he.NewContext(cfg)
	assert.NilError(t, err)
	return ctx
}

func TestDimensions(t *testing.T) {
	assert.DeepEqual(t, evenDimensions(10, 2), []int{4, 4})
	assert.DeepEqual(t, unevenDimensions(10, 2), []int{4, 3})
	assert.DeepEqual(t, evenDimensions(27, 3), []int{3, 3, 3})
	assert.DeepEqual(t, unevenDimensions(28, 3), []int{4, 3, 3})
	assert.DeepEqual(t, unevenDimensions(1, 2), []int{1, 1})
	assert.DeepEqual(t, evenDimensions(1000, 1), []int{1000})

	for n := 1; n < 200; n++ {
		for k := 1; k <= 3; k++ {
			p := IndexParameter{Dimensions: unevenDimensions(n, k)}
			assert.Check(t, p.capacity() >= n, "n=%d k=%d dims=%v", n, k, p.Dimensions)
			p = IndexParameter{Dimensions: evenDimensions(n, k)}
			assert.Check(t, p.capacity() >= n, "n=%d k=%d dims=%v", n, k, p.Dimensions)
		}
	}
}

func TestCoordinates(t *testing.T) {
	p := IndexParameter{EntryCount: 12, Dimensions: []int{4, 3}}
	assert.DeepEqual(t, p.coordinates(0), []int{0, 0})
	assert.DeepEqual(t, p.coordinates(5), []int{1, 2})
	assert.DeepEqual(t, p.coordinates(11), []int{3, 2})
}

func TestNoiseBudget(t *testing.T) {
	ctx := testContext(t, he.BGV)
	_, err := NewIndexParameter(ctx, 27, 64, IndexConfig{DimensionCount: 2})
	assert.NilError(t, err)

	_, err = NewIndexParameter(ctx, 27, 64, IndexConfig{DimensionCount: 3})
	assert.Assert(t, errors.Is(err, ErrNoiseBudget), "got %v", err)

	shallow, err := he.NewContext(he.Config{LogN: 12, LogQ: []int{60}, LogP: []int{61}})
	assert.NilError(t, err)
	_, err = NewIndexParameter(shallow, 27, 64, IndexConfig{DimensionCount: 2})
	assert.Assert(t, errors.Is(err, ErrNoiseBudget), "got %v", err)
}

func TestIndexParameterErrors(t *testing.T) {
	ctx := testContext(t, he.BGV)
	var cfgErr *ConfigError

	_, err := NewIndexParameter(ctx, 5000, 64, IndexConfig{DimensionCount: 1})
	assert.Assert(t, errors.As(err, &cfgErr), "got %v", err)

	_, err = NewIndexParameter(ctx, 10, ctx.SlotCount()*ctx.BytesPerSlot()+1, IndexConfig{})
	assert.Assert(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, cfgErr.Field, "maxSerializedBucketSize")
}

func TestGaloisElementsCompression(t *testing.T) {
	ctx := testContext(t, he.BGV)
	// 2048 columns: 11 power-of-two rotations plus the row rotation.
	counts := map[KeyCompression]int{NoCompression: 12, HybridCompression: 7, MaxCompression: 4}
	for kc, want := range counts {
		p := IndexParameter{Dimensions: []int{2}, KeyCompression: kc}
		assert.Equal(t, len(GaloisElements(ctx, p)), want, "compression %s", kc)
	}
}

func TestIndexPIR(t *testing.T) {
	cases := []struct {
		name   string
		scheme he.Scheme
		config IndexConfig
	}{
		{"bgv-2d", he.BGV, IndexConfig{DimensionCount: 2, UnevenDimensions: true}},
		{"bgv-1d-max", he.BGV, IndexConfig{DimensionCount: 1, KeyCompression: MaxCompression}},
		{"bfv-2d-hybrid", he.BFV, IndexConfig{DimensionCount: 2, KeyCompression: HybridCompression}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := testContext(t, tc.scheme)
			src := RandSource()
			entries := make([][]byte, 20)
			for i := range entries {
				entries[i] = make([]byte, 64)
				src.Read(entries[i])
			}
			param, err := NewIndexParameter(ctx, len(entries), 64, tc.config)
			assert.NilError(t, err)
			server, err := NewIndexServer(ctx, param, entries)
			assert.NilError(t, err)

			sk := ctx.NewKeyGenerator().GenSecretKeyNew()
			client := NewIndexClient(ctx, param, sk)
			evk := client.EvaluationKey().KeySet()

			for _, i := range []int{0, 7, 19} {
				q, err := client.Query(i)
				assert.NilError(t, err)
				resp, err := server.Process(q, evk)
				assert.NilError(t, err)
				got, err := client.Decrypt(resp)
				assert.NilError(t, err)
				assert.DeepEqual(t, got, entries[i])
			}
		})
	}
}

func TestIndexQueryValidation(t *testing.T) {
	ctx := testContext(t, he.BGV)
	param, err := NewIndexParameter(ctx, 4, 16, IndexConfig{DimensionCount: 2})
	assert.NilError(t, err)
	server, err := NewIndexServer(ctx, param, make([][]byte, 4))
	assert.NilError(t, err)

	sk := ctx.NewKeyGenerator().GenSecretKeyNew()
	client := NewIndexClient(ctx, param, sk)
	key := client.EvaluationKey()
	q, err := client.DummyQuery(CryptoRand())
	assert.NilError(t, err)

	var qErr *QueryError
	_, err = server.Process(&IndexQuery{Selectors: q.Selectors[:1]}, key.KeySet())
	assert.Assert(t, errors.As(err, &qErr), "got %v", err)

	_, err = server.Process(q, rlwe.NewMemEvaluationKeySet(nil, key.Galois...))
	assert.Assert(t, errors.As(err, &qErr), "got %v", err)
	assert.ErrorContains(t, err, "relinearization")

	_, err = server.Process(q, rlwe.NewMemEvaluationKeySet(key.Relinearization))
	assert.ErrorContains(t, err, "rotation key")

	_, err = server.Process(q, nil)
	assert.ErrorContains(t, err, "missing evaluation key")

	_, err = client.Query(4)
	assert.ErrorContains(t, err, "out of range")
}

func TestIndexRejectsForeignEvaluationKeys(t *testing.T) {
	ctx := testContext(t, he.BGV)
	param, err := NewIndexParameter(ctx, 4, 16, IndexConfig{DimensionCount: 2})
	assert.NilError(t, err)
	server, err := NewIndexServer(ctx, param, make([][]byte, 4))
	assert.NilError(t, err)
	client := NewIndexClient(ctx, param, ctx.NewKeyGenerator().GenSecretKeyNew())
	q, err := client.DummyQuery(CryptoRand())
	assert.NilError(t, err)

	wider := TestEncryptionConfig()
	wider.LogN = 13
	shallower := TestEncryptionConfig()
	shallower.LogQ = []int{54, 54}
	for _, tc := range []struct {
		name   string
		config he.Config
		want   string
	}{
		{"ring-degree", wider, "ring degree"},
		{"levels", shallower, "levels"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			other, err := he.NewContext(tc.config)
			assert.NilError(t, err)
			kgen := other.NewKeyGenerator()
			sk := kgen.GenSecretKeyNew()
			evk := rlwe.NewMemEvaluationKeySet(kgen.GenRelinearizationKeyNew(sk), kgen.GenGaloisKeysNew(server.galEls, sk)...)

			var qErr *QueryError
			_, err = server.Process(q, evk)
			assert.Assert(t, errors.As(err, &qErr), "got %v", err)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}
