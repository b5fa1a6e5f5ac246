package pir

import (
	"errors"
	"fmt"
	"testing"

	"gotest.tools/assert"

	"keywordpir/he"
)

func digitShard(t *testing.T, ctx he.Context) *Shard {
	cfg := CuckooConfig{
		HashFunctionCount:       2,
		MaxEvictionCount:        MaxEvictions(100),
		MaxSerializedBucketSize: 16,
		BucketCount:             FixedBucketCount(8),
	}
	table, err := BuildCuckooTable(MakeDigitRows(10), cfg)
	assert.NilError(t, err)
	shard, err := NewShard(ctx, 0, table, DefaultIndexConfig())
	assert.NilError(t, err)
	return shard
}

func TestKeywordDigits(t *testing.T) {
	ctx := testContext(t, he.BGV)
	shard := digitShard(t, ctx)

	kp := KeywordParameter{ShardCount: 1, HashFunctionCount: 2, BucketCount: shard.IndexParameter().EntryCount}
	client, err := NewKeywordClient(ctx, kp, shard.IndexParameter(), ctx.NewKeyGenerator().GenSecretKeyNew())
	assert.NilError(t, err)
	reader := NewKeywordReader(client, ShardServer{shard})

	val, found, err := reader.Read([]byte("5"))
	assert.NilError(t, err)
	assert.Check(t, found)
	assert.Equal(t, string(val), "5")

	val, found, err = reader.Read([]byte("50"))
	assert.NilError(t, err)
	assert.Check(t, !found)
	assert.Check(t, val == nil)
}

func TestKeywordQueryShape(t *testing.T) {
	ctx := testContext(t, he.BGV)
	shard := digitShard(t, ctx)
	kp := KeywordParameter{ShardCount: 1, HashFunctionCount: 2, BucketCount: shard.IndexParameter().EntryCount}
	client, err := NewKeywordClient(ctx, kp, shard.IndexParameter(), ctx.NewKeyGenerator().GenSecretKeyNew())
	assert.NilError(t, err)
	evk := client.EvaluationKey().KeySet()

	// Present and absent keywords produce queries of identical shape.
	_, present, err := client.Query([]byte("3"))
	assert.NilError(t, err)
	_, absent, err := client.Query([]byte("missing"))
	assert.NilError(t, err)
	_, dummy, err := client.DummyQuery(CryptoRand())
	assert.NilError(t, err)
	for _, q := range []*KeywordQuery{present, absent, dummy} {
		assert.Equal(t, len(q.Queries), 2)
		for _, iq := range q.Queries {
			assert.Equal(t, len(iq.Selectors), len(shard.IndexParameter().Dimensions))
		}
	}

	resp, err := shard.Process(absent, evk)
	assert.NilError(t, err)
	assert.Equal(t, len(resp.Responses), 2)

	var qErr *QueryError
	_, err = shard.Process(&KeywordQuery{Queries: present.Queries[:1]}, evk)
	assert.Assert(t, errors.As(err, &qErr), "got %v", err)

	_, err = ShardServer{shard}.Process(1, present, evk)
	assert.Assert(t, errors.As(err, &qErr), "got %v", err)
}

func TestShardLookup(t *testing.T) {
	ctx := testContext(t, he.BFV)
	shard := digitShard(t, ctx)
	for _, r := range MakeDigitRows(10) {
		val, found, err := shard.Lookup(r.Keyword)
		assert.NilError(t, err)
		assert.Check(t, found, "keyword %s", r.Keyword)
		assert.DeepEqual(t, val, r.Value)
	}
	_, found, err := shard.Lookup([]byte("10"))
	assert.NilError(t, err)
	assert.Check(t, !found)
}

func TestCheckShapes(t *testing.T) {
	ctx := testContext(t, he.BGV)
	a := digitShard(t, ctx)
	b := digitShard(t, ctx)
	assert.NilError(t, CheckShapes([]*Shard{a, b}))

	cfg := smallCuckooConfig()
	cfg.BucketCount = FixedBucketCount(30)
	table, err := BuildCuckooTable(MakeDigitRows(10), cfg)
	assert.NilError(t, err)
	c, err := NewShard(ctx, 2, table, DefaultIndexConfig())
	assert.NilError(t, err)

	err = CheckShapes([]*Shard{a, b, c})
	var invErr *InvariantError
	assert.Assert(t, errors.As(err, &invErr), "got %v", err)
	assert.ErrorContains(t, err, "shard 2")
}

func TestKeywordClientMismatch(t *testing.T) {
	ctx := testContext(t, he.BGV)
	shard := digitShard(t, ctx)
	kp := KeywordParameter{ShardCount: 1, HashFunctionCount: 2, BucketCount: 9}
	_, err := NewKeywordClient(ctx, kp, shard.IndexParameter(), ctx.NewKeyGenerator().GenSecretKeyNew())
	var invErr *InvariantError
	assert.Assert(t, errors.As(err, &invErr), "got %v", err)
}

func TestShardOfStable(t *testing.T) {
	counts := make([]int, 5)
	for _, r := range MakeRows(RandSource(), 500, 4) {
		s := ShardOf(r.Keyword, 5)
		assert.Equal(t, s, ShardOf(r.Keyword, 5))
		counts[s]++
	}
	for _, c := range counts {
		assert.Check(t, c > 60, "counts %v", counts)
	}
	assert.Equal(t, ShardOf([]byte("anything"), 1), 0)

	parts := ShardRows(MakeDigitRows(100), 5)
	total := 0
	for i, p := range parts {
		for _, r := range p {
			assert.Equal(t, ShardOf(r.Keyword, 5), i)
		}
		total += len(p)
	}
	assert.Equal(t, total, 100)
}

func TestShardOfGolden(t *testing.T) {
	want := []int{0, 3, 1, 3, 4, 3, 4, 0, 0, 0}
	for i, w := range want {
		assert.Equal(t, ShardOf([]byte(fmt.Sprint(i)), 5), w, "keyword %d", i)
	}
}
