package pir

import (
	"fmt"
	"math/rand"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"keywordpir/he"
)

// KeywordParameter is the public hashing configuration a client needs to
// locate a keyword.
type KeywordParameter struct {
	ShardCount        int
	HashFunctionCount int
	BucketCount       int
}

// KeywordQuery has one index query per candidate bucket.
type KeywordQuery struct {
	Queries []*IndexQuery
}

type KeywordResponse struct {
	Responses []*IndexResponse
}

// KeywordClient builds queries against one shape of usecase. All shards of
// a usecase share the shape, so one client serves every shard.
type KeywordClient struct {
	param KeywordParameter
	index *IndexClient
}

func NewKeywordClient(ctx he.Context, kp KeywordParameter, ip IndexParameter, sk *rlwe.SecretKey) (*KeywordClient, error) {
	if kp.HashFunctionCount < 1 || kp.BucketCount < 1 || kp.ShardCount < 1 {
		return nil, fmt.Errorf("invalid keyword parameter %+v", kp)
	}
	if kp.BucketCount != ip.EntryCount {
		return nil, &InvariantError{fmt.Sprintf("keyword parameter has %d buckets, index parameter %d entries",
			kp.BucketCount, ip.EntryCount)}
	}
	return &KeywordClient{param: kp, index: NewIndexClient(ctx, ip, sk)}, nil
}

func (c *KeywordClient) Parameter() KeywordParameter {
	return c.param
}

func (c *KeywordClient) IndexClient() *IndexClient {
	return c.index
}

func (c *KeywordClient) EvaluationKey() *EvaluationKey {
	return c.index.EvaluationKey()
}

func (c *KeywordClient) ShardOf(keyword []byte) int {
	return ShardOf(keyword, c.param.ShardCount)
}

// Query returns the shard to send the query to and the query itself. The
// query always has HashFunctionCount index queries, even when candidates
// coincide.
func (c *KeywordClient) Query(keyword []byte) (int, *KeywordQuery, error) {
	q := &KeywordQuery{}
	for _, b := range CandidateBuckets(keyword, c.param.HashFunctionCount, c.param.BucketCount) {
		iq, err := c.index.Query(b)
		if err != nil {
			return 0, nil, err
		}
		q.Queries = append(q.Queries, iq)
	}
	return c.ShardOf(keyword), q, nil
}

func (c *KeywordClient) DummyQuery(rnd *rand.Rand) (int, *KeywordQuery, error) {
	q := &KeywordQuery{}
	for i := 0; i < c.param.HashFunctionCount; i++ {
		iq, err := c.index.DummyQuery(rnd)
		if err != nil {
			return 0, nil, err
		}
		q.Queries = append(q.Queries, iq)
	}
	return rnd.Intn(c.param.ShardCount), q, nil
}

// Decrypt scans the returned buckets for keyword. A keyword absent from all
// candidate buckets is reported as not found.
func (c *KeywordClient) Decrypt(keyword []byte, resp *KeywordResponse) ([]byte, bool, error) {
	if resp == nil || len(resp.Responses) != c.param.HashFunctionCount {
		return nil, false, fmt.Errorf("expected %d bucket responses", c.param.HashFunctionCount)
	}
	for i, r := range resp.Responses {
		bucket, err := c.index.Decrypt(r)
		if err != nil {
			return nil, false, err
		}
		value, found, err := findInBucket(bucket, keyword)
		if err != nil {
			return nil, false, fmt.Errorf("bucket response %d: %w", i, err)
		}
		if found {
			return value, true, nil
		}
	}
	return nil, false, nil
}
