package pir

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"keywordpir/he"
)

// Shard serves keyword queries over one cuckoo table.
type Shard struct {
	ctx    he.Context
	index  int
	table  *CuckooTable
	server *IndexServer
}

// NewShard encodes the buckets of table.
func NewShard(ctx he.Context, index int, table *CuckooTable, cfg IndexConfig) (*Shard, error) {
	param, err := NewIndexParameter(ctx, table.BucketCount(), table.Config().MaxSerializedBucketSize, cfg)
	if err != nil {
		return nil, err
	}
	server, err := NewIndexServer(ctx, param, table.SerializedBuckets())
	if err != nil {
		return nil, err
	}
	return &Shard{ctx: ctx, index: index, table: table, server: server}, nil
}

func (s *Shard) Index() int {
	return s.index
}

func (s *Shard) Table() *CuckooTable {
	return s.table
}

func (s *Shard) IndexParameter() IndexParameter {
	return s.server.Parameter()
}

func (s *Shard) Process(q *KeywordQuery, evk rlwe.EvaluationKeySet) (*KeywordResponse, error) {
	if q == nil {
		return nil, queryErrorf("nil query")
	}
	if h := s.table.Config().HashFunctionCount; len(q.Queries) != h {
		return nil, queryErrorf("%d bucket queries, expected %d", len(q.Queries), h)
	}
	resp := &KeywordResponse{Responses: make([]*IndexResponse, len(q.Queries))}
	for i, iq := range q.Queries {
		r, err := s.server.Process(iq, evk)
		if err != nil {
			return nil, err
		}
		resp.Responses[i] = r
	}
	return resp, nil
}

// Lookup decodes the candidate buckets of keyword directly from the encoded
// plaintexts. It is not private and exists for diagnostics.
func (s *Shard) Lookup(keyword []byte) ([]byte, bool, error) {
	param := s.server.Parameter()
	for _, b := range CandidateBuckets(keyword, s.table.Config().HashFunctionCount, param.EntryCount) {
		data, err := s.ctx.DecodeBytes(s.server.Entry(b), param.EntrySize)
		if err != nil {
			return nil, false, err
		}
		value, found, err := findInBucket(data, keyword)
		if err != nil {
			return nil, false, fmt.Errorf("shard %d bucket %d: %w", s.index, b, err)
		}
		if found {
			return value, true, nil
		}
	}
	return nil, false, nil
}

// CheckShapes verifies that all shards of one usecase can be queried with
// the same client.
func CheckShapes(shards []*Shard) error {
	if len(shards) == 0 {
		return nil
	}
	first := shards[0]
	for _, s := range shards[1:] {
		if !s.IndexParameter().Equal(first.IndexParameter()) {
			return &InvariantError{fmt.Sprintf("shard %d has index parameter %s, shard %d has %s",
				s.index, s.IndexParameter(), first.index, first.IndexParameter())}
		}
		if s.table.Config().HashFunctionCount != first.table.Config().HashFunctionCount {
			return &InvariantError{fmt.Sprintf("shard %d uses %d hash functions, shard %d uses %d",
				s.index, s.table.Config().HashFunctionCount, first.index, first.table.Config().HashFunctionCount)}
		}
	}
	return nil
}
