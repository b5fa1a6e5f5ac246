package pir

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

// Server answers keyword queries for the shards of one usecase.
type Server interface {
	Process(shard int, q *KeywordQuery, evk rlwe.EvaluationKeySet) (*KeywordResponse, error)
}

// KeywordReader performs a whole private lookup against a Server.
type KeywordReader interface {
	Read(keyword []byte) ([]byte, bool, error)
}

type keywordReader struct {
	client *KeywordClient
	server Server
	keys   rlwe.EvaluationKeySet
}

func NewKeywordReader(client *KeywordClient, server Server) KeywordReader {
	return &keywordReader{client: client, server: server, keys: client.EvaluationKey().KeySet()}
}

func (r *keywordReader) Read(keyword []byte) ([]byte, bool, error) {
	shard, q, err := r.client.Query(keyword)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query %q: %w", keyword, err)
	}
	resp, err := r.server.Process(shard, q, r.keys)
	if err != nil {
		return nil, false, err
	}
	return r.client.Decrypt(keyword, resp)
}

// ShardServer adapts a list of shards to Server.
type ShardServer []*Shard

func (s ShardServer) Process(shard int, q *KeywordQuery, evk rlwe.EvaluationKeySet) (*KeywordResponse, error) {
	if shard < 0 || shard >= len(s) {
		return nil, queryErrorf("shard %d out of range [0, %d)", shard, len(s))
	}
	return s[shard].Process(q, evk)
}
