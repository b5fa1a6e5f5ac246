package pir

import (
	"fmt"
	"math/rand"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"keywordpir/he"
)

// IndexQuery holds one encrypted one-hot selector per dimension.
type IndexQuery struct {
	Selectors []*rlwe.Ciphertext
}

// IndexResponse holds the encrypted selected entry.
type IndexResponse struct {
	Ciphertext *rlwe.Ciphertext
}

// EvaluationKey is the key material a client sends once per parameter set.
type EvaluationKey struct {
	Relinearization *rlwe.RelinearizationKey
	Galois          []*rlwe.GaloisKey
}

// KeySet wraps the key material for an evaluator.
func (k *EvaluationKey) KeySet() rlwe.EvaluationKeySet {
	return rlwe.NewMemEvaluationKeySet(k.Relinearization, k.Galois...)
}

type IndexClient struct {
	ctx   he.Context
	param IndexParameter
	sk    *rlwe.SecretKey
	enc   *rlwe.Encryptor
	dec   *rlwe.Decryptor
}

func NewIndexClient(ctx he.Context, param IndexParameter, sk *rlwe.SecretKey) *IndexClient {
	return &IndexClient{
		ctx:   ctx,
		param: param,
		sk:    sk,
		enc:   ctx.NewEncryptor(sk),
		dec:   ctx.NewDecryptor(sk),
	}
}

func (c *IndexClient) Parameter() IndexParameter {
	return c.param
}

// EvaluationKey generates the relinearization and rotation keys the server
// needs to answer queries from this client.
func (c *IndexClient) EvaluationKey() *EvaluationKey {
	kgen := c.ctx.NewKeyGenerator()
	key := &EvaluationKey{
		Galois: kgen.GenGaloisKeysNew(GaloisElements(c.ctx, c.param), c.sk),
	}
	if len(c.param.Dimensions) > 1 {
		key.Relinearization = kgen.GenRelinearizationKeyNew(c.sk)
	}
	return key
}

func (c *IndexClient) Query(index int) (*IndexQuery, error) {
	if index < 0 || index >= c.param.EntryCount {
		return nil, fmt.Errorf("index %d out of range [0, %d)", index, c.param.EntryCount)
	}
	q := &IndexQuery{}
	for i, coord := range c.param.coordinates(index) {
		values := make([]uint64, c.ctx.SlotCount())
		values[coord] = 1
		pt, err := c.ctx.Encode(values, c.ctx.MaxLevel())
		if err != nil {
			return nil, err
		}
		ct, err := c.enc.EncryptNew(pt)
		if err != nil {
			return nil, fmt.Errorf("encrypting selector %d: %w", i, err)
		}
		q.Selectors = append(q.Selectors, ct)
	}
	return q, nil
}

// DummyQuery selects a uniformly random entry. It is indistinguishable from
// a real query to the server.
func (c *IndexClient) DummyQuery(rnd *rand.Rand) (*IndexQuery, error) {
	return c.Query(rnd.Intn(c.param.EntryCount))
}

func (c *IndexClient) Decrypt(resp *IndexResponse) ([]byte, error) {
	if resp == nil || resp.Ciphertext == nil {
		return nil, fmt.Errorf("empty index response")
	}
	return c.ctx.DecodeBytes(c.dec.DecryptNew(resp.Ciphertext), c.param.EntrySize)
}
