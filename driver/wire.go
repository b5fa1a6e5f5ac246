package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"keywordpir/pir"
)

func EncodeEvaluationKey(key *pir.EvaluationKey) (*EvaluationKeyWire, error) {
	w := &EvaluationKeyWire{Galois: make([][]byte, len(key.Galois))}
	var err error
	if key.Relinearization != nil {
		if w.Relinearization, err = key.Relinearization.MarshalBinary(); err != nil {
			return nil, fmt.Errorf("relinearization key: %w", err)
		}
	}
	for i, gk := range key.Galois {
		if w.Galois[i], err = gk.MarshalBinary(); err != nil {
			return nil, fmt.Errorf("galois key %d: %w", i, err)
		}
	}
	return w, nil
}

// ID is the hex SHA-256 of the serialized key material.
func (w *EvaluationKeyWire) ID() string {
	h := sha256.New()
	h.Write(w.Relinearization)
	for _, g := range w.Galois {
		h.Write(g)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (w *EvaluationKeyWire) Decode() (*pir.EvaluationKey, error) {
	key := &pir.EvaluationKey{Galois: make([]*rlwe.GaloisKey, len(w.Galois))}
	if len(w.Relinearization) > 0 {
		key.Relinearization = new(rlwe.RelinearizationKey)
		if err := key.Relinearization.UnmarshalBinary(w.Relinearization); err != nil {
			return nil, fmt.Errorf("relinearization key: %w", err)
		}
	}
	for i, data := range w.Galois {
		key.Galois[i] = new(rlwe.GaloisKey)
		if err := key.Galois[i].UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("galois key %d: %w", i, err)
		}
	}
	return key, nil
}

func marshalCiphertext(ct *rlwe.Ciphertext) ([]byte, error) {
	if ct == nil {
		return nil, fmt.Errorf("nil ciphertext")
	}
	return ct.MarshalBinary()
}

func unmarshalCiphertext(params rlwe.Parameters, data []byte) (*rlwe.Ciphertext, error) {
	ct := rlwe.NewCiphertext(params, 1, params.MaxLevel())
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return ct, nil
}

func EncodeKeywordQuery(q *pir.KeywordQuery) ([][][]byte, error) {
	out := make([][][]byte, len(q.Queries))
	for i, iq := range q.Queries {
		out[i] = make([][]byte, len(iq.Selectors))
		for d, sel := range iq.Selectors {
			var err error
			if out[i][d], err = marshalCiphertext(sel); err != nil {
				return nil, fmt.Errorf("query %d selector %d: %w", i, d, err)
			}
		}
	}
	return out, nil
}

// DecodeKeywordQuery fails with a pir.QueryError on undecodable selectors.
func DecodeKeywordQuery(params rlwe.Parameters, data [][][]byte) (*pir.KeywordQuery, error) {
	q := &pir.KeywordQuery{Queries: make([]*pir.IndexQuery, len(data))}
	for i, sels := range data {
		iq := &pir.IndexQuery{Selectors: make([]*rlwe.Ciphertext, len(sels))}
		for d, sel := range sels {
			ct, err := unmarshalCiphertext(params, sel)
			if err != nil {
				return nil, &pir.QueryError{Reason: fmt.Sprintf("query %d selector %d: %v", i, d, err)}
			}
			iq.Selectors[d] = ct
		}
		q.Queries[i] = iq
	}
	return q, nil
}

func EncodeKeywordResponse(resp *pir.KeywordResponse) ([][]byte, error) {
	out := make([][]byte, len(resp.Responses))
	for i, r := range resp.Responses {
		var err error
		if out[i], err = marshalCiphertext(r.Ciphertext); err != nil {
			return nil, fmt.Errorf("response %d: %w", i, err)
		}
	}
	return out, nil
}

func DecodeKeywordResponse(params rlwe.Parameters, data [][]byte) (*pir.KeywordResponse, error) {
	resp := &pir.KeywordResponse{Responses: make([]*pir.IndexResponse, len(data))}
	for i, d := range data {
		ct, err := unmarshalCiphertext(params, d)
		if err != nil {
			return nil, fmt.Errorf("response %d: %w", i, err)
		}
		resp.Responses[i] = &pir.IndexResponse{Ciphertext: ct}
	}
	return resp, nil
}
