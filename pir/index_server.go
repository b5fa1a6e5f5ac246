package pir

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"keywordpir/he"
)

// IndexServer holds an encoded entry array. It is immutable after
// construction and Process may be called concurrently.
type IndexServer struct {
	ctx     he.Context
	param   IndexParameter
	entries []*rlwe.Plaintext
	masks   []*rlwe.Plaintext
	galEls  []uint64
}

// NewIndexServer encodes every entry into one plaintext. Entries shorter
// than the entry size are zero padded.
func NewIndexServer(ctx he.Context, param IndexParameter, entries [][]byte) (*IndexServer, error) {
	if len(entries) != param.EntryCount {
		return nil, &InvariantError{fmt.Sprintf("%d entries for a parameter of %d", len(entries), param.EntryCount)}
	}
	s := &IndexServer{
		ctx:     ctx,
		param:   param,
		entries: make([]*rlwe.Plaintext, len(entries)),
		galEls:  GaloisElements(ctx, param),
	}
	for i, e := range entries {
		if len(e) > param.EntrySize {
			return nil, &InvariantError{fmt.Sprintf("entry %d has %d bytes, entry size is %d", i, len(e), param.EntrySize)}
		}
		pt, err := ctx.EncodeBytes(e, ctx.MaxLevel())
		if err != nil {
			return nil, fmt.Errorf("encoding entry %d: %w", i, err)
		}
		s.entries[i] = pt
	}

	maxDim := 0
	for _, d := range param.Dimensions {
		if d > maxDim {
			maxDim = d
		}
	}
	s.masks = make([]*rlwe.Plaintext, maxDim)
	for j := range s.masks {
		values := make([]uint64, ctx.SlotCount())
		values[j] = 1
		pt, err := ctx.Encode(values, ctx.MaxLevel())
		if err != nil {
			return nil, err
		}
		s.masks[j] = pt
	}
	return s, nil
}

func (s *IndexServer) Parameter() IndexParameter {
	return s.param
}

// Entry returns the encoded plaintext of entry i.
func (s *IndexServer) Entry(i int) *rlwe.Plaintext {
	return s.entries[i]
}

func (s *IndexServer) validate(q *IndexQuery, evk rlwe.EvaluationKeySet) error {
	if q == nil {
		return queryErrorf("nil query")
	}
	if len(q.Selectors) != len(s.param.Dimensions) {
		return queryErrorf("%d selectors, expected %d", len(q.Selectors), len(s.param.Dimensions))
	}
	for i, ct := range q.Selectors {
		switch {
		case ct == nil:
			return queryErrorf("selector %d is missing", i)
		case ct.Degree() != 1:
			return queryErrorf("selector %d has degree %d", i, ct.Degree())
		case ct.Level() != s.ctx.MaxLevel():
			return queryErrorf("selector %d at level %d, expected %d", i, ct.Level(), s.ctx.MaxLevel())
		case ct.Value[0].N() != 1<<s.ctx.LogN():
			return queryErrorf("selector %d has ring degree %d, expected %d", i, ct.Value[0].N(), 1<<s.ctx.LogN())
		}
	}
	if evk == nil {
		return queryErrorf("missing evaluation key")
	}
	params := s.ctx.Parameters()
	for _, el := range s.galEls {
		gk, err := evk.GetGaloisKey(el)
		if err != nil || gk == nil {
			return queryErrorf("missing rotation key for galois element %d", el)
		}
		if err := checkGadget(params, &gk.GadgetCiphertext); err != nil {
			return queryErrorf("rotation key for galois element %d: %v", el, err)
		}
	}
	if len(s.param.Dimensions) > 1 {
		rlk, err := evk.GetRelinearizationKey()
		if err != nil || rlk == nil {
			return queryErrorf("missing relinearization key")
		}
		if err := checkGadget(params, &rlk.GadgetCiphertext); err != nil {
			return queryErrorf("relinearization key: %v", err)
		}
	}
	return nil
}

// checkGadget rejects key-switching keys generated under other parameters.
func checkGadget(params rlwe.Parameters, gc *rlwe.GadgetCiphertext) error {
	if len(gc.Value) == 0 || len(gc.Value[0]) == 0 {
		return fmt.Errorf("empty key")
	}
	if gc.LevelQ() != params.MaxLevelQ() || gc.LevelP() != params.MaxLevelP() {
		return fmt.Errorf("levels (%d, %d), expected (%d, %d)",
			gc.LevelQ(), gc.LevelP(), params.MaxLevelQ(), params.MaxLevelP())
	}
	for i := range gc.Value {
		for j := range gc.Value[i] {
			for k := range gc.Value[i][j] {
				if n := gc.Value[i][j][k].Q.N(); n != params.N() {
					return fmt.Errorf("ring degree %d, expected %d", n, params.N())
				}
			}
		}
	}
	return nil
}

// Process selects the queried entry homomorphically.
func (s *IndexServer) Process(q *IndexQuery, evk rlwe.EvaluationKeySet) (*IndexResponse, error) {
	if err := s.validate(q, evk); err != nil {
		return nil, err
	}
	eval := s.ctx.NewEvaluator(evk)

	dims := s.param.Dimensions
	rest := s.param.capacity() / dims[0]
	indicators, err := s.expand(eval, q.Selectors[0], dims[0])
	if err != nil {
		return nil, err
	}
	acc := make([]*rlwe.Ciphertext, rest)
	for r := range acc {
		for j, ind := range indicators {
			idx := j*rest + r
			if idx >= len(s.entries) {
				break
			}
			prod, err := eval.MulPlain(ind, s.entries[idx])
			if err != nil {
				return nil, err
			}
			if acc[r], err = accumulate(eval, acc[r], prod); err != nil {
				return nil, err
			}
		}
	}

	for i := 1; i < len(dims); i++ {
		if indicators, err = s.expand(eval, q.Selectors[i], dims[i]); err != nil {
			return nil, err
		}
		rest /= dims[i]
		next := make([]*rlwe.Ciphertext, rest)
		for r := range next {
			for j, ind := range indicators {
				a := acc[j*rest+r]
				if a == nil {
					continue
				}
				prod, err := eval.MulRelin(ind, a)
				if err != nil {
					return nil, err
				}
				if next[r], err = accumulate(eval, next[r], prod); err != nil {
					return nil, err
				}
			}
			if next[r] == nil {
				continue
			}
			if err := eval.FinishMultiplication(next[r]); err != nil {
				return nil, err
			}
		}
		acc = next
	}
	if acc[0] == nil {
		return nil, &InvariantError{"empty fold result"}
	}
	return &IndexResponse{Ciphertext: acc[0]}, nil
}

func accumulate(eval he.Evaluator, sum, ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	if sum == nil {
		return ct, nil
	}
	return sum, eval.Add(sum, ct, sum)
}

// expand turns a one-hot selector into d ciphertexts, the j-th encrypting
// the selector's value at slot j in every slot.
func (s *IndexServer) expand(eval he.Evaluator, selector *rlwe.Ciphertext, d int) ([]*rlwe.Ciphertext, error) {
	out := make([]*rlwe.Ciphertext, d)
	for j := range out {
		ct, err := eval.MulPlain(selector, s.masks[j])
		if err != nil {
			return nil, err
		}
		if out[j], err = s.replicate(eval, ct); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *IndexServer) replicate(eval he.Evaluator, ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	logCols := log2Ceil(s.ctx.SlotCount() / 2)
	for k := 0; k < logCols; k++ {
		rotated, err := s.rotatePow2(eval, ct, k)
		if err != nil {
			return nil, err
		}
		if err := eval.Add(ct, rotated, ct); err != nil {
			return nil, err
		}
	}
	rotated, err := eval.RotateRows(ct)
	if err != nil {
		return nil, err
	}
	return ct, eval.Add(ct, rotated, ct)
}

// rotatePow2 rotates columns by 2^k using only the compressed key set.
func (s *IndexServer) rotatePow2(eval he.Evaluator, ct *rlwe.Ciphertext, k int) (*rlwe.Ciphertext, error) {
	stride := s.param.KeyCompression.stride()
	step := 1 << (stride * (k / stride))
	out := ct
	for t := 0; t < 1<<(k%stride); t++ {
		var err error
		if out, err = eval.RotateColumns(out, step); err != nil {
			return nil, err
		}
	}
	return out, nil
}
