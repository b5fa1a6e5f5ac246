package he

import (
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"
)

// Evaluator is the set of homomorphic operations used by the index-selection
// protocol. An Evaluator holds scratch buffers and must not be shared between
// goroutines.
type Evaluator interface {
	MulPlain(ct *rlwe.Ciphertext, pt *rlwe.Plaintext) (*rlwe.Ciphertext, error)
	MulRelin(ct0, ct1 *rlwe.Ciphertext) (*rlwe.Ciphertext, error)
	Add(ct0, ct1, out *rlwe.Ciphertext) error
	RotateColumns(ct *rlwe.Ciphertext, k int) (*rlwe.Ciphertext, error)
	RotateRows(ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error)
	// FinishMultiplication is called once on the sum of the products of a
	// ciphertext-ciphertext fold.
	FinishMultiplication(ct *rlwe.Ciphertext) error
}

type bgvEvaluator struct {
	*bgv.Evaluator
}

func (e bgvEvaluator) MulPlain(ct *rlwe.Ciphertext, pt *rlwe.Plaintext) (*rlwe.Ciphertext, error) {
	return e.MulNew(ct, pt)
}

func (e bgvEvaluator) MulRelin(ct0, ct1 *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	return e.MulRelinNew(ct0, ct1)
}

func (e bgvEvaluator) Add(ct0, ct1, out *rlwe.Ciphertext) error {
	return e.Evaluator.Add(ct0, ct1, out)
}

func (e bgvEvaluator) RotateColumns(ct *rlwe.Ciphertext, k int) (*rlwe.Ciphertext, error) {
	return e.RotateColumnsNew(ct, k)
}

func (e bgvEvaluator) RotateRows(ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	return e.RotateRowsNew(ct)
}

// BGV is not scale invariant: every ciphertext product consumes a level.
func (e bgvEvaluator) FinishMultiplication(ct *rlwe.Ciphertext) error {
	return e.Rescale(ct, ct)
}

// bfvEvaluator wraps a scale-invariant BGV evaluator.
type bfvEvaluator struct {
	*bgv.Evaluator
}

func (e bfvEvaluator) MulPlain(ct *rlwe.Ciphertext, pt *rlwe.Plaintext) (*rlwe.Ciphertext, error) {
	return e.MulNew(ct, pt)
}

func (e bfvEvaluator) MulRelin(ct0, ct1 *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	return e.MulRelinNew(ct0, ct1)
}

func (e bfvEvaluator) Add(ct0, ct1, out *rlwe.Ciphertext) error {
	return e.Evaluator.Add(ct0, ct1, out)
}

func (e bfvEvaluator) RotateColumns(ct *rlwe.Ciphertext, k int) (*rlwe.Ciphertext, error) {
	return e.RotateColumnsNew(ct, k)
}

func (e bfvEvaluator) RotateRows(ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	return e.RotateRowsNew(ct)
}

func (e bfvEvaluator) FinishMultiplication(ct *rlwe.Ciphertext) error {
	return nil
}
