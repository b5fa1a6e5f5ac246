package pir

import (
	"errors"
	"fmt"
	"math"

	"keywordpir/he"
)

// ErrNoiseBudget is wrapped by errors for shapes whose estimated noise
// exceeds the ciphertext modulus.
var ErrNoiseBudget = errors.New("noise budget exceeded")

// checkNoiseBudget walks the evaluation of one query with a worst-case
// estimate of the noise, in bits, and fails if decryption could be wrong.
func checkNoiseBudget(ctx he.Context, p IndexParameter) error {
	dims := p.Dimensions
	if ctx.Scheme() == he.BGV && len(dims)-1 > ctx.MaxLevel() {
		return fmt.Errorf("%w: %d dimensions need %d levels, parameters have %d",
			ErrNoiseBudget, len(dims), len(dims)-1, ctx.MaxLevel())
	}

	logT := float64(ctx.LogPlaintextModulus())
	plainMul := logT + float64(ctx.LogN())/2
	fresh := plainMul + 4
	indicator := fresh + plainMul + 0.5*math.Log2(float64(ctx.SlotCount())) + 1

	level := ctx.MaxLevel()
	noise := indicator + plainMul + math.Log2(float64(dims[0]))
	if err := checkLevel(ctx, noise, level, 0); err != nil {
		return err
	}
	for i := 1; i < len(dims); i++ {
		noise += indicator + math.Log2(float64(dims[i])) + 1
		if err := checkLevel(ctx, noise, level, i); err != nil {
			return err
		}
		if ctx.Scheme() == he.BGV {
			noise = math.Max(noise-float64(ctx.LogQLevel(level)), plainMul+3)
			level--
		}
	}
	return nil
}

func checkLevel(ctx he.Context, noise float64, level, dim int) error {
	if budget := float64(ctx.LogQ(level)) - 1; noise >= budget {
		return fmt.Errorf("%w: dimension %d needs %.1f bits, %.0f available at level %d",
			ErrNoiseBudget, dim, noise, budget, level)
	}
	return nil
}
