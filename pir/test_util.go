package pir

import (
	"fmt"
	"math/rand"

	"keywordpir/he"
)

func RandSource() *rand.Rand {
	return rand.New(rand.NewSource(17))
}

// TestEncryptionConfig is a small parameter set that keeps tests fast.
func TestEncryptionConfig() he.Config {
	return he.Config{
		Scheme:           he.BGV.String(),
		LogN:             12,
		LogQ:             []int{54, 54, 54},
		LogP:             []int{55},
		PlaintextModulus: 65537,
	}
}

// MakeDigitRows returns rows "0".."n-1" whose values equal their keywords.
func MakeDigitRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		k := []byte(fmt.Sprint(i))
		rows[i] = Row{Keyword: k, Value: k}
	}
	return rows
}

func MakeRows(src *rand.Rand, nRows, valueLen int) []Row {
	rows := make([]Row, nRows)
	for i := range rows {
		value := make([]byte, valueLen)
		src.Read(value)
		value[0] = byte(i % 256)
		rows[i] = Row{Keyword: []byte(fmt.Sprintf("keyword-%d", i)), Value: value}
	}
	return rows
}
