package pir

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"

	"github.com/sirupsen/logrus"
)

type cryptoSource struct{}

func (s cryptoSource) Int63() int64 {
	var mask uint64 = 0x7fffffffffffffff
	return int64(s.Uint64() & mask)
}

func (cryptoSource) Uint64() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		logrus.WithError(err).Fatal("rand.Read failed")
	}

	return binary.LittleEndian.Uint64(buf[:])
}

func (cryptoSource) Seed(int64) {
	logrus.Panic("cryptoSource cannot be seeded")
}

// CryptoRand returns a math/rand generator backed by crypto/rand, used to
// pick the targets of dummy queries.
func CryptoRand() *mrand.Rand {
	return mrand.New(cryptoSource{})
}
