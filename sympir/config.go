// Package sympir pre-encrypts database values under keys derived from an
// OPRF over the keyword, so the PIR server hosts rows it cannot read.
package sympir

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"os"
	"strings"

	"github.com/cloudflare/circl/oprf"

	"keywordpir/pir"
)

type ConfigType string

const (
	OprfP384AesGcm192Nonce96Tag128 ConfigType = "OPRF_P384_AES_GCM_192_NONCE_96_TAG_128"
	OprfP256AesGcm128Nonce96Tag128 ConfigType = "OPRF_P256_AES_GCM_128_NONCE_96_TAG_128"

	DefaultConfigType = OprfP384AesGcm192Nonce96Tag128
)

type suiteInfo struct {
	suite  oprf.Suite
	hash   func() hash.Hash
	keyLen int
}

func (t ConfigType) info() (suiteInfo, error) {
	switch t {
	case OprfP384AesGcm192Nonce96Tag128, "":
		return suiteInfo{oprf.SuiteP384, sha512.New384, 24}, nil
	case OprfP256AesGcm128Nonce96Tag128:
		return suiteInfo{oprf.SuiteP256, sha256.New, 16}, nil
	}
	return suiteInfo{}, &pir.ConfigError{Field: "configType", Reason: "unknown symmetric PIR config type " + string(t)}
}

func (t ConfigType) OrDefault() ConfigType {
	if t == "" {
		return DefaultConfigType
	}
	return t
}

// Arguments are the symmetric PIR options of one usecase.
type Arguments struct {
	DatabaseEncryptionKeyFilePath string     `json:"databaseEncryptionKeyFilePath"`
	ConfigType                    ConfigType `json:"configType,omitempty"`
}

// Config carries a loaded OPRF secret key.
type Config struct {
	Type ConfigType
	Key  *oprf.PrivateKey
}

// LoadConfig reads the hex-encoded secret key referenced by args.
func LoadConfig(args Arguments) (*Config, error) {
	const field = "databaseEncryptionKeyFilePath"
	if args.DatabaseEncryptionKeyFilePath == "" {
		return nil, &pir.ConfigError{Field: field, Reason: "missing key file path"}
	}
	data, err := os.ReadFile(args.DatabaseEncryptionKeyFilePath)
	if err != nil {
		return nil, &pir.ConfigError{Field: field, Reason: err.Error()}
	}
	cfg, err := ParseKey(args.ConfigType, string(data))
	if err != nil {
		var cfgErr *pir.ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Field == "key" {
			cfgErr.Field = field
			cfgErr.Reason = args.DatabaseEncryptionKeyFilePath + ": " + cfgErr.Reason
		}
		return nil, err
	}
	return cfg, nil
}

// ParseKey decodes a hex-encoded OPRF secret key.
func ParseKey(t ConfigType, hexKey string) (*Config, error) {
	info, err := t.info()
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, &pir.ConfigError{Field: "key", Reason: "invalid hex: " + err.Error()}
	}
	if want := int(info.suite.Group().Params().ScalarLength); len(raw) != want {
		return nil, &pir.ConfigError{Field: "key", Reason: fmt.Sprintf("invalid secret key: %d bytes, expected %d", len(raw), want)}
	}
	scalar := info.suite.Group().NewScalar()
	if err := scalar.UnmarshalBinary(raw); err != nil {
		return nil, &pir.ConfigError{Field: "key", Reason: "invalid secret key: " + err.Error()}
	}
	if scalar.IsZero() {
		return nil, &pir.ConfigError{Field: "key", Reason: "invalid secret key: zero scalar"}
	}
	key := new(oprf.PrivateKey)
	if err := key.UnmarshalBinary(info.suite, raw); err != nil {
		return nil, &pir.ConfigError{Field: "key", Reason: "invalid secret key: " + err.Error()}
	}
	return &Config{Type: t.OrDefault(), Key: key}, nil
}

// GenerateKey returns a fresh hex-encoded secret key for t.
func GenerateKey(t ConfigType) (string, error) {
	info, err := t.info()
	if err != nil {
		return "", err
	}
	key, err := oprf.GenerateKey(info.suite, rand.Reader)
	if err != nil {
		return "", err
	}
	raw, err := key.MarshalBinary()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
