package sympir

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// ObfuscatedKeywordSize is the length of the keyword stored in the table.
	ObfuscatedKeywordSize = 32

	keywordInfo = "keyword-pir obfuscated keyword"
	valueInfo   = "keyword-pir value key"
)

// KeywordSecret is derived from the OPRF output of one keyword.
type KeywordSecret struct {
	keyword []byte
	aead    cipher.AEAD
}

func deriveSecret(info suiteInfo, oprfOutput []byte) (*KeywordSecret, error) {
	keyword := make([]byte, ObfuscatedKeywordSize)
	if _, err := io.ReadFull(hkdf.New(info.hash, oprfOutput, nil, []byte(keywordInfo)), keyword); err != nil {
		return nil, fmt.Errorf("deriving keyword: %w", err)
	}
	key := make([]byte, info.keyLen)
	if _, err := io.ReadFull(hkdf.New(info.hash, oprfOutput, nil, []byte(valueInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving value key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &KeywordSecret{keyword: keyword, aead: aead}, nil
}

// Keyword is the obfuscated keyword under which the row is indexed.
func (k *KeywordSecret) Keyword() []byte {
	return k.keyword
}

// Overhead is the number of bytes Encrypt adds to a value.
func (k *KeywordSecret) Overhead() int {
	return k.aead.NonceSize() + k.aead.Overhead()
}

// Encrypt returns nonce || ciphertext || tag.
func (k *KeywordSecret) Encrypt(value []byte) ([]byte, error) {
	out := make([]byte, k.aead.NonceSize(), k.aead.NonceSize()+len(value)+k.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("nonce generation failed: %w", err)
	}
	return k.aead.Seal(out, out, value, k.keyword), nil
}

func (k *KeywordSecret) Decrypt(sealed []byte) ([]byte, error) {
	if len(sealed) < k.Overhead() {
		return nil, fmt.Errorf("sealed value too short: %d bytes", len(sealed))
	}
	nonce, ct := sealed[:k.aead.NonceSize()], sealed[k.aead.NonceSize():]
	value, err := k.aead.Open(nil, nonce, ct, k.keyword)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (authentication error): %w", err)
	}
	return value, nil
}
