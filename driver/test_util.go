package driver

import (
	"os"

	"github.com/ugorji/go/codec"

	"keywordpir/pir"
	"keywordpir/usecase"
)

// WriteServiceConfig writes cfg as indented JSON.
func WriteServiceConfig(path string, cfg *ServiceConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	h := new(codec.JsonHandle)
	h.Indent = 2
	if err := codec.NewEncoder(f, h).Encode(cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// TestUsecaseConfig is a small usecase over the test encryption parameters.
func TestUsecaseConfig(name string, shards int) usecase.Config {
	return usecase.Config{
		Name:       name,
		ShardCount: shards,
		Encryption: pir.TestEncryptionConfig(),
		Cuckoo: pir.CuckooConfig{
			HashFunctionCount:       2,
			MaxEvictionCount:        pir.MaxEvictions(100),
			MaxSerializedBucketSize: 128,
			BucketCount:             pir.AllowExpansion(1.1, 0.5),
		},
		Index: pir.DefaultIndexConfig(),
	}
}
