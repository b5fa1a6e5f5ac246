// Package usecase builds immutable keyword PIR databases and keeps the
// recent versions of each published by name.
package usecase

import (
	"fmt"
	"strings"

	"keywordpir/he"
	"keywordpir/pir"
	"keywordpir/sympir"
)

type DuplicatesPolicy string

const (
	RejectDuplicates DuplicatesPolicy = "reject"
	KeepLast         DuplicatesPolicy = "keepLast"
)

// Config describes one usecase. The encryption, cuckoo and index sections
// must be identical on the client side.
type Config struct {
	Name         string            `json:"name"`
	ShardCount   int               `json:"shardCount"`
	VersionCount int               `json:"versionCount,omitempty"`
	Encryption   he.Config         `json:"encryptionParameters"`
	Cuckoo       pir.CuckooConfig  `json:"cuckooTableConfig"`
	Index        pir.IndexConfig   `json:"pirConfig"`
	Duplicates   DuplicatesPolicy  `json:"duplicates,omitempty"`
	SymmetricPir *sympir.Arguments `json:"symmetricPirArguments,omitempty"`
}

// WithDefaults fills unset fields. VersionCount defaults to one retained
// version.
func (c Config) WithDefaults() Config {
	if c.ShardCount == 0 {
		c.ShardCount = 1
	}
	if c.VersionCount == 0 {
		c.VersionCount = 1
	}
	if c.Duplicates == "" {
		c.Duplicates = RejectDuplicates
	}
	c.Encryption = c.Encryption.WithDefaults()
	c.Cuckoo = c.Cuckoo.WithDefaults()
	c.Index = c.Index.WithDefaults()
	return c
}

func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return &pir.ConfigError{Field: "name", Reason: "usecase name is empty"}
	case c.ShardCount < 1:
		return &pir.ConfigError{Field: "shardCount", Reason: fmt.Sprintf("%d, need at least one shard", c.ShardCount)}
	case c.VersionCount < 0:
		return &pir.ConfigError{Field: "versionCount", Reason: fmt.Sprintf("%d is negative", c.VersionCount)}
	case c.Duplicates != RejectDuplicates && c.Duplicates != KeepLast:
		return &pir.ConfigError{Field: "duplicates", Reason: fmt.Sprintf("unknown policy %q", c.Duplicates)}
	}
	return c.Cuckoo.Validate()
}

// ShardError attributes a build failure to one shard.
type ShardError struct {
	Shard int
	Err   error
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %d: %v", e.Shard, e.Err)
}

func (e *ShardError) Unwrap() error {
	return e.Err
}
