package driver

import (
	"time"

	"keywordpir/he"
	"keywordpir/pir"
	"keywordpir/sympir"
)

// UsecaseInfo describes the latest published version of a usecase.
type UsecaseInfo struct {
	Name     string
	Version  int
	Versions []int
	Rows     int
	Shards   int
	BuiltAt  time.Time
}

type UsecaseList struct {
	Usecases []UsecaseInfo
}

type ConfigReq struct {
	Usecase string
	// Version 0 selects the latest version.
	Version int
}

// ConfigResp is everything a client needs to build queries for one version.
type ConfigResp struct {
	Usecase    string
	Version    int
	Encryption he.Config
	Keyword    pir.KeywordParameter
	Index      pir.IndexParameter
	// SymmetricPir is empty for usecases without symmetric PIR.
	SymmetricPir sympir.ConfigType
}

// EvaluationKeyWire is a serialized pir.EvaluationKey.
type EvaluationKeyWire struct {
	Relinearization []byte
	Galois          [][]byte
}

type AnswerReq struct {
	Usecase string
	Version int
	Shard   int
	// KeyID names an evaluation key the server has cached. EvaluationKey may
	// be omitted once the server has seen the key.
	KeyID         string
	EvaluationKey *EvaluationKeyWire
	// Queries[i][d] is the serialized selector of dimension d for the i-th
	// candidate bucket.
	Queries [][][]byte
}

type AnswerResp struct {
	Version   int
	Responses [][]byte
}

type OprfReq struct {
	Usecase  string
	Version  int
	Elements [][]byte
}

type OprfResp struct {
	Elements [][]byte
}

type StatsResp struct {
	Usecases         int
	Queries          int64
	QueriesPerSecond int64
	CachedKeys       int
	RequestBytes     int64
	ResponseBytes    int64
}
