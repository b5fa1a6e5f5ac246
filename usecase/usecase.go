package usecase

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"keywordpir/he"
	"keywordpir/pir"
	"keywordpir/sympir"
)

// Usecase is one built database. It is never modified after Build returns
// and may serve any number of concurrent queries.
type Usecase struct {
	config   Config
	ctx      he.Context
	shards   []*pir.Shard
	keyword  pir.KeywordParameter
	sym      *sympir.Server
	rowCount int
	builtAt  time.Time
}

// Build constructs a usecase from rows. Configuration problems are reported
// before any table is built; per-shard failures are joined ShardErrors.
func Build(cfg Config, rows []pir.Row) (*Usecase, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logrus.WithField("usecase", cfg.Name)
	start := time.Now()

	ctx, err := he.NewContext(cfg.Encryption)
	if err != nil {
		return nil, &pir.ConfigError{Field: "encryptionParameters", Reason: err.Error()}
	}
	var sym *sympir.Server
	if cfg.SymmetricPir != nil {
		symCfg, err := sympir.LoadConfig(*cfg.SymmetricPir)
		if err != nil {
			return nil, err
		}
		if sym, err = sympir.NewServer(symCfg); err != nil {
			return nil, err
		}
	}

	rows, err = applyDuplicates(rows, cfg.Duplicates)
	if err != nil {
		return nil, err
	}
	if sym != nil {
		if rows, err = sym.PreprocessRows(rows); err != nil {
			return nil, fmt.Errorf("symmetric pre-encryption: %w", err)
		}
	}

	parts := pir.ShardRows(rows, cfg.ShardCount)
	tables, err := buildTables(log, parts, cfg.Cuckoo, nil)
	if err != nil {
		return nil, err
	}

	// Every shard must expose the same shape, so smaller tables are rebuilt
	// with the largest bucket count.
	maxBuckets := 0
	for _, t := range tables {
		if t.BucketCount() > maxBuckets {
			maxBuckets = t.BucketCount()
		}
	}
	fixed := cfg.Cuckoo
	fixed.BucketCount = pir.FixedBucketCount(maxBuckets)
	tables, err = buildTables(log, parts, fixed, tables)
	if err != nil {
		return nil, err
	}

	shards := make([]*pir.Shard, cfg.ShardCount)
	errs := make([]error, cfg.ShardCount)
	var wg sync.WaitGroup
	for i := range shards {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			shard, err := pir.NewShard(ctx, i, tables[i], cfg.Index)
			if err != nil {
				errs[i] = &ShardError{Shard: i, Err: err}
				log.WithField("shard", i).WithError(err).Error("Failed to encode shard")
				return
			}
			shards[i] = shard
		}(i)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if err := pir.CheckShapes(shards); err != nil {
		log.WithError(err).Error("Shards disagree on shape")
		return nil, err
	}

	u := &Usecase{
		config: cfg,
		ctx:    ctx,
		shards: shards,
		keyword: pir.KeywordParameter{
			ShardCount:        cfg.ShardCount,
			HashFunctionCount: cfg.Cuckoo.HashFunctionCount,
			BucketCount:       maxBuckets,
		},
		sym:      sym,
		rowCount: len(rows),
		builtAt:  time.Now(),
	}
	log.WithFields(logrus.Fields{
		"rows":    len(rows),
		"shards":  cfg.ShardCount,
		"buckets": maxBuckets,
		"dims":    u.IndexParameter().Dimensions,
		"elapsed": time.Since(start),
	}).Info("Built usecase")
	return u, nil
}

// buildTables builds one cuckoo table per shard in parallel. Tables in prev
// that already have the fixed bucket count of cfg are kept.
func buildTables(log *logrus.Entry, parts [][]pir.Row, cfg pir.CuckooConfig, prev []*pir.CuckooTable) ([]*pir.CuckooTable, error) {
	tables := make([]*pir.CuckooTable, len(parts))
	errs := make([]error, len(parts))
	var wg sync.WaitGroup
	for i := range parts {
		if prev != nil && prev[i].BucketCount() == cfg.BucketCount.Fixed {
			tables[i] = prev[i]
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			t, err := pir.BuildCuckooTable(parts[i], cfg)
			if err != nil {
				errs[i] = &ShardError{Shard: i, Err: err}
				log.WithField("shard", i).WithError(err).Error("Failed to build cuckoo table")
				return
			}
			tables[i] = t
		}(i)
	}
	wg.Wait()
	return tables, errors.Join(errs...)
}

func applyDuplicates(rows []pir.Row, policy DuplicatesPolicy) ([]pir.Row, error) {
	seen := make(map[string]int, len(rows))
	out := make([]pir.Row, 0, len(rows))
	for _, r := range rows {
		if i, ok := seen[string(r.Keyword)]; ok {
			if policy == RejectDuplicates {
				return nil, &pir.ConfigError{Field: "rows", Reason: fmt.Sprintf("duplicate keyword %q", r.Keyword)}
			}
			out[i] = r
			continue
		}
		seen[string(r.Keyword)] = len(out)
		out = append(out, r)
	}
	return out, nil
}

func (u *Usecase) Name() string                           { return u.config.Name }
func (u *Usecase) Config() Config                         { return u.config }
func (u *Usecase) Context() he.Context                    { return u.ctx }
func (u *Usecase) Shards() []*pir.Shard                   { return u.shards }
func (u *Usecase) KeywordParameter() pir.KeywordParameter { return u.keyword }
func (u *Usecase) RowCount() int                          { return u.rowCount }
func (u *Usecase) BuiltAt() time.Time                     { return u.builtAt }

// SymmetricPir returns the OPRF server, or nil for plain usecases.
func (u *Usecase) SymmetricPir() *sympir.Server { return u.sym }

func (u *Usecase) IndexParameter() pir.IndexParameter {
	return u.shards[0].IndexParameter()
}

// Process answers a query for one shard.
func (u *Usecase) Process(shard int, q *pir.KeywordQuery, evk rlwe.EvaluationKeySet) (*pir.KeywordResponse, error) {
	return pir.ShardServer(u.shards).Process(shard, q, evk)
}

// Lookup reads a keyword without PIR, decrypting symmetric PIR values with
// the server secret. It is meant for diagnostics.
func (u *Usecase) Lookup(keyword []byte) ([]byte, bool, error) {
	var secret *sympir.KeywordSecret
	if u.sym != nil {
		var err error
		if secret, err = u.sym.Derive(keyword); err != nil {
			return nil, false, err
		}
		keyword = secret.Keyword()
	}
	value, found, err := u.shards[pir.ShardOf(keyword, len(u.shards))].Lookup(keyword)
	if err != nil || !found || secret == nil {
		return value, found, err
	}
	value, err = secret.Decrypt(value)
	return value, err == nil, err
}
