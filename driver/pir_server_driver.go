package driver

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudflare/circl/oprf"
	"github.com/paulbellamy/ratecounter"
	"github.com/sirupsen/logrus"

	"keywordpir/pir"
	"keywordpir/rpc"
	"keywordpir/sympir"
	"keywordpir/usecase"
)

// PirServerDriver is the RPC surface of a keyword PIR server.
type PirServerDriver interface {
	Usecases(none int, resp *UsecaseList) error
	Config(req ConfigReq, resp *ConfigResp) error
	Answer(req AnswerReq, resp *AnswerResp) error
	Oprf(req OprfReq, resp *OprfResp) error
	Stats(none int, resp *StatsResp) error
}

const (
	DefaultKeyCacheSize = 64

	// errUnknownKey is matched by clients across the RPC boundary.
	errUnknownKey = "unknown evaluation key"
)

type serverDriver struct {
	store *usecase.Store
	keys  *keyCache

	measureBandwidth bool
	queries          int64
	requestBytes     int64
	responseBytes    int64
	counter          *ratecounter.RateCounter
}

// NewServerDriver serves the usecases published in store.
func NewServerDriver(store *usecase.Store, keyCacheSize int, measureBandwidth bool) *serverDriver {
	if keyCacheSize <= 0 {
		keyCacheSize = DefaultKeyCacheSize
	}
	return &serverDriver{
		store:            store,
		keys:             newKeyCache(keyCacheSize),
		measureBandwidth: measureBandwidth,
		counter:          ratecounter.NewRateCounter(1 * time.Second),
	}
}

func (d *serverDriver) Store() *usecase.Store {
	return d.store
}

func (d *serverDriver) resolve(name string, version int) (*usecase.Usecase, int, error) {
	if version == 0 {
		v, ok := d.store.Get(name)
		if !ok {
			return nil, 0, fmt.Errorf("unknown usecase %q", name)
		}
		return v.Usecase, v.Number, nil
	}
	u, ok := d.store.GetVersion(name, version)
	if !ok {
		return nil, 0, fmt.Errorf("usecase %q has no version %d, retained: %v", name, version, d.store.Versions(name))
	}
	return u, version, nil
}

func (d *serverDriver) Usecases(none int, resp *UsecaseList) error {
	resp.Usecases = nil
	for _, name := range d.store.Names() {
		v, ok := d.store.Get(name)
		if !ok {
			continue
		}
		resp.Usecases = append(resp.Usecases, UsecaseInfo{
			Name:     name,
			Version:  v.Number,
			Versions: d.store.Versions(name),
			Rows:     v.Usecase.RowCount(),
			Shards:   len(v.Usecase.Shards()),
			BuiltAt:  v.Usecase.BuiltAt(),
		})
	}
	return nil
}

func (d *serverDriver) Config(req ConfigReq, resp *ConfigResp) error {
	u, version, err := d.resolve(req.Usecase, req.Version)
	if err != nil {
		return err
	}
	*resp = ConfigResp{
		Usecase:    req.Usecase,
		Version:    version,
		Encryption: u.Context().Config(),
		Keyword:    u.KeywordParameter(),
		Index:      u.IndexParameter(),
	}
	if sym := u.SymmetricPir(); sym != nil {
		resp.SymmetricPir = sym.ConfigType()
	}
	return nil
}

func (d *serverDriver) evaluationKey(req *AnswerReq) (string, error) {
	if req.EvaluationKey == nil {
		if _, ok := d.keys.get(req.KeyID); !ok {
			return "", fmt.Errorf("%s %q", errUnknownKey, req.KeyID)
		}
		return req.KeyID, nil
	}
	id := req.EvaluationKey.ID()
	if req.KeyID != "" && req.KeyID != id {
		return "", &pir.QueryError{Reason: fmt.Sprintf("evaluation key has ID %s, request names %s", id, req.KeyID)}
	}
	if _, ok := d.keys.get(id); ok {
		return id, nil
	}
	key, err := req.EvaluationKey.Decode()
	if err != nil {
		return "", &pir.QueryError{Reason: err.Error()}
	}
	d.keys.put(id, key.KeySet())
	return id, nil
}

func (d *serverDriver) Answer(req AnswerReq, resp *AnswerResp) error {
	start := time.Now()
	log := logrus.WithFields(logrus.Fields{"usecase": req.Usecase, "shard": req.Shard})
	u, version, err := d.resolve(req.Usecase, req.Version)
	if err != nil {
		return err
	}
	id, err := d.evaluationKey(&req)
	if err != nil {
		return err
	}
	evk, ok := d.keys.get(id)
	if !ok {
		return fmt.Errorf("%s %q", errUnknownKey, id)
	}
	q, err := DecodeKeywordQuery(u.Context().Parameters(), req.Queries)
	if err != nil {
		return err
	}
	out, err := u.Process(req.Shard, q, evk)
	if err != nil {
		var qe *pir.QueryError
		if errors.As(err, &qe) {
			log.WithError(err).Warn("Rejected query")
		} else {
			log.WithError(err).Error("Failed to answer query")
		}
		return err
	}
	resp.Version = version
	if resp.Responses, err = EncodeKeywordResponse(out); err != nil {
		return err
	}

	atomic.AddInt64(&d.queries, 1)
	d.counter.Incr(1)
	if d.measureBandwidth {
		d.countBytes(&req, resp)
	}
	log.WithFields(logrus.Fields{"version": version, "elapsed": time.Since(start)}).Debug("Answered query")
	return nil
}

func (d *serverDriver) countBytes(req *AnswerReq, resp *AnswerResp) {
	reqSize, err := rpc.SerializedSizeOf(req)
	if err != nil {
		logrus.WithError(err).Warn("Failed to measure request")
		return
	}
	respSize, err := rpc.SerializedSizeOf(resp)
	if err != nil {
		logrus.WithError(err).Warn("Failed to measure response")
		return
	}
	atomic.AddInt64(&d.requestBytes, int64(reqSize))
	atomic.AddInt64(&d.responseBytes, int64(respSize))
}

func (d *serverDriver) Oprf(req OprfReq, resp *OprfResp) error {
	u, _, err := d.resolve(req.Usecase, req.Version)
	if err != nil {
		return err
	}
	sym := u.SymmetricPir()
	if sym == nil {
		return fmt.Errorf("usecase %q does not use symmetric PIR", req.Usecase)
	}
	elems, err := sympir.UnmarshalElements(sym.ConfigType(), req.Elements)
	if err != nil {
		return &pir.QueryError{Reason: fmt.Sprintf("oprf request: %v", err)}
	}
	eval, err := sym.Evaluate(&oprf.EvaluationRequest{Elements: elems})
	if err != nil {
		return err
	}
	resp.Elements, err = sympir.MarshalElements(eval.Elements)
	return err
}

func (d *serverDriver) Stats(none int, resp *StatsResp) error {
	*resp = StatsResp{
		Usecases:         len(d.store.Names()),
		Queries:          atomic.LoadInt64(&d.queries),
		QueriesPerSecond: d.counter.Rate(),
		CachedKeys:       d.keys.len(),
		RequestBytes:     atomic.LoadInt64(&d.requestBytes),
		ResponseBytes:    atomic.LoadInt64(&d.responseBytes),
	}
	return nil
}

func isUnknownKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), errUnknownKey)
}
