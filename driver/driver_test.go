package driver

import (
	"bytes"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/assert"

	"keywordpir/pir"
	"keywordpir/rpc"
	"keywordpir/sympir"
	"keywordpir/usecase"
)

var config *Config

func TestMain(m *testing.M) {
	config = new(Config).AddPirFlags().AddClientFlags().Parse()
	os.Exit(m.Run())
}

type testService struct {
	dir  string
	path string
	cfg  ServiceConfig
}

func newTestService(t *testing.T) *testService {
	dir := t.TempDir()
	return &testService{dir: dir, path: filepath.Join(dir, "service.json")}
}

func (s *testService) add(t *testing.T, cfg usecase.Config, rows []pir.Row, format RowsFormat) {
	file := cfg.Name + "." + string(format)
	assert.NilError(t, WriteRowsFile(filepath.Join(s.dir, file), rows, format))
	s.cfg.Usecases = append(s.cfg.Usecases, UsecaseEntry{Database: file, Usecase: cfg})
}

func (s *testService) addSymmetric(t *testing.T, cfg usecase.Config, rows []pir.Row) {
	key, err := sympir.GenerateKey(sympir.DefaultConfigType)
	assert.NilError(t, err)
	assert.NilError(t, os.WriteFile(filepath.Join(s.dir, cfg.Name+".key"), []byte(key), 0600))
	cfg.SymmetricPir = &sympir.Arguments{DatabaseEncryptionKeyFilePath: cfg.Name + ".key"}
	s.add(t, cfg, rows, BincRows)
}

func (s *testService) write(t *testing.T) {
	assert.NilError(t, WriteServiceConfig(s.path, &s.cfg))
}

func lookupAll(t *testing.T, client *Client, rows []pir.Row) {
	for _, r := range rows {
		val, found, err := client.Lookup(r.Keyword)
		assert.NilError(t, err)
		assert.Check(t, found, "keyword %s", r.Keyword)
		assert.DeepEqual(t, val, r.Value)
	}
}

func TestLookup(t *testing.T) {
	svc := newTestService(t)
	digits := pir.MakeDigitRows(20)
	secrets := pir.MakeRows(pir.RandSource(), 30, 16)
	svc.add(t, TestUsecaseConfig("digits", 2), digits, CSVRows)
	svc.addSymmetric(t, TestUsecaseConfig("secrets", 2), secrets)
	svc.write(t)

	config.ConfigFile = svc.path
	driver, err := config.ServerDriver()
	assert.NilError(t, err)

	var list UsecaseList
	assert.NilError(t, driver.Usecases(0, &list))
	assert.Equal(t, len(list.Usecases), 2)
	assert.Equal(t, list.Usecases[0].Name, "digits")
	assert.Equal(t, list.Usecases[0].Rows, 20)
	assert.Equal(t, list.Usecases[1].Name, "secrets")

	client, err := NewClient(driver, "digits")
	assert.NilError(t, err)
	assert.Equal(t, client.Config().SymmetricPir, sympir.ConfigType(""))
	lookupAll(t, client, digits[:4])
	_, found, err := client.Lookup([]byte("100"))
	assert.NilError(t, err)
	assert.Check(t, !found)
	assert.NilError(t, client.DummyQuery(pir.RandSource()))

	client, err = NewClient(driver, "secrets")
	assert.NilError(t, err)
	assert.Equal(t, client.Config().SymmetricPir, sympir.DefaultConfigType)
	lookupAll(t, client, secrets[:3])
	_, found, err = client.Lookup([]byte("keyword-missing"))
	assert.NilError(t, err)
	assert.Check(t, !found)

	var stats StatsResp
	assert.NilError(t, driver.Stats(0, &stats))
	assert.Equal(t, stats.Usecases, 2)
	assert.Equal(t, stats.Queries, int64(4+1+1+3+1))
	assert.Equal(t, stats.CachedKeys, 2)

	_, err = NewClient(driver, "unknown")
	assert.ErrorContains(t, err, "unknown usecase")
}

func TestRPCOverTCP(t *testing.T) {
	svc := newTestService(t)
	rows := pir.MakeDigitRows(12)
	svc.add(t, TestUsecaseConfig("digits", 1), rows, CSVRows)
	svc.write(t)

	store := usecase.NewStore()
	assert.NilError(t, NewReloader(svc.path, store).Reload())

	server, err := rpc.NewServer(0, false)
	assert.NilError(t, err)
	assert.NilError(t, server.RegisterName("PirServerDriver", NewServerDriver(store, 1, true)))
	go server.Serve()
	defer server.Close()

	_, port, err := net.SplitHostPort(server.ListenAddr())
	assert.NilError(t, err)
	proxy, err := NewRpcProxy(net.JoinHostPort("localhost", port), false, true)
	assert.NilError(t, err)
	defer proxy.Close()

	first, err := NewClient(proxy, "digits")
	assert.NilError(t, err)
	second, err := NewClient(proxy, "digits")
	assert.NilError(t, err)

	// A cache of one key evicts the other client's key on every switch.
	lookupAll(t, first, rows[:2])
	lookupAll(t, second, rows[2:4])
	lookupAll(t, first, rows[4:5])

	var stats StatsResp
	assert.NilError(t, proxy.Stats(0, &stats))
	assert.Equal(t, stats.Queries, int64(5))
	assert.Equal(t, stats.CachedKeys, 1)
	assert.Check(t, stats.RequestBytes > stats.ResponseBytes)
}

func TestAnswerRejectsMalformedQueries(t *testing.T) {
	svc := newTestService(t)
	svc.add(t, TestUsecaseConfig("digits", 1), pir.MakeDigitRows(8), CSVRows)
	wideCfg := TestUsecaseConfig("wide", 1)
	wideCfg.Encryption.LogN = 13
	svc.add(t, wideCfg, pir.MakeDigitRows(8), CSVRows)
	svc.write(t)
	store := usecase.NewStore()
	assert.NilError(t, NewReloader(svc.path, store).Reload())
	driver := NewServerDriver(store, 0, false)

	client, err := NewClient(driver, "digits")
	assert.NilError(t, err)

	var resp AnswerResp
	err = driver.Answer(AnswerReq{Usecase: "digits", KeyID: "nope"}, &resp)
	assert.Check(t, isUnknownKey(err), "got %v", err)

	req := AnswerReq{Usecase: "digits", KeyID: client.keyID, EvaluationKey: client.key,
		Queries: [][][]byte{{[]byte("garbage")}}}
	err = driver.Answer(req, &resp)
	var qe *pir.QueryError
	assert.Check(t, errors.As(err, &qe), "got %v", err)

	req.Queries = nil
	err = driver.Answer(req, &resp)
	assert.Check(t, errors.As(err, &qe), "got %v", err)

	req.KeyID = "mismatch"
	err = driver.Answer(req, &resp)
	assert.ErrorContains(t, err, "request names mismatch")

	// Keys are validated against the usecase they are used with.
	wide, err := NewClient(driver, "wide")
	assert.NilError(t, err)
	_, q, err := client.keyword.Query([]byte("3"))
	assert.NilError(t, err)
	queries, err := EncodeKeywordQuery(q)
	assert.NilError(t, err)
	err = driver.Answer(AnswerReq{Usecase: "digits", KeyID: wide.keyID, EvaluationKey: wide.key, Queries: queries}, &resp)
	assert.Check(t, errors.As(err, &qe), "got %v", err)

	var oresp OprfResp
	err = driver.Oprf(OprfReq{Usecase: "digits"}, &oresp)
	assert.ErrorContains(t, err, "does not use symmetric PIR")
}

func TestReloadKeepsPreviousVersions(t *testing.T) {
	svc := newTestService(t)
	rows := pir.MakeDigitRows(10)
	cfg := TestUsecaseConfig("digits", 1)
	cfg.VersionCount = 2
	svc.add(t, cfg, rows, CSVRows)
	svc.write(t)

	store := usecase.NewStore()
	reloader := NewReloader(svc.path, store)
	assert.NilError(t, reloader.Reload())
	assert.DeepEqual(t, store.Versions("digits"), []int{1})

	// A row that can never fit fails the build.
	bad := append(pir.MakeDigitRows(10), pir.Row{Keyword: []byte("big"), Value: bytes.Repeat([]byte{1}, 200)})
	assert.NilError(t, WriteRowsFile(filepath.Join(svc.dir, "digits.csv"), bad, CSVRows))
	err := reloader.Reload()
	var cfgErr *pir.ConfigError
	assert.Assert(t, errors.As(err, &cfgErr), "got %v", err)
	assert.ErrorContains(t, err, `usecase "digits"`)
	v, ok := store.Get("digits")
	assert.Assert(t, ok)
	assert.Equal(t, v.Number, 1)

	assert.NilError(t, WriteRowsFile(filepath.Join(svc.dir, "digits.csv"), rows[:5], CSVRows))
	assert.NilError(t, reloader.Reload())
	assert.DeepEqual(t, store.Versions("digits"), []int{1, 2})
	old, ok := store.GetVersion("digits", 1)
	assert.Assert(t, ok)
	assert.Equal(t, old.RowCount(), 10)

	svc.cfg.Usecases = nil
	svc.write(t)
	assert.NilError(t, reloader.Reload())
	_, ok = store.Get("digits")
	assert.Check(t, !ok)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	svc := newTestService(t)
	svc.add(t, TestUsecaseConfig("digits", 1), pir.MakeDigitRows(5), CSVRows)
	svc.write(t)

	store := usecase.NewStore()
	reloader := NewReloader(svc.path, store)
	assert.NilError(t, reloader.Reload())
	assert.NilError(t, reloader.Watch())
	defer reloader.Close()

	svc.add(t, TestUsecaseConfig("letters", 1), []pir.Row{{Keyword: []byte("a"), Value: []byte("A")}}, CSVRows)
	svc.write(t)

	deadline := time.Now().Add(30 * time.Second)
	for {
		if _, ok := store.Get("letters"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("config change was not picked up")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestRowsFormats(t *testing.T) {
	rows := []pir.Row{
		{Keyword: []byte("comma,keyword"), Value: []byte("quoted \"value\"")},
		{Keyword: []byte("plain"), Value: []byte{}},
	}
	for _, format := range []RowsFormat{CSVRows, BincRows} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			assert.NilError(t, WriteRows(&buf, rows, format))
			out, err := ReadRows(&buf, format)
			assert.NilError(t, err)
			assert.Equal(t, len(out), len(rows))
			for i := range rows {
				assert.Equal(t, string(out[i].Keyword), string(rows[i].Keyword))
				assert.Equal(t, string(out[i].Value), string(rows[i].Value))
			}
		})
	}
	assert.Equal(t, FormatOf("db.CSV"), CSVRows)
	assert.Equal(t, FormatOf("db.bin"), BincRows)
	_, err := ReadRows(&bytes.Buffer{}, "xml")
	assert.ErrorContains(t, err, "unknown rows format")
}

func TestLoadServiceConfigEvictionLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.json")
	assert.NilError(t, os.WriteFile(path, []byte(`{"usecases": [
		{"database": "a.csv", "usecase": {"name": "a", "cuckooTableConfig": {"maxEvictionCount": 0}}},
		{"database": "b.csv", "usecase": {"name": "b", "cuckooTableConfig": {}}}
	]}`), 0600))
	cfg, err := LoadServiceConfig(path)
	assert.NilError(t, err)
	assert.Equal(t, len(cfg.Usecases), 2)
	assert.Equal(t, cfg.Usecases[0].Usecase.WithDefaults().Cuckoo.Evictions(), 0)
	assert.Equal(t, cfg.Usecases[1].Usecase.WithDefaults().Cuckoo.Evictions(), 100)
}
