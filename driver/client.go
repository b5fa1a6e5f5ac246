package driver

import (
	"fmt"
	"math/rand"

	"github.com/cloudflare/circl/oprf"
	"github.com/sirupsen/logrus"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"keywordpir/he"
	"keywordpir/pir"
	"keywordpir/sympir"
)

// Client performs private keyword lookups against one usecase version. It
// is not safe for concurrent use.
type Client struct {
	server PirServerDriver
	config ConfigResp

	ctx     he.Context
	keyword *pir.KeywordClient
	sym     *sympir.Client

	key     *EvaluationKeyWire
	keyID   string
	keySent bool
}

// NewClient fetches the configuration of the latest version of name and
// generates fresh key material.
func NewClient(server PirServerDriver, name string) (*Client, error) {
	c := &Client{server: server}
	if err := server.Config(ConfigReq{Usecase: name}, &c.config); err != nil {
		return nil, fmt.Errorf("failed to fetch config of %q: %w", name, err)
	}
	var err error
	if c.ctx, err = he.NewContext(c.config.Encryption); err != nil {
		return nil, err
	}
	sk := c.ctx.NewKeyGenerator().GenSecretKeyNew()
	if c.keyword, err = pir.NewKeywordClient(c.ctx, c.config.Keyword, c.config.Index, sk); err != nil {
		return nil, err
	}
	if c.config.SymmetricPir != "" {
		if c.sym, err = sympir.NewClient(c.config.SymmetricPir); err != nil {
			return nil, err
		}
	}
	if c.key, err = EncodeEvaluationKey(c.keyword.EvaluationKey()); err != nil {
		return nil, err
	}
	c.keyID = c.key.ID()
	logrus.WithFields(logrus.Fields{
		"usecase": name,
		"version": c.config.Version,
		"index":   c.config.Index,
		"keyID":   c.keyID[:16],
	}).Debug("Initialized client")
	return c, nil
}

func (c *Client) Config() ConfigResp {
	return c.config
}

// Lookup privately reads keyword. It reports found = false when the keyword
// is absent.
func (c *Client) Lookup(keyword []byte) ([]byte, bool, error) {
	var secret *sympir.KeywordSecret
	if c.sym != nil {
		var err error
		if secret, err = c.obfuscate(keyword); err != nil {
			return nil, false, err
		}
		keyword = secret.Keyword()
	}
	shard, q, err := c.keyword.Query(keyword)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.answer(shard, q)
	if err != nil {
		return nil, false, err
	}
	value, found, err := c.keyword.Decrypt(keyword, resp)
	if err != nil || !found || secret == nil {
		return value, found, err
	}
	if value, err = secret.Decrypt(value); err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// DummyQuery sends a query indistinguishable from a real one to a random
// shard and discards the answer.
func (c *Client) DummyQuery(rnd *rand.Rand) error {
	shard, q, err := c.keyword.DummyQuery(rnd)
	if err != nil {
		return err
	}
	_, err = c.answer(shard, q)
	return err
}

func (c *Client) obfuscate(keyword []byte) (*sympir.KeywordSecret, error) {
	fin, req, err := c.sym.Blind(keyword)
	if err != nil {
		return nil, err
	}
	oreq := OprfReq{Usecase: c.config.Usecase, Version: c.config.Version}
	if oreq.Elements, err = sympir.MarshalElements(req.Elements); err != nil {
		return nil, err
	}
	var oresp OprfResp
	if err := c.server.Oprf(oreq, &oresp); err != nil {
		return nil, fmt.Errorf("oprf evaluation failed: %w", err)
	}
	elems, err := sympir.UnmarshalElements(c.config.SymmetricPir, oresp.Elements)
	if err != nil {
		return nil, err
	}
	return c.sym.Finalize(fin, &oprf.Evaluation{Elements: elems})
}

func (c *Client) answer(shard int, q *pir.KeywordQuery) (*pir.KeywordResponse, error) {
	req := AnswerReq{
		Usecase: c.config.Usecase,
		Version: c.config.Version,
		Shard:   shard,
		KeyID:   c.keyID,
	}
	var err error
	if req.Queries, err = EncodeKeywordQuery(q); err != nil {
		return nil, err
	}
	if !c.keySent {
		req.EvaluationKey = c.key
	}
	var resp AnswerResp
	err = c.server.Answer(req, &resp)
	if isUnknownKey(err) {
		// The server evicted our key.
		req.EvaluationKey = c.key
		resp = AnswerResp{}
		err = c.server.Answer(req, &resp)
	}
	if err != nil {
		return nil, err
	}
	c.keySent = true
	return DecodeKeywordResponse(c.params(), resp.Responses)
}

func (c *Client) params() rlwe.Parameters {
	return c.ctx.Parameters()
}
