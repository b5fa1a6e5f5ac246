package sympir

import (
	"fmt"

	"github.com/cloudflare/circl/oprf"

	"keywordpir/pir"
)

// Server holds the OPRF secret of one usecase.
type Server struct {
	info   suiteInfo
	config *Config
	oprf   oprf.Server
}

func NewServer(cfg *Config) (*Server, error) {
	info, err := cfg.Type.info()
	if err != nil {
		return nil, err
	}
	return &Server{info: info, config: cfg, oprf: oprf.NewServer(info.suite, cfg.Key)}, nil
}

func (s *Server) ConfigType() ConfigType {
	return s.config.Type
}

// Derive computes the secret of keyword directly from the OPRF key.
func (s *Server) Derive(keyword []byte) (*KeywordSecret, error) {
	out, err := s.oprf.FullEvaluate(keyword)
	if err != nil {
		return nil, fmt.Errorf("oprf evaluation failed: %w", err)
	}
	return deriveSecret(s.info, out)
}

// Preprocess replaces the row keyword with its obfuscated form and seals
// the value under the per-keyword key.
func (s *Server) Preprocess(row pir.Row) (pir.Row, error) {
	secret, err := s.Derive(row.Keyword)
	if err != nil {
		return pir.Row{}, err
	}
	sealed, err := secret.Encrypt(row.Value)
	if err != nil {
		return pir.Row{}, err
	}
	return pir.Row{Keyword: secret.Keyword(), Value: sealed}, nil
}

func (s *Server) PreprocessRows(rows []pir.Row) ([]pir.Row, error) {
	out := make([]pir.Row, len(rows))
	for i, r := range rows {
		var err error
		if out[i], err = s.Preprocess(r); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return out, nil
}

// Evaluate answers a blinded issuance request. The server learns nothing
// about the keywords inside.
func (s *Server) Evaluate(req *oprf.EvaluationRequest) (*oprf.Evaluation, error) {
	return s.oprf.Evaluate(req)
}
