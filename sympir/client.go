package sympir

import (
	"fmt"

	"github.com/cloudflare/circl/group"
	"github.com/cloudflare/circl/oprf"
)

// Client obtains keyword secrets through blinded OPRF evaluation.
type Client struct {
	info suiteInfo
	oprf oprf.Client
}

func NewClient(t ConfigType) (*Client, error) {
	info, err := t.info()
	if err != nil {
		return nil, err
	}
	return &Client{info: info, oprf: oprf.NewClient(info.suite)}, nil
}

func (c *Client) Blind(keyword []byte) (*oprf.FinalizeData, *oprf.EvaluationRequest, error) {
	return c.oprf.Blind([][]byte{keyword})
}

func (c *Client) Finalize(fin *oprf.FinalizeData, eval *oprf.Evaluation) (*KeywordSecret, error) {
	outputs, err := c.oprf.Finalize(fin, eval)
	if err != nil {
		return nil, fmt.Errorf("oprf finalize failed: %w", err)
	}
	if len(outputs) != 1 {
		return nil, fmt.Errorf("expected one oprf output, got %d", len(outputs))
	}
	return deriveSecret(c.info, outputs[0])
}

// MarshalElements encodes the group elements of an OPRF message.
func MarshalElements(elems []group.Element) ([][]byte, error) {
	out := make([][]byte, len(elems))
	for i, e := range elems {
		var err error
		if out[i], err = e.MarshalBinaryCompress(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UnmarshalElements is the inverse of MarshalElements.
func UnmarshalElements(t ConfigType, data [][]byte) ([]group.Element, error) {
	info, err := t.info()
	if err != nil {
		return nil, err
	}
	out := make([]group.Element, len(data))
	for i, d := range data {
		e := info.suite.Group().NewElement()
		if err := e.UnmarshalBinary(d); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = e
	}
	return out, nil
}
