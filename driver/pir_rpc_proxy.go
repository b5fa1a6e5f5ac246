package driver

import (
	"keywordpir/rpc"
)

type RpcProxy struct {
	*rpc.ClientProxy
}

func NewRpcProxy(serverAddr string, useTLS bool, usePersistent bool) (*RpcProxy, error) {
	proxy, err := rpc.NewClientProxy(serverAddr, useTLS, usePersistent)
	if err != nil {
		return nil, err
	}
	return &RpcProxy{proxy}, nil
}

func (p *RpcProxy) Usecases(none int, resp *UsecaseList) error {
	return p.Call("PirServerDriver.Usecases", none, resp)
}

func (p *RpcProxy) Config(req ConfigReq, resp *ConfigResp) error {
	return p.Call("PirServerDriver.Config", req, resp)
}

func (p *RpcProxy) Answer(req AnswerReq, resp *AnswerResp) error {
	return p.Call("PirServerDriver.Answer", req, resp)
}

func (p *RpcProxy) Oprf(req OprfReq, resp *OprfResp) error {
	return p.Call("PirServerDriver.Oprf", req, resp)
}

func (p *RpcProxy) Stats(none int, resp *StatsResp) error {
	return p.Call("PirServerDriver.Stats", none, resp)
}
