package rpc

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/rpc"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// ClientProxy issues net/rpc calls over either a raw TCP connection or
// HTTPS POST requests, both Binc encoded.
type ClientProxy struct {
	serverAddr string
	useTLS     bool
	persistent bool

	codecHandle codec.Handle

	mu           sync.Mutex
	cachedCodec  rpc.ClientCodec
	cachedClient *rpc.Client
}

type httpPostCodec struct {
	http       *http.Client
	serverAddr string
	encoder    *codec.Encoder
	decoder    *codec.Decoder
	bodyReader chan io.ReadCloser
	bodyCloser io.Closer
}

func newHttpPostCodec(codecHandle codec.Handle, serverAddr string, usePersistent bool) *httpPostCodec {
	config := tls.Config{
		// Servers use self-signed certificates.
		InsecureSkipVerify: true,
	}

	client := &http.Client{
		Transport: &http.Transport{
			DialTLS: func(network, addr string) (net.Conn, error) {
				return tls.Dial("tcp", addr, &config)
			},
			DisableKeepAlives: !usePersistent,
		},
	}

	return &httpPostCodec{
		http:       client,
		serverAddr: serverAddr,
		encoder:    codec.NewEncoderBytes(nil, codecHandle),
		decoder:    codec.NewDecoder(nil, codecHandle),
		bodyReader: make(chan io.ReadCloser, 1),
	}
}

func (c *httpPostCodec) WriteRequest(rpcReq *rpc.Request, body interface{}) error {
	var reqBuf []byte
	c.encoder.ResetBytes(&reqBuf)
	if err := c.encoder.Encode(rpcReq); err != nil {
		return fmt.Errorf("encoder WriteRequest header failed: %w", err)
	}
	if err := c.encoder.Encode(body); err != nil {
		return fmt.Errorf("encoder WriteRequest body failed: %w", err)
	}

	url := "https://" + c.serverAddr + rpc.DefaultRPCPath + "/" + rpcReq.ServiceMethod
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqBuf))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed HTTP POST: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusInternalServerError {
		httpResp.Body.Close()
		return fmt.Errorf("failed HTTP POST: %v", httpResp.StatusCode)
	}
	c.bodyReader <- httpResp.Body
	return nil
}

func (c *httpPostCodec) ReadResponseHeader(header *rpc.Response) error {
	respBody := <-c.bodyReader
	c.decoder.Reset(respBody)
	c.bodyCloser = respBody
	return c.decoder.Decode(header)
}

func (c *httpPostCodec) ReadResponseBody(body interface{}) error {
	defer c.bodyCloser.Close()
	return c.decoder.Decode(body)
}

func (c *httpPostCodec) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func NewClientProxy(serverAddr string, useTLS bool, usePersistent bool) (*ClientProxy, error) {
	proxy := ClientProxy{serverAddr: serverAddr, useTLS: useTLS, codecHandle: CodecHandle()}
	if usePersistent || useTLS {
		// Always cache TLS codec
		codec, err := proxy.codec()
		if err != nil {
			return nil, err
		}
		proxy.cachedCodec = codec

		proxy.cachedClient = rpc.NewClientWithCodec(codec)
		proxy.persistent = true
	}
	logrus.WithFields(logrus.Fields{"server": serverAddr, "tls": useTLS, "persistent": proxy.persistent}).Debug("Created RPC client")
	return &proxy, nil
}

func (p *ClientProxy) codec() (rpc.ClientCodec, error) {
	if p.useTLS {
		return newHttpPostCodec(p.codecHandle, p.serverAddr, true), nil
	}
	return newTCPCodec(p.codecHandle, p.serverAddr)
}

func (p *ClientProxy) Call(serviceMethod string, args interface{}, reply interface{}) error {
	client, err := p.rpcClient()
	if err != nil {
		return err
	}
	defer p.releaseClient(client)
	return client.Call(serviceMethod, args, reply)
}

func (p *ClientProxy) rpcClient() (*rpc.Client, error) {
	if p.persistent {
		return p.cachedClient, nil
	}
	codec, err := p.codec()
	if err != nil {
		return nil, err
	}
	return rpc.NewClientWithCodec(codec), nil
}

func (p *ClientProxy) releaseClient(client *rpc.Client) {
	if !p.persistent {
		client.Close()
	}
}

func (p *ClientProxy) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.persistent && p.cachedClient != nil {
		p.cachedClient.Close()
		p.cachedClient = nil
	}
}

func newTCPCodec(codecHandle codec.Handle, serverAddr string) (rpc.ClientCodec, error) {
	conn, err := net.Dial("tcp", serverAddr)
	if err != nil {
		return nil, err
	}
	return codec.GoRpc.ClientCodec(conn, codecHandle), nil
}
