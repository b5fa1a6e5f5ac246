package rpc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/rpc"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

type httpServerCodec struct {
	httpResponse http.ResponseWriter

	encoder *codec.Encoder
	decoder *codec.Decoder
}

func (c *httpServerCodec) WriteResponse(header *rpc.Response, body interface{}) error {
	if header.Error != "" {
		c.httpResponse.Header().Set("Go-Error", header.Error)
		c.httpResponse.WriteHeader(http.StatusInternalServerError)
	}
	if err := c.encoder.Encode(header); err != nil {
		return err
	}
	return c.encoder.Encode(body)
}

func (c *httpServerCodec) Close() error {
	return nil
}

func (c *httpServerCodec) ReadRequestHeader(header *rpc.Request) error {
	return c.decoder.Decode(header)
}

func (c *httpServerCodec) ReadRequestBody(body interface{}) error {
	return c.decoder.Decode(body)
}

// Server serves net/rpc receivers until closed.
type Server interface {
	RegisterName(name string, rcvr interface{}) error
	Serve() error
	Close() error
	// ListenAddr is the address the server accepts connections on.
	ListenAddr() string
}

type httpRpcServer struct {
	io.Closer
	httpServer *http.Server
	*rpc.Server
}

func (s *httpRpcServer) Serve() error {
	logrus.WithField("addr", s.httpServer.Addr).Info("Serving RPC server over HTTPS")
	err := s.httpServer.ListenAndServeTLS("", "")
	if err == http.ErrServerClosed {
		logrus.Info("Server shutdown")
		return nil
	}
	return err
}

func (s *httpRpcServer) ListenAddr() string {
	return s.httpServer.Addr
}

// NewServer creates a TLS server with a self-signed certificate, or a plain
// TCP server when useTLS is false. Port 0 picks a free TCP port.
func NewServer(port int, useTLS bool) (Server, error) {
	rpcServer := rpc.NewServer()
	codecHandle := CodecHandle()

	if useTLS {
		httpSrv, err := httpsServer(port, CertOptions{Host: "keywordpir.app", ECDSACurve: "P256"})
		if err != nil {
			return nil, err
		}
		server := httpRpcServer{httpSrv, httpSrv, rpcServer}
		httpSrv.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, rpc.DefaultRPCPath) {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-type", "application/octet-stream")
			codec := httpServerCodec{
				httpResponse: w,
				encoder:      codec.NewEncoder(w, codecHandle),
				decoder:      codec.NewDecoder(r.Body, codecHandle)}
			if err := server.Server.ServeRequest(&codec); err != nil {
				logrus.WithError(err).WithField("path", r.URL.Path).Warn("Failed to serve RPC request")
				w.Header().Set("Go-Error", err.Error())
				w.WriteHeader(http.StatusInternalServerError)
			}
		})
		return &server, nil
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen tcp: %w", err)
	}
	return &tcpRpcServer{ln, rpcServer, codecHandle}, nil
}

type tcpRpcServer struct {
	net.Listener
	*rpc.Server

	codecHandle codec.Handle
}

func (s *tcpRpcServer) ListenAddr() string {
	return s.Addr().String()
}

func (s *tcpRpcServer) Serve() error {
	logrus.WithField("addr", s.ListenAddr()).Info("Serving RPC server over TCP")
	for {
		conn, err := s.Listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			logrus.Info("Server shutdown")
			return nil
		}
		if err != nil {
			return fmt.Errorf("TCP accept failed: %w", err)
		}
		go s.Server.ServeCodec(codec.GoRpc.ServerCodec(conn, s.codecHandle))
	}
}
