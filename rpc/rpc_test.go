package rpc

import (
	"crypto/x509"
	"fmt"
	"net"
	"testing"

	"gotest.tools/assert"
)

type Echo struct{}

type EchoReq struct {
	Data  []byte
	Times int
}

func (Echo) Repeat(req EchoReq, resp *[][]byte) error {
	if req.Times < 0 {
		return fmt.Errorf("negative times %d", req.Times)
	}
	for i := 0; i < req.Times; i++ {
		*resp = append(*resp, req.Data)
	}
	return nil
}

func TestTCPRoundTrip(t *testing.T) {
	server, err := NewServer(0, false)
	assert.NilError(t, err)
	assert.NilError(t, server.RegisterName("Echo", Echo{}))
	done := make(chan error, 1)
	go func() { done <- server.Serve() }()

	_, port, err := net.SplitHostPort(server.ListenAddr())
	assert.NilError(t, err)
	addr := net.JoinHostPort("localhost", port)

	for _, persistent := range []bool{false, true} {
		proxy, err := NewClientProxy(addr, false, persistent)
		assert.NilError(t, err)

		var out [][]byte
		assert.NilError(t, proxy.Call("Echo.Repeat", EchoReq{Data: []byte("pir"), Times: 3}, &out))
		assert.DeepEqual(t, out, [][]byte{[]byte("pir"), []byte("pir"), []byte("pir")})

		err = proxy.Call("Echo.Repeat", EchoReq{Times: -1}, &out)
		assert.ErrorContains(t, err, "negative times")
		proxy.Close()
	}

	assert.NilError(t, server.Close())
	assert.NilError(t, <-done)
}

func TestSerializedSizeOf(t *testing.T) {
	small, err := SerializedSizeOf(EchoReq{Data: make([]byte, 10)})
	assert.NilError(t, err)
	large, err := SerializedSizeOf(EchoReq{Data: make([]byte, 1000)})
	assert.NilError(t, err)
	assert.Check(t, large-small >= 990, "%d vs %d", large, small)
}

func TestSelfSignedCertificate(t *testing.T) {
	cert, err := SelfSignedCertificate(CertOptions{Host: "keywordpir.app", ECDSACurve: "P256"})
	assert.NilError(t, err)
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	assert.NilError(t, err)
	assert.DeepEqual(t, parsed.DNSNames, []string{"keywordpir.app"})
	assert.NilError(t, parsed.VerifyHostname("keywordpir.app"))

	cert, err = SelfSignedCertificate(CertOptions{Host: "127.0.0.1", ECDSACurve: "P384"})
	assert.NilError(t, err)
	parsed, err = x509.ParseCertificate(cert.Certificate[0])
	assert.NilError(t, err)
	assert.Equal(t, len(parsed.IPAddresses), 1)

	_, err = SelfSignedCertificate(CertOptions{Host: "x", ECDSACurve: "P192"})
	assert.ErrorContains(t, err, "unsupported ECDSA curve")
}
