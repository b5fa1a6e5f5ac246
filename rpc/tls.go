package rpc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"time"
)

// CertOptions describe the self-signed certificate of a TLS server.
type CertOptions struct {
	Host       string
	ECDSACurve string
	ValidFor   time.Duration
}

func (o CertOptions) curve() (elliptic.Curve, error) {
	switch o.ECDSACurve {
	case "P256", "":
		return elliptic.P256(), nil
	case "P384":
		return elliptic.P384(), nil
	case "P521":
		return elliptic.P521(), nil
	}
	return nil, fmt.Errorf("unsupported ECDSA curve %q", o.ECDSACurve)
}

// SelfSignedCertificate generates a fresh ECDSA key and certificate for
// opts.Host.
func SelfSignedCertificate(opts CertOptions) (tls.Certificate, error) {
	curve, err := opts.curve()
	if err != nil {
		return tls.Certificate{}, err
	}
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}
	validFor := opts.ValidFor
	if validFor == 0 {
		validFor = 365 * 24 * time.Hour
	}
	notBefore := time.Now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{opts.Host}},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	if ip := net.ParseIP(opts.Host); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{opts.Host}
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}

// httpsServer returns an HTTP server on port that serves TLS with a
// self-signed certificate through ListenAndServeTLS("", "").
func httpsServer(port int, opts CertOptions) (*http.Server, error) {
	cert, err := SelfSignedCertificate(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate certificate: %w", err)
	}
	return &http.Server{
		Addr:      fmt.Sprintf(":%d", port),
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
	}, nil
}
