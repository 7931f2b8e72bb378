package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

// Keystore is a PKCS#12 file written for one test.
type Keystore struct {
	Path        string
	Password    string
	Certificate *x509.Certificate
	Key         *rsa.PrivateKey
}

// WriteKeystore creates a self-signed RSA identity valid around now and stores it as PKCS#12.
func WriteKeystore(t testing.TB, commonName, password string) Keystore {
	t.Helper()

	key, cert := selfSigned(t, commonName)
	pfx, err := pkcs12.Modern.Encode(key, cert, nil, password)
	if err != nil {
		t.Fatalf("encode pkcs12: %v", err)
	}
	return Keystore{
		Path:        writeFile(t, "signer.p12", pfx),
		Password:    password,
		Certificate: cert,
		Key:         key,
	}
}

// WriteTrustStore stores a certificate-only PKCS#12 container, i.e. one with no private key.
func WriteTrustStore(t testing.TB, commonName, password string) string {
	t.Helper()

	_, cert := selfSigned(t, commonName)
	pfx, err := pkcs12.Modern.EncodeTrustStore([]*x509.Certificate{cert}, password)
	if err != nil {
		t.Fatalf("encode trust store: %v", err)
	}
	return writeFile(t, "truststore.p12", pfx)
}

// WriteEmptyFile creates a zero-byte file and returns its path.
func WriteEmptyFile(t testing.TB) string {
	t.Helper()
	return writeFile(t, "empty.p12", nil)
}

func selfSigned(t testing.TB, commonName string) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		t.Fatalf("serial: %v", err)
	}
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{"Passport Test Org"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return key, cert
}

func writeFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}
