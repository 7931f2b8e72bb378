// Package seal applies and checks the organisational PDF signature.
package seal

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfsign/sign"
	"software.sslmate.com/src/go-pkcs12"

	"passport-platform/internal/config"
	"passport-platform/pkg/logger"
)

// Identity is the process-wide signing identity.
type Identity struct {
	KeystorePath     string
	KeystorePassword string

	Name        string
	Location    string
	Reason      string
	ContactInfo string
}

func IdentityFromConfig(c config.SigningConfig) Identity {
	return Identity{
		KeystorePath:     c.KeystorePath,
		KeystorePassword: c.KeystorePassword,
		Name:             c.Name,
		Location:         c.Location,
		Reason:           c.Reason,
		ContactInfo:      c.ContactInfo,
	}
}

// Sealer signs PDFs with the first key of a PKCS#12 container.
// The container is read on every call so a replaced file takes effect without a restart,
// and key material is not kept between calls.
type Sealer struct {
	id    Identity
	clock func() time.Time
}

func NewSealer(id Identity) *Sealer {
	return &Sealer{id: id, clock: time.Now}
}

// WithClock replaces the signing-time source. Used by tests.
func (s *Sealer) WithClock(clock func() time.Time) *Sealer {
	s.clock = clock
	return s
}

// Sign returns unsigned with a detached CMS signature (SHA-256, no timestamp, no revocation data)
// appended as an incremental update. On error no bytes are returned.
func (s *Sealer) Sign(ctx context.Context, unsigned []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fail(ErrSignatureRejected, err)
	}

	key, chain, err := s.loadKey()
	if err != nil {
		return nil, err
	}

	rdr, err := pdf.NewReader(bytes.NewReader(unsigned), int64(len(unsigned)))
	if err != nil {
		return nil, fail(ErrSignatureRejected, fmt.Errorf("parse pdf: %w", err))
	}

	var out bytes.Buffer
	err = sign.Sign(bytes.NewReader(unsigned), &out, rdr, int64(len(unsigned)), sign.SignData{
		Signature: sign.SignDataSignature{
			Info: sign.SignDataSignatureInfo{
				Name:        s.id.Name,
				Location:    s.id.Location,
				Reason:      s.id.Reason,
				ContactInfo: s.id.ContactInfo,
				Date:        s.clock(),
			},
			CertType: sign.ApprovalSignature,
		},
		Signer:            key,
		DigestAlgorithm:   crypto.SHA256,
		Certificate:       chain[0],
		CertificateChains: [][]*x509.Certificate{chain},
	})
	if err != nil {
		return nil, fail(ErrSignatureRejected, err)
	}

	logger.From(ctx).Debug("pdf sealed",
		"signer", chain[0].Subject.CommonName,
		"unsigned_bytes", len(unsigned),
		"signed_bytes", out.Len(),
	)
	return out.Bytes(), nil
}

// Certificate returns the signing certificate currently in the container.
func (s *Sealer) Certificate() (*x509.Certificate, error) {
	_, chain, err := s.loadKey()
	if err != nil {
		return nil, err
	}
	return chain[0], nil
}

func (s *Sealer) loadKey() (crypto.Signer, []*x509.Certificate, error) {
	if s.id.KeystorePath == "" {
		return nil, nil, fail(ErrKeystoreMissing, errors.New("no keystore path configured"))
	}
	data, err := os.ReadFile(s.id.KeystorePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fail(ErrKeystoreMissing, err)
		}
		return nil, nil, fail(ErrKeystoreCorrupt, err)
	}
	if len(data) == 0 {
		return nil, nil, fail(ErrKeystoreEmpty, nil)
	}

	priv, cert, caCerts, err := pkcs12.DecodeChain(data, s.id.KeystorePassword)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, nil, fail(ErrKeystorePassword, err)
		}
		// A certificate-only container decodes as a trust store.
		if certs, tsErr := pkcs12.DecodeTrustStore(data, s.id.KeystorePassword); tsErr == nil && len(certs) > 0 {
			return nil, nil, fail(ErrNoPrivateKey, err)
		}
		return nil, nil, fail(ErrKeystoreCorrupt, err)
	}

	signer, ok := priv.(crypto.Signer)
	if !ok || signer == nil {
		return nil, nil, fail(ErrNoPrivateKey, fmt.Errorf("unsupported key type %T", priv))
	}
	if cert == nil {
		return nil, nil, fail(ErrNoCertificate, nil)
	}
	return signer, append([]*x509.Certificate{cert}, caCerts...), nil
}
