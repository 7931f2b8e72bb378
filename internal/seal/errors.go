package seal

import (
	"errors"
	"fmt"
)

var (
	ErrKeystoreMissing   = errors.New("seal: keystore file not found")
	ErrKeystoreEmpty     = errors.New("seal: keystore file is empty")
	ErrKeystorePassword  = errors.New("seal: keystore password rejected")
	ErrKeystoreCorrupt   = errors.New("seal: keystore cannot be decoded")
	ErrNoPrivateKey      = errors.New("seal: keystore holds no signing key")
	ErrNoCertificate     = errors.New("seal: keystore holds no certificate")
	ErrSignatureRejected = errors.New("seal: signing toolkit rejected the document")
)

// SigningError wraps every Sign failure. Sentinel and cause are both reachable via errors.Is.
type SigningError struct {
	Kind  error
	Cause error
}

func (e *SigningError) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
}

func (e *SigningError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func fail(kind, cause error) error {
	return &SigningError{Kind: kind, Cause: cause}
}
