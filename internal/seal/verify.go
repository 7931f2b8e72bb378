package seal

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/digitorus/pkcs7"
)

var (
	ErrNoSignature      = errors.New("seal: document carries no signature")
	ErrSignatureInvalid = errors.New("seal: signature does not verify")
	ErrUnexpectedSigner = errors.New("seal: signed by an unexpected certificate")
)

// Verification describes the last signature of a document.
type Verification struct {
	Signer *x509.Certificate
	// ByteRange is [offset1, length1, offset2, length2] of the signed bytes.
	ByteRange [4]int64
}

var byteRangePattern = regexp.MustCompile(`/ByteRange\s*\[\s*(\d+)\s+(\d+)\s+(\d+)\s+(\d+)\s*\]`)

// Verify checks the last signature of signed. The signed ranges must cover the whole file
// except the signature hole. When expected is non-nil the signer must be that certificate.
func Verify(signed []byte, expected *x509.Certificate) (Verification, error) {
	matches := byteRangePattern.FindAllSubmatch(signed, -1)
	if len(matches) == 0 {
		return Verification{}, ErrNoSignature
	}
	m := matches[len(matches)-1]

	var br [4]int64
	for i := range br {
		n, err := strconv.ParseInt(string(m[i+1]), 10, 64)
		if err != nil {
			return Verification{}, fmt.Errorf("%w: byte range: %v", ErrSignatureInvalid, err)
		}
		br[i] = n
	}
	size := int64(len(signed))
	if br[0] != 0 || br[1] <= 0 || br[2] <= br[1] || br[2]+br[3] != size {
		return Verification{}, fmt.Errorf("%w: byte range %v does not cover the document", ErrSignatureInvalid, br)
	}

	hole := bytes.TrimSpace(signed[br[1]:br[2]])
	hole = bytes.TrimPrefix(hole, []byte("<"))
	hole = bytes.TrimSuffix(hole, []byte(">"))
	padded, err := hex.DecodeString(string(hole))
	if err != nil {
		return Verification{}, fmt.Errorf("%w: contents: %v", ErrSignatureInvalid, err)
	}
	// The hole is zero padded after the DER blob.
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(padded, &raw); err != nil {
		return Verification{}, fmt.Errorf("%w: contents: %v", ErrSignatureInvalid, err)
	}

	p7, err := pkcs7.Parse(raw.FullBytes)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: cms: %v", ErrSignatureInvalid, err)
	}
	content := make([]byte, 0, br[1]+br[3])
	content = append(content, signed[br[0]:br[0]+br[1]]...)
	content = append(content, signed[br[2]:br[2]+br[3]]...)
	p7.Content = content
	if err := p7.Verify(); err != nil {
		return Verification{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	signer := p7.GetOnlySigner()
	if signer == nil {
		return Verification{}, fmt.Errorf("%w: no single signer", ErrSignatureInvalid)
	}
	if expected != nil && !bytes.Equal(signer.Raw, expected.Raw) {
		return Verification{}, ErrUnexpectedSigner
	}
	return Verification{Signer: signer, ByteRange: br}, nil
}

// VerifyUnsignedPrefix reports whether signed is unsigned plus appended bytes only.
func VerifyUnsignedPrefix(unsigned, signed []byte) bool {
	return len(signed) > len(unsigned) && bytes.HasPrefix(signed, unsigned)
}
