package domain

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "consentwindow/pkg/domain-errors"
)

// FingerprintSize is the byte length of a consent fingerprint (256 bits).
const FingerprintSize = 32

// Fingerprint is the opaque hash naming what, and with whom, an owner consents to.
// It is never interpreted; together with an OwnerID it addresses one consent history.
type Fingerprint [FingerprintSize]byte

// ParseFingerprint decodes 64 hex characters, optionally prefixed with 0x.
//
// Errors: returns CodeInvalidInput for any other shape.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	raw := s
	if len(raw) >= 2 && (raw[:2] == "0x" || raw[:2] == "0X") {
		raw = raw[2:]
	}
	if len(raw) != hex.EncodedLen(FingerprintSize) {
		return fp, dErrors.New(dErrors.CodeInvalidInput, "fingerprint must be 32 hex-encoded bytes")
	}
	decoded, err := hex.DecodeString(strings.ToLower(raw))
	if err != nil {
		return fp, dErrors.Wrap(err, dErrors.CodeInvalidInput, "fingerprint is not valid hex")
	}
	copy(fp[:], decoded)
	return fp, nil
}

// FingerprintFromBytes copies b into a Fingerprint. b must be exactly FingerprintSize bytes.
func FingerprintFromBytes(b []byte) (Fingerprint, error) {
	var fp Fingerprint
	if len(b) != FingerprintSize {
		return fp, dErrors.New(dErrors.CodeInvalidInput, "fingerprint must be 32 bytes")
	}
	copy(fp[:], b)
	return fp, nil
}

// FingerprintOf hashes a document with legacy Keccak-256, the digest consumers of
// the notification stream already compute on their side.
func FingerprintOf(document []byte) Fingerprint {
	var fp Fingerprint
	h := sha3.NewLegacyKeccak256()
	h.Write(document)
	copy(fp[:], h.Sum(nil))
	return fp
}

// String renders the fingerprint as 0x-prefixed lowercase hex.
func (f Fingerprint) String() string {
	return "0x" + hex.EncodeToString(f[:])
}

// Bytes returns a copy of the raw hash.
func (f Fingerprint) Bytes() []byte {
	out := make([]byte, FingerprintSize)
	copy(out, f[:])
	return out
}

// IsZero reports whether every byte is zero. The zero hash is still a legal fingerprint.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	parsed, err := ParseFingerprint(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
