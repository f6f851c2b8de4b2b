package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "consentwindow/pkg/domain-errors"
)

// TestParseOwnerID_Invariants validates the parsing invariant:
// "owner IDs must be valid, non-empty, non-nil UUIDs"
func TestParseOwnerID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseOwnerID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseOwnerID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseOwnerID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		owner, err := ParseOwnerID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, OwnerID(valid), owner)
		assert.False(t, owner.IsNil())
	})
}

func TestParseOwnerID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE consent_windows;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOwnerID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParseFingerprint(t *testing.T) {
	const hexHash = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

	t.Run("accepts bare and prefixed hex", func(t *testing.T) {
		bare, err := ParseFingerprint(hexHash)
		require.NoError(t, err)
		prefixed, err := ParseFingerprint("0x" + hexHash)
		require.NoError(t, err)
		upper, err := ParseFingerprint("0X" + strings.ToUpper(hexHash))
		require.NoError(t, err)

		assert.Equal(t, bare, prefixed)
		assert.Equal(t, bare, upper)
		assert.Equal(t, "0x"+hexHash, bare.String())
	})

	t.Run("accepts the zero hash", func(t *testing.T) {
		fp, err := ParseFingerprint(strings.Repeat("0", 64))
		require.NoError(t, err)
		assert.True(t, fp.IsZero())
	})

	rejected := map[string]string{
		"empty":       "",
		"prefix only": "0x",
		"too short":   hexHash[:62],
		"too long":    hexHash + "00",
		"non hex":     strings.Repeat("zz", 32),
		"embedded 0x": "0x0x" + hexHash[:60],
	}
	for name, input := range rejected {
		t.Run("rejects "+name, func(t *testing.T) {
			_, err := ParseFingerprint(input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestFingerprintFromBytes(t *testing.T) {
	raw := make([]byte, FingerprintSize)
	raw[0] = 0xab
	fp, err := FingerprintFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, fp.Bytes())

	_, err = FingerprintFromBytes(raw[:31])
	require.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Owner OwnerID     `json:"owner"`
		Hash  Fingerprint `json:"hash"`
	}
	fp, err := ParseFingerprint(strings.Repeat("ab", 32))
	require.NoError(t, err)
	in := payload{Owner: NewOwnerID(), Hash: fp}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hash":"0xabab`)

	var out payload
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	err = json.Unmarshal([]byte(`{"owner":"nope","hash":"0x00"}`), &out)
	require.Error(t, err)
}

func TestFingerprintOf(t *testing.T) {
	assert.Equal(t,
		"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		FingerprintOf(nil).String())
	assert.Equal(t,
		"0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8",
		FingerprintOf([]byte("hello")).String())
	assert.NotEqual(t, FingerprintOf([]byte("a")), FingerprintOf([]byte("b")))
}
