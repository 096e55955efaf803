package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealerRoundTrip(t *testing.T) {
	sealer, err := New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	require.True(t, sealer.Configured())

	sealed, err := sealer.SealString("01020304050607080910")
	require.NoError(t, err)
	require.NotEqual(t, []byte("01020304050607080910"), sealed)

	plain, err := sealer.OpenString(sealed)
	require.NoError(t, err)
	require.Equal(t, "01020304050607080910", plain)
}

func TestSealerWithoutKeyIsPassThrough(t *testing.T) {
	sealer, err := New("")
	require.NoError(t, err)
	require.False(t, sealer.Configured())

	sealed, err := sealer.SealString("04141234567")
	require.NoError(t, err)
	require.Equal(t, []byte("04141234567"), sealed)
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New("short")
	require.Error(t, err)
}

func TestOpenRejectsTruncatedCiphertext(t *testing.T) {
	sealer, err := New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	_, err = sealer.Open([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestDecodeKeyForms(t *testing.T) {
	want := []byte("0123456789abcdef0123456789abcdef")
	cases := map[string]string{
		"raw":       "0123456789abcdef0123456789abcdef",
		"hex":       hex.EncodeToString(want),
		"base64":    base64.StdEncoding.EncodeToString(want),
		"rawBase64": base64.RawStdEncoding.EncodeToString(want),
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := decodeKey(key)
			require.NoError(t, err)
			require.Equal(t, want, got)

			sealer, err := New(key)
			require.NoError(t, err)
			sealed, err := sealer.SealString("V-12345678")
			require.NoError(t, err)
			plain, err := sealer.OpenString(sealed)
			require.NoError(t, err)
			require.Equal(t, "V-12345678", plain)
		})
	}
}

func TestNewRejectsKeyOfWrongLength(t *testing.T) {
	_, err := New("0123456789abcdef0123456789abcdef01234567")
	require.ErrorContains(t, err, "32 bytes, got 40")
}
