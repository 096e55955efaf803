package employee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCedula(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "V-12345678", want: "V-12345678"},
		{raw: "v12.345.678", want: "V-12345678"},
		{raw: " E-8123456 ", want: "E-8123456"},
		{raw: "J-12345678", wantErr: true},
		{raw: "V-123", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := NormalizeCedula(tc.raw)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidCedula)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "04141234567", want: "04141234567"},
		{raw: "+58 412-123-4567", want: "04121234567"},
		{raw: "(0426) 1234567", want: "04261234567"},
		{raw: "4241234567", want: "04241234567"},
		{raw: "02121234567", wantErr: true},
		{raw: "0414123", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := NormalizePhone(tc.raw)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeAccount(t *testing.T) {
	got, err := NormalizeAccount("0102", "0102-0000-12-3456789012")
	require.NoError(t, err)
	assert.Equal(t, "01020000123456789012", got)

	_, err = NormalizeAccount("0134", "01020000123456789012")
	require.ErrorIs(t, err, ErrInvalidAccount)

	_, err = NormalizeAccount("0102", "0102000012345678901")
	require.ErrorIs(t, err, ErrInvalidAccount)
}
