package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		DatabaseURL:        "postgres://localhost/wageadvance",
		Environment:        "development",
		TokenTTL:           time.Hour,
		AdvanceCapRatio:    decimal.RequireFromString("0.8"),
		AdvanceFeeRate:     decimal.RequireFromString("0.05"),
		AdvanceMinAmount:   decimal.NewFromInt(1),
		MaxBodyBytes:       1048576,
		MaxUploadBytes:     5 << 20,
		RateLimitPerMinute: 60,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing database url", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: true},
		{name: "production without secret", mutate: func(c *Config) { c.Environment = "production" }, wantErr: true},
		{name: "cap ratio above one", mutate: func(c *Config) { c.AdvanceCapRatio = decimal.RequireFromString("1.2") }, wantErr: true},
		{name: "cap ratio zero", mutate: func(c *Config) { c.AdvanceCapRatio = decimal.Zero }, wantErr: true},
		{name: "fee rate of one", mutate: func(c *Config) { c.AdvanceFeeRate = decimal.NewFromInt(1) }, wantErr: true},
		{name: "email without host", mutate: func(c *Config) { c.EmailEnabled = true }, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoadReadsDecimalsAndLists(t *testing.T) {
	t.Setenv("ADVANCE_CAP_RATIO", "0.75")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("ADVANCE_FEE_RATE", "not-a-number")

	cfg := Load()
	require.True(t, cfg.AdvanceCapRatio.Equal(decimal.RequireFromString("0.75")))
	require.True(t, cfg.AdvanceFeeRate.Equal(decimal.RequireFromString("0.05")))
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
}
