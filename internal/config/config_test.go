package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/flatwatch/scraper/internal/monitor"
)

func newViperWithDefaults() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.Set("storage_api.base_url", "http://localhost:9000")
	return v
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(newViperWithDefaults())
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 60*time.Second, cfg.Monitor.Interval)
	require.Equal(t, 50*time.Second, cfg.Monitor.CycleDeadline)
	require.Equal(t, 4, cfg.Monitor.Concurrency)
	require.Equal(t, 20, cfg.Persistence.BatchSize)
	require.Equal(t, 3, cfg.Persistence.MaxAttempts)
	require.Equal(t, 250*time.Millisecond, cfg.Persistence.BackoffBase)
	require.Contains(t, cfg.Fetch.UserAgent, "flatwatch-scraper")
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(v *viper.Viper)
		wantMsg string
	}{
		{
			name:    "missing storage backend",
			mutate:  func(v *viper.Viper) { v.Set("storage_api.base_url", "") },
			wantMsg: "storage_api.base_url or db.dsn",
		},
		{
			name:    "zero concurrency",
			mutate:  func(v *viper.Viper) { v.Set("monitor.concurrency", 0) },
			wantMsg: "monitor.concurrency",
		},
		{
			name:    "deadline exceeds interval",
			mutate:  func(v *viper.Viper) { v.Set("monitor.cycle_deadline", "2m") },
			wantMsg: "monitor.cycle_deadline",
		},
		{
			name:    "empty user agent",
			mutate:  func(v *viper.Viper) { v.Set("fetch.user_agent", "") },
			wantMsg: "fetch.user_agent",
		},
		{
			name:    "gcs artifacts without bucket",
			mutate:  func(v *viper.Viper) { v.Set("artifacts.provider", "gcs") },
			wantMsg: "artifacts.gcs_bucket",
		},
		{
			name:    "unknown artifacts provider",
			mutate:  func(v *viper.Viper) { v.Set("artifacts.provider", "s3") },
			wantMsg: "artifacts.provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := newViperWithDefaults()
			tt.mutate(v)
			_, err := Load(v)
			require.Error(t, err)
			require.ErrorIs(t, err, monitor.ErrConfiguration)
			require.True(t, strings.Contains(err.Error(), tt.wantMsg), "got %v", err)
		})
	}
}

func TestDBOnlyBackendIsValid(t *testing.T) {
	t.Parallel()

	v := viper.New()
	SetDefaults(v)
	v.Set("db.dsn", "postgres://flatwatch@localhost:5432/flatwatch")

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Empty(t, cfg.StorageAPI.BaseURL)
	require.NotEmpty(t, cfg.DB.DSN)
}
