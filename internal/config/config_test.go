package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
trader:
  name: tester
  base: DOGE
  quote: BUSD
venue:
  api_key: ${TEST_API_KEY}
  secret_key: supersecret
spawner:
  variant: "null"
system:
  log_level: INFO
  db_path: ./tester.db
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadExpandsEnvVarsAndDefaultsReceiveWindow(t *testing.T) {
	t.Setenv("TEST_API_KEY", "key-from-env")
	path := writeTempConfig(t, validYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tester", cfg.Trader.Name)
	assert.Equal(t, 15, cfg.Trader.ReceiveWindowSeconds)
	assert.Equal(t, "key-from-env", string(cfg.Venue.APIKey))
}

func TestValidateAccumulatesEveryFailure(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "trader.name")
	assert.Contains(t, msg, "venue.api_key")
	assert.Contains(t, msg, "venue.secret_key")
	assert.Contains(t, msg, "spawner.variant")
	assert.Contains(t, msg, "system.log_level")
	assert.Contains(t, msg, "system.db_path")
}

func TestValidateRequiresLadderWhenSpawnerIsNotNull(t *testing.T) {
	cfg := &Config{
		Trader: TraderConfig{Name: "t", Base: "DOGE", Quote: "BUSD"},
		Venue:  VenueConfig{APIKey: "k", SecretKey: "s"},
		Spawner: SpawnerConfig{
			Variant: "naive_down_spread",
		},
		System: SystemConfig{LogLevel: "INFO", DBPath: "x.db"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ladder.first_stop")
}

func TestSecretIsRedactedInStringAndYAML(t *testing.T) {
	cfg := &Config{
		Trader:  TraderConfig{Name: "t", Base: "DOGE", Quote: "BUSD"},
		Venue:   VenueConfig{APIKey: "supersecretkey", SecretKey: "supersecretvalue"},
		Spawner: SpawnerConfig{Variant: "null"},
		System:  SystemConfig{LogLevel: "INFO", DBPath: "x.db"},
	}
	rendered := cfg.String()
	assert.NotContains(t, rendered, "supersecretkey")
	assert.NotContains(t, rendered, "supersecretvalue")
	assert.Contains(t, rendered, "REDACTED")
}

func TestLoadSeedConfigValidatesLadder(t *testing.T) {
	path := writeTempConfig(t, `
pair:
  base: DOGE
  quote: BUSD
amount: "1000"
ladder:
  first_stop: "1"
  factor: "2"
  stop_count: 4
initial:
  spawn_begin_offset: 0
  spawn_end_offset: 2
db_path: ./seed.db
`)
	cfg, err := LoadSeedConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "DOGE", cfg.Pair.Base)
	assert.Equal(t, 4, cfg.Ladder.StopCount)
}

func TestLoadSeedConfigRejectsMissingAmount(t *testing.T) {
	path := writeTempConfig(t, `
pair:
  base: DOGE
  quote: BUSD
ladder:
  first_stop: "1"
  factor: "2"
  stop_count: 4
db_path: ./seed.db
`)
	_, err := LoadSeedConfig(path)
	assert.Error(t, err)
}
