package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiworks/lexisurvey/internal/store"
	"github.com/lexiworks/lexisurvey/internal/survey"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, store.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, SourceSeed, cfg.ItemBank.Source)
	assert.Equal(t, survey.DefaultSchedule(), cfg.Survey.Schedule)
	assert.Equal(t, 15, cfg.Survey.Schedule.Total())
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
server:
  addr: ":9090"
store:
  driver: redis
  redis:
    addr: "cache:6379"
    ttl: 2h
item_bank:
  source: file
  path: /srv/bank.json
survey:
  start_rank: 3000
  schedule:
    - {phase: coarse, questions: 4, step_bound: 1000}
    - {phase: verify, questions: 2, step_bound: 50}
scoring:
  method: logistic
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout, "unset keys keep defaults")
	assert.Equal(t, store.DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "cache:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(t, SourceFile, cfg.ItemBank.Source)
	assert.Equal(t, 3000, cfg.Survey.StartRank)
	require.Len(t, cfg.Survey.Schedule, 2)
	assert.Equal(t, 6, cfg.Survey.Schedule.Total())
	assert.Equal(t, "logistic", cfg.Scoring.Method)
	assert.NotEmpty(t, cfg.Generator.Validators, "validators are not configurable from yaml")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDefaultWithoutFile(t *testing.T) {
	t.Setenv("LEXISURVEY_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LEXISURVEY_DB", "/tmp/x.db")
	t.Setenv("LEXISURVEY_STORE_DRIVER", "postgres")
	t.Setenv("LEXISURVEY_REDIS_ADDR", "r:6379")
	t.Setenv("LEXISURVEY_MONGO_URI", "mongodb://m:27017")
	t.Setenv("LEXISURVEY_HTTP_ADDR", ":7000")
	t.Setenv("LEXISURVEY_LOG_LEVEL", "debug")
	t.Setenv("LEXISURVEY_EMBEDDING_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "/tmp/x.db", cfg.Store.DSN)
	assert.Equal(t, store.DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "r:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, SourceMongo, cfg.ItemBank.Source)
	assert.Equal(t, "mongodb://m:27017", cfg.ItemBank.Mongo.URI)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Store.Driver = "cassandra"
	cfg.ItemBank.Source = SourceFile
	cfg.Survey.Schedule = survey.Schedule{
		{Phase: survey.PhaseCoarse, Questions: 5, StepBound: 100},
		{Phase: survey.PhaseFine, Questions: 5, StepBound: 200},
	}
	cfg.Scoring.Method = "spline"
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"server.addr", "cassandra", "item_bank.path", "survey.schedule", "spline", "log.level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	l.Info("hidden")
	l.Warn("shown", "event", "rank_substituted")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"event":"rank_substituted"`)
}
