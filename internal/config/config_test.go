package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-autoeval/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.Equal(t, "input", cfg.Model.InputField)
	assert.Equal(t, config.ModelKindGeneric, cfg.Model.Kind)
	assert.Equal(t, 30*time.Second, cfg.Model.Timeout)
	assert.Equal(t, 2, cfg.Model.MaxRetries)
	assert.Equal(t, 600*time.Millisecond, cfg.Model.RetryInterval)

	assert.Equal(t, config.JudgeKindDifyWorkflow, cfg.Judge.Kind)
	assert.Equal(t, 1, cfg.Judge.BatchSize)
	assert.Equal(t, 1, cfg.Judge.MaxMergeRows)

	assert.Equal(t, "test_sets", cfg.Paths.TestSetsDir)
	assert.Equal(t, "output_results", cfg.Paths.OutputResultsDir)
	assert.Equal(t, "evaluation_results", cfg.Paths.EvaluationResultsDir)
	assert.Equal(t, "logs", cfg.Paths.LogDir)

	assert.Equal(t, "auto-ai-testing", cfg.UserID)
	assert.Empty(t, cfg.Model.Endpoint)
	assert.Empty(t, cfg.Judge.Endpoint)
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestLoadINIFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	content := `[model_api]
endpoint = http://model.example/v1/completion
api_key = model-key
input_field = query
kind = dify_chat
timeout = 10
retries = 1

[judge_api]
endpoint = http://judge.example/v1/workflows/run
api_key = judge-key
batch_size = 5
max_merge_rows = 3

[paths]
output_results_dir = out

[execution]
user = alice
dataset = test_sets/demo.csv
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://model.example/v1/completion", cfg.Model.Endpoint)
	assert.Equal(t, "model-key", cfg.Model.APIKey)
	assert.Equal(t, "query", cfg.Model.InputField)
	assert.Equal(t, config.ModelKindDifyChat, cfg.Model.Kind)
	assert.Equal(t, 10*time.Second, cfg.Model.Timeout)
	assert.Equal(t, 1, cfg.Model.MaxRetries)

	assert.Equal(t, "http://judge.example/v1/workflows/run", cfg.Judge.Endpoint)
	assert.Equal(t, "judge-key", cfg.Judge.APIKey)
	assert.Equal(t, 5, cfg.Judge.BatchSize)
	assert.Equal(t, 3, cfg.Judge.MaxMergeRows)
	// Untouched keys keep their defaults.
	assert.Equal(t, config.JudgeKindDifyWorkflow, cfg.Judge.Kind)
	assert.Equal(t, 30*time.Second, cfg.Judge.Timeout)

	assert.Equal(t, "out", cfg.Paths.OutputResultsDir)
	assert.Equal(t, "test_sets", cfg.Paths.TestSetsDir)

	assert.Equal(t, "alice", cfg.UserID)
	assert.Equal(t, "test_sets/demo.csv", cfg.Dataset)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `model_api:
  endpoint: http://model.example/v1
judge_api:
  endpoint: http://judge.example/v1
  retries: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://model.example/v1", cfg.Model.Endpoint)
	assert.Equal(t, "http://judge.example/v1", cfg.Judge.Endpoint)
	assert.Equal(t, 0, cfg.Judge.MaxRetries)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.ini"))
	require.Error(t, err)
}

func TestModelAPIConfigValidate(t *testing.T) {
	base := func() config.ModelAPIConfig {
		cfg := config.DefaultConfig().Model
		cfg.Endpoint = "http://model.example"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.ModelAPIConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*config.ModelAPIConfig) {}},
		{
			name:    "missing endpoint",
			mutate:  func(c *config.ModelAPIConfig) { c.Endpoint = "" },
			wantErr: "endpoint",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *config.ModelAPIConfig) { c.Timeout = 0 },
			wantErr: "timeout",
		},
		{
			name:    "negative retries",
			mutate:  func(c *config.ModelAPIConfig) { c.MaxRetries = -1 },
			wantErr: "retries",
		},
		{
			name:    "negative interval",
			mutate:  func(c *config.ModelAPIConfig) { c.RetryInterval = -time.Second },
			wantErr: "interval",
		},
		{
			name:    "unknown kind",
			mutate:  func(c *config.ModelAPIConfig) { c.Kind = "mystery" },
			wantErr: "unknown model kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestJudgeAPIConfigValidate(t *testing.T) {
	base := func() config.JudgeAPIConfig {
		cfg := config.DefaultConfig().Judge
		cfg.Endpoint = "http://judge.example"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.JudgeAPIConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*config.JudgeAPIConfig) {}},
		{
			name:    "missing endpoint",
			mutate:  func(c *config.JudgeAPIConfig) { c.Endpoint = "" },
			wantErr: "endpoint",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *config.JudgeAPIConfig) { c.BatchSize = 0 },
			wantErr: "batch size",
		},
		{
			name:    "zero merge rows",
			mutate:  func(c *config.JudgeAPIConfig) { c.MaxMergeRows = 0 },
			wantErr: "merge rows",
		},
		{
			name:    "unknown kind",
			mutate:  func(c *config.JudgeAPIConfig) { c.Kind = "mystery" },
			wantErr: "unknown judge kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
