// Package config holds harness configuration: endpoint settings for the
// model under test and the judge, batching knobs, and output directories.
// Values layer in the usual order: defaults, then a config file (ini or
// yaml, loaded with viper), then AUTOEVAL_* environment variables, then
// explicit CLI overrides applied by the command layer.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration validation errors.
var (
	errEndpointMissing  = errors.New("endpoint must be set")
	errTimeoutInvalid   = errors.New("timeout must be greater than 0")
	errRetriesInvalid   = errors.New("max retries must be >= 0")
	errIntervalInvalid  = errors.New("retry interval must be >= 0")
	errBatchSizeInvalid = errors.New("batch size must be >= 1")
	errMergeRowsInvalid = errors.New("max merge rows must be >= 1")
	errUnknownModelKind = errors.New("unknown model kind")
	errUnknownJudgeKind = errors.New("unknown judge kind")
	errUnreadableConfig = errors.New("config file could not be read")
)

// Model endpoint kinds. The kind selects the request payload shape built
// by the runner.
const (
	ModelKindGeneric        = "generic"
	ModelKindDifyCompletion = "dify_completion"
	ModelKindDifyChat       = "dify_chat"
)

// Judge endpoint kinds.
const (
	JudgeKindGeneric      = "generic"
	JudgeKindDifyWorkflow = "dify_workflow"
)

// ModelAPIConfig configures calls against the model under test.
type ModelAPIConfig struct {
	Endpoint      string        `json:"endpoint"`
	APIKey        string        `json:"-"` // Sensitive, not serialized
	InputField    string        `json:"input_field"`
	Kind          string        `json:"kind"`
	Timeout       time.Duration `json:"timeout"`
	MaxRetries    int           `json:"max_retries"` // Retries after the first attempt
	RetryInterval time.Duration `json:"retry_interval"`
}

// JudgeAPIConfig configures calls against the judge endpoint.
type JudgeAPIConfig struct {
	Endpoint      string        `json:"endpoint"`
	APIKey        string        `json:"-"` // Sensitive, not serialized
	Kind          string        `json:"kind"`
	Timeout       time.Duration `json:"timeout"`
	MaxRetries    int           `json:"max_retries"`
	RetryInterval time.Duration `json:"retry_interval"`
	BatchSize     int           `json:"batch_size"`
	MaxMergeRows  int           `json:"max_merge_rows"`
}

// PathsConfig configures where datasets, results, and logs are written.
type PathsConfig struct {
	TestSetsDir          string `json:"test_sets_dir"`
	OutputResultsDir     string `json:"output_results_dir"`
	EvaluationResultsDir string `json:"evaluation_results_dir"`
	LogDir               string `json:"log_dir"`
}

// Config is the full harness configuration.
type Config struct {
	Model   ModelAPIConfig `json:"model_api"`
	Judge   JudgeAPIConfig `json:"judge_api"`
	Paths   PathsConfig    `json:"paths"`
	UserID  string         `json:"user"`
	Dataset string         `json:"dataset"` // Default test set path
}

// Load reads configuration from the given file path layered over defaults.
// An empty path skips the file and returns defaults plus environment
// overrides. Missing files are an error only when a path was given
// explicitly; format is detected from the extension (.ini, .yaml, .yml).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUTOEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %v", errUnreadableConfig, err)
		}
	}

	cfg := DefaultConfig()
	cfg.Model.Endpoint = getString(v, "model_api.endpoint", cfg.Model.Endpoint)
	cfg.Model.APIKey = getString(v, "model_api.api_key", cfg.Model.APIKey)
	cfg.Model.InputField = getString(v, "model_api.input_field", cfg.Model.InputField)
	cfg.Model.Kind = getString(v, "model_api.kind", cfg.Model.Kind)
	cfg.Model.Timeout = getSeconds(v, "model_api.timeout", cfg.Model.Timeout)
	cfg.Model.MaxRetries = getInt(v, "model_api.retries", cfg.Model.MaxRetries)

	cfg.Judge.Endpoint = getString(v, "judge_api.endpoint", cfg.Judge.Endpoint)
	cfg.Judge.APIKey = getString(v, "judge_api.api_key", cfg.Judge.APIKey)
	cfg.Judge.Kind = getString(v, "judge_api.kind", cfg.Judge.Kind)
	cfg.Judge.Timeout = getSeconds(v, "judge_api.timeout", cfg.Judge.Timeout)
	cfg.Judge.MaxRetries = getInt(v, "judge_api.retries", cfg.Judge.MaxRetries)
	cfg.Judge.BatchSize = getInt(v, "judge_api.batch_size", cfg.Judge.BatchSize)
	cfg.Judge.MaxMergeRows = getInt(v, "judge_api.max_merge_rows", cfg.Judge.MaxMergeRows)

	cfg.Paths.TestSetsDir = getString(v, "paths.test_sets_dir", cfg.Paths.TestSetsDir)
	cfg.Paths.OutputResultsDir = getString(v, "paths.output_results_dir", cfg.Paths.OutputResultsDir)
	cfg.Paths.EvaluationResultsDir = getString(v, "paths.evaluation_results_dir", cfg.Paths.EvaluationResultsDir)
	cfg.Paths.LogDir = getString(v, "paths.log_dir", cfg.Paths.LogDir)

	cfg.UserID = getString(v, "execution.user", cfg.UserID)
	cfg.Dataset = getString(v, "execution.dataset", cfg.Dataset)

	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		if s := v.GetString(key); s != "" {
			return s
		}
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		return v.GetInt(key)
	}
	return def
}

// getSeconds reads an integer number of seconds, matching the config file
// convention of the original ini layout.
func getSeconds(v *viper.Viper, key string, def time.Duration) time.Duration {
	if v.IsSet(key) {
		return time.Duration(v.GetInt(key)) * time.Second
	}
	return def
}

// Validate checks the model endpoint settings.
func (c ModelAPIConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("model_api: %w", errEndpointMissing)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("model_api: %w, got %v", errTimeoutInvalid, c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("model_api: %w, got %d", errRetriesInvalid, c.MaxRetries)
	}
	if c.RetryInterval < 0 {
		return fmt.Errorf("model_api: %w, got %v", errIntervalInvalid, c.RetryInterval)
	}
	switch c.Kind {
	case ModelKindGeneric, ModelKindDifyCompletion, ModelKindDifyChat:
	default:
		return fmt.Errorf("model_api: %w: %q", errUnknownModelKind, c.Kind)
	}
	return nil
}

// Validate checks the judge endpoint settings.
func (c JudgeAPIConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("judge_api: %w", errEndpointMissing)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("judge_api: %w, got %v", errTimeoutInvalid, c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("judge_api: %w, got %d", errRetriesInvalid, c.MaxRetries)
	}
	if c.RetryInterval < 0 {
		return fmt.Errorf("judge_api: %w, got %v", errIntervalInvalid, c.RetryInterval)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("judge_api: %w, got %d", errBatchSizeInvalid, c.BatchSize)
	}
	if c.MaxMergeRows < 1 {
		return fmt.Errorf("judge_api: %w, got %d", errMergeRowsInvalid, c.MaxMergeRows)
	}
	switch c.Kind {
	case JudgeKindGeneric, JudgeKindDifyWorkflow:
	default:
		return fmt.Errorf("judge_api: %w: %q", errUnknownJudgeKind, c.Kind)
	}
	return nil
}
