package config

import "time"

// Endpoint call defaults.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRetries    = 2
	DefaultRetryInterval = 600 * time.Millisecond
)

// Judge batching defaults.
const (
	DefaultBatchSize    = 1
	DefaultMaxMergeRows = 1
)

// Request shaping defaults.
const (
	DefaultInputField = "input"
	DefaultUserID     = "auto-ai-testing"
)

// Output directory defaults.
const (
	DefaultTestSetsDir          = "test_sets"
	DefaultOutputResultsDir     = "output_results"
	DefaultEvaluationResultsDir = "evaluation_results"
	DefaultLogDir               = "logs"
)

// DefaultConfig returns a configuration with every knob at its default.
// Endpoint URLs and API keys have no defaults; they must come from the
// config file, environment, or flags.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelAPIConfig{
			InputField:    DefaultInputField,
			Kind:          ModelKindGeneric,
			Timeout:       DefaultTimeout,
			MaxRetries:    DefaultMaxRetries,
			RetryInterval: DefaultRetryInterval,
		},
		Judge: JudgeAPIConfig{
			Kind:          JudgeKindDifyWorkflow,
			Timeout:       DefaultTimeout,
			MaxRetries:    DefaultMaxRetries,
			RetryInterval: DefaultRetryInterval,
			BatchSize:     DefaultBatchSize,
			MaxMergeRows:  DefaultMaxMergeRows,
		},
		Paths: PathsConfig{
			TestSetsDir:          DefaultTestSetsDir,
			OutputResultsDir:     DefaultOutputResultsDir,
			EvaluationResultsDir: DefaultEvaluationResultsDir,
			LogDir:               DefaultLogDir,
		},
		UserID: DefaultUserID,
	}
}
