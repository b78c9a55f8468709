package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-autoeval/internal/config"
	"github.com/ahrav/go-autoeval/internal/dataset"
	"github.com/ahrav/go-autoeval/internal/harness"
)

const defaultConfigFile = "config.ini"

var errDatasetRequired = errors.New("a dataset path is required (--dataset or execution.dataset in the config)")

// options carries the CLI flag values that override config file settings.
type options struct {
	configPath string
	dataset    string

	modelEndpoint string
	modelAPIKey   string
	inputField    string
	modelTimeout  int
	modelRetries  int
	modelKind     string

	judgeEndpoint string
	judgeAPIKey   string
	batchSize     int
	maxMergeRows  int
	judgeTimeout  int
	judgeRetries  int
	judgeKind     string

	userID string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "autoeval",
		Short:         "Batch-test a model endpoint and judge its outputs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigFile, "config file path (ini or yaml)")

	root.AddCommand(newTestCmd(opts), newEvaluateCmd(opts), newRunCmd(opts))
	return root
}

// commonFlags registers the endpoint override flags shared by every
// subcommand, mirroring the config file keys one to one.
func commonFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.StringVar(&opts.dataset, "dataset", "", "test set file path (.csv or .xlsx)")
	f.StringVar(&opts.modelEndpoint, "model-endpoint", "", "model API endpoint")
	f.StringVar(&opts.modelAPIKey, "model-api-key", "", "model API key")
	f.StringVar(&opts.inputField, "input-field", "", "request field name for the row input")
	f.IntVar(&opts.modelTimeout, "model-timeout", 0, "model API timeout in seconds")
	f.IntVar(&opts.modelRetries, "model-retries", -1, "model API retries after the first attempt")
	f.StringVar(&opts.modelKind, "model-kind", "", "model API kind: generic, dify_completion, dify_chat")
	f.StringVar(&opts.judgeEndpoint, "judge-endpoint", "", "judge API endpoint")
	f.StringVar(&opts.judgeAPIKey, "judge-api-key", "", "judge API key")
	f.IntVar(&opts.batchSize, "batch-size", 0, "judge batch size")
	f.IntVar(&opts.maxMergeRows, "max-merge-rows", 0, "max rows merged into one judge call")
	f.IntVar(&opts.judgeTimeout, "judge-timeout", 0, "judge API timeout in seconds")
	f.IntVar(&opts.judgeRetries, "judge-retries", -1, "judge API retries after the first attempt")
	f.StringVar(&opts.judgeKind, "judge-kind", "", "judge API kind: dify_workflow, generic")
	f.StringVar(&opts.userID, "user-id", "", "user field sent to Dify endpoints")
}

func newTestCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run the model sweep and write the outputs file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, cfg, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			path, err := datasetPath(opts, cfg)
			if err != nil {
				return err
			}
			out, err := h.Test(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.OutputPath)
			return nil
		},
	}
	commonFlags(cmd, opts)
	return cmd
}

func newEvaluateCmd(opts *options) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Judge an existing outputs file and write the evaluation file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, _, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			if input == "" {
				return errors.New("--input is required")
			}
			path, err := h.Evaluate(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	commonFlags(cmd, opts)
	cmd.Flags().StringVar(&input, "input", "", "model outputs file path (.csv or .xlsx)")
	return cmd
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the model sweep, then judge the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, cfg, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			path, err := datasetPath(opts, cfg)
			if err != nil {
				return err
			}
			out, evalPath, err := h.Run(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.OutputPath)
			fmt.Fprintln(cmd.OutOrStdout(), evalPath)
			return nil
		},
	}
	commonFlags(cmd, opts)
	return cmd
}

// setup loads configuration, applies flag overrides, and builds the
// harness with logging configured.
func setup(cmd *cobra.Command, opts *options) (*harness.Harness, *config.Config, error) {
	path := opts.configPath
	if path == defaultConfigFile && !cmd.Flags().Changed("config") {
		// The implicit default is optional; an explicit path must exist.
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	applyOverrides(cmd, opts, cfg)

	logger, err := newLogger(cfg.Paths.LogDir)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	return harness.New(cfg, logger), cfg, nil
}

// applyOverrides copies changed flag values over the loaded config.
func applyOverrides(cmd *cobra.Command, opts *options, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("model-endpoint") {
		cfg.Model.Endpoint = opts.modelEndpoint
	}
	if changed("model-api-key") {
		cfg.Model.APIKey = opts.modelAPIKey
	}
	if changed("input-field") {
		cfg.Model.InputField = opts.inputField
	}
	if changed("model-timeout") {
		cfg.Model.Timeout = time.Duration(opts.modelTimeout) * time.Second
	}
	if changed("model-retries") {
		cfg.Model.MaxRetries = opts.modelRetries
	}
	if changed("model-kind") {
		cfg.Model.Kind = opts.modelKind
	}

	if changed("judge-endpoint") {
		cfg.Judge.Endpoint = opts.judgeEndpoint
	}
	if changed("judge-api-key") {
		cfg.Judge.APIKey = opts.judgeAPIKey
	}
	if changed("batch-size") {
		cfg.Judge.BatchSize = opts.batchSize
	}
	if changed("max-merge-rows") {
		cfg.Judge.MaxMergeRows = opts.maxMergeRows
	}
	if changed("judge-timeout") {
		cfg.Judge.Timeout = time.Duration(opts.judgeTimeout) * time.Second
	}
	if changed("judge-retries") {
		cfg.Judge.MaxRetries = opts.judgeRetries
	}
	if changed("judge-kind") {
		cfg.Judge.Kind = opts.judgeKind
	}

	if changed("user-id") {
		cfg.UserID = opts.userID
	}
}

// datasetPath resolves the test set path from the flag or the config's
// execution section.
func datasetPath(opts *options, cfg *config.Config) (string, error) {
	if opts.dataset != "" {
		return opts.dataset, nil
	}
	if cfg.Dataset != "" {
		return cfg.Dataset, nil
	}
	return "", errDatasetRequired
}

// newLogger writes structured logs to stderr and, when a log dir is
// configured, to a shared harness log file.
func newLogger(logDir string) (*slog.Logger, error) {
	var w io.Writer = os.Stderr
	if logDir != "" {
		if err := dataset.EnsureDir(logDir); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(filepath.Join(logDir, "autoeval.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		w = io.MultiWriter(os.Stderr, f)
	}
	return slog.New(slog.NewTextHandler(w, nil)), nil
}
