// Package harness wires the pipeline end to end: load and snapshot the
// dataset, sweep the model endpoint, persist outputs, sweep the judge,
// persist evaluation results. The CLI commands are thin wrappers over the
// three operations here (Test, Evaluate, Run).
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ahrav/go-autoeval/internal/config"
	"github.com/ahrav/go-autoeval/internal/dataset"
	"github.com/ahrav/go-autoeval/internal/domain"
	"github.com/ahrav/go-autoeval/internal/judge"
	"github.com/ahrav/go-autoeval/internal/runner"
	"github.com/ahrav/go-autoeval/internal/transport"
)

// Harness executes runs against a fixed configuration. The HTTP client is
// shared across all calls of a run; per-attempt timeouts are enforced by
// the transport layer, so the client carries none.
type Harness struct {
	cfg    *config.Config
	client *http.Client
	logger *slog.Logger
	runID  string
}

// New constructs a Harness with a fresh run id.
func New(cfg *config.Config, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger,
		runID:  uuid.NewString(),
	}
}

// RunID identifies this harness instance in logs and derived file names.
func (h *Harness) RunID() string { return h.runID }

// TestOutcome carries everything the model sweep produced, so a combined
// run can hand rows and outputs to the judge without a disk round-trip.
type TestOutcome struct {
	CopiedDataset string
	OutputPath    string
	Table         *dataset.Table
	Rows          []domain.Row
	Outcomes      []domain.ModelOutcome
}

// Test snapshots the dataset, sweeps the model endpoint, and writes the
// outputs file. CSV outputs are streamed row by row so an interrupted run
// leaves the completed rows on disk.
func (h *Harness) Test(ctx context.Context, datasetPath string) (*TestOutcome, error) {
	if err := h.cfg.Model.Validate(); err != nil {
		return nil, err
	}

	copied, err := dataset.CopyWithTimestamp(datasetPath, h.cfg.Paths.TestSetsDir)
	if err != nil {
		return nil, fmt.Errorf("snapshot dataset: %w", err)
	}
	table, err := dataset.Load(copied)
	if err != nil {
		return nil, err
	}
	rows, err := dataset.Rows(table)
	if err != nil {
		return nil, err
	}
	h.logger.Info("test set loaded", "path", copied, "rows", len(rows), "run_id", h.runID)

	kind, err := dataset.DetectKind(copied)
	if err != nil {
		return nil, err
	}
	outPath, err := dataset.DeriveOutputPath(h.cfg.Paths.OutputResultsDir, dataset.BaseName(copied), "outputs", extFor(kind))
	if err != nil {
		return nil, err
	}

	for _, name := range dataset.ModelResultColumns {
		table.EnsureColumn(name)
	}

	r := runner.New(transport.NewCaller(h.client, h.logger), h.cfg.Model, h.cfg.UserID, h.logger)

	var stream *dataset.StreamWriter
	streamed := 0
	if kind == dataset.KindCSV {
		stream, err = dataset.NewStreamWriter(ctx, outPath, table.Columns)
		if err != nil {
			return nil, fmt.Errorf("open output stream: %w", err)
		}
		r.OnRow = func(i int, out domain.ModelOutcome) {
			table.ApplyModelOutcome(i, out)
			if i != streamed {
				// A prior append failed; stop streaming and rely on the
				// tail append below to avoid a misaligned file.
				return
			}
			if err := stream.Append(table.Records[i]); err != nil {
				h.logger.Error("stream output row", "row", i, "error", err)
				return
			}
			streamed++
		}
	}

	outcomes := r.Run(ctx, rows)
	table.ApplyModelOutcomes(outcomes)

	if stream != nil {
		// Rows skipped by an abort never reached OnRow; append them so the
		// file stays one-output-row-per-input-row.
		for i := streamed; i < len(table.Records); i++ {
			if err := stream.Append(table.Records[i]); err != nil {
				h.logger.Error("stream output row", "row", i, "error", err)
				break
			}
		}
		if err := stream.Close(); err != nil {
			return nil, fmt.Errorf("close output stream: %w", err)
		}
	} else if err := dataset.Save(table, outPath); err != nil {
		return nil, fmt.Errorf("save outputs: %w", err)
	}

	h.logger.Info("outputs saved", "path", outPath, "rows", len(outcomes))
	return &TestOutcome{
		CopiedDataset: copied,
		OutputPath:    outPath,
		Table:         table,
		Rows:          rows,
		Outcomes:      outcomes,
	}, nil
}

// Evaluate loads an existing outputs file, sweeps the judge, and writes
// the evaluation file. Returns the evaluation file path.
func (h *Harness) Evaluate(ctx context.Context, outputsPath string) (string, error) {
	if err := h.cfg.Judge.Validate(); err != nil {
		return "", err
	}

	table, err := dataset.Load(outputsPath)
	if err != nil {
		return "", err
	}
	rows, err := dataset.Rows(table)
	if err != nil {
		return "", err
	}

	outputs := make([]string, table.Len())
	for i := range outputs {
		outputs[i] = table.Get(i, domain.ColOutput)
	}

	return h.evaluateInto(ctx, table, rows, outputs, outputsPath)
}

// Run sweeps the model, persists outputs, then judges the fresh results
// in memory. Returns the model outcome plus the evaluation file path.
func (h *Harness) Run(ctx context.Context, datasetPath string) (*TestOutcome, string, error) {
	if err := h.cfg.Judge.Validate(); err != nil {
		return nil, "", err
	}

	test, err := h.Test(ctx, datasetPath)
	if err != nil {
		return nil, "", err
	}

	outputs := make([]string, len(test.Outcomes))
	for i, out := range test.Outcomes {
		outputs[i] = out.Output
	}

	evalPath, err := h.evaluateInto(ctx, test.Table, test.Rows, outputs, test.CopiedDataset)
	if err != nil {
		return test, "", err
	}
	return test, evalPath, nil
}

// evaluateInto runs the judge sweep over rows/outputs and writes the
// labeled table next to basePath's name in the evaluation results dir.
func (h *Harness) evaluateInto(ctx context.Context, table *dataset.Table, rows []domain.Row, outputs []string, basePath string) (string, error) {
	ev := judge.New(transport.NewCaller(h.client, h.logger), h.cfg.Judge, h.cfg.UserID, h.logger)
	labels := ev.Run(ctx, rows, outputs)
	table.ApplyLabels(labels)

	kind, err := dataset.DetectKind(basePath)
	if err != nil {
		return "", err
	}
	evalPath, err := dataset.DeriveOutputPath(h.cfg.Paths.EvaluationResultsDir, dataset.BaseName(basePath), "evaluation", extFor(kind))
	if err != nil {
		return "", err
	}
	if err := dataset.Save(table, evalPath); err != nil {
		return "", fmt.Errorf("save evaluation: %w", err)
	}

	failed := 0
	for _, l := range labels {
		if l.Label == nil {
			failed++
		}
	}
	h.logger.Info("evaluation saved", "path", evalPath, "rows", len(labels), "unlabeled_rows", failed)
	return evalPath, nil
}

func extFor(kind dataset.Kind) string {
	if kind == dataset.KindExcel {
		return ".xlsx"
	}
	return ".csv"
}
