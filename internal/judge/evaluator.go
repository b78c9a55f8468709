package judge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahrav/go-autoeval/internal/config"
	"github.com/ahrav/go-autoeval/internal/domain"
	"github.com/ahrav/go-autoeval/internal/extract"
	"github.com/ahrav/go-autoeval/internal/transport"
)

// Evaluator drives the judge sweep: partition rows, call the judge per
// batch, reconcile labels. Batches are processed independently and in
// order; one batch's terminal failure never blocks the next.
type Evaluator struct {
	caller *transport.Caller
	cfg    config.JudgeAPIConfig
	userID string
	logger *slog.Logger
}

// New constructs an Evaluator. A nil logger falls back to slog.Default.
func New(caller *transport.Caller, cfg config.JudgeAPIConfig, userID string, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{caller: caller, cfg: cfg, userID: userID, logger: logger}
}

// Run evaluates every row and returns one reconciled label per row, in
// row order. outputs is positionally aligned with rows and carries the
// model sweep's output column. Cancelling the context stops between
// batches; rows in unprocessed batches still get a label recording the
// abort.
func (e *Evaluator) Run(ctx context.Context, rows []domain.Row, outputs []string) []domain.ReconciledLabel {
	labels := make([]domain.ReconciledLabel, 0, len(rows))
	batches := Partition(rows, e.cfg.BatchSize, e.cfg.MaxMergeRows)

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			for _, row := range batch.Rows {
				labels = append(labels, domain.ReconciledLabel{
					RowID:    row.ID,
					JudgeErr: fmt.Sprintf("run aborted before batch was processed: %v", err),
				})
			}
			continue
		}

		res := e.caller.Do(ctx, &transport.Request{
			Endpoint:      e.cfg.Endpoint,
			APIKey:        e.cfg.APIKey,
			Payload:       e.payload(batch, outputs),
			Timeout:       e.cfg.Timeout,
			MaxRetries:    e.cfg.MaxRetries,
			RetryInterval: e.cfg.RetryInterval,
		})

		var items []extract.Item
		var reason string
		if res.Succeeded() {
			items, reason = extract.JudgeItems(res.Payload)
		}

		labels = append(labels, Reconcile(batch, items, res, reason)...)
		e.logger.Info("batch judged",
			"batch", batch.Index,
			"rows", batch.Size(),
			"status", string(res.Status),
			"attempts", res.Attempts,
		)
	}
	return labels
}

// merged reports whether judge calls carry a list of items rather than a
// single pair.
func (e *Evaluator) merged() bool {
	return e.cfg.BatchSize > 1 || e.cfg.MaxMergeRows > 1
}

// payload builds the judge request body for the configured endpoint kind.
// outputs is indexed by absolute row position via batch.Start.
func (e *Evaluator) payload(batch domain.Batch, outputs []string) map[string]any {
	items := make([]map[string]any, batch.Size())
	for i, row := range batch.Rows {
		output := ""
		if pos := batch.Start + i; pos < len(outputs) {
			output = outputs[pos]
		}
		items[i] = map[string]any{
			"ground_truth": row.GroundTruth,
			"output":       output,
		}
	}

	if e.cfg.Kind == config.JudgeKindDifyWorkflow {
		var inputs map[string]any
		if e.merged() {
			inputs = map[string]any{"items": items}
		} else {
			inputs = items[0]
		}
		return map[string]any{
			"inputs":        inputs,
			"response_mode": "blocking",
			"user":          e.userID,
		}
	}

	if e.merged() {
		return map[string]any{"items": items}
	}
	return map[string]any{
		"input": fmt.Sprintf("ground_truth: %s\noutput: %s", batch.Rows[0].GroundTruth, items[0]["output"]),
	}
}
