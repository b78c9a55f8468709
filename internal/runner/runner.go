// Package runner drives the model under test across a dataset: one POST
// per row, sequential and order-preserving, with each row's failure
// isolated to that row. The runner owns payload shaping for the supported
// endpoint kinds and converts call results into per-row outcome columns.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahrav/go-autoeval/internal/config"
	"github.com/ahrav/go-autoeval/internal/domain"
	"github.com/ahrav/go-autoeval/internal/extract"
	"github.com/ahrav/go-autoeval/internal/transport"
)

// Runner executes the model sweep.
type Runner struct {
	caller *transport.Caller
	cfg    config.ModelAPIConfig
	userID string
	logger *slog.Logger

	// OnRow, when set, observes each outcome as it completes. Used by the
	// harness to stream partial results to disk.
	OnRow func(index int, outcome domain.ModelOutcome)
}

// New constructs a Runner. The caller is required; a nil logger falls back
// to slog.Default.
func New(caller *transport.Caller, cfg config.ModelAPIConfig, userID string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{caller: caller, cfg: cfg, userID: userID, logger: logger}
}

// Run processes every row in order and returns one outcome per row,
// positionally aligned with the input. A row whose retries are exhausted
// gets an error outcome and the sweep continues; cancelling the context
// stops between rows, leaving completed outcomes intact and marking the
// remainder as not attempted.
func (r *Runner) Run(ctx context.Context, rows []domain.Row) []domain.ModelOutcome {
	outcomes := make([]domain.ModelOutcome, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(rows); j++ {
				outcomes[j] = domain.ModelOutcome{
					RowID: rows[j].ID,
					Err:   fmt.Sprintf("run aborted before row was processed: %v", err),
				}
			}
			r.logger.Warn("model sweep aborted", "completed_rows", i, "total_rows", len(rows))
			return outcomes
		}

		outcomes[i] = r.runRow(ctx, row)
		if r.OnRow != nil {
			r.OnRow(i, outcomes[i])
		}
		r.logger.Info("row processed",
			"row_id", row.ID,
			"has_error", outcomes[i].Err != "",
		)
	}
	return outcomes
}

// runRow issues one model call and maps the result onto outcome columns.
func (r *Runner) runRow(ctx context.Context, row domain.Row) domain.ModelOutcome {
	out := domain.ModelOutcome{RowID: row.ID, StartedAt: time.Now()}

	res := r.caller.Do(ctx, &transport.Request{
		Endpoint:      r.cfg.Endpoint,
		APIKey:        r.cfg.APIKey,
		Payload:       r.payload(row),
		Timeout:       r.cfg.Timeout,
		MaxRetries:    r.cfg.MaxRetries,
		RetryInterval: r.cfg.RetryInterval,
	})

	if res.HTTPStatus != 0 {
		status := res.HTTPStatus
		out.Status = &status
	}

	switch {
	case res.Succeeded():
		elapsed := res.ElapsedMs
		out.ElapsedMs = &elapsed
		text, reason := extract.ModelText(res.Payload, res.ContentType)
		out.Output = text
		if reason != "" {
			// The call was HTTP-successful; only extraction failed.
			out.Err = "extract output: " + reason
		}
	case res.Status == domain.CallHTTPError:
		elapsed := res.ElapsedMs
		out.ElapsedMs = &elapsed
		out.Err = res.Err
	default:
		// Timeout, transport, or parse failure: no meaningful elapsed time
		// for the row, only the classified error.
		out.Err = fmt.Sprintf("%s: %s", res.Status, res.Err)
	}
	return out
}

// payload builds the request body for the configured endpoint kind.
func (r *Runner) payload(row domain.Row) map[string]any {
	switch r.cfg.Kind {
	case config.ModelKindDifyCompletion:
		return map[string]any{
			"inputs":        map[string]any{r.cfg.InputField: row.Input},
			"response_mode": "blocking",
			"user":          r.userID,
		}
	case config.ModelKindDifyChat:
		return map[string]any{
			"inputs":        map[string]any{},
			"query":         row.Input,
			"response_mode": "blocking",
			"user":          r.userID,
		}
	default:
		return map[string]any{r.cfg.InputField: row.Input}
	}
}
