// Package judge submits (ground_truth, output) pairs to the judge endpoint
// in positional batches and reconciles the responses back onto the rows.
// Reconciliation is deliberately lossy-tolerant: a response whose
// granularity does not match the batch broadcasts its first value and
// flags every row, and a terminally failed batch labels its rows with the
// shared error instead of aborting the pass.
package judge

import (
	"fmt"

	"github.com/ahrav/go-autoeval/internal/domain"
	"github.com/ahrav/go-autoeval/internal/extract"
)

// Partition groups rows into fixed positional chunks of
// min(batchSize, maxMergeRows), clamped to at least 1. The last chunk may
// be smaller. No row is skipped, duplicated, or reordered.
func Partition(rows []domain.Row, batchSize, maxMergeRows int) []domain.Batch {
	chunk := batchSize
	if maxMergeRows < chunk {
		chunk = maxMergeRows
	}
	if chunk < 1 {
		chunk = 1
	}

	batches := make([]domain.Batch, 0, (len(rows)+chunk-1)/chunk)
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, domain.Batch{
			Index: len(batches),
			Start: start,
			Rows:  rows[start:end],
		})
	}
	return batches
}

// Reconcile maps one judge call outcome onto the batch's rows, producing
// exactly one label per row:
//
//   - item count == batch size: element i pairs with row i.
//   - item count == 1: the single value broadcasts to every row.
//   - any other count: the first value broadcasts and every row's
//     judge_error notes the mismatch.
//   - terminal call failure or empty extraction: nil labels with the
//     shared error.
//
// extractReason carries the extractor's failure note for calls that
// succeeded at the HTTP layer but yielded no scores.
func Reconcile(batch domain.Batch, items []extract.Item, call *domain.CallResult, extractReason string) []domain.ReconciledLabel {
	labels := make([]domain.ReconciledLabel, batch.Size())
	for i, row := range batch.Rows {
		labels[i] = domain.ReconciledLabel{RowID: row.ID}
	}

	var elapsed *int64
	var status *int
	if call.Succeeded() || call.Status == domain.CallHTTPError {
		e := call.ElapsedMs
		elapsed = &e
	}
	if call.HTTPStatus != 0 {
		s := call.HTTPStatus
		status = &s
	}
	for i := range labels {
		labels[i].JudgeElapsedMs = elapsed
		labels[i].JudgeStatus = status
	}

	if !call.Succeeded() {
		msg := fmt.Sprintf("%s: %s", call.Status, call.Err)
		for i := range labels {
			labels[i].JudgeErr = msg
		}
		return labels
	}

	if len(items) == 0 {
		msg := "extract score: no results in judge response"
		if extractReason != "" {
			msg = "extract score: " + extractReason
		}
		for i := range labels {
			labels[i].JudgeErr = msg
		}
		return labels
	}

	switch {
	case len(items) == batch.Size():
		for i := range labels {
			labels[i].Label = items[i].Score
		}
	case len(items) == 1:
		for i := range labels {
			labels[i].Label = items[0].Score
		}
	default:
		note := fmt.Sprintf("judge returned %d results for %d rows; first value broadcast", len(items), batch.Size())
		for i := range labels {
			labels[i].Label = items[0].Score
			labels[i].JudgeErr = note
		}
	}
	return labels
}
