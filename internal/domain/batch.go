package domain

// Batch is a contiguous group of rows submitted to the judge as one call.
// Membership is computed once, upfront, from row order; a row belongs to
// exactly one batch per evaluation pass.
type Batch struct {
	// Index is the zero-based position of the batch in the pass.
	Index int

	// Start is the position of the batch's first row in the dataset.
	Start int

	// Rows are the member rows in dataset order.
	Rows []Row
}

// Size returns the number of rows in the batch.
func (b Batch) Size() int { return len(b.Rows) }

// ReconciledLabel is the final per-row outcome of judge evaluation. Every
// submitted row produces exactly one, even when its batch failed terminally
// (nil Label, JudgeErr populated) or the judge response granularity did not
// match the batch size.
type ReconciledLabel struct {
	RowID string

	// Label is the judge's score for the row, nil when the batch call failed.
	Label *float64

	// JudgeElapsedMs is the batch's total call time; every row of a batch
	// reports the same value.
	JudgeElapsedMs *int64

	// JudgeStatus is the HTTP status of the batch call's last attempt.
	JudgeStatus *int

	// JudgeErr notes a batch failure or a degraded reconciliation. Empty
	// when the label was paired cleanly.
	JudgeErr string
}
