package driver

import (
	"context"
	"regexp"
	"strings"
)

// batchSeparator matches a GO batch separator the way SQL Server Management
// Studio does: a line consisting solely of GO (case-insensitive), optionally
// followed by an inline comment. Users paste scripts authored for that tool,
// so this is the one wire-format convention parsed exactly.
var batchSeparator = regexp.MustCompile(`(?im)^[ \t]*GO[ \t]*(?:--[^\r\n]*)?\r?$`)

// SplitBatches splits a submission into GO-delimited batches. A submission
// with no separator is returned unchanged as a single batch, so splitting is
// a no-op partition when there is nothing to split. Otherwise batches are
// trimmed and empty batches dropped.
func SplitBatches(script string) []string {
	if !batchSeparator.MatchString(script) {
		return []string{script}
	}

	parts := batchSeparator.Split(script, -1)
	batches := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			batches = append(batches, part)
		}
	}
	return batches
}

// RunBatch executes a single already-split batch and returns its normalized
// result.
type RunBatch func(ctx context.Context, batch string) (*Result, error)

// ExecBatches splits a submission on GO separators and executes the batches
// sequentially, never concurrently: later batches may depend on side effects
// of earlier ones (schema changes, temp tables). Recordsets and rows-affected
// values are concatenated in execution order. The first failing batch aborts
// the remainder and its error propagates unmodified.
func ExecBatches(ctx context.Context, script string, run RunBatch) (*Result, error) {
	combined := &Result{}
	for _, batch := range SplitBatches(script) {
		res, err := run(ctx, batch)
		if err != nil {
			return nil, err
		}
		combined.Recordsets = append(combined.Recordsets, res.Recordsets...)
		combined.RowsAffected = append(combined.RowsAffected, res.RowsAffected...)
	}
	return combined, nil
}
