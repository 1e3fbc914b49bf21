package loyalty

import (
	"context"
	"errors"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
)

// Metrics receives loyalty business measurements
type Metrics interface {
	RecordLedgerEntry(ctx context.Context, txType string, points int64, outcome string, elapsed time.Duration)
	RecordTierChange(ctx context.Context, from, to string)
	RecordLookup(ctx context.Context, source string)
}

type nopMetrics struct{}

func (nopMetrics) RecordLedgerEntry(context.Context, string, int64, string, time.Duration) {}
func (nopMetrics) RecordTierChange(context.Context, string, string)                       {}
func (nopMetrics) RecordLookup(context.Context, string)                                   {}

// outcomeOf labels an operation result with its error code
func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "error"
}
