package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Lookup sources reported by RecordLookup
const (
	LookupSourceCache     = "cache"
	LookupSourceIndex     = "index"
	LookupSourceAlternate = "index_alternate"
	LookupSourceStore     = "store"
	LookupSourceMiss      = "miss"
)

// LoyaltyMetrics holds the instruments of the points ledger and customer lookup.
type LoyaltyMetrics struct {
	pointsAccrued  *Counter
	pointsRedeemed *Counter
	ledgerOps      *Counter
	ledgerDuration *Histogram
	tierChanges    *Counter
	lookups        *Counter
}

// NewLoyaltyMetrics registers the loyalty instruments on meter
func NewLoyaltyMetrics(meter metric.Meter) (*LoyaltyMetrics, error) {
	var (
		m   LoyaltyMetrics
		err error
	)
	if m.pointsAccrued, err = NewCounter(meter, "loyalty_points_accrued_total", "Points credited to customers", "{point}"); err != nil {
		return nil, err
	}
	if m.pointsRedeemed, err = NewCounter(meter, "loyalty_points_redeemed_total", "Points debited from customers", "{point}"); err != nil {
		return nil, err
	}
	if m.ledgerOps, err = NewCounter(meter, "loyalty_ledger_operations_total", "Ledger entries attempted by outcome", "{operation}"); err != nil {
		return nil, err
	}
	if m.ledgerDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "loyalty_ledger_duration_seconds",
		Description: "Time to apply one ledger entry",
		Unit:        "s",
		Buckets:     DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.tierChanges, err = NewCounter(meter, "loyalty_tier_changes_total", "Customer tier promotions", "{change}"); err != nil {
		return nil, err
	}
	if m.lookups, err = NewCounter(meter, "loyalty_customer_lookups_total", "Customer lookups by the source that answered", "{lookup}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordLedgerEntry records one ledger attempt. Points only count on success.
func (m *LoyaltyMetrics) RecordLedgerEntry(ctx context.Context, txType string, points int64, outcome string, elapsed time.Duration) {
	attrs := []attribute.KeyValue{AttrTxType.String(txType), AttrOutcome.String(outcome)}
	m.ledgerOps.Inc(ctx, attrs...)
	m.ledgerDuration.RecordDuration(ctx, elapsed, attrs...)
	if outcome != "ok" {
		return
	}
	switch txType {
	case "EARNED", "BONUS":
		m.pointsAccrued.Add(ctx, points, AttrTxType.String(txType))
	case "REDEEMED":
		m.pointsRedeemed.Add(ctx, points)
	}
}

// RecordTierChange records a promotion
func (m *LoyaltyMetrics) RecordTierChange(ctx context.Context, from, to string) {
	m.tierChanges.Inc(ctx, AttrTierFrom.String(from), AttrTierTo.String(to))
}

// RecordLookup records which source answered a phone lookup
func (m *LoyaltyMetrics) RecordLookup(ctx context.Context, source string) {
	m.lookups.Inc(ctx, AttrLookupSource.String(source))
}
