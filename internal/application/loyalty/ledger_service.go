package loyalty

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/backoffice/internal/domain/loyalty"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/cache"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
)

// LedgerServiceConfig holds the dependencies of a LedgerService
type LedgerServiceConfig struct {
	Ledger             loyalty.PointsLedgerRepository
	Customers          loyalty.CustomerRepository
	Invalidator        *cache.Invalidator
	EventPublisher     shared.EventPublisher
	Metrics            Metrics
	Logger             *zap.Logger
	MaxHistoryPageSize int
}

// LedgerService credits and debits loyalty points
type LedgerService struct {
	ledger         loyalty.PointsLedgerRepository
	customers      loyalty.CustomerRepository
	invalidator    *cache.Invalidator
	eventPublisher shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
	maxHistorySize int
}

// NewLedgerService creates a LedgerService
func NewLedgerService(cfg LedgerServiceConfig) *LedgerService {
	s := &LedgerService{
		ledger:         cfg.Ledger,
		customers:      cfg.Customers,
		invalidator:    cfg.Invalidator,
		eventPublisher: cfg.EventPublisher,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		maxHistorySize: cfg.MaxHistoryPageSize,
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.maxHistorySize <= 0 {
		s.maxHistorySize = shared.MaxPageSize
	}
	s.logger = s.logger.Named("loyalty.ledger")
	return s
}

// Accrue credits an EARNED or BONUS entry
func (s *LedgerService) Accrue(ctx context.Context, cmd AccrueCommand) (*LedgerResponse, error) {
	txType := loyalty.TransactionEarned
	if cmd.Type != "" {
		t, err := loyalty.ParseTransactionType(cmd.Type)
		if err != nil {
			return nil, err
		}
		txType = t
	}
	entry, err := loyalty.NewAccrual(cmd.OrganizationID, cmd.CustomerID, cmd.Points, txType, cmd.Description, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, entry)
}

// Redeem debits points. Redeeming more than the balance fails with
// INSUFFICIENT_BALANCE and leaves the balance untouched.
func (s *LedgerService) Redeem(ctx context.Context, cmd RedeemCommand) (*LedgerResponse, error) {
	entry, err := loyalty.NewRedemption(cmd.OrganizationID, cmd.CustomerID, cmd.Points, cmd.Description, cmd.RedeemedFrom)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, entry)
}

// Apply commits one ledger entry atomically, then invalidates the
// organization's customer caches and publishes the ledger events.
func (s *LedgerService) Apply(ctx context.Context, entry loyalty.LedgerEntry) (*LedgerResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "points_ledger", "apply")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrganizationID, entry.OrganizationID.String(),
		telemetry.SpanAttrCustomerID, entry.CustomerID.String(),
		telemetry.SpanAttrTxType, string(entry.Type),
		telemetry.SpanAttrPoints, entry.Points,
	)
	log := logger.Ctx(ctx, s.logger).With(
		zap.String("customer_id", entry.CustomerID.String()),
		zap.String("type", string(entry.Type)),
		zap.Int64("points", entry.Points),
	)

	if err := entry.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	start := time.Now()
	result, err := s.ledger.ApplyEntry(ctx, entry)
	if err != nil {
		var de *shared.DomainError
		if !errors.As(err, &de) {
			err = shared.NewPersistenceError("apply ledger entry", err)
		}
		s.metrics.RecordLedgerEntry(ctx, string(entry.Type), entry.Points, outcomeOf(err), time.Since(start))
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrPersistence) {
			log.Error("Ledger entry failed", zap.Error(err))
		} else {
			log.Info("Ledger entry rejected", zap.Error(err))
		}
		return nil, err
	}
	s.metrics.RecordLedgerEntry(ctx, string(entry.Type), entry.Points, "ok", time.Since(start))

	s.invalidate(ctx, entry.OrganizationID)

	events := []shared.DomainEvent{loyalty.NewLedgerEvent(result.Transaction)}
	if result.TierChanged() {
		s.metrics.RecordTierChange(ctx, string(result.PreviousTier), string(result.Customer.Tier))
		telemetry.AddEvent(span, "tier_changed",
			"from", string(result.PreviousTier),
			"to", string(result.Customer.Tier))
		events = append(events, loyalty.NewTierChangedEvent(result.Customer.ID, result.Customer.OrganizationID, result.PreviousTier, result.Customer.Tier))
	}
	s.publish(ctx, events...)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTier, string(result.Customer.Tier),
		"balance_after", result.Transaction.BalanceAfter,
	)
	log.Info("Ledger entry applied",
		zap.Int64("balance_after", result.Transaction.BalanceAfter),
		zap.String("tier", string(result.Customer.Tier)))

	return &LedgerResponse{
		Customer:     ToCustomerResponse(result.Customer),
		Transaction:  ToTransactionResponse(result.Transaction),
		PreviousTier: result.PreviousTier,
		TierChanged:  result.TierChanged(),
	}, nil
}

// History lists a customer's transactions, newest first
func (s *LedgerService) History(ctx context.Context, q HistoryQuery) (shared.Paginated[TransactionResponse], error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "points_ledger", "history")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCustomerID, q.CustomerID.String())

	var empty shared.Paginated[TransactionResponse]
	query := loyalty.TransactionQuery{Page: shared.Page{Number: q.Page, Size: min(q.PageSize, s.maxHistorySize)}}
	if q.Type != "" {
		t, err := loyalty.ParseTransactionType(q.Type)
		if err != nil {
			return empty, err
		}
		query.Type = t
	}

	if s.customers != nil {
		if _, err := s.customers.FindByID(ctx, q.OrganizationID, q.CustomerID); err != nil {
			telemetry.RecordError(span, err)
			return empty, err
		}
	}

	txs, total, err := s.ledger.ListTransactions(ctx, q.OrganizationID, q.CustomerID, query)
	if err != nil {
		telemetry.RecordError(span, err)
		return empty, err
	}
	return shared.NewPaginated(ToTransactionResponses(txs), total, query.Page), nil
}

func (s *LedgerService) invalidate(ctx context.Context, orgID uuid.UUID) {
	if s.invalidator == nil {
		return
	}
	s.invalidator.InvalidateBestEffort(ctx, orgID, cache.ResourceCustomers, cache.ResourceCustomerSearch)
}

func (s *LedgerService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish ledger events", zap.Error(err))
	}
}
