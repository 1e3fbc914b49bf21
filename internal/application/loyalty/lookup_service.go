package loyalty

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/backoffice/internal/domain/loyalty"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/cache"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
)

// Lookup defaults
const (
	DefaultMinQueryLength   = 3
	DefaultSearchLimit      = 20
	DefaultReindexBatchSize = 500
	historyPreviewSize      = 20
)

// LookupServiceConfig holds the dependencies and tuning of a CustomerLookupService
type LookupServiceConfig struct {
	Customers        loyalty.CustomerRepository
	Ledger           loyalty.PointsLedgerRepository // optional, for history previews
	Index            loyalty.SearchIndex
	Cache            *cache.ReadThrough // required
	Invalidator      *cache.Invalidator
	EventPublisher   shared.EventPublisher
	Metrics          Metrics
	Logger           *zap.Logger
	MinQueryLength   int
	SearchLimit      int64
	SearchTTL        time.Duration
	SnapshotTTL      time.Duration
	ReindexBatchSize int
}

// CustomerLookupService finds customers through the search index, the
// read-through cache and the store, in that order of preference.
type CustomerLookupService struct {
	customers      loyalty.CustomerRepository
	ledger         loyalty.PointsLedgerRepository
	index          loyalty.SearchIndex
	cache          *cache.ReadThrough
	invalidator    *cache.Invalidator
	eventPublisher shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
	minQuery       int
	limit          int64
	searchTTL      time.Duration
	snapshotTTL    time.Duration
	batchSize      int
}

// NewCustomerLookupService creates a CustomerLookupService
func NewCustomerLookupService(cfg LookupServiceConfig) *CustomerLookupService {
	s := &CustomerLookupService{
		customers:      cfg.Customers,
		ledger:         cfg.Ledger,
		index:          cfg.Index,
		cache:          cfg.Cache,
		invalidator:    cfg.Invalidator,
		eventPublisher: cfg.EventPublisher,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		minQuery:       cfg.MinQueryLength,
		limit:          cfg.SearchLimit,
		searchTTL:      cfg.SearchTTL,
		snapshotTTL:    cfg.SnapshotTTL,
		batchSize:      cfg.ReindexBatchSize,
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("loyalty.lookup")
	if s.minQuery <= 0 {
		s.minQuery = DefaultMinQueryLength
	}
	if s.limit <= 0 {
		s.limit = DefaultSearchLimit
	}
	if s.searchTTL <= 0 {
		s.searchTTL = cache.TTLSearch
	}
	if s.snapshotTTL <= 0 {
		s.snapshotTTL = cache.TTLSnapshot
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultReindexBatchSize
	}
	return s
}

// GetCustomerByPhone looks the phone up in the index under both "+" forms
// and falls back to the store when the index fails or has no hit.
func (s *CustomerLookupService) GetCustomerByPhone(ctx context.Context, orgID uuid.UUID, rawPhone string) (*CustomerResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "customer_lookup", "by_phone")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrOrganizationID, orgID.String())

	phone := loyalty.NormalizePhone(rawPhone)
	if err := loyalty.ValidatePhone(phone); err != nil {
		return nil, err
	}
	variants := []string{phone, loyalty.AlternatePhone(phone)}
	log := logger.Ctx(ctx, s.logger).With(zap.String("phone", phone))

	var indexErr error
	for i, v := range variants {
		docs, err := s.index.Search(ctx, loyalty.SearchRequest{
			OrganizationID: orgID,
			Query:          v,
			Limit:          s.limit,
			Attributes:     loyalty.DefaultSearchAttributes,
		})
		if err != nil {
			indexErr = err
			log.Warn("Search index unavailable, falling back to store", zap.Error(err))
			break
		}
		if doc, ok := matchPhone(docs, variants); ok {
			if c := doc.ToCustomer(); c != nil {
				source := telemetry.LookupSourceIndex
				if i > 0 {
					source = telemetry.LookupSourceAlternate
				}
				s.record(ctx, span, source)
				resp := ToCustomerResponse(c)
				return &resp, nil
			}
		}
	}

	c, err := s.customers.FindByPhone(ctx, orgID, variants...)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.record(ctx, span, telemetry.LookupSourceMiss)
			return nil, err
		}
		if indexErr != nil {
			err = shared.NewSearchUnavailableError(errors.Join(indexErr, err))
		}
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.record(ctx, span, telemetry.LookupSourceStore)
	s.indexBestEffort(ctx, c)

	resp := ToCustomerResponse(c)
	return &resp, nil
}

// SearchCustomers runs a full-text search. Queries shorter than the minimum
// return an empty result without touching the cache or the index.
func (s *CustomerLookupService) SearchCustomers(ctx context.Context, orgID uuid.UUID, query string) (*SearchResult, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < s.minQuery {
		return &SearchResult{Customers: []CustomerResponse{}}, nil
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "customer_lookup", "search")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrganizationID, orgID.String(),
		telemetry.SpanAttrQuery, q,
	)

	result, err := cache.Remember(ctx, s.cache, cache.SearchKey(orgID, q), s.searchTTL, func(ctx context.Context) (SearchResult, error) {
		return s.searchUncached(ctx, orgID, q)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if result.Customers == nil {
		result.Customers = []CustomerResponse{}
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrResultCount, len(result.Customers))
	return &result, nil
}

func (s *CustomerLookupService) searchUncached(ctx context.Context, orgID uuid.UUID, q string) (SearchResult, error) {
	docs, indexErr := s.index.Search(ctx, loyalty.SearchRequest{
		OrganizationID: orgID,
		Query:          q,
		Limit:          s.limit,
		Attributes:     loyalty.DefaultSearchAttributes,
	})
	if indexErr == nil && len(docs) > 0 {
		s.metrics.RecordLookup(ctx, telemetry.LookupSourceIndex)
		return SearchResult{Customers: documentsToResponses(docs)}, nil
	}
	if indexErr != nil {
		logger.Ctx(ctx, s.logger).Warn("Search index unavailable, searching the store", zap.Error(indexErr))
	}

	customers, _, err := s.customers.Search(ctx, orgID, loyalty.CustomerQuery{
		Search: q,
		Page:   shared.Page{Number: 1, Size: int(s.limit)},
	})
	if err != nil {
		if indexErr != nil {
			return SearchResult{}, shared.NewSearchUnavailableError(errors.Join(indexErr, err))
		}
		return SearchResult{}, err
	}
	s.metrics.RecordLookup(ctx, telemetry.LookupSourceStore)

	if len(customers) > 0 {
		docs := make([]loyalty.CustomerDocument, len(customers))
		for i := range customers {
			docs[i] = loyalty.DocumentFromCustomer(&customers[i])
		}
		if err := s.index.Upsert(ctx, docs...); err != nil {
			logger.Ctx(ctx, s.logger).Warn("Failed to index store results", zap.Error(err))
		}
	}
	return SearchResult{Customers: ToCustomerResponses(customers)}, nil
}

// GetCustomerByID reads the customer snapshot through the cache. With
// history set, the latest transactions are attached uncached.
func (s *CustomerLookupService) GetCustomerByID(ctx context.Context, orgID, id uuid.UUID, withHistory bool) (*CustomerResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "customer_lookup", "by_id")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrganizationID, orgID.String(),
		telemetry.SpanAttrCustomerID, id.String(),
	)

	key := cache.Key(cache.ResourceCustomers, orgID, id.String())
	resp, err := cache.Remember(ctx, s.cache, key, s.snapshotTTL, func(ctx context.Context) (CustomerResponse, error) {
		c, err := s.customers.FindByID(ctx, orgID, id)
		if err != nil {
			return CustomerResponse{}, err
		}
		return ToCustomerResponse(c), nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if withHistory && s.ledger != nil {
		txs, _, err := s.ledger.ListTransactions(ctx, orgID, id, loyalty.TransactionQuery{
			Page: shared.Page{Number: 1, Size: historyPreviewSize},
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		resp.Transactions = ToTransactionResponses(txs)
	}
	return &resp, nil
}

// CreateCustomer registers a Bronze customer with an empty balance. A phone
// already stored under either "+" form is rejected with ALREADY_EXISTS.
func (s *CustomerLookupService) CreateCustomer(ctx context.Context, cmd CreateCustomerCommand) (*CustomerResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "customer_lookup", "create")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrOrganizationID, cmd.OrganizationID.String())

	c, err := loyalty.NewCustomer(cmd.OrganizationID, cmd.Name, cmd.Phone, cmd.Email)
	if err != nil {
		return nil, err
	}

	exists, err := s.customers.ExistsByPhone(ctx, cmd.OrganizationID, c.Phone, loyalty.AlternatePhone(c.Phone))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if exists {
		return nil, shared.ErrAlreadyExists.WithMessage("customer with this phone already exists")
	}

	if err := s.customers.Create(ctx, c); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrCustomerID, c.ID.String())

	s.indexBestEffort(ctx, c)
	if s.invalidator != nil {
		s.invalidator.InvalidateBestEffort(ctx, cmd.OrganizationID, cache.ResourceCustomers, cache.ResourceCustomerSearch)
	}
	if s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, c.GetDomainEvents()...); err != nil {
			s.logger.Warn("Failed to publish customer events", zap.Error(err))
		}
	}
	c.ClearDomainEvents()

	logger.Ctx(ctx, s.logger).Info("Loyalty customer created",
		zap.String("customer_id", c.ID.String()),
		zap.String("phone", c.Phone))

	resp := ToCustomerResponse(c)
	return &resp, nil
}

// FindOrCreateByPhone returns the customer with phone, registering one
// under name on the first interaction. created reports which happened.
func (s *CustomerLookupService) FindOrCreateByPhone(ctx context.Context, orgID uuid.UUID, phone, name string) (resp *CustomerResponse, created bool, err error) {
	resp, err = s.GetCustomerByPhone(ctx, orgID, phone)
	if err == nil {
		return resp, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}

	resp, err = s.CreateCustomer(ctx, CreateCustomerCommand{OrganizationID: orgID, Name: name, Phone: phone})
	if errors.Is(err, shared.ErrAlreadyExists) {
		// lost a race with a concurrent registration
		resp, err = s.GetCustomerByPhone(ctx, orgID, phone)
		return resp, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return resp, true, nil
}

// ReindexOrganization pushes every stored customer of the organization to
// the search index and drops its cached search results.
func (s *CustomerLookupService) ReindexOrganization(ctx context.Context, orgID uuid.UUID) (*ReindexResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "customer_lookup", "reindex")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrOrganizationID, orgID.String())

	result := &ReindexResult{OrganizationID: orgID}
	err := s.customers.FindInBatches(ctx, orgID, s.batchSize, func(batch []loyalty.Customer) error {
		docs := make([]loyalty.CustomerDocument, len(batch))
		for i := range batch {
			docs[i] = loyalty.DocumentFromCustomer(&batch[i])
		}
		if err := s.index.Upsert(ctx, docs...); err != nil {
			return shared.NewSearchUnavailableError(err)
		}
		result.Indexed += len(docs)
		result.Batches++
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateBestEffort(ctx, orgID, cache.ResourceCustomerSearch)
	}

	logger.Ctx(ctx, s.logger).Info("Organization reindexed",
		zap.Int("indexed", result.Indexed),
		zap.Int("batches", result.Batches))
	return result, nil
}

func (s *CustomerLookupService) indexBestEffort(ctx context.Context, c *loyalty.Customer) {
	if err := s.index.Upsert(ctx, loyalty.DocumentFromCustomer(c)); err != nil {
		logger.Ctx(ctx, s.logger).Warn("Failed to index customer",
			zap.String("customer_id", c.ID.String()),
			zap.Error(err))
	}
}

func (s *CustomerLookupService) record(ctx context.Context, span trace.Span, source string) {
	s.metrics.RecordLookup(ctx, source)
	telemetry.SetAttributes(span, telemetry.SpanAttrLookupSource, source)
}

// matchPhone returns the first document stored under one of the phone forms.
// Full-text hits on a phone query can include near matches.
func matchPhone(docs []loyalty.CustomerDocument, variants []string) (loyalty.CustomerDocument, bool) {
	for _, d := range docs {
		for _, v := range variants {
			if d.Phone == v {
				return d, true
			}
		}
	}
	return loyalty.CustomerDocument{}, false
}
