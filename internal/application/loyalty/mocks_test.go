package loyalty

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/backoffice/internal/domain/loyalty"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/cache"
)

// =============================================================================
// Mock Repositories
// =============================================================================

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, orgID, id uuid.UUID) (*loyalty.Customer, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loyalty.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByPhone(ctx context.Context, orgID uuid.UUID, phones ...string) (*loyalty.Customer, error) {
	args := m.Called(ctx, orgID, phones)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loyalty.Customer), args.Error(1)
}

func (m *MockCustomerRepository) ExistsByPhone(ctx context.Context, orgID uuid.UUID, phones ...string) (bool, error) {
	args := m.Called(ctx, orgID, phones)
	return args.Bool(0), args.Error(1)
}

func (m *MockCustomerRepository) Create(ctx context.Context, customer *loyalty.Customer) error {
	return m.Called(ctx, customer).Error(0)
}

func (m *MockCustomerRepository) Search(ctx context.Context, orgID uuid.UUID, query loyalty.CustomerQuery) ([]loyalty.Customer, int64, error) {
	args := m.Called(ctx, orgID, query)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]loyalty.Customer), args.Get(1).(int64), args.Error(2)
}

// FindInBatches feeds the configured [][]loyalty.Customer to fn
func (m *MockCustomerRepository) FindInBatches(ctx context.Context, orgID uuid.UUID, batchSize int, fn func(batch []loyalty.Customer) error) error {
	args := m.Called(ctx, orgID, batchSize)
	if batches, ok := args.Get(0).([][]loyalty.Customer); ok {
		for _, b := range batches {
			if err := fn(b); err != nil {
				return err
			}
		}
	}
	return args.Error(1)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) ApplyEntry(ctx context.Context, entry loyalty.LedgerEntry) (*loyalty.LedgerResult, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loyalty.LedgerResult), args.Error(1)
}

func (m *MockLedgerRepository) ListTransactions(ctx context.Context, orgID, customerID uuid.UUID, query loyalty.TransactionQuery) ([]loyalty.PointsTransaction, int64, error) {
	args := m.Called(ctx, orgID, customerID, query)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]loyalty.PointsTransaction), args.Get(1).(int64), args.Error(2)
}

type MockSearchIndex struct {
	mock.Mock
}

func (m *MockSearchIndex) Search(ctx context.Context, req loyalty.SearchRequest) ([]loyalty.CustomerDocument, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]loyalty.CustomerDocument), args.Error(1)
}

func (m *MockSearchIndex) Upsert(ctx context.Context, docs ...loyalty.CustomerDocument) error {
	return m.Called(ctx, docs).Error(0)
}

// =============================================================================
// Fakes
// =============================================================================

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type ledgerRecord struct {
	txType  string
	points  int64
	outcome string
}

type recordingMetrics struct {
	mu      sync.Mutex
	ledger  []ledgerRecord
	tiers   [][2]string
	lookups []string
}

func (m *recordingMetrics) RecordLedgerEntry(_ context.Context, txType string, points int64, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = append(m.ledger, ledgerRecord{txType, points, outcome})
}

func (m *recordingMetrics) RecordTierChange(_ context.Context, from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers = append(m.tiers, [2]string{from, to})
}

func (m *recordingMetrics) RecordLookup(_ context.Context, source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups = append(m.lookups, source)
}

// failingCache fails every call
type failingCache struct{}

var errCacheDown = errors.New("cache down")

func (failingCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errCacheDown }
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}
func (failingCache) Del(context.Context, ...string) error            { return errCacheDown }
func (failingCache) Keys(context.Context, string) ([]string, error) { return nil, errCacheDown }

func newMemoryCache(t *testing.T) *cache.MemoryCache {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func seedKeys(t *testing.T, c cache.Cache, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, c.Set(context.Background(), k, []byte(`{}`), time.Hour))
	}
}

func cachedKeys(t *testing.T, c cache.Cache) []string {
	t.Helper()
	keys, err := c.Keys(context.Background(), "*")
	require.NoError(t, err)
	return keys
}

func newTestCustomer(t *testing.T, orgID uuid.UUID, name, phone string) *loyalty.Customer {
	t.Helper()
	c, err := loyalty.NewCustomer(orgID, name, phone, "")
	require.NoError(t, err)
	c.ClearDomainEvents()
	return c
}
