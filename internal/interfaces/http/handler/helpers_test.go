package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	loyaltyapp "github.com/erp/backoffice/internal/application/loyalty"
	"github.com/erp/backoffice/internal/domain/loyalty"
	"github.com/erp/backoffice/internal/domain/organization"
	"github.com/erp/backoffice/internal/infrastructure/cache"
	"github.com/erp/backoffice/internal/infrastructure/persistence"
	"github.com/erp/backoffice/internal/infrastructure/persistence/models"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
	"github.com/erp/backoffice/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// fakeIndex is an in-memory search index matching on name or phone
// substrings. Setting failing makes every call error.
type fakeIndex struct {
	mu      sync.Mutex
	docs    map[string]loyalty.CustomerDocument
	failing bool
	upserts int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]loyalty.CustomerDocument)}
}

func (f *fakeIndex) Search(_ context.Context, req loyalty.SearchRequest) ([]loyalty.CustomerDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("index down")
	}
	q := strings.ToLower(req.Query)
	var out []loyalty.CustomerDocument
	for _, d := range f.docs {
		if d.OrganizationID != req.OrganizationID.String() {
			continue
		}
		if strings.Contains(strings.ToLower(d.Name), q) || strings.Contains(d.Phone, q) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeIndex) Upsert(_ context.Context, docs ...loyalty.CustomerDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("index down")
	}
	for _, d := range docs {
		f.docs[d.ID] = d
		f.upserts++
	}
	return nil
}

func (f *fakeIndex) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

// harness wires the loyalty handlers to real services over SQLite
type harness struct {
	db     *gorm.DB
	index  *fakeIndex
	cache  *cache.MemoryCache
	org    *organization.Organization
	engine *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&models.OrganizationModel{},
		&models.CustomerModel{},
		&models.PointsTransactionModel{},
	))

	org, err := organization.NewOrganization("acme", "Acme")
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormOrganizationRepository(db).Create(context.Background(), org))

	h := &harness{db: db, index: newFakeIndex(), cache: cache.NewMemoryCache(), org: org}
	t.Cleanup(func() { _ = h.cache.Close() })

	customers := persistence.NewGormCustomerRepository(db)
	ledger := persistence.NewGormPointsLedgerRepository(db)
	invalidator := cache.NewInvalidator(h.cache, nil)

	lookup := loyaltyapp.NewCustomerLookupService(loyaltyapp.LookupServiceConfig{
		Customers:   customers,
		Ledger:      ledger,
		Index:       h.index,
		Cache:       cache.NewReadThrough(h.cache, nil),
		Invalidator: invalidator,
	})
	ledgerSvc := loyaltyapp.NewLedgerService(loyaltyapp.LedgerServiceConfig{
		Ledger:      ledger,
		Customers:   customers,
		Invalidator: invalidator,
	})
	discounts := loyaltyapp.NewDiscountService(lookup, loyalty.DefaultPointsPerKES)

	h.engine = gin.New()
	h.engine.Use(middleware.RequestID())
	api := h.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		if c.GetHeader(middleware.OrganizationIDHeader) == "" {
			c.Set(middleware.OrganizationIDKey, org.ID)
		} else if id, err := uuid.Parse(c.GetHeader(middleware.OrganizationIDHeader)); err == nil {
			c.Set(middleware.OrganizationIDKey, id)
		}
		c.Next()
	})
	NewLoyaltyHandler(lookup, ledgerSvc, discounts).RegisterRoutes(api)
	NewCacheHandler(invalidator).RegisterRoutes(api)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	return serve(t, h.engine, method, path, body, nil)
}

func serve(t *testing.T, engine http.Handler, method, path string, body any, header http.Header) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		reader = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

// decodeData re-decodes the envelope's data into v
func decodeData(t *testing.T, resp dto.Response, v any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}
