package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/erp/backoffice/internal/domain/loyalty"
	"github.com/erp/backoffice/internal/infrastructure/config"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const (
	defaultLimit        = 20
	primaryKey          = "id"
	organizationIDField = "organization_id"
)

// indexAPI is the subset of the Meilisearch index client used here
type indexAPI interface {
	Search(query string, request *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error)
	AddDocuments(documentsPtr interface{}, primaryKey ...string) (*meilisearch.TaskInfo, error)
	UpdateFilterableAttributes(request *[]string) (*meilisearch.TaskInfo, error)
}

// RetryPolicy bounds the attempts made per index call
type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// CustomerIndex implements loyalty.SearchIndex on Meilisearch
type CustomerIndex struct {
	index  indexAPI
	retry  RetryPolicy
	limit  int64
	logger *zap.Logger
}

// NewCustomerIndex builds the index client from configuration.
// No connection is made until the first call.
func NewCustomerIndex(cfg config.SearchConfig, logger *zap.Logger) *CustomerIndex {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   cfg.Host,
		APIKey: cfg.APIKey,
	})
	return newCustomerIndex(client.Index(cfg.CustomerIndex), RetryPolicy{
		Attempts:        cfg.Attempts,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
	}, cfg.ResultLimit, logger)
}

func newCustomerIndex(index indexAPI, retry RetryPolicy, limit int64, logger *zap.Logger) *CustomerIndex {
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerIndex{index: index, retry: retry, limit: limit, logger: logger.Named("search")}
}

// EnsureSettings makes organization_id filterable. Searches are always
// filtered by organization, so this must run once per index.
func (c *CustomerIndex) EnsureSettings(ctx context.Context) error {
	attrs := []string{organizationIDField, "phone", "tier"}
	return c.do(ctx, "update_settings", func() error {
		_, err := c.index.UpdateFilterableAttributes(&attrs)
		return err
	})
}

// Search implements loyalty.SearchIndex
func (c *CustomerIndex) Search(ctx context.Context, req loyalty.SearchRequest) ([]loyalty.CustomerDocument, error) {
	limit := req.Limit
	if limit <= 0 || limit > c.limit {
		limit = c.limit
	}
	attrs := req.Attributes
	if len(attrs) == 0 {
		attrs = loyalty.DefaultSearchAttributes
	}
	request := &meilisearch.SearchRequest{
		Limit:                limit,
		AttributesToRetrieve: attrs,
		Filter:               fmt.Sprintf("%s = %q", organizationIDField, req.OrganizationID.String()),
	}

	var resp *meilisearch.SearchResponse
	err := c.do(ctx, "search", func() error {
		var err error
		resp, err = c.index.Search(req.Query, request)
		return err
	})
	if err != nil {
		return nil, err
	}
	return decodeHits(resp.Hits)
}

// Upsert implements loyalty.SearchIndex. Indexing is asynchronous on the
// server side; a nil error means the task was accepted.
func (c *CustomerIndex) Upsert(ctx context.Context, docs ...loyalty.CustomerDocument) error {
	if len(docs) == 0 {
		return nil
	}
	return c.do(ctx, "add_documents", func() error {
		_, err := c.index.AddDocuments(&docs, primaryKey)
		return err
	})
}

// do runs op with bounded exponential backoff. Client errors other than
// 429 are not retried.
func (c *CustomerIndex) do(ctx context.Context, name string, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	if c.retry.InitialInterval > 0 {
		eb.InitialInterval = c.retry.InitialInterval
	}
	if c.retry.MaxInterval > 0 {
		eb.MaxInterval = c.retry.MaxInterval
	}
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.retry.Attempts-1)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		c.logger.Debug("Search call failed",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}, policy)
	if err != nil {
		return fmt.Errorf("search %s failed after %d attempt(s): %w", name, attempt, err)
	}
	return nil
}

func retryable(err error) bool {
	var merr *meilisearch.Error
	if errors.As(err, &merr) && merr.StatusCode >= 400 && merr.StatusCode < 500 {
		return merr.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func decodeHits(hits []interface{}) ([]loyalty.CustomerDocument, error) {
	docs := make([]loyalty.CustomerDocument, 0, len(hits))
	for _, hit := range hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			return nil, fmt.Errorf("encode search hit: %w", err)
		}
		var doc loyalty.CustomerDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode search hit: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

var _ loyalty.SearchIndex = (*CustomerIndex)(nil)
