package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/assistant"
	"github.com/shubhsaxena/secondhand-assistant/internal/config"
	"github.com/shubhsaxena/secondhand-assistant/internal/models"
	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
	"github.com/shubhsaxena/secondhand-assistant/internal/resilience"
)

// Client serves product lookups from the listings index. Categories are
// stored by name, so category IDs here are category names.
type Client struct {
	es       *elasticsearch.Client
	cb       *gobreaker.CircuitBreaker
	qb       *QueryBuilder
	cfg      config.ElasticsearchConfig
	retryCfg resilience.RetryConfig
	logger   *zap.Logger
}

func NewClient(cfg config.ElasticsearchConfig, searchCfg config.SearchConfig, logger *zap.Logger) (*Client, error) {
	esCfg := elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	res, err := es.Ping()
	if err != nil {
		return nil, fmt.Errorf("pinging elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch ping returned status: %s", res.Status())
	}

	logger.Info("elasticsearch client connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		es:       es,
		cb:       resilience.NewCircuitBreaker("elasticsearch-listings", searchCfg.CircuitBreaker, logger),
		qb:       NewQueryBuilder(),
		cfg:      cfg,
		retryCfg: resilience.RetryConfigFrom(searchCfg.Retry),
		logger:   logger,
	}, nil
}

func (c *Client) ListingsIndex() string {
	return c.cfg.IndexPrefix + "-listings"
}

func (c *Client) SearchByText(ctx context.Context, terms []string, limit int) ([]models.ProductRef, error) {
	if len(terms) == 0 {
		return []models.ProductRef{}, nil
	}
	return c.search(ctx, "text", c.qb.BuildTextQuery(terms, limit))
}

// CategoryID resolves a category name against the fixed category set.
func (c *Client) CategoryID(ctx context.Context, name string) (string, error) {
	for _, known := range assistant.Categories() {
		if strings.EqualFold(known, name) {
			return known, nil
		}
	}
	return "", assistant.ErrCategoryNotFound
}

func (c *Client) ListByCategory(ctx context.Context, categoryID string, limit int) ([]models.ProductRef, error) {
	return c.search(ctx, "category", c.qb.BuildCategoryQuery(categoryID, limit))
}

func (c *Client) search(ctx context.Context, kind string, query map[string]any) ([]models.ProductRef, error) {
	index := c.ListingsIndex()
	ctx, span := observability.StartSpan(ctx, "es.search",
		attribute.String("es.index", index),
		attribute.String("es.kind", kind),
	)
	defer span.End()

	start := time.Now()
	cbResult, err := c.cb.Execute(func() (any, error) {
		var products []models.ProductRef
		retryErr := resilience.Retry(ctx, c.retryCfg, func() error {
			var execErr error
			products, execErr = c.executeSearch(ctx, index, query)
			return execErr
		})
		return products, retryErr
	})
	duration := time.Since(start)

	if err != nil {
		observability.ESQueryDuration.WithLabelValues(index, "error").Observe(duration.Seconds())
		return nil, fmt.Errorf("es search (index=%s): %w", index, err)
	}

	products, ok := cbResult.([]models.ProductRef)
	if !ok {
		observability.ESQueryDuration.WithLabelValues(index, "error").Observe(duration.Seconds())
		return nil, fmt.Errorf("es search (index=%s): unexpected result from circuit breaker", index)
	}
	observability.ESQueryDuration.WithLabelValues(index, "success").Observe(duration.Seconds())
	return products, nil
}

func (c *Client) executeSearch(ctx context.Context, index string, query map[string]any) ([]models.ProductRef, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshaling es query: %w", err)
	}

	opts := []func(*esapi.SearchRequest){
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	}
	if c.cfg.RequestTimeout > 0 {
		opts = append(opts, c.es.Search.WithTimeout(c.cfg.RequestTimeout))
	}

	res, err := c.es.Search(opts...)
	if err != nil {
		return nil, fmt.Errorf("executing es search: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return []models.ProductRef{}, nil
	}
	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("es search error status=%s body=%s", res.Status(), string(bodyBytes))
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("decoding es response: %w", err)
	}

	products := make([]models.ProductRef, 0, len(esResp.Hits.Hits))
	for _, h := range esResp.Hits.Hits {
		var doc ListingDocument
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			c.logger.Warn("skipping malformed listing document", zap.String("id", h.ID), zap.Error(err))
			continue
		}
		products = append(products, doc.ProductRef(h.ID))
	}
	return products, nil
}

// EnsureIndex creates the listings index with its mapping when missing.
func (c *Client) EnsureIndex(ctx context.Context) error {
	index := c.ListingsIndex()

	res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("checking index %s: %w", index, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	body, err := json.Marshal(ListingsMapping(c.cfg.NumShards, c.cfg.NumReplicas, c.cfg.RefreshInterval))
	if err != nil {
		return fmt.Errorf("marshaling index mapping: %w", err)
	}

	res, err = c.es.Indices.Create(index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("creating index %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		if strings.Contains(string(bodyBytes), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index error status=%s body=%s", res.Status(), string(bodyBytes))
	}

	c.logger.Info("created listings index", zap.String("index", index))
	return nil
}

func (c *Client) BulkIndex(ctx context.Context, actions []models.IndexAction) error {
	if len(actions) == 0 {
		return nil
	}

	ctx, span := observability.StartSpan(ctx, "es.bulk_index",
		attribute.Int("batch_size", len(actions)),
	)
	defer span.End()

	payload, err := encodeBulk(actions)
	if err != nil {
		return err
	}

	res, err := c.es.Bulk(
		bytes.NewReader(payload),
		c.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("executing bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk request error status=%s body=%s", res.Status(), string(bodyBytes))
	}

	var bulkResp bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("decoding bulk response: %w", err)
	}

	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			for op, result := range item {
				// deleting a document that was never indexed is not a failure
				if op == "delete" && result.Status == 404 {
					continue
				}
				if result.Error != nil {
					errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s", result.ID, result.Error.Reason))
				}
			}
		}
		if len(errMsgs) > 0 {
			return fmt.Errorf("bulk indexing had errors: %s", strings.Join(errMsgs, "; "))
		}
	}

	return nil
}

func encodeBulk(actions []models.IndexAction) ([]byte, error) {
	var buf bytes.Buffer
	for _, action := range actions {
		meta := map[string]any{
			action.Action: map[string]any{
				"_index": action.Index,
				"_id":    action.ID,
			},
		}

		metaLine, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("marshaling bulk meta: %w", err)
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')

		if action.Action != "delete" && action.Body != nil {
			bodyLine, err := json.Marshal(action.Body)
			if err != nil {
				return nil, fmt.Errorf("marshaling bulk body: %w", err)
			}
			buf.Write(bodyLine)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	res, err := c.es.Cluster.Health(
		c.es.Cluster.Health.WithContext(ctx),
	)
	if err != nil {
		return "red", fmt.Errorf("es health check: %w", err)
	}
	defer res.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return "red", fmt.Errorf("decoding health response: %w", err)
	}
	return health.Status, nil
}

// ListingDocument is the indexed shape of a listing.
type ListingDocument struct {
	ListingID   string    `json:"listing_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	CategoryID  string    `json:"category_id,omitempty"`
	Price       float64   `json:"price"`
	SellerID    string    `json:"seller_id"`
	ImageURL    string    `json:"image_url,omitempty"`
	Available   bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

func (d ListingDocument) ProductRef(id string) models.ProductRef {
	return models.ProductRef{
		ID:          id,
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		CategoryID:  d.Category,
		Price:       d.Price,
		SellerID:    d.SellerID,
		ImageURL:    d.ImageURL,
		Available:   d.Available,
		CreatedAt:   d.CreatedAt,
	}
}

// ES response types

type esSearchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

type esHit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}
