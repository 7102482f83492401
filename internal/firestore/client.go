package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/shubhsaxena/secondhand-assistant/internal/config"
	"github.com/shubhsaxena/secondhand-assistant/internal/models"
	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
)

// Profile fields read from user documents, in order of preference.
var sellerNameFields = []string{"display_name", "displayName", "name"}

type Client struct {
	client *firestore.Client
	cfg    config.FirestoreConfig
	logger *zap.Logger
}

func NewClient(ctx context.Context, cfg config.FirestoreConfig, logger *zap.Logger) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	logger.Info("firestore client connected", zap.String("project", cfg.ProjectID))

	return &Client{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (c *Client) GetMulti(ctx context.Context, collection string, docIDs []string) (map[string]map[string]any, error) {
	ctx, span := observability.StartSpan(ctx, "firestore.get_multi",
		attribute.String("collection", collection),
		attribute.Int("count", len(docIDs)),
	)
	defer span.End()

	result := make(map[string]map[string]any, len(docIDs))

	batchSize := c.cfg.MaxBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	for i := 0; i < len(docIDs); i += batchSize {
		end := min(i+batchSize, len(docIDs))
		batch := docIDs[i:end]

		// Each batch gets its own timeout so sequential batches don't starve.
		batchCtx, batchCancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)

		refs := make([]*firestore.DocumentRef, len(batch))
		for j, id := range batch {
			refs[j] = c.client.Collection(collection).Doc(id)
		}

		docs, err := c.client.GetAll(batchCtx, refs)
		batchCancel()
		if err != nil {
			return nil, fmt.Errorf("firestore get_all batch %d: %w", i/batchSize, err)
		}

		for _, doc := range docs {
			if doc.Exists() {
				result[doc.Ref.ID] = doc.Data()
			}
		}
	}

	return result, nil
}

// HydrateSellers fills SellerName from the users collection. A failed
// lookup returns the products unchanged.
func (c *Client) HydrateSellers(ctx context.Context, products []models.ProductRef) ([]models.ProductRef, error) {
	ids := uniqueSellerIDs(products)
	if len(ids) == 0 {
		return products, nil
	}

	docs, err := c.GetMulti(ctx, c.cfg.UsersCollection, ids)
	if err != nil {
		c.logger.Warn("seller hydration failed, returning unhydrated products", zap.Error(err))
		return products, nil
	}

	return applySellerNames(products, docs), nil
}

func uniqueSellerIDs(products []models.ProductRef) []string {
	seen := make(map[string]struct{}, len(products))
	ids := make([]string, 0, len(products))
	for _, p := range products {
		if p.SellerID == "" {
			continue
		}
		if _, ok := seen[p.SellerID]; ok {
			continue
		}
		seen[p.SellerID] = struct{}{}
		ids = append(ids, p.SellerID)
	}
	return ids
}

func applySellerNames(products []models.ProductRef, docs map[string]map[string]any) []models.ProductRef {
	out := make([]models.ProductRef, len(products))
	copy(out, products)
	for i := range out {
		doc, ok := docs[out[i].SellerID]
		if !ok {
			continue
		}
		for _, field := range sellerNameFields {
			if name, ok := doc[field].(string); ok && name != "" {
				out[i].SellerName = name
				break
			}
		}
	}
	return out
}

func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	iter := c.client.Collection(c.cfg.UsersCollection).Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	// iterator.Done means the collection is empty, which still proves reachability.
	if err != nil && err != iterator.Done {
		return fmt.Errorf("firestore health check: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
