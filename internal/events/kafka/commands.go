package kafka

import (
	"context"
	"time"

	interfaces "github.com/sheikh-saqib/till-ledger/internal/interfaces"
	"github.com/sheikh-saqib/till-ledger/internal/tasks"
)

const (
	TopicComputeCategoryProducts = "catalog.category.compute_products"
	TopicComputeProviderSummary  = "procurement.provider.compute_summary"
)

type recomputeCommand struct {
	ID          string    `json:"id"`
	RequestedAt time.Time `json:"requested_at"`
}

// RecomputeRequester asks the catalog and procurement services to recompute
// their aggregates. The work itself belongs to those services.
type RecomputeRequester struct {
	publisher interfaces.EventPublisher
}

func NewRecomputeRequester(p interfaces.EventPublisher) *RecomputeRequester {
	return &RecomputeRequester{publisher: p}
}

func (r *RecomputeRequester) ComputeProducts(ctx context.Context, categoryID string) error {
	return r.publisher.Publish(ctx, TopicComputeCategoryProducts, categoryID,
		recomputeCommand{ID: categoryID, RequestedAt: time.Now().UTC()})
}

func (r *RecomputeRequester) ComputeSummary(ctx context.Context, providerID string) error {
	return r.publisher.Publish(ctx, TopicComputeProviderSummary, providerID,
		recomputeCommand{ID: providerID, RequestedAt: time.Now().UTC()})
}

var (
	_ tasks.CategoryComputer   = (*RecomputeRequester)(nil)
	_ tasks.ProviderSummarizer = (*RecomputeRequester)(nil)
)
