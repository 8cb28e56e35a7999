package tasks

import "context"

// CategoryComputer recomputes the product aggregates of a category.
type CategoryComputer interface {
	ComputeProducts(ctx context.Context, categoryID string) error
}

// ProviderSummarizer recomputes the procurement summary of a provider.
type ProviderSummarizer interface {
	ComputeSummary(ctx context.Context, providerID string) error
}

type job struct {
	name string
	key  string
	run  func(ctx context.Context) error
}

func (j job) Name() string                  { return j.name }
func (j job) Key() string                   { return j.key }
func (j job) Run(ctx context.Context) error { return j.run(ctx) }

func ComputeCategoryProducts(svc CategoryComputer, categoryID string) Task {
	return job{
		name: "compute-category-products",
		key:  "category:" + categoryID,
		run:  func(ctx context.Context) error { return svc.ComputeProducts(ctx, categoryID) },
	}
}

func ComputeProviderSummary(svc ProviderSummarizer, providerID string) Task {
	return job{
		name: "compute-provider-summary",
		key:  "provider:" + providerID,
		run:  func(ctx context.Context) error { return svc.ComputeSummary(ctx, providerID) },
	}
}
