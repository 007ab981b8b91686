package usecase

import (
	"context"

	"github.com/andreyxaxa/Product-Composite/internal/entity"
)

type (
	CompositeUseCase interface {
		Aggregate(ctx context.Context, productID int) (*entity.ProductAggregate, error)
		Create(ctx context.Context, aggregate *entity.ProductAggregate) error
		Delete(ctx context.Context, productID int) error
	}

	// CatalogUseCase is the keyed projection fed by the event stream.
	// Every operation is idempotent: at-least-once delivery may replay an
	// event after a transient failure.
	CatalogUseCase interface {
		UpsertProduct(ctx context.Context, product entity.Product) error
		RemoveProduct(ctx context.Context, productID int) error
		UpsertReview(ctx context.Context, review entity.Review) error
		RemoveReviews(ctx context.Context, productID int) error
		UpsertRecommendation(ctx context.Context, recommendation entity.Recommendation) error
		RemoveRecommendations(ctx context.Context, productID int) error

		Product(ctx context.Context, productID int) (*entity.Product, error)
		Reviews(ctx context.Context, productID int) ([]entity.Review, error)
		Recommendations(ctx context.Context, productID int) ([]entity.Recommendation, error)
	}
)
