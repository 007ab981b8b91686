package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/andreyxaxa/Product-Composite/internal/entity"
	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
)

// CatalogUseCase is the in-memory projection the event consumers maintain.
// Writes are last-write-wins per key, so replaying an event after a retry
// lands in the same state.
type CatalogUseCase struct {
	mu              sync.RWMutex
	products        map[int]entity.Product
	reviews         map[int]map[int]entity.Review
	recommendations map[int]map[int]entity.Recommendation
}

func New() *CatalogUseCase {
	return &CatalogUseCase{
		products:        make(map[int]entity.Product),
		reviews:         make(map[int]map[int]entity.Review),
		recommendations: make(map[int]map[int]entity.Recommendation),
	}
}

func (uc *CatalogUseCase) UpsertProduct(_ context.Context, product entity.Product) error {
	if product.ID < 1 {
		return errs.Newf(errs.KindInvalidInput, "invalid productId: %d", product.ID)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.products[product.ID] = product

	return nil
}

// RemoveProduct is idempotent: deleting a product that never existed is a
// no-op, not an error.
func (uc *CatalogUseCase) RemoveProduct(_ context.Context, productID int) error {
	if productID < 1 {
		return errs.Newf(errs.KindInvalidInput, "invalid productId: %d", productID)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	delete(uc.products, productID)

	return nil
}

func (uc *CatalogUseCase) UpsertReview(_ context.Context, review entity.Review) error {
	if review.ProductID < 1 {
		return errs.Newf(errs.KindInvalidInput, "invalid productId: %d", review.ProductID)
	}

	if review.ReviewID < 1 {
		return errs.Newf(errs.KindInvalidInput, "invalid reviewId: %d", review.ReviewID)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.reviews[review.ProductID] == nil {
		uc.reviews[review.ProductID] = make(map[int]entity.Review)
	}

	uc.reviews[review.ProductID][review.ReviewID] = review

	return nil
}

func (uc *CatalogUseCase) RemoveReviews(_ context.Context, productID int) error {
	if productID < 1 {
		return errs.Newf(errs.KindInvalidInput, "invalid productId: %d", productID)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	delete(uc.reviews, productID)

	return nil
}

func (uc *CatalogUseCase) UpsertRecommendation(_ context.Context, recommendation entity.Recommendation) error {
	if recommendation.ProductID < 1 {
		return errs.Newf(errs.KindInvalidInput, "invalid productId: %d", recommendation.ProductID)
	}

	if recommendation.RecommendationID < 1 {
		return errs.Newf(errs.KindInvalidInput, "invalid recommendationId: %d", recommendation.RecommendationID)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.recommendations[recommendation.ProductID] == nil {
		uc.recommendations[recommendation.ProductID] = make(map[int]entity.Recommendation)
	}

	uc.recommendations[recommendation.ProductID][recommendation.RecommendationID] = recommendation

	return nil
}

func (uc *CatalogUseCase) RemoveRecommendations(_ context.Context, productID int) error {
	if productID < 1 {
		return errs.Newf(errs.KindInvalidInput, "invalid productId: %d", productID)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	delete(uc.recommendations, productID)

	return nil
}

func (uc *CatalogUseCase) Product(_ context.Context, productID int) (*entity.Product, error) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	product, ok := uc.products[productID]
	if !ok {
		return nil, fmt.Errorf("CatalogUseCase - Product - productId %d: %w", productID, errs.ErrRecordNotFound)
	}

	return &product, nil
}

// Reviews returns the product's reviews ordered by reviewId. A product
// without reviews yields an empty slice, not an error.
func (uc *CatalogUseCase) Reviews(_ context.Context, productID int) ([]entity.Review, error) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	byID := uc.reviews[productID]

	out := make([]entity.Review, 0, len(byID))
	for _, review := range byID {
		out = append(out, review)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ReviewID < out[j].ReviewID })

	return out, nil
}

func (uc *CatalogUseCase) Recommendations(_ context.Context, productID int) ([]entity.Recommendation, error) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	byID := uc.recommendations[productID]

	out := make([]entity.Recommendation, 0, len(byID))
	for _, recommendation := range byID {
		out = append(out, recommendation)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RecommendationID < out[j].RecommendationID })

	return out, nil
}
