package services

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Product-Composite/internal/entity"
	"github.com/andreyxaxa/Product-Composite/pkg/async"
)

type ReviewClient struct {
	*Client
}

func NewReviewClient(c *Client) *ReviewClient {
	return &ReviewClient{c}
}

func (rc *ReviewClient) GetReviews(ctx context.Context, productID int) ([]entity.Review, error) {
	var reviews []entity.Review

	err := rc.getJSON(ctx, fmt.Sprintf("/review/%d", productID), &reviews)
	if err != nil {
		return nil, fmt.Errorf("ReviewClient - GetReviews: %w", err)
	}

	return reviews, nil
}

func (rc *ReviewClient) FetchReviews(ctx context.Context, productID int) *async.Future[[]entity.Review] {
	return async.Go(func() ([]entity.Review, error) {
		return rc.GetReviews(ctx, productID)
	})
}
