package services

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Product-Composite/internal/entity"
	"github.com/andreyxaxa/Product-Composite/pkg/async"
)

type RecommendationClient struct {
	*Client
}

func NewRecommendationClient(c *Client) *RecommendationClient {
	return &RecommendationClient{c}
}

func (rc *RecommendationClient) GetRecommendations(ctx context.Context, productID int) ([]entity.Recommendation, error) {
	var recommendations []entity.Recommendation

	err := rc.getJSON(ctx, fmt.Sprintf("/recommendation/%d", productID), &recommendations)
	if err != nil {
		return nil, fmt.Errorf("RecommendationClient - GetRecommendations: %w", err)
	}

	return recommendations, nil
}

func (rc *RecommendationClient) FetchRecommendations(ctx context.Context, productID int) *async.Future[[]entity.Recommendation] {
	return async.Go(func() ([]entity.Recommendation, error) {
		return rc.GetRecommendations(ctx, productID)
	})
}
