package services

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Product-Composite/internal/entity"
	"github.com/andreyxaxa/Product-Composite/pkg/async"
)

type ProductClient struct {
	*Client
}

func NewProductClient(c *Client) *ProductClient {
	return &ProductClient{c}
}

func (pc *ProductClient) GetProduct(ctx context.Context, id int) (*entity.Product, error) {
	var product entity.Product

	err := pc.getJSON(ctx, fmt.Sprintf("/product/%d", id), &product)
	if err != nil {
		return nil, fmt.Errorf("ProductClient - GetProduct: %w", err)
	}

	return &product, nil
}

func (pc *ProductClient) FetchProduct(ctx context.Context, id int) *async.Future[*entity.Product] {
	return async.Go(func() (*entity.Product, error) {
		return pc.GetProduct(ctx, id)
	})
}
