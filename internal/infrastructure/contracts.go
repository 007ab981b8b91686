package infrastructure

import (
	"context"

	"github.com/andreyxaxa/Product-Composite/internal/entity"
	"github.com/andreyxaxa/Product-Composite/pkg/async"
	"github.com/andreyxaxa/Product-Composite/pkg/stream"
)

type (
	// ProductFetcher is the non-blocking client of the mandatory leaf service.
	ProductFetcher interface {
		FetchProduct(ctx context.Context, id int) *async.Future[*entity.Product]
	}

	ReviewsFetcher interface {
		FetchReviews(ctx context.Context, productID int) *async.Future[[]entity.Review]
	}

	RecommendationsFetcher interface {
		FetchRecommendations(ctx context.Context, productID int) *async.Future[[]entity.Recommendation]
	}

	// EventPublisher is the binder-agnostic publish side: the memory binder
	// wraps pkg/stream, the kafka binder wraps a kafka.Writer.
	EventPublisher interface {
		Publish(ctx context.Context, topic string, env stream.Envelope) error
		Close() error
	}

	// EventSubscriber registers one consumer instance for a topic binding.
	EventSubscriber interface {
		Subscribe(topic string, cfg stream.ConsumerConfig, handler stream.Handler) error
		Shutdown(ctx context.Context) error
	}
)
