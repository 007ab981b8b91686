package composite

import (
	"context"
	"fmt"
	"strconv"

	"github.com/andreyxaxa/Product-Composite/internal/entity"
	"github.com/andreyxaxa/Product-Composite/pkg/stream"
	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
)

type topicEnvelope struct {
	topic string
	env   stream.Envelope
}

func validateAggregate(aggregate *entity.ProductAggregate) error {
	if aggregate == nil {
		return errs.New(errs.KindInvalidInput, "aggregate body is required")
	}

	if aggregate.ProductID < 1 {
		return errs.New(errs.KindInvalidInput, "productId must be a positive integer")
	}

	if aggregate.Name == "" {
		return errs.New(errs.KindInvalidInput, "name is required")
	}

	for _, r := range aggregate.Recommendations {
		if r.RecommendationID < 1 {
			return errs.Newf(errs.KindInvalidInput, "invalid recommendationId: %d", r.RecommendationID)
		}
	}

	for _, r := range aggregate.Reviews {
		if r.ReviewID < 1 {
			return errs.Newf(errs.KindInvalidInput, "invalid reviewId: %d", r.ReviewID)
		}
	}

	return nil
}

// createEnvelopes разворачивает агрегат в плоский список событий.
// Ключ всюду productId - порядок внутри продукта сохраняется.
func (uc *CompositeUseCase) createEnvelopes(aggregate *entity.ProductAggregate) ([]topicEnvelope, error) {
	key := strconv.Itoa(aggregate.ProductID)

	out := make([]topicEnvelope, 0, 1+len(aggregate.Recommendations)+len(aggregate.Reviews))

	productEnv, err := stream.NewEnvelope(stream.EventCreate, key, entity.Product{
		ID:     aggregate.ProductID,
		Name:   aggregate.Name,
		Weight: aggregate.Weight,
	})
	if err != nil {
		return nil, err
	}

	out = append(out, topicEnvelope{uc.topics.Products, productEnv})

	for _, r := range aggregate.Recommendations {
		env, err := stream.NewEnvelope(stream.EventCreate, key, entity.Recommendation{
			ProductID:        aggregate.ProductID,
			RecommendationID: r.RecommendationID,
			Author:           r.Author,
			Rate:             r.Rate,
			Content:          r.Content,
		})
		if err != nil {
			return nil, err
		}

		out = append(out, topicEnvelope{uc.topics.Recommendations, env})
	}

	for _, r := range aggregate.Reviews {
		env, err := stream.NewEnvelope(stream.EventCreate, key, entity.Review{
			ProductID: aggregate.ProductID,
			ReviewID:  r.ReviewID,
			Author:    r.Author,
			Subject:   r.Subject,
			Content:   r.Content,
		})
		if err != nil {
			return nil, err
		}

		out = append(out, topicEnvelope{uc.topics.Reviews, env})
	}

	return out, nil
}

func (uc *CompositeUseCase) deleteEnvelopes(productID int) ([]topicEnvelope, error) {
	key := strconv.Itoa(productID)
	topics := []string{uc.topics.Products, uc.topics.Recommendations, uc.topics.Reviews}

	out := make([]topicEnvelope, 0, len(topics))

	for _, topic := range topics {
		env, err := stream.NewEnvelope(stream.EventDelete, key, nil)
		if err != nil {
			return nil, err
		}

		out = append(out, topicEnvelope{topic, env})
	}

	return out, nil
}

func (uc *CompositeUseCase) publishAll(ctx context.Context, envelopes []topicEnvelope) error {
	for _, te := range envelopes {
		if err := uc.events.Publish(ctx, te.topic, te.env); err != nil {
			return fmt.Errorf("CompositeUseCase - publishAll - uc.events.Publish: %w", err)
		}
	}

	return nil
}

func (uc *CompositeUseCase) buildAggregate(
	product *entity.Product,
	recommendations []entity.Recommendation,
	reviews []entity.Review,
) *entity.ProductAggregate {
	// пустые списки вместо null: частичный отказ не меняет форму ответа
	recSummaries := make([]entity.RecommendationSummary, 0, len(recommendations))
	for _, r := range recommendations {
		recSummaries = append(recSummaries, entity.RecommendationSummary{
			RecommendationID: r.RecommendationID,
			Author:           r.Author,
			Rate:             r.Rate,
			Content:          r.Content,
		})
	}

	reviewSummaries := make([]entity.ReviewSummary, 0, len(reviews))
	for _, r := range reviews {
		reviewSummaries = append(reviewSummaries, entity.ReviewSummary{
			ReviewID: r.ReviewID,
			Author:   r.Author,
			Subject:  r.Subject,
			Content:  r.Content,
		})
	}

	addresses := entity.ServiceAddresses{
		Composite: uc.serviceAddr,
		Product:   product.ServiceAddress,
	}

	if len(reviews) > 0 {
		addresses.Review = reviews[0].ServiceAddress
	}

	if len(recommendations) > 0 {
		addresses.Recommendation = recommendations[0].ServiceAddress
	}

	return &entity.ProductAggregate{
		ProductID:        product.ID,
		Name:             product.Name,
		Weight:           product.Weight,
		Recommendations:  recSummaries,
		Reviews:          reviewSummaries,
		ServiceAddresses: addresses,
	}
}
