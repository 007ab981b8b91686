package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/andreyxaxa/Product-Composite/internal/entity"
	"github.com/andreyxaxa/Product-Composite/pkg/stream"
	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
)

// Handler errors are classified by the retry engine: InvalidInput and
// NotFound park the record immediately, everything else is retried with
// backoff until the budget runs out.

func (c *EventsController) handleProduct(ctx context.Context, env stream.Envelope) error {
	switch env.Type {
	case stream.EventCreate, stream.EventUpdate:
		// 1. тело события - сущность целиком
		var product entity.Product
		if err := json.Unmarshal(env.Data, &product); err != nil {
			return errs.Wrap(err, errs.KindInvalidInput, "EventsController - handleProduct - json.Unmarshal")
		}

		if err := c.catalog.UpsertProduct(ctx, product); err != nil {
			return fmt.Errorf("EventsController - handleProduct - upsert: %w", err)
		}

		return nil
	case stream.EventDelete:
		// 2. у tombstone данных нет, ключа достаточно
		productID, err := keyToProductID(env.Key)
		if err != nil {
			return err
		}

		if err := c.catalog.RemoveProduct(ctx, productID); err != nil {
			return fmt.Errorf("EventsController - handleProduct - remove: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("EventsController - handleProduct - %q: %w", env.Type, errs.ErrUnknownEvent)
	}
}

func (c *EventsController) handleReview(ctx context.Context, env stream.Envelope) error {
	switch env.Type {
	case stream.EventCreate, stream.EventUpdate:
		var review entity.Review
		if err := json.Unmarshal(env.Data, &review); err != nil {
			return errs.Wrap(err, errs.KindInvalidInput, "EventsController - handleReview - json.Unmarshal")
		}

		if err := c.catalog.UpsertReview(ctx, review); err != nil {
			return fmt.Errorf("EventsController - handleReview - upsert: %w", err)
		}

		return nil
	case stream.EventDelete:
		// DELETE снимает все отзывы продукта разом
		productID, err := keyToProductID(env.Key)
		if err != nil {
			return err
		}

		if err := c.catalog.RemoveReviews(ctx, productID); err != nil {
			return fmt.Errorf("EventsController - handleReview - remove: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("EventsController - handleReview - %q: %w", env.Type, errs.ErrUnknownEvent)
	}
}

func (c *EventsController) handleRecommendation(ctx context.Context, env stream.Envelope) error {
	switch env.Type {
	case stream.EventCreate, stream.EventUpdate:
		var recommendation entity.Recommendation
		if err := json.Unmarshal(env.Data, &recommendation); err != nil {
			return errs.Wrap(err, errs.KindInvalidInput, "EventsController - handleRecommendation - json.Unmarshal")
		}

		if err := c.catalog.UpsertRecommendation(ctx, recommendation); err != nil {
			return fmt.Errorf("EventsController - handleRecommendation - upsert: %w", err)
		}

		return nil
	case stream.EventDelete:
		productID, err := keyToProductID(env.Key)
		if err != nil {
			return err
		}

		if err := c.catalog.RemoveRecommendations(ctx, productID); err != nil {
			return fmt.Errorf("EventsController - handleRecommendation - remove: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("EventsController - handleRecommendation - %q: %w", env.Type, errs.ErrUnknownEvent)
	}
}

func keyToProductID(key string) (int, error) {
	productID, err := strconv.Atoi(key)
	if err != nil {
		return 0, errs.Wrap(err, errs.KindInvalidInput, "EventsController - keyToProductID - strconv.Atoi")
	}

	if productID < 1 {
		return 0, errs.Newf(errs.KindInvalidInput, "invalid productId key: %q", key)
	}

	return productID, nil
}
