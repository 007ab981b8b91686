package composite

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Product-Composite/internal/entity"
	"github.com/andreyxaxa/Product-Composite/internal/infrastructure"
	"github.com/andreyxaxa/Product-Composite/pkg/async"
	"github.com/andreyxaxa/Product-Composite/pkg/logger"
	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
	"github.com/andreyxaxa/Product-Composite/pkg/workerpool"
)

// Topics maps the aggregate's write path onto physical topic names.
type Topics struct {
	Products        string
	Reviews         string
	Recommendations string
}

type Observer interface {
	AggregateObserved(outcome string)
}

type NopObserver struct{}

func (NopObserver) AggregateObserved(string) {}

type CompositeUseCase struct {
	products        infrastructure.ProductFetcher
	reviews         infrastructure.ReviewsFetcher
	recommendations infrastructure.RecommendationsFetcher
	events          infrastructure.EventPublisher
	pool            *workerpool.Pool

	topics      Topics
	serviceAddr string
	strictJoin  bool
	obs         Observer

	logger logger.Interface
}

func New(
	products infrastructure.ProductFetcher,
	reviews infrastructure.ReviewsFetcher,
	recommendations infrastructure.RecommendationsFetcher,
	events infrastructure.EventPublisher,
	pool *workerpool.Pool,
	topics Topics,
	serviceAddr string,
	strictJoin bool,
	obs Observer,
	l logger.Interface,
) *CompositeUseCase {
	if obs == nil {
		obs = NopObserver{}
	}

	return &CompositeUseCase{
		products:        products,
		reviews:         reviews,
		recommendations: recommendations,
		events:          events,
		pool:            pool,
		topics:          topics,
		serviceAddr:     serviceAddr,
		strictJoin:      strictJoin,
		obs:             obs,
		logger:          l,
	}
}

func (uc *CompositeUseCase) Aggregate(ctx context.Context, productID int) (*entity.ProductAggregate, error) {
	if productID < 1 {
		return nil, errs.New(errs.KindInvalidInput, "productId must be a positive integer")
	}

	// 1. три конкурентных вызова, без последовательного ожидания
	productF := uc.products.FetchProduct(ctx, productID)
	recsF := uc.recommendations.FetchRecommendations(ctx, productID)
	reviewsF := uc.reviews.FetchReviews(ctx, productID)

	// 2. джойн по настроенной политике
	var (
		aggregate *entity.ProductAggregate
		partial   bool
		err       error
	)

	if uc.strictJoin {
		aggregate, err = uc.joinStrict(ctx, productF, recsF, reviewsF)
	} else {
		aggregate, partial, err = uc.joinBestEffort(ctx, productID, productF, recsF, reviewsF)
	}

	if err != nil {
		uc.obs.AggregateObserved("error")

		return nil, err
	}

	if partial {
		uc.obs.AggregateObserved("partial")
	} else {
		uc.obs.AggregateObserved("success")
	}

	return aggregate, nil
}

func (uc *CompositeUseCase) joinBestEffort(
	ctx context.Context,
	productID int,
	productF *async.Future[*entity.Product],
	recsF *async.Future[[]entity.Recommendation],
	reviewsF *async.Future[[]entity.Review],
) (*entity.ProductAggregate, bool, error) {
	// 1. продукт обязателен - его отказ валит весь агрегат
	product, err := productF.Result(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("CompositeUseCase - Aggregate - product: %w", err)
	}

	partial := false

	// 2. отказ опционального сервиса превращается в пустой список, не в ошибку
	recommendations, err := recsF.Result(ctx)
	if err != nil {
		uc.logger.Warn("recommendations degraded for productId=%d, error=%v", productID, err)

		recommendations = nil
		partial = true
	}

	reviews, err := reviewsF.Result(ctx)
	if err != nil {
		uc.logger.Warn("reviews degraded for productId=%d, error=%v", productID, err)

		reviews = nil
		partial = true
	}

	return uc.buildAggregate(product, recommendations, reviews), partial, nil
}

func (uc *CompositeUseCase) joinStrict(
	ctx context.Context,
	productF *async.Future[*entity.Product],
	recsF *async.Future[[]entity.Recommendation],
	reviewsF *async.Future[[]entity.Review],
) (*entity.ProductAggregate, error) {
	productDone := productF.Done()
	recsDone := recsF.Done()
	reviewsDone := reviewsF.Done()

	// 1. первая наблюдаемая ошибка завершает агрегат; сиблинги доработают
	// в фоне и будут отброшены, отменять их не нужно
	for productDone != nil || recsDone != nil || reviewsDone != nil {
		select {
		case <-productDone:
			productDone = nil
			if _, err := productF.Result(ctx); err != nil {
				return nil, fmt.Errorf("CompositeUseCase - Aggregate - product: %w", err)
			}
		case <-recsDone:
			recsDone = nil
			if _, err := recsF.Result(ctx); err != nil {
				return nil, fmt.Errorf("CompositeUseCase - Aggregate - recommendations: %w", err)
			}
		case <-reviewsDone:
			reviewsDone = nil
			if _, err := reviewsF.Result(ctx); err != nil {
				return nil, fmt.Errorf("CompositeUseCase - Aggregate - reviews: %w", err)
			}
		case <-ctx.Done():
			return nil, errs.Wrap(ctx.Err(), errs.KindUnavailable, "aggregate deadline exceeded")
		}
	}

	// 2. все три завершились успешно
	product, _ := productF.Result(ctx)
	recommendations, _ := recsF.Result(ctx)
	reviews, _ := reviewsF.Result(ctx)

	return uc.buildAggregate(product, recommendations, reviews), nil
}

func (uc *CompositeUseCase) Create(ctx context.Context, aggregate *entity.ProductAggregate) error {
	// 1. валидация формы
	if err := validateAggregate(aggregate); err != nil {
		return err
	}

	// 2. конверты собираются заранее: Malformed должен всплыть до публикации
	envelopes, err := uc.createEnvelopes(aggregate)
	if err != nil {
		return fmt.Errorf("CompositeUseCase - Create - uc.createEnvelopes: %w", err)
	}

	// 3. публикация через ограниченный пул; полная очередь отдаётся наружу
	// как Saturated, дальше caller решает
	err = uc.pool.Do(ctx, func() error {
		return uc.publishAll(ctx, envelopes)
	})
	if err != nil {
		return fmt.Errorf("CompositeUseCase - Create - uc.pool.Do: %w", err)
	}

	return nil
}

func (uc *CompositeUseCase) Delete(ctx context.Context, productID int) error {
	if productID < 1 {
		return errs.New(errs.KindInvalidInput, "productId must be a positive integer")
	}

	envelopes, err := uc.deleteEnvelopes(productID)
	if err != nil {
		return fmt.Errorf("CompositeUseCase - Delete - uc.deleteEnvelopes: %w", err)
	}

	err = uc.pool.Do(ctx, func() error {
		return uc.publishAll(ctx, envelopes)
	})
	if err != nil {
		return fmt.Errorf("CompositeUseCase - Delete - uc.pool.Do: %w", err)
	}

	return nil
}
