package events

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/andreyxaxa/Product-Composite/internal/infrastructure"
	"github.com/andreyxaxa/Product-Composite/internal/usecase"
	"github.com/andreyxaxa/Product-Composite/pkg/logger"
	"github.com/andreyxaxa/Product-Composite/pkg/stream"
	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
)

// Binding ties one topic to its handler.
type Binding struct {
	Name    string
	Topic   string
	Handler stream.Handler
}

type EventsController struct {
	subscriber infrastructure.EventSubscriber
	catalog    usecase.CatalogUseCase
	consumer   stream.ConsumerConfig
	bindings   []Binding
	logger     logger.Interface

	started atomic.Bool
}

func New(
	subscriber infrastructure.EventSubscriber,
	catalog usecase.CatalogUseCase,
	consumer stream.ConsumerConfig,
	productsTopic string,
	reviewsTopic string,
	recommendationsTopic string,
	l logger.Interface,
) *EventsController {
	c := &EventsController{
		subscriber: subscriber,
		catalog:    catalog,
		consumer:   consumer,
		logger:     l,
	}

	// явная регистрация обработчиков: список ниже - исчерпывающий,
	// ничего не обнаруживается в рантайме
	c.bindings = []Binding{
		{Name: "products", Topic: productsTopic, Handler: c.handleProduct},
		{Name: "reviews", Topic: reviewsTopic, Handler: c.handleReview},
		{Name: "recommendations", Topic: recommendationsTopic, Handler: c.handleRecommendation},
	}

	return c
}

func (c *EventsController) Start() error {
	if !c.started.CompareAndSwap(false, true) {
		return errs.New(errs.KindInvalidInput, "EventsController - Start - already started")
	}

	for _, b := range c.bindings {
		if err := c.subscriber.Subscribe(b.Topic, c.consumer, b.Handler); err != nil {
			return fmt.Errorf("EventsController - Start - subscribe %s: %w", b.Name, err)
		}

		c.logger.Info("events: subscribed, topic=%s group=%s", b.Topic, c.consumer.Group)
	}

	return nil
}

func (c *EventsController) Shutdown(ctx context.Context) error {
	if !c.started.CompareAndSwap(true, false) {
		return nil
	}

	if err := c.subscriber.Shutdown(ctx); err != nil {
		return fmt.Errorf("EventsController - Shutdown - c.subscriber.Shutdown: %w", err)
	}

	return nil
}
