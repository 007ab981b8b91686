package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyxaxa/Product-Composite/internal/usecase/catalog"
	"github.com/andreyxaxa/Product-Composite/pkg/logger"
	"github.com/andreyxaxa/Product-Composite/pkg/stream"
	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
)

func newHandlerFixture() *EventsController {
	return New(
		nil,
		catalog.New(),
		stream.ConsumerConfig{Group: "g"},
		"products", "reviews", "recommendations",
		logger.New("error"),
	)
}

func TestHandlers_UnknownEventType(t *testing.T) {
	c := newHandlerFixture()

	env := stream.Envelope{Type: "BANANA", Key: "1", CreatedAt: time.Now().UTC()}

	for name, handler := range map[string]stream.Handler{
		"product":        c.handleProduct,
		"review":         c.handleReview,
		"recommendation": c.handleRecommendation,
	} {
		err := handler(context.Background(), env)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, errs.ErrUnknownEvent, name)
	}
}

func TestHandlers_UndecodablePayloadIsTerminal(t *testing.T) {
	c := newHandlerFixture()

	env := stream.Envelope{
		Type:      stream.EventCreate,
		Key:       "1",
		Data:      json.RawMessage(`"not an object"`),
		CreatedAt: time.Now().UTC(),
	}

	err := c.handleProduct(context.Background(), env)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))
	assert.True(t, errs.IsTerminal(err))
}

func TestHandlers_TombstoneWithBadKey(t *testing.T) {
	c := newHandlerFixture()

	for _, key := range []string{"abc", "-3", "0"} {
		env := stream.Envelope{Type: stream.EventDelete, Key: key, CreatedAt: time.Now().UTC()}

		err := c.handleReview(context.Background(), env)
		require.Error(t, err, key)
		assert.True(t, errs.IsKind(err, errs.KindInvalidInput), key)
	}
}
