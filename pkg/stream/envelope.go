package stream

import (
	"encoding/json"
	"time"

	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
)

type EventType string

const (
	EventCreate EventType = "CREATE"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Envelope is the typed unit of exchange. Key identifies the logical entity
// and stays stable across its lifetime; CreatedAt is stamped once at
// construction and never mutated afterwards.
type Envelope struct {
	Type      EventType       `json:"eventType"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"eventCreatedAt"`
}

func NewEnvelope(typ EventType, key string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errs.Wrap(err, errs.KindMalformed, "Envelope - NewEnvelope - json.Marshal")
	}

	env := Envelope{
		Type:      typ,
		Key:       key,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}

	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}

	return env, nil
}

func (e Envelope) Validate() error {
	switch e.Type {
	case EventCreate, EventUpdate, EventDelete:
	default:
		return errs.Newf(errs.KindMalformed, "Envelope - Validate - unknown event type %q", string(e.Type))
	}

	if e.Key == "" {
		return errs.New(errs.KindMalformed, "Envelope - Validate - empty key")
	}

	if e.CreatedAt.IsZero() {
		return errs.New(errs.KindMalformed, "Envelope - Validate - zero created time")
	}

	return nil
}

// Codec turns envelopes into wire bytes and back. Decode and validation
// failures are Malformed and are never retried.
type Codec interface {
	Marshal(env Envelope) ([]byte, error)
	Unmarshal(b []byte) (Envelope, error)
}

// JSONCodec writes the envelope as a JSON document with fields
// eventType, key, data and eventCreatedAt (RFC 3339).
type JSONCodec struct{}

func (JSONCodec) Marshal(env Envelope) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	b, err := json.Marshal(env)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindMalformed, "JSONCodec - Marshal - json.Marshal")
	}

	return b, nil
}

func (JSONCodec) Unmarshal(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, errs.Wrap(err, errs.KindMalformed, "JSONCodec - Unmarshal - json.Unmarshal")
	}

	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}

	return env, nil
}
