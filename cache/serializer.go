package cache

import (
	"encoding/json"

	"github.com/troubladore/venuecore/internal/xerrors"
)

// Serializer is the pluggable event codec the durability contract calls
// for: serialize(event) -> bytes, deserialize(bytes) -> event.
type Serializer interface {
	Serialize(Event) ([]byte, error)
	Deserialize([]byte) (Event, error)
}

// JSONSerializer is the default Serializer, envelope-tagged on Kind so
// Deserialize can dispatch back to the correct concrete payload type.
type JSONSerializer struct{}

type envelope struct {
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (JSONSerializer) Serialize(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, xerrors.Wrap(err, "marshal event payload")
	}
	out, err := json.Marshal(envelope{Kind: e.Kind, Payload: payload})
	if err != nil {
		return nil, xerrors.Wrap(err, "marshal event envelope")
	}
	return out, nil
}

func (JSONSerializer) Deserialize(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, xerrors.Wrap(err, "unmarshal event envelope")
	}
	payload, err := decodePayload(env.Kind, env.Payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Kind: env.Kind, Payload: payload}, nil
}

func decodePayload(kind EventKind, raw json.RawMessage) (any, error) {
	var target any
	switch kind {
	case KindAccountState:
		target = &AccountStateEvent{}
	case KindOrderInitialized:
		target = &OrderInitializedEvent{}
	case KindOrderUpdated:
		target = &OrderUpdatedEvent{}
	case KindOrderFilled:
		target = &OrderFilledEvent{}
	case KindOrderCanceled:
		target = &OrderCanceledEvent{}
	case KindOrderRejected:
		target = &OrderRejectedEvent{}
	case KindOrderExpired:
		target = &OrderExpiredEvent{}
	default:
		return nil, xerrors.New("unknown event kind: " + string(kind))
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, xerrors.Wrap(err, "unmarshal event payload")
	}
	return derefPayload(target), nil
}

func derefPayload(target any) any {
	switch v := target.(type) {
	case *AccountStateEvent:
		return *v
	case *OrderInitializedEvent:
		return *v
	case *OrderUpdatedEvent:
		return *v
	case *OrderFilledEvent:
		return *v
	case *OrderCanceledEvent:
		return *v
	case *OrderRejectedEvent:
		return *v
	case *OrderExpiredEvent:
		return *v
	default:
		return target
	}
}
