package observability

import "time"

const emitterName = "messaging-service"

// EventEnvelope is the wire shape of every domain event this service
// publishes. Consumers route on the envelope, never on the payload.
type EventEnvelope struct {
	Domain    string      `json:"domain"`
	EventName string      `json:"event_name"`
	Service   string      `json:"service"`
	EmittedAt time.Time   `json:"emitted_at"`
	Payload   interface{} `json:"payload"`
}

// NewEnvelope stamps a payload with the messaging domain, the emitting
// service and the emission time.
func NewEnvelope(eventName string, payload interface{}) EventEnvelope {
	return EventEnvelope{
		Domain:    "messaging",
		EventName: eventName,
		Service:   emitterName,
		EmittedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

// BuildHeaders assembles the AMQP headers consumers use for correlation.
// Empty values are left out rather than published blank.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{"x-emitter": emitterName}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["x-trace-id"] = traceID
	}
	return headers
}
