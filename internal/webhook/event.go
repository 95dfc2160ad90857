package webhook

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Provider event types. The set is closed: anything else is acknowledged but
// never processed, so a provider rolling out new event types cannot break
// ingestion.
const (
	EventCallStarted       = "call.started"
	EventCallRinging       = "call.ringing"
	EventCallInProgress    = "call.in-progress"
	EventCallEnded         = "call.ended"
	EventAnalysisCompleted = "call.analysis.completed"
)

// UnknownEventTypeError marks a delivery outside the known event set.
type UnknownEventTypeError struct {
	EventType string
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("unknown webhook event type %q", e.EventType)
}

// UnattributableEventError marks a delivery that matched no tenant: no usable
// metadata and no active node owns the called number.
type UnattributableEventError struct {
	ProviderCallID string
}

func (e *UnattributableEventError) Error() string {
	return fmt.Sprintf("webhook for call %s matched no tenant", e.ProviderCallID)
}

var (
	errMissingCallID    = errors.New("webhook payload has no call_id")
	errMalformedPayload = errors.New("malformed webhook payload")
)

// Analysis is the post-call analysis attached to call.analysis.completed.
type Analysis struct {
	Sentiment      string          `json:"sentiment"`
	Intent         string          `json:"intent"`
	Urgency        int             `json:"urgency"`
	LeadScore      int             `json:"lead_score"`
	TranscriptURL  string          `json:"transcript_url"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
}

// Envelope is the decoded webhook delivery. Fields beyond the common set are
// populated per event type.
type Envelope struct {
	EventType      string            `json:"event_type"`
	ProviderCallID string            `json:"call_id"`
	From           string            `json:"from"`
	To             string            `json:"to"`
	Status         string            `json:"status"`
	DurationSecs   int               `json:"duration"`
	RecordingURL   *string           `json:"recording_url"`
	Metadata       map[string]string `json:"metadata"`
	Analysis       *Analysis         `json:"analysis"`
}

// ParseEnvelope decodes and validates a raw delivery.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errMalformedPayload, err)
	}
	if env.ProviderCallID == "" {
		return Envelope{}, errMissingCallID
	}

	switch env.EventType {
	case EventCallStarted, EventCallRinging, EventCallInProgress, EventCallEnded:
	case EventAnalysisCompleted:
		if env.Analysis == nil {
			// Permanently malformed; a retryable error would have the
			// provider redeliver it forever.
			return Envelope{}, fmt.Errorf("%w: event %s carries no analysis payload", errMalformedPayload, env.EventType)
		}
	default:
		return Envelope{}, &UnknownEventTypeError{EventType: env.EventType}
	}

	return env, nil
}
