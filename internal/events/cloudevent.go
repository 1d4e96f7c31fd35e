package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SpecVersion             = "1.0"
	MissionStartedEventType = "MissionStartedEvent"
	LocationUpdateEventType = "ResponderLocationUpdatedEvent"

	structuredContentType = "application/cloudevents+json"
	jsonContentType       = "application/json"
	maxEventSize          = 1 << 20
)

// CloudEvent is a CloudEvents 1.0 envelope with a JSON payload.
type CloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	DataContentType string          `json:"datacontenttype,omitempty"`
	Time            *time.Time      `json:"time,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}

// NewCloudEvent wraps data in an envelope with a fresh id.
func NewCloudEvent(source, eventType string, data any) (CloudEvent, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return CloudEvent{}, fmt.Errorf("encoding %s data: %w", eventType, err)
	}
	now := time.Now().UTC()
	return CloudEvent{
		SpecVersion:     SpecVersion,
		ID:              uuid.NewString(),
		Source:          source,
		Type:            eventType,
		DataContentType: jsonContentType,
		Time:            &now,
		Data:            payload,
	}, nil
}

func (ce CloudEvent) validate() error {
	var missing []string
	if ce.SpecVersion == "" {
		missing = append(missing, "specversion")
	}
	if ce.ID == "" {
		missing = append(missing, "id")
	}
	if ce.Source == "" {
		missing = append(missing, "source")
	}
	if ce.Type == "" {
		missing = append(missing, "type")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotCloudEvent, strings.Join(missing, ", "))
	}
	return nil
}

// ParseCloudEvent decodes a structured-mode envelope.
func ParseCloudEvent(data []byte) (CloudEvent, error) {
	var ce CloudEvent
	if err := json.Unmarshal(data, &ce); err != nil {
		return CloudEvent{}, fmt.Errorf("%w: %v", ErrNotCloudEvent, err)
	}
	if err := ce.validate(); err != nil {
		return CloudEvent{}, err
	}
	return ce, nil
}

// ParseHTTPCloudEvent reads a CloudEvent from an HTTP request in either
// structured mode (application/cloudevents+json body) or binary mode (ce-*
// headers, payload as body).
func ParseHTTPCloudEvent(r *http.Request) (CloudEvent, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventSize))
	if err != nil {
		return CloudEvent{}, fmt.Errorf("reading request body: %w", err)
	}

	contentType := r.Header.Get("Content-Type")
	if mediaType(contentType) == structuredContentType {
		return ParseCloudEvent(body)
	}

	if r.Header.Get("Ce-Specversion") == "" {
		return CloudEvent{}, fmt.Errorf("%w: no ce-specversion header", ErrNotCloudEvent)
	}

	ce := CloudEvent{
		SpecVersion:     r.Header.Get("Ce-Specversion"),
		ID:              r.Header.Get("Ce-Id"),
		Source:          r.Header.Get("Ce-Source"),
		Type:            r.Header.Get("Ce-Type"),
		DataContentType: contentType,
		Data:            bytes.TrimSpace(body),
	}
	if ts := r.Header.Get("Ce-Time"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			ce.Time = &t
		}
	}
	if err := ce.validate(); err != nil {
		return CloudEvent{}, err
	}
	return ce, nil
}

// MissionStarted extracts the mission carried by a MissionStartedEvent.
// Events of another type or without a JSON payload yield ErrUnsupportedType and
// should be ignored by the caller; a bad payload yields a *ValidationError.
func (ce CloudEvent) MissionStarted() (MissionStarted, error) {
	if mediaType(ce.DataContentType) != jsonContentType {
		return MissionStarted{}, fmt.Errorf("%w: data content type %q is not %s",
			ErrUnsupportedType, ce.DataContentType, jsonContentType)
	}
	if ce.Type != MissionStartedEventType {
		return MissionStarted{}, fmt.Errorf("%w: type %q", ErrUnsupportedType, ce.Type)
	}
	return ParseMissionStarted(ce.payload())
}

// payload unwraps data that was sent as a JSON-encoded string.
func (ce CloudEvent) payload() []byte {
	data := bytes.TrimSpace(ce.Data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			return []byte(s)
		}
	}
	return data
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}
