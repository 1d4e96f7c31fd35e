// Package responder resolves whether a responder is a person, who has to wait
// at a pickup, or a vehicle, which does not.
package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"erdemo.org/responder-simulator/internal/logging"
)

// Lookup never fails: implementations fall back to "not a person" when the
// answer cannot be obtained, so mission creation is never blocked.
type Lookup interface {
	IsPerson(ctx context.Context, responderID string) bool
}

// StaticLookup answers the same for every responder.
type StaticLookup bool

func (s StaticLookup) IsPerson(context.Context, string) bool {
	return bool(s)
}

// HTTPLookup queries the responder service: GET {baseURL}{requestURI}{id}
// must return 200 and a JSON object with a boolean "person" property.
type HTTPLookup struct {
	baseURL    string
	requestURI string
	client     *http.Client
	cache      *lru.Cache[string, bool]
	logger     *slog.Logger
}

// NewHTTPLookup creates a lookup against the responder service. A cacheSize of
// zero disables caching of answers.
func NewHTTPLookup(baseURL, requestURI string, timeout time.Duration, cacheSize int, logger *slog.Logger) (*HTTPLookup, error) {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid responder service url %q: %w", baseURL, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &HTTPLookup{
		baseURL:    strings.TrimRight(baseURL, "/"),
		requestURI: normalizeRequestURI(requestURI),
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "responder_lookup")),
	}

	if cacheSize > 0 {
		cache, err := lru.New[string, bool](cacheSize)
		if err != nil {
			return nil, err
		}
		l.cache = cache
	}
	return l, nil
}

// normalizeRequestURI makes the request uri start and end with a single slash
// so that the responder id is always its own path segment.
func normalizeRequestURI(requestURI string) string {
	trimmed := strings.Trim(requestURI, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + trimmed + "/"
}

func (l *HTTPLookup) IsPerson(ctx context.Context, responderID string) bool {
	if l.cache != nil {
		if person, ok := l.cache.Get(responderID); ok {
			return person
		}
	}

	person, err := l.fetch(ctx, responderID)
	if err != nil {
		logging.LogError(l.logger, "Error when calling responder service", err,
			slog.String("responder_id", responderID))
		return false
	}

	l.logger.Debug("responder resolved", slog.String("responder_id", responderID), slog.Bool("person", person))
	if l.cache != nil {
		l.cache.Add(responderID, person)
	}
	return person
}

func (l *HTTPLookup) fetch(ctx context.Context, responderID string) (bool, error) {
	endpoint := l.baseURL + l.requestURI + url.PathEscape(responderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return false, err
	}
	defer logging.SafeCloseWithLogging(resp.Body, l.logger, "responder_response_body")

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected return code %d", resp.StatusCode)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decoding response: %w", err)
	}
	raw, ok := body["person"]
	if !ok {
		return false, fmt.Errorf("response does not contain property 'person'")
	}
	var person bool
	if err := json.Unmarshal(raw, &person); err != nil {
		return false, fmt.Errorf("property 'person' is not a boolean: %w", err)
	}
	return person, nil
}
