package restapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"

	"erdemo.org/responder-simulator/internal/app"
	"erdemo.org/responder-simulator/internal/appconf"
	"erdemo.org/responder-simulator/internal/events"
	"erdemo.org/responder-simulator/internal/logging"
	"erdemo.org/responder-simulator/internal/models"
	"erdemo.org/responder-simulator/internal/responder"
	"erdemo.org/responder-simulator/internal/simulator"
	"erdemo.org/responder-simulator/internal/store"
)

// createTestApi wires a RestAPI to an in-memory simulator whose ticks never
// fire during a test.
func createTestApi(t *testing.T, rateLimit int) *RestAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hub := events.NewHub("responder-simulator-test", logger)
	dispatcher := events.NewDispatcher(16, events.PolicyBlock, logger, events.LogPublisher{Logger: logger}, hub)
	sim := simulator.New(simulator.Config{
		Delay:        time.Hour,
		DistanceBase: 1000,
		Overshoot:    1.3,
		Workers:      2,
	}, store.NewMemoryStore(), responder.StaticLookup(true), dispatcher, logger)

	t.Cleanup(func() {
		sim.Shutdown()
		dispatcher.Close()
	})

	application := &app.Application{
		Config: appconf.Config{
			Env:       appconf.EnvFlagToEnvironment("test"),
			ApiKeys:   []string{"TEST"},
			RateLimit: rateLimit,
		},
		Logger:     logger,
		Simulator:  sim,
		Dispatcher: dispatcher,
		Hub:        hub,
	}
	return NewRestAPI(application)
}

func newTestServer(t *testing.T, api *RestAPI) *httptest.Server {
	t.Helper()
	router := httprouter.New()
	api.SetRoutes(router)
	server := httptest.NewServer(api.Handler(router))
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, method, url string, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// decodeResponse reads a ResponseModel and closes the body.
func decodeResponse(t *testing.T, resp *http.Response) models.ResponseModel {
	t.Helper()
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "test")),
		"http_response_body")

	var model models.ResponseModel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&model))
	return model
}

func decodeFieldErrors(t *testing.T, resp *http.Response) map[string][]string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		FieldErrors map[string][]string `json:"fieldErrors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.FieldErrors
}
