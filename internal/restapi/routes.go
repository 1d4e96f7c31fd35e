package restapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type handlerFunc func(w http.ResponseWriter, r *http.Request)

// validateAPIKey guards administrative endpoints.
func validateAPIKey(api *RestAPI, finalHandler handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.RequestHasInvalidAPIKey(r) {
			api.invalidAPIKeyResponse(w, r)
			return
		}
		finalHandler(w, r)
	})
}

func (api *RestAPI) wrap(h handlerFunc) http.Handler {
	return api.rateLimiter(CompressionMiddleware(http.HandlerFunc(h)))
}

// SetRoutes registers the control API. The stream endpoint is not compressed
// because websocket upgrades must reach the raw connection.
func (api *RestAPI) SetRoutes(router *httprouter.Router) {
	router.Handler(http.MethodGet, "/health", api.wrap(api.healthHandler))

	router.Handler(http.MethodPost, "/api/mission", api.wrap(api.missionStatusHandler))
	router.Handler(http.MethodPost, "/api/missions", api.wrap(api.missionStartedHandler))
	router.Handler(http.MethodPost, "/api/events", api.wrap(api.cloudEventHandler))
	router.Handler(http.MethodGet, "/api/mission/:id", api.wrap(api.missionHandler))
	router.Handler(http.MethodDelete, "/api/mission/:id", api.rateLimiter(validateAPIKey(api, api.stopMissionHandler)))
	router.Handler(http.MethodPost, "/api/clear", api.rateLimiter(validateAPIKey(api, api.clearHandler)))

	if api.Hub != nil {
		router.Handler(http.MethodGet, "/api/stream", api.rateLimiter(api.Hub))
	}

	router.NotFound = http.HandlerFunc(api.sendNotFound)
}

// Handler wraps the router with the middleware every request goes through.
func (api *RestAPI) Handler(router *httprouter.Router) http.Handler {
	return NewRequestLoggingMiddleware(api.Logger)(api.WithSecurityHeaders(router))
}
