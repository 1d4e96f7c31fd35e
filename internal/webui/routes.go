// Package webui serves a small HTML page that dumps the simulator's internal
// state for debugging.
package webui

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"erdemo.org/responder-simulator/internal/app"
)

type WebUI struct {
	*app.Application
}

func (webUI *WebUI) SetWebUIRoutes(router *httprouter.Router) {
	router.HandlerFunc(http.MethodGet, "/debug/", webUI.debugIndexHandler)
}
