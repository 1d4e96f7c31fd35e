package restapi

import (
	"net/http"

	"erdemo.org/responder-simulator/internal/models"
)

type healthStatus struct {
	Status          string `json:"status"`
	Environment     string `json:"environment"`
	PendingTicks    int    `json:"pendingTicks"`
	StreamClients   int    `json:"streamClients"`
	PublishedEvents uint64 `json:"publishedEvents"`
	DroppedEvents   uint64 `json:"droppedEvents"`
}

func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := healthStatus{
		Status:       "ok",
		Environment:  api.Config.Env.String(),
		PendingTicks: api.Simulator.Pending(),
	}
	if api.Hub != nil {
		health.StreamClients = api.Hub.ClientCount()
	}
	if api.Dispatcher != nil {
		health.PublishedEvents = api.Dispatcher.Published()
		health.DroppedEvents = api.Dispatcher.Dropped()
	}
	api.sendResponse(w, r, models.NewEntryResponse(health))
}
