package restapi

import (
	"errors"
	"log/slog"
	"net/http"

	"erdemo.org/responder-simulator/internal/events"
	"erdemo.org/responder-simulator/internal/logging"
	"erdemo.org/responder-simulator/internal/models"
)

// cloudEventHandler accepts MissionStartedEvent CloudEvents in structured or
// binary mode. Events of other types are acknowledged and ignored.
func (api *RestAPI) cloudEventHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	ce, err := events.ParseHTTPCloudEvent(r)
	if err != nil {
		api.validationErrorResponse(w, r, map[string][]string{
			"body": {err.Error()},
		})
		return
	}

	mission, err := ce.MissionStarted()
	var verr *events.ValidationError
	switch {
	case errors.Is(err, events.ErrUnsupportedType):
		logging.FromContext(r.Context()).Debug("CloudEvent ignored",
			slog.String("type", ce.Type), slog.String("id", ce.ID))
		api.sendResponse(w, r, models.NewResponse(http.StatusOK, nil, "ignored"))
		return
	case errors.As(err, &verr):
		api.validationErrorResponse(w, r, verr.Fields)
		return
	case err != nil:
		api.serverErrorResponse(w, r, err)
		return
	}

	api.startMission(w, r, mission)
}
