package restapi

import (
	"errors"
	"net/http"

	"erdemo.org/responder-simulator/internal/events"
	"erdemo.org/responder-simulator/internal/models"
	"erdemo.org/responder-simulator/internal/store"
	"erdemo.org/responder-simulator/internal/utils"
)

// missionStatusHandler accepts {missionId, status}; a PICKEDUP status resumes
// a waiting responder.
func (api *RestAPI) missionStatusHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := api.readBody(w, r)
	if !ok {
		return
	}

	status, err := events.ParseMissionStatus(body)
	var verr *events.ValidationError
	if errors.As(err, &verr) {
		api.validationErrorResponse(w, r, verr.Fields)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	if err := api.Simulator.StatusChanged(r.Context(), status); err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewOKResponse(nil))
}

// missionStartedHandler starts a mission posted without a CloudEvent envelope.
func (api *RestAPI) missionStartedHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := api.readBody(w, r)
	if !ok {
		return
	}

	mission, err := events.ParseMissionStarted(body)
	var verr *events.ValidationError
	if errors.As(err, &verr) {
		api.validationErrorResponse(w, r, verr.Fields)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.startMission(w, r, mission)
}

func (api *RestAPI) startMission(w http.ResponseWriter, r *http.Request, mission events.MissionStarted) {
	if err := api.Simulator.MissionStarted(r.Context(), mission); err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewResponse(http.StatusAccepted,
		map[string]interface{}{"entry": map[string]string{"missionId": mission.ID}}, "Accepted"))
}

func (api *RestAPI) missionHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	if err := utils.ValidateID(id); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{
			"id": {err.Error()},
		})
		return
	}

	rl, err := api.Simulator.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.sendResponse(w, r, models.NewEntryResponse(models.NewMissionView(rl)))
}

// stopMissionHandler ends the simulation of a single mission.
func (api *RestAPI) stopMissionHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	if err := utils.ValidateID(id); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{
			"id": {err.Error()},
		})
		return
	}

	err := api.Simulator.Stop(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewOKResponse(nil))
}

func (api *RestAPI) clearHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.Simulator.Clear(r.Context()); err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewOKResponse(nil))
}
