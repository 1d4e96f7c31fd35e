package webui

import (
	"embed"
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/davecgh/go-spew/spew"

	"erdemo.org/responder-simulator/internal/appconf"
	"erdemo.org/responder-simulator/internal/logging"
	"erdemo.org/responder-simulator/internal/models"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

const redacted = "[redacted]"

type debugData struct {
	Title string
	Pre   string
}

type pendingTick struct {
	MissionID string
	Status    models.Status
	Due       time.Time
}

type dispatcherStats struct {
	Published     uint64
	Dropped       uint64
	StreamClients int
}

func writeDebugData(w http.ResponseWriter, title string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	err := debugTemplate.Execute(w, debugData{
		Title: title,
		Pre:   spew.Sdump(data),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// redactConfig hides credentials before the configuration is shown.
func redactConfig(cfg appconf.Config) appconf.Config {
	if len(cfg.ApiKeys) > 0 {
		cfg.ApiKeys = []string{redacted}
	}
	if cfg.Store.RedisPassword != "" {
		cfg.Store.RedisPassword = redacted
	}
	if cfg.Events.RedisPassword != "" {
		cfg.Events.RedisPassword = redacted
	}
	return cfg
}

func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	dataType := r.URL.Query().Get("dataType")

	var data interface{}
	var title string

	switch dataType {
	case "missions":
		missions, err := webUI.Simulator.Missions(r.Context())
		if err != nil {
			logging.LogError(logging.FromContext(r.Context()), "listing missions for debug page", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		sort.Slice(missions, func(i, j int) bool { return missions[i].MissionID < missions[j].MissionID })
		data = missions
		title = "Simulator - Missions"
	case "pending":
		missions, err := webUI.Simulator.Missions(r.Context())
		if err != nil {
			logging.LogError(logging.FromContext(r.Context()), "listing missions for debug page", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		ticks := make([]pendingTick, 0, len(missions))
		for _, rl := range missions {
			if due, ok := webUI.Simulator.NextTick(rl.MissionID); ok {
				ticks = append(ticks, pendingTick{MissionID: rl.MissionID, Status: rl.Status, Due: due})
			}
		}
		sort.Slice(ticks, func(i, j int) bool { return ticks[i].Due.Before(ticks[j].Due) })
		data = ticks
		title = "Simulator - Pending Ticks"
	case "config":
		data = redactConfig(webUI.Config)
		title = "Configuration"
	case "dispatcher":
		stats := dispatcherStats{}
		if webUI.Dispatcher != nil {
			stats.Published = webUI.Dispatcher.Published()
			stats.Dropped = webUI.Dispatcher.Dropped()
		}
		if webUI.Hub != nil {
			stats.StreamClients = webUI.Hub.ClientCount()
		}
		data = stats
		title = "Events - Dispatcher"
	default:
		data = map[string]string{
			"error": "Please use one of the following: missions, pending, config, dispatcher.",
		}
		title = "Choose a data type"
	}

	writeDebugData(w, title, data)
}
