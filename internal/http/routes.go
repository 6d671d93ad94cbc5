package httpx

import (
	"log/slog"
	"net/http"

	"github.com/stokehq/genrelay/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs      *service.JobService
	Callbacks *service.CallbackService
	Tracker   *service.Tracker
	Logger    *slog.Logger // Logger for request/panic middleware (optional)
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Jobs, Tracker: services.Tracker}
	callbackHandlers := &CallbackHandlers{Svc: services.Callbacks}

	registerJobRoutes(mux, jobHandlers)
	registerCallbackRoutes(mux, callbackHandlers)
	mux.Handle("GET /health", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /health", http.HandlerFunc(healthHandler))

	var handler http.Handler = mux
	if services.Logger != nil {
		handler = Logging(services.Logger)(handler)
		handler = Recover(services.Logger)(handler)
	}
	return handler
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("POST /v1/jobs", h.CreateJob)
	mux.HandleFunc("GET /v1/jobs/{id}", h.GetJob)
}

func registerCallbackRoutes(mux *http.ServeMux, h *CallbackHandlers) {
	mux.HandleFunc("POST /v1/provider/callback", h.Receive)
}
