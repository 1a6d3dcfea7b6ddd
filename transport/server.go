// Package transport exposes classroom sessions over HTTP and websockets.
package transport

import (
	"code-mentor/contract"
	"code-mentor/execution"
	"code-mentor/observability"
	"code-mentor/services"
	"encoding/json"
	"log/slog"
	"net/http"
)

type ServerDeps struct {
	Log            *slog.Logger
	Backend        string
	Channel        contract.Channel
	Engine         *execution.Engine
	Metrics        *observability.Metrics
	Sessions       services.SessionDeps
	AllowedOrigins []string
}

// NewServer wires every classroom endpoint on one mux.
func NewServer(deps ServerDeps) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", NewWSHandler(deps.Log, deps.Sessions, deps.AllowedOrigins))
	mux.HandleFunc("POST /execute", executeHandler(deps))
	mux.HandleFunc("GET /health", healthHandler(deps))
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	return mux
}

func executeHandler(deps ServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req execution.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid execution request", http.StatusBadRequest)
			return
		}
		result, err := deps.Engine.Execute(r.Context(), req)
		if err != nil {
			deps.Log.Debug("Execution abandoned", "error", err)
			return
		}
		if deps.Metrics != nil {
			deps.Metrics.Executions.WithLabelValues(string(result.Language)).Inc()
		}
		writeJSON(w, http.StatusOK, ExecuteResponse{Output: result.Output, Language: result.Language})
	}
}

func healthHandler(deps ServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connected := deps.Channel.Connected()
		resp := HealthResponse{Status: "ok", Backend: deps.Backend, Connected: connected}
		status := http.StatusOK
		if !connected {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
