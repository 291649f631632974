package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hupe1980/reactmesh/agent"
	"github.com/hupe1980/reactmesh/engine"
	"github.com/hupe1980/reactmesh/runner"
)

// RunRequest is the body of POST /v1/runs.
type RunRequest struct {
	// Agent names the base agent. Empty selects the default base agent.
	Agent     string         `json:"agent,omitempty"`
	Request   string         `json:"request"`
	Variables map[string]any `json:"variables,omitempty"`
	// Async returns 202 with the run ID instead of waiting for the result.
	Async bool `json:"async,omitempty"`
}

type agentJSON struct {
	Name                   string           `json:"name"`
	Description            string           `json:"description,omitempty"`
	Model                  string           `json:"model,omitempty"`
	Capabilities           []capabilityJSON `json:"capabilities"`
	OutputSchema           string           `json:"output_schema,omitempty"`
	AllowParallelToolCalls bool             `json:"allow_parallel_tool_calls"`
}

type capabilityJSON struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleListAgents() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		names := s.agents.Names()
		out := make([]agentJSON, 0, len(names))

		for _, name := range names {
			if d, ok := s.agents.Get(name); ok {
				out = append(out, describe(d))
			}
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleCreateRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		if strings.TrimSpace(req.Request) == "" {
			writeError(w, http.StatusBadRequest, "request must not be empty")
			return
		}

		base := s.agents.Base()
		if req.Agent != "" {
			d, ok := s.agents.Get(req.Agent)
			if !ok {
				writeError(w, http.StatusNotFound, "unknown agent "+req.Agent)
				return
			}
			base = d
		}

		if req.Async {
			id, err := s.runner.Start(r.Context(), base, req.Request, req.Variables)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}

			w.Header().Set("Location", "/v1/runs/"+id)
			writeJSON(w, http.StatusAccepted, map[string]string{"id": id})

			return
		}

		rec, err := s.runner.Run(r.Context(), base, req.Request, req.Variables)
		if rec == nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, runStatus(err), rec)
	}
}

func (s *Server) handleListRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		records, err := s.runner.List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, records)
	}
}

func (s *Server) handleGetRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := s.runner.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeRunError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleCancelRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := s.runner.Cancel(id); err != nil {
			writeRunError(w, err)
			return
		}

		s.opts.Logger.Info("server.run.cancelled", "run_id", id)
		w.WriteHeader(http.StatusAccepted)
	}
}

func describe(d *agent.Descriptor) agentJSON {
	out := agentJSON{
		Name:                   d.Name(),
		Description:            d.Description(),
		Model:                  d.Model(),
		Capabilities:           make([]capabilityJSON, 0, len(d.Capabilities())),
		AllowParallelToolCalls: d.AllowParallelToolCalls(),
	}

	for _, c := range d.Capabilities() {
		out.Capabilities = append(out.Capabilities, capabilityJSON{
			Name:        c.Name(),
			Kind:        c.Kind().String(),
			Description: c.Description(),
		})
	}

	if schema := d.OutputSchema(); schema != nil {
		out.OutputSchema = schema.Name
	}

	return out
}

// runStatus maps a synchronous run error to an HTTP status.
func runStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, engine.ErrTooManyRuns):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, runner.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeError(w, http.StatusConflict, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorJSON{Error: msg})
}
