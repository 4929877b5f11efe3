package server

import (
	"net/http"
	"time"

	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/service/exploration"
)

// HandleStart handles POST /api/interactive/start.
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req model.ExploreRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	h.writePrompt(w, r)(h.session.Start(r.Context(), req.InitialSystem))
}

// HandleSituation handles POST /api/interactive/situation.
func (h *Handlers) HandleSituation(w http.ResponseWriter, r *http.Request) {
	var req model.SituationRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	h.writePrompt(w, r)(h.session.AssessSituation(r.Context(), req.Situation))
}

// HandleProblem handles POST /api/interactive/problem.
func (h *Handlers) HandleProblem(w http.ResponseWriter, r *http.Request) {
	var req model.ProblemRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	h.writePrompt(w, r)(h.session.IdentifyProblem(r.Context(), req.Problem))
}

// HandleIntention handles POST /api/interactive/intention.
func (h *Handlers) HandleIntention(w http.ResponseWriter, r *http.Request) {
	var req model.IntentionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	h.writePrompt(w, r)(h.session.EstablishIntention(r.Context(), req.Intention))
}

// HandleDecompose handles POST /api/interactive/decompose.
func (h *Handlers) HandleDecompose(w http.ResponseWriter, r *http.Request) {
	var req model.DecomposeRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	h.writePrompt(w, r)(h.session.Decompose(r.Context(), req.SubIntentions, req.SubSystems))
}

// HandleSolution handles POST /api/interactive/solution.
func (h *Handlers) HandleSolution(w http.ResponseWriter, r *http.Request) {
	var req model.SolutionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	h.writePrompt(w, r)(h.session.ApplySolution(r.Context(), req.Solution, req.Subsystem))
}

// HandleState handles GET /api/interactive/state.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.session.State())
}

// HandleReset handles POST /api/interactive/reset.
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.session.Reset()
	writeJSON(w, r, http.StatusOK, h.session.State())
}

// HandleEvents handles GET /api/interactive/events (SSE). Each session change
// is sent as an event named after the action, carrying the new state.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError,
			"event stream not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Idle streams outlive the server's WriteTimeout.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writePrompt returns a sink for a session action's result.
func (h *Handlers) writePrompt(w http.ResponseWriter, r *http.Request) func(exploration.Prompt, error) {
	return func(p exploration.Prompt, err error) {
		if err != nil {
			h.writeSessionError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, p)
	}
}
