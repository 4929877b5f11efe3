package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/service/exploration"
	"github.com/ashita-ai/sekkei/internal/service/graphs"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	session             *exploration.Session
	graphSvc            *graphs.Service
	broker              *Broker
	newIDs              func() graph.IDGenerator
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
// NewIDs may be nil; documents then get counter IDs. Broker may be nil;
// the event stream is then unavailable.
type HandlersDeps struct {
	Session             *exploration.Session
	GraphSvc            *graphs.Service
	Broker              *Broker
	NewIDs              func() graph.IDGenerator
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	newIDs := d.NewIDs
	if newIDs == nil {
		newIDs = func() graph.IDGenerator { return graph.NewCounter() }
	}
	maxBytes := d.MaxRequestBodyBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	return &Handlers{
		session:             d.Session,
		graphSvc:            d.GraphSvc,
		broker:              d.Broker,
		newIDs:              newIDs,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: maxBytes,
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.HealthResponse{
		Status:  "healthy",
		Version: h.version,
		Uptime:  int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleIndex handles GET / with a map of the API.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "no route for "+r.URL.Path)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"service": "sekkei",
		"version": h.version,
		"endpoints": map[string]string{
			"GET /health":                     "service health",
			"GET /api/component-types":        "history and integration component kinds",
			"POST /api/explore":               "load the sample exploration for initial_system",
			"GET /api/graphs/{graph}":         "de, ld or si record of the current history (?simplified=true for ld)",
			"POST /api/convert":               "all records of the current history",
			"POST /api/convert/history":       "convert a history document without touching the session",
			"POST /api/interactive/start":     "begin exploring initial_system",
			"POST /api/interactive/situation": "record a situation assessment",
			"POST /api/interactive/problem":   "record a problem identification",
			"POST /api/interactive/intention": "record an established intention",
			"POST /api/interactive/decompose": "decompose the intention into sub-systems",
			"POST /api/interactive/solution":  "apply a solution to the current system",
			"GET /api/interactive/state":      "current exploration state",
			"POST /api/interactive/reset":     "discard the exploration",
			"GET /api/interactive/events":     "server-sent events for every exploration change",
			"POST /mcp":                       "MCP streamable HTTP transport",
		},
	})
}

// HandleComponentTypes handles GET /api/component-types.
func (h *Handlers) HandleComponentTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.Catalogue())
}

type exploreResponse struct {
	Message string       `json:"message"`
	Graph   graph.Record `json:"graph"`
}

// HandleExplore handles POST /api/explore.
func (h *Handlers) HandleExplore(w http.ResponseWriter, r *http.Request) {
	var req model.ExploreRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	hist, err := h.session.Explore(req.InitialSystem)
	if err != nil {
		h.writeInternalError(w, r, "explore failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, exploreResponse{
		Message: "Exploration completed for system: " + req.InitialSystem,
		Graph:   hist.Record(),
	})
}

// HandleGraph handles GET /api/graphs/{graph}.
func (h *Handlers) HandleGraph(w http.ResponseWriter, r *http.Request) {
	sel, err := graphs.ParseSelection(r.PathValue("graph"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
		return
	}
	simplified, err := queryBool(r, "simplified")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	hist, version := h.session.Snapshot()
	res := h.graphSvc.ConvertVersion(r.Context(), version, hist)
	rec, err := graphs.Record(res, sel.Kind, sel.Simplified || simplified)
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

// HandleConvert handles POST /api/convert.
func (h *Handlers) HandleConvert(w http.ResponseWriter, r *http.Request) {
	simplified, err := queryBool(r, "simplified")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	hist, version := h.session.Snapshot()
	res := h.graphSvc.ConvertVersion(r.Context(), version, hist)
	writeJSON(w, r, http.StatusOK, graphs.RecordsOf(res, simplified))
}

// HandleConvertHistory handles POST /api/convert/history. The body is a JSON
// or YAML history document; the Content-Type decides, defaulting to detection.
func (h *Handlers) HandleConvertHistory(w http.ResponseWriter, r *http.Request) {
	simplified, err := queryBool(r, "simplified")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes))
	if err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if len(data) == 0 {
		handleDecodeError(w, r, errEmptyBody)
		return
	}

	doc, err := graph.ParseDocument(data, documentFormat(r))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	hist, err := doc.Build(h.newIDs())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	res := h.graphSvc.Convert(r.Context(), hist)
	writeJSON(w, r, http.StatusOK, graphs.RecordsOf(res, simplified))
}

// documentFormat maps the request Content-Type to a document format. Unknown
// types return "" so the parser detects the format.
func documentFormat(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	switch mt {
	case "application/json":
		return graph.FormatJSON
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return graph.FormatYAML
	default:
		return ""
	}
}

func queryBool(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("query parameter %s=%q is not a boolean", name, v)
	}
	return b, nil
}

// writeInternalError logs err and hides it from the client.
func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, msg)
}

// writeSessionError maps exploration errors to responses.
func (h *Handlers) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, exploration.ErrInvalidStep) {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
		return
	}
	h.writeInternalError(w, r, "exploration step failed", err)
}
