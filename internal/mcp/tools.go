package mcp

import (
	"context"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/service/exploration"
	"github.com/ashita-ai/sekkei/internal/service/graphs"
)

// Step actions accepted by sekkei_step.
const (
	actionStart     = "start"
	actionSituation = "situation"
	actionProblem   = "problem"
	actionIntention = "intention"
	actionDecompose = "decompose"
	actionSolution  = "solution"
	actionReset     = "reset"
)

func (s *Server) registerTools() {
	// sekkei_explore: load the demonstration exploration.
	s.mcpServer.AddTool(
		mcplib.NewTool("sekkei_explore",
			mcplib.WithDescription(`Replace the current design history with the demonstration exploration
for a system: an obstacle is detected, the collision risk is identified, the
intention to avoid the collision is split between the car and its driver, and
automatic braking is assigned to the car's maneuvering system.

Returns the design history graph. Use sekkei_convert afterwards to read the
dependency and integration graphs.`),
			mcplib.WithDestructiveHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("initial_system",
				mcplib.Description("Name of the system to explore, e.g. car_running"),
				mcplib.Required(),
			),
		),
		s.logged("sekkei_explore", s.handleExplore),
	)

	// sekkei_step: drive the interactive exploration one step at a time.
	s.mcpServer.AddTool(
		mcplib.NewTool("sekkei_step",
			mcplib.WithDescription(`Advance the interactive design exploration by one step.

ORDER: start → situation → problem → intention → (decompose | solution),
then situation again for each pending sub-system until the exploration completes.

Each step returns suggestions from the knowledge base for the next step and
the design history so far. Calling a step out of order is an error.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("action",
				mcplib.Description("Which step to perform"),
				mcplib.Required(),
				mcplib.Enum(actionStart, actionSituation, actionProblem, actionIntention, actionDecompose, actionSolution, actionReset),
			),
			mcplib.WithString("value",
				mcplib.Description("The system for start, the situation, problem or intention for those steps, or the solution name"),
			),
			mcplib.WithString("subsystem",
				mcplib.Description("Subsystem realised by a solution. Defaults to <system>_<solution>."),
			),
			mcplib.WithArray("sub_intentions",
				mcplib.Description("Sub-intentions for decompose, paired by position with sub_systems"),
				mcplib.Items(map[string]any{"type": "string"}),
			),
			mcplib.WithArray("sub_systems",
				mcplib.Description("Sub-systems for decompose"),
				mcplib.Items(map[string]any{"type": "string"}),
			),
		),
		s.logged("sekkei_step", s.handleStep),
	)

	// sekkei_state: read the interactive exploration state.
	s.mcpServer.AddTool(
		mcplib.NewTool("sekkei_state",
			mcplib.WithDescription("Return the current exploration step, context, pending sub-systems and design history"),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.logged("sekkei_state", s.handleState),
	)

	// sekkei_convert: convert the current history.
	s.mcpServer.AddTool(
		mcplib.NewTool("sekkei_convert",
			mcplib.WithDescription(`Convert the current design history into its derived graphs.

GRAPHS:
- de: the design history (events and their succession)
- ld: the logical dependency graph between values
- ld_simplified: ld restricted to systems and situations
- si: the system integration graph with root, dependency and composite nodes
- all: de, ld and si together with any conversion diagnostics`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("graph",
				mcplib.Description("Which graph to return"),
				mcplib.Enum("de", "ld", "ld_simplified", "si", "all"),
				mcplib.DefaultString("si"),
			),
		),
		s.logged("sekkei_convert", s.handleConvert),
	)

	// sekkei_convert_history: stateless conversion of a caller-supplied history.
	s.mcpServer.AddTool(
		mcplib.NewTool("sekkei_convert_history",
			mcplib.WithDescription(`Convert a history document without touching the current exploration.

The document has "events" (each with kind, system and the fields its kind uses)
and optional "edges" ({source, target} by event id). Without edges the events
are chained in order. Kinds: SituationAssessment, ProblemIdentification,
EstablishIntention, DecomposeIntention, ConditionalBranch, SolutionAssignment.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("document",
				mcplib.Description("The history document as JSON or YAML"),
				mcplib.Required(),
			),
			mcplib.WithString("format",
				mcplib.Description("Document format; detected when omitted"),
				mcplib.Enum(graph.FormatJSON, graph.FormatYAML),
			),
			mcplib.WithBoolean("simplified",
				mcplib.Description("Return the simplified dependency graph as ld"),
			),
		),
		s.logged("sekkei_convert_history", s.handleConvertHistory),
	)

	// sekkei_component_types: catalogue of component kinds.
	s.mcpServer.AddTool(
		mcplib.NewTool("sekkei_component_types",
			mcplib.WithDescription("List the history event kinds and integration composite kinds"),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.logged("sekkei_component_types", s.handleComponentTypes),
	)
}

func (s *Server) handleExplore(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	req := model.ExploreRequest{InitialSystem: request.GetString("initial_system", "")}
	if err := model.Validate(req); err != nil {
		return errorResult(err.Error()), nil
	}
	h, err := s.session.Explore(req.InitialSystem)
	if err != nil {
		return errorResult(fmt.Sprintf("explore failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"message": "Exploration completed for system: " + req.InitialSystem,
		"graph":   h.Record(),
	})
}

func (s *Server) handleStep(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	action := request.GetString("action", "")
	value := request.GetString("value", "")

	var (
		p   exploration.Prompt
		err error
	)
	switch action {
	case actionStart:
		if err := model.Validate(model.ExploreRequest{InitialSystem: value}); err != nil {
			return errorResult(strings.Replace(err.Error(), "initial_system", "value", 1)), nil
		}
		p, err = s.session.Start(ctx, value)
	case actionSituation:
		if err := model.Validate(model.SituationRequest{Situation: value}); err != nil {
			return errorResult(strings.Replace(err.Error(), "situation", "value", 1)), nil
		}
		p, err = s.session.AssessSituation(ctx, value)
	case actionProblem:
		if err := model.Validate(model.ProblemRequest{Problem: value}); err != nil {
			return errorResult(strings.Replace(err.Error(), "problem", "value", 1)), nil
		}
		p, err = s.session.IdentifyProblem(ctx, value)
	case actionIntention:
		if err := model.Validate(model.IntentionRequest{Intention: value}); err != nil {
			return errorResult(strings.Replace(err.Error(), "intention", "value", 1)), nil
		}
		p, err = s.session.EstablishIntention(ctx, value)
	case actionDecompose:
		args := request.GetArguments()
		req := model.DecomposeRequest{
			SubIntentions: stringSlice(args["sub_intentions"]),
			SubSystems:    stringSlice(args["sub_systems"]),
		}
		if err := model.Validate(req); err != nil {
			return errorResult(err.Error()), nil
		}
		p, err = s.session.Decompose(ctx, req.SubIntentions, req.SubSystems)
	case actionSolution:
		req := model.SolutionRequest{Solution: value, Subsystem: request.GetString("subsystem", "")}
		if err := model.Validate(req); err != nil {
			return errorResult(strings.Replace(err.Error(), "solution", "value", 1)), nil
		}
		p, err = s.session.ApplySolution(ctx, req.Solution, req.Subsystem)
	case actionReset:
		s.session.Reset()
		return jsonResult(s.session.State())
	default:
		return errorResult(fmt.Sprintf("unknown action %q", action)), nil
	}
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(p)
}

func (s *Server) handleState(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return jsonResult(s.session.State())
}

func (s *Server) handleConvert(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := request.GetString("graph", "si")
	h, version := s.session.Snapshot()
	res := s.graphSvc.ConvertVersion(ctx, version, h)
	if name == "all" {
		return jsonResult(graphs.RecordsOf(res, false))
	}
	sel, err := graphs.ParseSelection(name)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	rec, err := graphs.Record(res, sel.Kind, sel.Simplified)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(rec)
}

func (s *Server) handleConvertHistory(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	raw := request.GetString("document", "")
	if strings.TrimSpace(raw) == "" {
		return errorResult("document is required"), nil
	}
	doc, err := graph.ParseDocument([]byte(raw), request.GetString("format", ""))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	h, err := doc.Build(s.newIDs())
	if err != nil {
		return errorResult(err.Error()), nil
	}
	res := s.graphSvc.Convert(ctx, h)
	return jsonResult(graphs.RecordsOf(res, request.GetBool("simplified", false)))
}

func (s *Server) handleComponentTypes(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return jsonResult(model.Catalogue())
}

// stringSlice accepts a JSON array of strings or a comma-separated string.
func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}
