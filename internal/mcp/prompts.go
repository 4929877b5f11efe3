package mcp

import (
	"context"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// explore-system: walks the agent through one exploration.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("explore-system",
			mcplib.WithPromptDescription("Explore the design of a system step by step"),
			mcplib.WithArgument("system",
				mcplib.ArgumentDescription("The system to explore (e.g., car_running)"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleExploreSystemPrompt,
	)

	// read-integration: explains the system integration graph.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("read-integration",
			mcplib.WithPromptDescription("How to read the system integration graph of the current design"),
		),
		s.handleReadIntegrationPrompt,
	)
}

func (s *Server) handleExploreSystemPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	system := strings.TrimSpace(request.Params.Arguments["system"])
	if system == "" {
		return nil, fmt.Errorf("system argument is required")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Explore the design of %s", system),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Explore the design of %[1]s by recording each design step.

1. CALL sekkei_step with action="start" and value="%[1]s".
   The response suggests a situation for the system.

2. CALL sekkei_step with action="situation": the situation the system is in.
   Prefer the suggestion unless the design calls for something else.

3. CALL sekkei_step with action="problem": the problem the situation raises.

4. CALL sekkei_step with action="intention": what the design intends to do
   about the problem.

5. CHOOSE a path from the response's choice:
   - If the intention is shared by several parts, CALL sekkei_step with
     action="decompose", sub_intentions and sub_systems paired by position.
     Each sub-system is then explored from step 2.
   - Otherwise CALL sekkei_step with action="solution" and one of the
     available solutions. Pass subsystem to name the part that realises it.

6. REPEAT until the step is "completed", then CALL sekkei_convert with
   graph="si" to review the integrated design.`, system),
				},
			},
		},
	}, nil
}

func (s *Server) handleReadIntegrationPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	return &mcplib.GetPromptResult{
		Description: "Reading the system integration graph",
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: `CALL sekkei_convert with graph="si" and read the result as follows.

## Nodes
- Root nodes have no incoming dependency. They sit on level 0.
- Dependency nodes carry the level at which they were reached from a root.
- Composite nodes join several inputs of one parent value:
  - COL_n (collaboration): every input is required.
  - ALT_n (alternative): any one input is enough.
  - EXO_n (exclusive): exactly one input applies.

## Edges
An edge points from a value to the value derived from it, through a composite
when the derived value has more than one input.

## Diagnostics
CALL sekkei_convert with graph="all" to see diagnostics. They name events that
could not be translated and values that could not be placed in the graph.
Treat them as gaps in the exploration and revisit those steps.`,
				},
			},
		},
	}, nil
}
