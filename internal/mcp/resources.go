package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/service/graphs"
)

const (
	uriState          = "sekkei://exploration/state"
	uriComponentTypes = "sekkei://component-types"
	uriKnowledge      = "sekkei://knowledge"
	graphURIPrefix    = "sekkei://graphs/"
)

func (s *Server) registerResources() {
	// sekkei://exploration/state: the interactive exploration.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriState,
			"Exploration State",
			mcplib.WithResourceDescription("Current step, context and design history of the exploration"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStateResource,
	)

	// sekkei://component-types: catalogue of component kinds.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriComponentTypes,
			"Component Types",
			mcplib.WithResourceDescription("History event kinds and integration composite kinds"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleComponentTypesResource,
	)

	// sekkei://knowledge: the knowledge base consulted for suggestions.
	if s.kb != nil {
		s.mcpServer.AddResource(
			mcplib.NewResource(
				uriKnowledge,
				"Knowledge Base",
				mcplib.WithResourceDescription("Situations, problems, intentions, decompositions and solutions known to the exploration"),
				mcplib.WithMIMEType("application/json"),
			),
			s.handleKnowledgeResource,
		)
	}

	// sekkei://graphs/{graph}: one derived graph of the current history.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			graphURIPrefix+"{graph}",
			"Design Graph",
			mcplib.WithTemplateDescription("Graph of the current history: de, ld, ld_simplified or si"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleGraphResource,
	)
}

func (s *Server) handleStateResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	return jsonContents(uriState, s.session.State())
}

func (s *Server) handleComponentTypesResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	return jsonContents(uriComponentTypes, model.Catalogue())
}

func (s *Server) handleKnowledgeResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	snap, err := s.kb.Export(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: export knowledge: %w", err)
	}
	return jsonContents(uriKnowledge, snap)
}

func (s *Server) handleGraphResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	sel, err := parseGraphURI(uri)
	if err != nil {
		return nil, err
	}
	h, version := s.session.Snapshot()
	res := s.graphSvc.ConvertVersion(ctx, version, h)
	rec, err := graphs.Record(res, sel.Kind, sel.Simplified)
	if err != nil {
		return nil, fmt.Errorf("mcp: graph %s: %w", uri, err)
	}
	return jsonContents(uri, rec)
}

// parseGraphURI extracts the graph selection from sekkei://graphs/{graph}.
func parseGraphURI(uri string) (graphs.Selection, error) {
	name, ok := strings.CutPrefix(uri, graphURIPrefix)
	if !ok || name == "" || strings.Contains(name, "/") {
		return graphs.Selection{}, fmt.Errorf("mcp: invalid graph URI: %s", uri)
	}
	sel, err := graphs.ParseSelection(name)
	if err != nil {
		return graphs.Selection{}, fmt.Errorf("mcp: invalid graph URI: %s: %w", uri, err)
	}
	return sel, nil
}

func jsonContents(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
