package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const rootResourceURI = "sketchforge://root"

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			rootResourceURI,
			"Project Root",
			mcplib.WithResourceDescription("Project root of the file last activated in the editor"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRootResource,
	)
}

func (s *Server) handleRootResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	text := `{"error":"orchestrator not configured"}`
	if s.deps.Orchestrator != nil {
		root, ok := s.deps.Orchestrator.CurrentRoot()
		data, err := json.Marshal(map[string]any{"root": root, "found": ok})
		if err != nil {
			return nil, err
		}
		text = string(data)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     text,
		},
	}, nil
}
