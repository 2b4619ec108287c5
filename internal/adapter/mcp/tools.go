package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/sketchforge/internal/domain"
	"github.com/Strob0t/sketchforge/internal/domain/sketch"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.transpileFileTool(),
		s.setActiveFileTool(),
		s.showRootTool(),
		s.fileStatusTool(),
		s.provisionTool(),
		s.resyncTool(),
		s.scaffoldTool(),
	)
}

func pathTool(name, description string) mcplib.Tool {
	return mcplib.NewTool(name,
		mcplib.WithDescription(description),
		mcplib.WithString("path",
			mcplib.Required(),
			mcplib.Description("Absolute path of a file inside a sketch project"),
		),
	)
}

func (s *Server) transpileFileTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("transpile_file",
		mcplib.WithDescription("Transpile a sketch file and write the generated code next to the project root"),
		mcplib.WithString("path",
			mcplib.Required(),
			mcplib.Description("Absolute path of the sketch file"),
		),
		mcplib.WithString("content",
			mcplib.Description("Current document content. Read from disk when omitted"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleTranspileFile}
}

func (s *Server) setActiveFileTool() mcpserver.ServerTool {
	return mcpserver.ServerTool{
		Tool:    pathTool("set_active_file", "Record the file currently open in the editor"),
		Handler: s.handleSetActiveFile,
	}
}

func (s *Server) showRootTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("show_root",
		mcplib.WithDescription("Show the sketch project root of the active file"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleShowRoot}
}

func (s *Server) fileStatusTool() mcpserver.ServerTool {
	return mcpserver.ServerTool{
		Tool:    pathTool("file_status", "Show whether a transpile is running for a file"),
		Handler: s.handleFileStatus,
	}
}

func (s *Server) provisionTool() mcpserver.ServerTool {
	return mcpserver.ServerTool{
		Tool:    pathTool("provision", "Create the remote assistant and vector store of the project when missing"),
		Handler: s.handleProvision,
	}
}

func (s *Server) resyncTool() mcpserver.ServerTool {
	return mcpserver.ServerTool{
		Tool:    pathTool("resync", "Replace the project's source files in its vector store"),
		Handler: s.handleResync,
	}
}

func (s *Server) scaffoldTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("scaffold",
		mcplib.WithDescription("Create the sketch folder skeleton in a directory"),
		mcplib.WithString("dir",
			mcplib.Required(),
			mcplib.Description("Directory that becomes the project root"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleScaffold}
}

func stringArg(req mcplib.CallToolRequest, name string) string { //nolint:gocritic // hugeParam: mcp-go request type
	v, _ := req.GetArguments()[name].(string)
	return v
}

func jsonResult(v any) *mcplib.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err)
	}
	return mcplib.NewToolResultText(string(data))
}

func (s *Server) handleTranspileFile(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Orchestrator == nil {
		return mcplib.NewToolResultError("orchestrator not configured"), nil
	}
	path := stringArg(req, "path")
	if path == "" {
		return mcplib.NewToolResultError("path is required"), nil
	}

	res, err := s.deps.Orchestrator.HandleSave(ctx, sketch.SaveEvent{
		Path:     path,
		Content:  stringArg(req, "content"),
		Modified: true,
	})
	if errors.Is(err, domain.ErrInFlight) {
		return mcplib.NewToolResultError(fmt.Sprintf("%s is already transpiling; save again once it finishes", path)), nil
	}
	if err != nil {
		if res.Outcome == "" {
			return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to transpile %s", path), err), nil
		}
		out := jsonResult(res)
		out.IsError = true
		return out, nil
	}
	return jsonResult(res), nil
}

func (s *Server) handleSetActiveFile(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Orchestrator == nil {
		return mcplib.NewToolResultError("orchestrator not configured"), nil
	}
	path := stringArg(req, "path")
	if path == "" {
		return mcplib.NewToolResultError("path is required"), nil
	}
	s.deps.Orchestrator.SetActiveFile(path)
	return mcplib.NewToolResultText("active file set to " + path), nil
}

func (s *Server) handleShowRoot(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Orchestrator == nil {
		return mcplib.NewToolResultError("orchestrator not configured"), nil
	}
	root, ok := s.deps.Orchestrator.CurrentRoot()
	if !ok {
		return mcplib.NewToolResultError("no sketch project root for the active file"), nil
	}
	return mcplib.NewToolResultText(root), nil
}

func (s *Server) handleFileStatus(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Orchestrator == nil {
		return mcplib.NewToolResultError("orchestrator not configured"), nil
	}
	path := stringArg(req, "path")
	if path == "" {
		return mcplib.NewToolResultError("path is required"), nil
	}
	return jsonResult(s.deps.Orchestrator.Status(path)), nil
}

func (s *Server) handleProvision(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Provisioner == nil {
		return mcplib.NewToolResultError("provisioner not configured"), nil
	}
	path := stringArg(req, "path")
	if path == "" {
		return mcplib.NewToolResultError("path is required"), nil
	}
	res, err := s.deps.Provisioner.Provision(ctx, path)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("provision failed", err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) handleResync(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Provisioner == nil {
		return mcplib.NewToolResultError("provisioner not configured"), nil
	}
	path := stringArg(req, "path")
	if path == "" {
		return mcplib.NewToolResultError("path is required"), nil
	}
	res, err := s.deps.Provisioner.Resync(ctx, path)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("resync failed", err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) handleScaffold(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Scaffolder == nil {
		return mcplib.NewToolResultError("scaffolder not configured"), nil
	}
	dir := stringArg(req, "dir")
	if dir == "" {
		return mcplib.NewToolResultError("dir is required"), nil
	}
	created, err := s.deps.Scaffolder.Scaffold(ctx, dir)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("scaffold failed", err), nil
	}
	if !created {
		return mcplib.NewToolResultText(dir + " already has a sketch folder"), nil
	}
	return mcplib.NewToolResultText("created sketch folder in " + dir), nil
}
