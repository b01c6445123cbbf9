package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/triage/safeio"
)

// resolvePath confines externally supplied paths to cfg.Root when set.
func (p *Pipeline) resolvePath(path string) (string, error) {
	if p.cfg.Root == "" {
		return path, nil
	}
	return safeio.SafePath(p.cfg.Root, path)
}

// RegisterMCP registers triage tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerProcessTool(srv)
	p.registerDetectTool(srv)
	p.registerFormatsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// registerTool wires a typed endpoint into the MCP server. Endpoint errors
// become tool errors in the result, never protocol errors.
func registerTool(srv *mcp.Server, tool *mcp.Tool, decode func(*mcp.CallToolRequest) (any, error), endpoint func(context.Context, any) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		decoded, err := decode(req)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}

		resp, err := endpoint(ctx, decoded)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- process ---

type processReq struct {
	Path string `json:"path"`
}

func (p *Pipeline) registerProcessTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "triage_process",
		Description: "Run the full triage sequence on one file: type detection, quality assessment, and routed content extraction.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to process"},
		}, []string{"path"}),
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r processReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*processReq)
		path, err := p.resolvePath(r.Path)
		if err != nil {
			return nil, err
		}
		rec, _ := p.ProcessFile(ctx, path)
		return rec, nil
	}

	registerTool(srv, tool, decode, endpoint)
}

// --- detect ---

type detectReq struct {
	Path string `json:"path"`
}

func (p *Pipeline) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "triage_detect",
		Description: "Classify a file into a category (cad, image, pdf, office, text, unknown) from its extension and content signature.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to classify"},
		}, []string{"path"}),
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r detectReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*detectReq)
		path, err := p.resolvePath(r.Path)
		if err != nil {
			return nil, err
		}
		return p.Detect(path), nil
	}

	registerTool(srv, tool, decode, endpoint)
}

// --- formats ---

func (p *Pipeline) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "triage_formats",
		Description: "List supported file categories with their extensions and the processors that handle them.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	decode := func(_ *mcp.CallToolRequest) (any, error) { return nil, nil }

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{
			"extensions": p.SupportedExtensions(),
			"processors": p.registry.Names(),
		}, nil
	}

	registerTool(srv, tool, decode, endpoint)
}
