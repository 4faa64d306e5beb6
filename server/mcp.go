package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"signaged/proto"
)

// MCPServer exposes the screen registry and layout operations as MCP
// tools over stdio, so the signage wall is scriptable from an agent the
// same way the dashboard drives it.
type MCPServer struct {
	Server *mcpserver.MCPServer
}

func NewMCPServer() *MCPServer {
	return &MCPServer{Server: mcpserver.NewMCPServer("signaged", "1.0.0")}
}

func (s *MCPServer) Start() error {
	slog.Info("Started stdio MCP server")
	defer func() {
		slog.Info("Shut down stdio MCP server")
	}()
	return mcpserver.ServeStdio(s.Server)
}

// RegisterTools wires the control-surface tools. Mutations go through
// the command channel like every other operator action.
func (s *MCPServer) RegisterTools(engine *SyncEngine, commands *CommandChannel) {
	listTool := mcp.NewTool("list_screens",
		mcp.WithDescription("List all registered signage screens with connection state and layout version"),
	)
	s.Server.AddTool(listTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		screens := engine.ListScreens()
		jsonBytes, err := json.MarshalIndent(screens, "", "  ")
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	getLayoutTool := mcp.NewTool("get_layout",
		mcp.WithDescription("Get the current persisted layout for a screen"),
		mcp.WithString("screen_id",
			mcp.Required(),
			mcp.Description("Target screen id"),
		),
	)
	s.Server.AddTool(getLayoutTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		screenID := request.GetString("screen_id", "")
		if screenID == "" {
			return mcp.NewToolResultError("screen_id is required"), nil
		}
		rec, err := engine.GetLayout(ctx, screenID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error reading layout: %v", err)), err
		}
		jsonBytes, err := json.MarshalIndent(map[string]any{
			"layout":  rec.Layout,
			"version": rec.Version,
		}, "", "  ")
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	applyTool := mcp.NewTool("apply_layout",
		mcp.WithDescription("Replace a screen's layout (use screen_id \"all\" to broadcast). The layout is a JSON document with a widgets array."),
		mcp.WithString("screen_id",
			mcp.Required(),
			mcp.Description("Target screen id or \"all\""),
		),
		mcp.WithObject("layout",
			mcp.Required(),
			mcp.Description("Whole layout document to apply"),
		),
	)
	s.Server.AddTool(applyTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		screenID := request.GetString("screen_id", "")
		if screenID == "" {
			return mcp.NewToolResultError("screen_id is required"), nil
		}

		raw, err := json.Marshal(request.GetArguments()["layout"])
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid layout: %v", err)), nil
		}
		var layout proto.Layout
		if err := json.Unmarshal(raw, &layout); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid layout: %v", err)), nil
		}

		if err := commands.Apply(ctx, screenID, layout); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error applying layout: %v", err)), err
		}
		return mcp.NewToolResultText(fmt.Sprintf("Layout applied to %s", screenID)), nil
	})

	refreshTool := mcp.NewTool("refresh_screen",
		mcp.WithDescription("Ask a screen (or all screens) to re-render its current layout"),
		mcp.WithString("screen_id",
			mcp.Required(),
			mcp.Description("Target screen id or \"all\""),
		),
	)
	s.Server.AddTool(refreshTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		screenID := request.GetString("screen_id", "")
		if screenID == "" {
			return mcp.NewToolResultError("screen_id is required"), nil
		}
		if err := commands.Refresh(ctx, screenID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error refreshing: %v", err)), err
		}
		return mcp.NewToolResultText(fmt.Sprintf("Refresh sent to %s", screenID)), nil
	})
}
