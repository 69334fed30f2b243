// Package tools provides MCP tool implementations for ekaya-gem.
package tools

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/services"
)

// BaseMCPToolDeps provides the common dependencies that all MCP tools need.
// Tool-specific *Deps structs embed this to avoid repeating the logger.
type BaseMCPToolDeps struct {
	Logger *zap.Logger
}

// GetLogger returns the tool logger, or a no-op logger when unset.
func (d *BaseMCPToolDeps) GetLogger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// ModelToolDeps contains dependencies for model tools.
type ModelToolDeps struct {
	BaseMCPToolDeps
	Models services.ModelService
}

// MediaToolDeps contains dependencies for media tools.
type MediaToolDeps struct {
	BaseMCPToolDeps
	Media services.MediaService
}

// GapfillToolDeps contains dependencies for the gapfill tool.
type GapfillToolDeps struct {
	BaseMCPToolDeps
	Gapfill services.GapfillService
}

// FBAToolDeps contains dependencies for the FBA tool.
type FBAToolDeps struct {
	BaseMCPToolDeps
	FBA services.FBAService
}

// LookupToolDeps contains dependencies for database and template lookup tools.
type LookupToolDeps struct {
	BaseMCPToolDeps
	Lookup services.LookupService
}

// Deps bundles every service the tool surface needs.
type Deps struct {
	Version string
	Models  services.ModelService
	Media   services.MediaService
	Gapfill services.GapfillService
	FBA     services.FBAService
	Lookup  services.LookupService
	Logger  *zap.Logger
}

// ToolNames lists every tool RegisterAll adds, in registration order.
var ToolNames = []string{
	"health",
	"build_model", "get_model", "list_models", "delete_model",
	"build_media", "get_media", "list_media", "delete_media",
	"gapfill_model",
	"run_fba",
	"get_compound_name", "search_compounds", "get_reaction_name", "search_reactions", "list_templates",
}

// RegisterAll registers the complete tool surface on s.
func RegisterAll(s *server.MCPServer, d Deps) {
	base := BaseMCPToolDeps{Logger: d.Logger}

	RegisterHealthTool(s, d.Version)
	RegisterModelTools(s, &ModelToolDeps{BaseMCPToolDeps: base, Models: d.Models})
	RegisterMediaTools(s, &MediaToolDeps{BaseMCPToolDeps: base, Media: d.Media})
	RegisterGapfillTool(s, &GapfillToolDeps{BaseMCPToolDeps: base, Gapfill: d.Gapfill})
	RegisterFBATool(s, &FBAToolDeps{BaseMCPToolDeps: base, FBA: d.FBA})
	RegisterLookupTools(s, &LookupToolDeps{BaseMCPToolDeps: base, Lookup: d.Lookup})
}
