package tools

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-gem/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gem/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-gem/pkg/models"
	"github.com/ekaya-inc/ekaya-gem/pkg/services"
)

// RegisterMediaTools registers growth medium MCP tools.
func RegisterMediaTools(s *server.MCPServer, deps *MediaToolDeps) {
	registerBuildMediaTool(s, deps)
	registerGetMediaTool(s, deps)
	registerListMediaTool(s, deps)
	registerDeleteMediaTool(s, deps)
}

type buildMediaParams struct {
	MediaName   string                     `json:"media_name" validate:"required,gemname"`
	Compounds   map[string]json.RawMessage `json:"compounds" validate:"required,min=1"`
	Description string                     `json:"description"`
}

func registerBuildMediaTool(s *server.MCPServer, deps *MediaToolDeps) {
	tool := mcp.NewTool(
		"build_media",
		mcp.WithDescription(
			"Creates a growth medium. Each compound maps to exchange bounds [lower, upper] "+
				"where a negative lower bound allows uptake (e.g. [-10, 1000] for glucose). "+
				"Bounds may also be given as {'lower': -10, 'upper': 1000}; use '-inf'/'inf' for unlimited. "+
				"Example: build_media(media_name='my_glc', compounds={'cpd00027': [-10, 1000], 'cpd00007': [-20, 1000]})",
		),
		mcp.WithString("media_name", mcp.Required(), mcp.Description("Medium id (letters, digits, '_' or '-')")),
		mcp.WithObject("compounds", mcp.Required(), mcp.Description("Compound id (e.g. cpd00027) to [lower, upper] bounds")),
		mcp.WithString("description", mcp.Description("Optional free-text description")),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p buildMediaParams
		if err := bindArguments(req, &p); err != nil {
			return toolError(deps.GetLogger(), "build_media", err)
		}

		compounds, err := parseCompoundBounds(p.Compounds)
		if err != nil {
			return toolError(deps.GetLogger(), "build_media", err)
		}

		detail, err := deps.Media.Build(ctx, services.BuildMediaRequest{
			Name:        p.MediaName,
			Description: p.Description,
			Compounds:   compounds,
		})
		if err != nil {
			return toolError(deps.GetLogger(), "build_media", err)
		}
		return jsonResult(detail)
	})
}

// parseCompoundBounds parses every compound's bound, reporting the first
// failure in id order.
func parseCompoundBounds(raw map[string]json.RawMessage) (map[string]models.Bound, error) {
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]models.Bound, len(raw))
	for _, id := range ids {
		lo, up, err := jsonutil.FlexibleBound(raw[id])
		if err != nil {
			return nil, apperrors.Validation("compound %s: %v", id, err).WithDetail("compound", id)
		}
		out[id] = models.Bound{Lower: lo, Upper: up}
	}
	return out, nil
}

type mediaIDParams struct {
	MediaID string `json:"media_id" validate:"required"`
}

func registerGetMediaTool(s *server.MCPServer, deps *MediaToolDeps) {
	tool := mcp.NewTool(
		"get_media",
		mcp.WithDescription("Returns a medium with its compound bounds and the compounds available for uptake."),
		mcp.WithString("media_id", mcp.Required(), mcp.Description("Medium id (e.g. 'glucose_minimal')")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p mediaIDParams
		if err := bindArguments(req, &p); err != nil {
			return toolError(deps.GetLogger(), "get_media", err)
		}

		detail, err := deps.Media.Get(ctx, p.MediaID)
		if err != nil {
			return toolError(deps.GetLogger(), "get_media", err)
		}
		return jsonResult(detail)
	})
}

type listMediaResult struct {
	Media   []*services.MediaSummary `json:"media"`
	Count   int                      `json:"count"`
	Summary string                   `json:"summary"`
}

func registerListMediaTool(s *server.MCPServer, deps *MediaToolDeps) {
	tool := mcp.NewTool(
		"list_media",
		mcp.WithDescription("Lists predefined and user-defined growth media."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := deps.Media.List(ctx)
		if err != nil {
			return toolError(deps.GetLogger(), "list_media", err)
		}
		if list == nil {
			list = []*services.MediaSummary{}
		}
		return jsonResult(listMediaResult{
			Media:   list,
			Count:   len(list),
			Summary: countPhrase(len(list), "medium"),
		})
	})
}

type deleteMediaResult struct {
	MediaID string `json:"media_id"`
	Deleted bool   `json:"deleted"`
}

func registerDeleteMediaTool(s *server.MCPServer, deps *MediaToolDeps) {
	tool := mcp.NewTool(
		"delete_media",
		mcp.WithDescription("Deletes a user-defined medium. Predefined media cannot be deleted."),
		mcp.WithString("media_id", mcp.Required(), mcp.Description("Medium id to delete")),
		mcp.WithDestructiveHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p mediaIDParams
		if err := bindArguments(req, &p); err != nil {
			return toolError(deps.GetLogger(), "delete_media", err)
		}

		if err := deps.Media.Delete(ctx, p.MediaID); err != nil {
			return toolError(deps.GetLogger(), "delete_media", err)
		}
		return jsonResult(deleteMediaResult{MediaID: p.MediaID, Deleted: true})
	})
}
