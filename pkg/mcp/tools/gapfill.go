package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-gem/pkg/services"
)

type gapfillParams struct {
	ModelID      string   `json:"model_id" validate:"required"`
	MediaID      string   `json:"media_id" validate:"required"`
	TargetGrowth *float64 `json:"target_growth_rate" validate:"omitempty,finite,gt=0"`
	Mode         string   `json:"mode" validate:"omitempty,oneof=full atp_only genomescale_only"`
}

// RegisterGapfillTool registers the gapfill_model tool.
func RegisterGapfillTool(s *server.MCPServer, deps *GapfillToolDeps) {
	tool := mcp.NewTool(
		"gapfill_model",
		mcp.WithDescription(
			"Adds the fewest template reactions needed for the model to grow on a medium. "+
				"Runs energy correction (ATP test conditions) first, then growth gapfilling. "+
				"The source model is unchanged; the result is stored under '<model_id>.gf'. "+
				"Modes: full (default), atp_only (energy correction only), "+
				"genomescale_only (skip energy correction; requires a model gapfilled before). "+
				"Example: gapfill_model(model_id='ecoli.draft', media_id='glucose_minimal')",
		),
		mcp.WithString("model_id", mcp.Required(), mcp.Description("Model to gapfill")),
		mcp.WithString("media_id", mcp.Required(), mcp.Description("Medium to gapfill on (see list_media)")),
		mcp.WithNumber("target_growth_rate", mcp.Description("Minimum biomass flux to reach, > 0 (default 0.01)")),
		mcp.WithString(
			"mode",
			mcp.Description("Which stages run: full, atp_only or genomescale_only"),
			mcp.Enum(string(services.ModeFull), string(services.ModeATPOnly), string(services.ModeGenomeScaleOnly)),
		),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p gapfillParams
		if err := bindArguments(req, &p); err != nil {
			return toolError(deps.GetLogger(), "gapfill_model", err)
		}

		gr := services.GapfillRequest{
			ModelID: p.ModelID,
			MediaID: p.MediaID,
			Mode:    p.Mode,
		}
		if p.TargetGrowth != nil {
			gr.TargetGrowth = *p.TargetGrowth
		}

		res, err := deps.Gapfill.Gapfill(ctx, gr)
		if err != nil {
			return toolError(deps.GetLogger(), "gapfill_model", err)
		}
		return jsonResult(res)
	})
}
