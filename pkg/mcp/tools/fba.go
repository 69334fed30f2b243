package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-gem/pkg/services"
)

type fbaParams struct {
	ModelID        string   `json:"model_id" validate:"required"`
	MediaID        string   `json:"media_id" validate:"required"`
	Objective      string   `json:"objective"`
	Maximize       *bool    `json:"maximize"`
	FluxThreshold  *float64 `json:"flux_threshold" validate:"omitempty,finite,gte=0"`
	ResetExchanges bool     `json:"reset_exchanges"`
}

// RegisterFBATool registers the run_fba tool.
func RegisterFBATool(s *server.MCPServer, deps *FBAToolDeps) {
	tool := mcp.NewTool(
		"run_fba",
		mcp.WithDescription(
			"Runs flux balance analysis on a model with a medium applied. "+
				"Returns the objective value and the fluxes above the threshold, "+
				"split into uptake, secretion and internal reactions. "+
				"An infeasible result on a draft usually means it needs gapfill_model first. "+
				"Example: run_fba(model_id='ecoli.draft.gf', media_id='glucose_minimal')",
		),
		mcp.WithString("model_id", mcp.Required(), mcp.Description("Model to simulate")),
		mcp.WithString("media_id", mcp.Required(), mcp.Description("Medium to apply")),
		mcp.WithString("objective", mcp.Description("Objective reaction id (default: the model objective, usually bio1)")),
		mcp.WithBoolean("maximize", mcp.Description("Maximize the objective (default true)")),
		mcp.WithNumber("flux_threshold", mcp.Description("Hide fluxes with magnitude at or below this value (default 1e-6)")),
		mcp.WithBoolean("reset_exchanges", mcp.Description("Close uptake on exchanges not listed in the medium (default false)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p fbaParams
		if err := bindArguments(req, &p); err != nil {
			return toolError(deps.GetLogger(), "run_fba", err)
		}

		fr := services.FBARequest{
			ModelID:        p.ModelID,
			MediaID:        p.MediaID,
			Objective:      p.Objective,
			Minimize:       p.Maximize != nil && !*p.Maximize,
			ResetExchanges: p.ResetExchanges,
		}
		if p.FluxThreshold != nil {
			fr.FluxThreshold = *p.FluxThreshold
		}

		res, err := deps.FBA.Run(ctx, fr)
		if err != nil {
			return toolError(deps.GetLogger(), "run_fba", err)
		}
		return jsonResult(res)
	})
}
