package tools

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jinzhu/inflection"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-gem/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-gem/pkg/services"
)

// RegisterModelTools registers model lifecycle MCP tools.
func RegisterModelTools(s *server.MCPServer, deps *ModelToolDeps) {
	registerBuildModelTool(s, deps)
	registerGetModelTool(s, deps)
	registerListModelsTool(s, deps)
	registerDeleteModelTool(s, deps)
}

type buildModelParams struct {
	Proteins  map[string]json.RawMessage `json:"proteins" validate:"required,min=1"`
	Template  string                     `json:"template"`
	ModelName string                     `json:"model_name" validate:"omitempty,gemname"`
}

func registerBuildModelTool(s *server.MCPServer, deps *ModelToolDeps) {
	tool := mcp.NewTool(
		"build_model",
		mcp.WithDescription(
			"Reconstructs a draft metabolic model from protein sequences. "+
				"The draft is stored under '<model_name>.draft' (a name is generated when omitted) "+
				"and usually cannot grow until it is gapfilled. "+
				"Example: build_model(proteins={'gene_001': 'MKV...'}, model_name='ecoli')",
		),
		mcp.WithObject(
			"proteins",
			mcp.Required(),
			mcp.Description("Protein sequences keyed by gene id (amino-acid letters)"),
		),
		mcp.WithString(
			"template",
			mcp.Description("Reconstruction template name (see list_templates). Defaults to the server default"),
		),
		mcp.WithString(
			"model_name",
			mcp.Description("Base name for the model id (letters, digits, '_' or '-')"),
		),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p buildModelParams
		if err := bindArguments(req, &p); err != nil {
			return toolError(deps.GetLogger(), "build_model", err)
		}

		proteins := make(map[string]string, len(p.Proteins))
		for id, raw := range p.Proteins {
			proteins[id] = jsonutil.FlexibleStringValue(raw)
		}

		detail, err := deps.Models.Build(ctx, services.BuildModelRequest{
			Proteins:  proteins,
			Template:  p.Template,
			ModelName: p.ModelName,
		})
		if err != nil {
			return toolError(deps.GetLogger(), "build_model", err)
		}
		return jsonResult(detail)
	})
}

type getModelParams struct {
	ModelID          string `json:"model_id" validate:"required"`
	IncludeReactions bool   `json:"include_reactions"`
}

func registerGetModelTool(s *server.MCPServer, deps *ModelToolDeps) {
	tool := mcp.NewTool(
		"get_model",
		mcp.WithDescription(
			"Returns a model summary: state, lineage, objective, counts, exchange reactions "+
				"and whether energy-correction test conditions are cached. "+
				"Set include_reactions=true for the full reaction list.",
		),
		mcp.WithString("model_id", mcp.Required(), mcp.Description("Model id (e.g. 'ecoli.draft.gf')")),
		mcp.WithBoolean("include_reactions", mcp.Description("Include every reaction with equation and bounds (default false)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p getModelParams
		if err := bindArguments(req, &p); err != nil {
			return toolError(deps.GetLogger(), "get_model", err)
		}

		detail, err := deps.Models.Get(ctx, p.ModelID, p.IncludeReactions)
		if err != nil {
			return toolError(deps.GetLogger(), "get_model", err)
		}
		return jsonResult(detail)
	})
}

type listModelsParams struct {
	State string `json:"state" validate:"omitempty,oneof=all draft gapfilled"`
}

type listModelsResult struct {
	Models  []*services.ModelSummary `json:"models"`
	Count   int                      `json:"count"`
	Summary string                   `json:"summary"`
}

func registerListModelsTool(s *server.MCPServer, deps *ModelToolDeps) {
	tool := mcp.NewTool(
		"list_models",
		mcp.WithDescription("Lists stored models, optionally filtered by state."),
		mcp.WithString(
			"state",
			mcp.Description("Filter: all (default), draft or gapfilled"),
			mcp.Enum("all", "draft", "gapfilled"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p listModelsParams
		if err := bindArguments(req, &p); err != nil {
			return toolError(deps.GetLogger(), "list_models", err)
		}

		list, err := deps.Models.List(ctx, p.State)
		if err != nil {
			return toolError(deps.GetLogger(), "list_models", err)
		}
		if list == nil {
			list = []*services.ModelSummary{}
		}
		return jsonResult(listModelsResult{
			Models:  list,
			Count:   len(list),
			Summary: countPhrase(len(list), "model"),
		})
	})
}

type deleteModelParams struct {
	ModelID string `json:"model_id" validate:"required"`
}

type deleteModelResult struct {
	*services.DeleteModelResult
	Deleted bool `json:"deleted"`
}

func registerDeleteModelTool(s *server.MCPServer, deps *ModelToolDeps) {
	tool := mcp.NewTool(
		"delete_model",
		mcp.WithDescription("Deletes a model and its cached energy-correction test conditions. Derived models are kept."),
		mcp.WithString("model_id", mcp.Required(), mcp.Description("Model id to delete")),
		mcp.WithDestructiveHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p deleteModelParams
		if err := bindArguments(req, &p); err != nil {
			return toolError(deps.GetLogger(), "delete_model", err)
		}

		res, err := deps.Models.Delete(ctx, p.ModelID)
		if err != nil {
			return toolError(deps.GetLogger(), "delete_model", err)
		}
		return jsonResult(deleteModelResult{DeleteModelResult: res, Deleted: true})
	})
}

// countPhrase renders "1 model" or "3 models".
func countPhrase(n int, noun string) string {
	if n != 1 {
		noun = inflection.Plural(noun)
	}
	return strconv.Itoa(n) + " " + noun
}
