package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-gem/pkg/biochem"
	"github.com/ekaya-inc/ekaya-gem/pkg/template"
)

// RegisterLookupTools registers biochemistry database and template lookup tools.
func RegisterLookupTools(s *server.MCPServer, deps *LookupToolDeps) {
	registerGetCompoundNameTool(s, deps)
	registerSearchCompoundsTool(s, deps)
	registerGetReactionNameTool(s, deps)
	registerSearchReactionsTool(s, deps)
	registerListTemplatesTool(s, deps)
}

type compoundIDParams struct {
	CompoundID string `json:"compound_id" validate:"required"`
}

type compoundNameResult struct {
	Query string `json:"query"`
	*biochem.Compound
}

func registerGetCompoundNameTool(s *server.MCPServer, deps *LookupToolDeps) {
	tool := mcp.NewTool(
		"get_compound_name",
		mcp.WithDescription(
			"Looks up a compound by id. Compartment suffixes and exchange prefixes are accepted "+
				"(cpd00027, cpd00027_e0 and EX_cpd00027_e0 all resolve to D-Glucose).",
		),
		mcp.WithString("compound_id", mcp.Required(), mcp.Description("Compound id")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p compoundIDParams
		if err := bindArguments(req, &p); err != nil {
			return toolError(deps.GetLogger(), "get_compound_name", err)
		}

		c, err := deps.Lookup.Compound(ctx, p.CompoundID)
		if err != nil {
			return toolError(deps.GetLogger(), "get_compound_name", err)
		}
		return jsonResult(compoundNameResult{Query: p.CompoundID, Compound: c})
	})
}

type reactionIDParams struct {
	ReactionID string `json:"reaction_id" validate:"required"`
}

type reactionNameResult struct {
	Query string `json:"query"`
	*biochem.Reaction
}

func registerGetReactionNameTool(s *server.MCPServer, deps *LookupToolDeps) {
	tool := mcp.NewTool(
		"get_reaction_name",
		mcp.WithDescription("Looks up a reaction by id (compartment suffixes such as rxn05226_c0 are accepted)."),
		mcp.WithString("reaction_id", mcp.Required(), mcp.Description("Reaction id")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p reactionIDParams
		if err := bindArguments(req, &p); err != nil {
			return toolError(deps.GetLogger(), "get_reaction_name", err)
		}

		r, err := deps.Lookup.Reaction(ctx, p.ReactionID)
		if err != nil {
			return toolError(deps.GetLogger(), "get_reaction_name", err)
		}
		return jsonResult(reactionNameResult{Query: p.ReactionID, Reaction: r})
	})
}

type searchParams struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit"`
}

func withSearchParams(subject string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("query", mcp.Required(), mcp.Description("Text matched against "+subject)),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results to return (default 20, max 100)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	}
}

func registerSearchCompoundsTool(s *server.MCPServer, deps *LookupToolDeps) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Searches compounds by id, name, formula or alias. " +
				"Example: search_compounds(query='glucose') returns D-Glucose (cpd00027) among others.",
		),
	}, withSearchParams("compound ids, names, formulas and aliases")...)
	tool := mcp.NewTool("search_compounds", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p searchParams
		if err := bindArguments(req, &p); err != nil {
			return toolError(deps.GetLogger(), "search_compounds", err)
		}

		res, err := deps.Lookup.SearchCompounds(ctx, p.Query, p.Limit)
		if err != nil {
			return toolError(deps.GetLogger(), "search_compounds", err)
		}
		return jsonResult(res)
	})
}

func registerSearchReactionsTool(s *server.MCPServer, deps *LookupToolDeps) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Searches reactions by id, name, EC number or alias. " +
				"Example: search_reactions(query='1.1.1.27') returns L-lactate dehydrogenase.",
		),
	}, withSearchParams("reaction ids, names, EC numbers and aliases")...)
	tool := mcp.NewTool("search_reactions", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p searchParams
		if err := bindArguments(req, &p); err != nil {
			return toolError(deps.GetLogger(), "search_reactions", err)
		}

		res, err := deps.Lookup.SearchReactions(ctx, p.Query, p.Limit)
		if err != nil {
			return toolError(deps.GetLogger(), "search_reactions", err)
		}
		return jsonResult(res)
	})
}

type listTemplatesResult struct {
	Templates []template.Summary `json:"templates"`
	Count     int                `json:"count"`
}

func registerListTemplatesTool(s *server.MCPServer, deps *LookupToolDeps) {
	tool := mcp.NewTool(
		"list_templates",
		mcp.WithDescription("Lists the templates available for reconstruction and gapfilling."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := deps.Lookup.Templates(ctx)
		if err != nil {
			return toolError(deps.GetLogger(), "list_templates", err)
		}
		if list == nil {
			list = []template.Summary{}
		}
		return jsonResult(listTemplatesResult{Templates: list, Count: len(list)})
	})
}
