package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/biochem"
	"github.com/ekaya-inc/ekaya-gem/pkg/compat"
	"github.com/ekaya-inc/ekaya-gem/pkg/metrics"
	"github.com/ekaya-inc/ekaya-gem/pkg/reconstruction"
	"github.com/ekaya-inc/ekaya-gem/pkg/services"
	"github.com/ekaya-inc/ekaya-gem/pkg/session"
	"github.com/ekaya-inc/ekaya-gem/pkg/solver"
	"github.com/ekaya-inc/ekaya-gem/pkg/testhelpers"
)

// newTestServer registers every tool against real services and a fresh store.
func newTestServer(t *testing.T) (*server.MCPServer, session.Store) {
	t.Helper()
	logger := zap.NewNop()

	store := session.NewStore()
	registry := testhelpers.Registry(t)
	engine := solver.NewSimplexEngine(0, logger)
	converter := compat.NewMediaConverter()
	m := metrics.New()

	searcher := services.NewCandidateSearcher(engine, converter, services.DefaultFluxTolerance, logger)
	integrator := services.NewIntegrator(converter, logger)
	corrector := services.NewEnergyCorrector(engine, converter, searcher, integrator, 0, 0, logger)

	db, err := biochem.Load()
	require.NoError(t, err)

	media := services.NewMediaService(store, logger)
	_, err = media.LoadPredefined()
	require.NoError(t, err)

	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterAll(s, Deps{
		Version: "test-version",
		Models:  services.NewModelService(store, reconstruction.NewTemplateEngine(registry, 0, logger), "core", logger),
		Media:   media,
		Gapfill: services.NewGapfillService(services.GapfillDeps{
			Store:      store,
			Templates:  registry,
			Engine:     engine,
			Converter:  converter,
			Corrector:  corrector,
			Searcher:   searcher,
			Integrator: integrator,
			Metrics:    m,
			Config:     services.GapfillConfig{DefaultTemplate: "core"},
			Logger:     logger,
		}),
		FBA:    services.NewFBAService(store, engine, converter, db, services.DefaultFluxThreshold, m, logger),
		Lookup: services.NewLookupService(db, registry, logger),
		Logger: logger,
	})
	return s, store
}

// toolResponse is the decoded JSON-RPC response of a tools/call request.
type toolResponse struct {
	Result *struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r toolResponse) text() string {
	if r.Result == nil || len(r.Result.Content) == 0 {
		return ""
	}
	return r.Result.Content[0].Text
}

// callTool invokes a tool through the MCP message handler.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) toolResponse {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	request, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(s.HandleMessage(context.Background(), request))
	require.NoError(t, err)

	var resp toolResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

// callToolOK calls a tool, requires a successful result and decodes it into out.
func callToolOK(t *testing.T, s *server.MCPServer, name string, args map[string]any, out any) {
	t.Helper()
	resp := callTool(t, s, name, args)
	require.Nil(t, resp.Error, "protocol error from %s", name)
	require.NotNil(t, resp.Result)
	require.False(t, resp.Result.IsError, "%s returned error result: %s", name, resp.text())
	if out != nil {
		require.NoError(t, json.Unmarshal([]byte(resp.text()), out))
	}
}

// callToolErr calls a tool and requires a structured error result.
func callToolErr(t *testing.T, s *server.MCPServer, name string, args map[string]any) ErrorResponse {
	t.Helper()
	resp := callTool(t, s, name, args)
	require.Nil(t, resp.Error, "protocol error from %s", name)
	require.NotNil(t, resp.Result)
	require.True(t, resp.Result.IsError, "%s unexpectedly succeeded: %s", name, resp.text())

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(resp.text()), &errResp))
	require.True(t, errResp.Error)
	return errResp
}

// proteinArgs converts fixture proteins into tool arguments.
func proteinArgs(n int) map[string]any {
	out := make(map[string]any, n)
	for id, seq := range testhelpers.Proteins(n) {
		out[id] = seq
	}
	return out
}
