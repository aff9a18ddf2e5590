package mcp

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"dsa-mcp/internal/config"
	"dsa-mcp/internal/crm"
	"dsa-mcp/internal/model"
	"dsa-mcp/internal/orders"
	"dsa-mcp/internal/recommend"
	"dsa-mcp/internal/schedule"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// OrdersSnapshot is the snapshot name of fetched CRM orders.
const OrdersSnapshot = "orders"

// Version is reported to MCP clients; set by the command layer.
var Version = "dev"

// Server holds the state of one MCP session.
type Server struct {
	cfg       *config.AppConfig
	crm       crm.Client
	schedules *schedule.Store
	snapshots *orders.SnapshotStore
	now       func() time.Time

	// mu serializes tool calls touching the predictor and the last report.
	mu         sync.Mutex
	predictor  *model.Predictor
	lastReport *recommend.Report
}

// NewServer creates a server and loads cached orders from the cache directory.
// schedules may be nil, in which case schedule tools fail and recommendations
// fall back to hour buckets.
func NewServer(cfg *config.AppConfig, client crm.Client, schedules *schedule.Store) *Server {
	s := &Server{
		cfg:       cfg,
		crm:       client,
		schedules: schedules,
		snapshots: orders.NewSnapshotStore(),
		now:       time.Now,
	}
	if err := s.snapshots.Load(cfg.CacheDir, OrdersSnapshot); err != nil {
		log.Warn().Err(err).Msg("Failed to load cached orders")
	}
	return s
}

// Run serves MCP over stdio until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Int("orders", s.snapshots.Count(OrdersSnapshot)).Msg("Starting MCP server on stdio")
	return s.MCPServer().Run(ctx, &sdk.StdioTransport{})
}

// MCPServer builds the SDK server with every tool registered.
func (s *Server) MCPServer() *sdk.Server {
	server := sdk.NewServer(&sdk.Implementation{Name: "dsa-mcp", Version: Version}, nil)
	s.registerTools(server)
	return server
}

// addTool registers a handler whose input schema is derived from In.
func addTool[In any](server *sdk.Server, name, description string, handle func(context.Context, In) (any, error)) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		log.Error().Err(err).Str("tool", name).Msg("Failed to derive tool schema")
		return
	}

	sdk.AddTool(server, &sdk.Tool{
		Name:        name,
		Description: description,
		InputSchema: schema,
	}, func(ctx context.Context, _ *sdk.CallToolRequest, in In) (*sdk.CallToolResult, any, error) {
		log.Debug().Str("tool", name).Msg("Tool call")
		data, err := handle(ctx, in)
		if err != nil {
			log.Warn().Err(err).Str("tool", name).Msg("Tool call failed")
			return nil, nil, err
		}
		return textResult(data), nil, nil
	})
}

func textResult(data any) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: formatResult(data)}},
	}
}

func formatResult(data any) string {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(out)
}
