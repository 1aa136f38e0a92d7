// Package mcptransport exposes the analysis pipeline as MCP tools over SSE.
package mcptransport

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"nutrilens-server-go/internal/domain/food"
	domainimage "nutrilens-server-go/internal/domain/image"
	"nutrilens-server-go/internal/domain/parser"
	"nutrilens-server-go/internal/platform/errors"
	"nutrilens-server-go/internal/platform/logging"
	httptransport "nutrilens-server-go/internal/transport/http"
)

const (
	ToolAnalyze = "analyze_food_image"
	ToolParse   = "parse_vlm_response"

	SSEPath     = "/mcp/sse"
	MessagePath = "/mcp/message"
)

type Analyzer interface {
	Analyze(ctx context.Context, blob food.ImageBlob) (food.AnalysisResult, error)
}

type Options struct {
	Images   *domainimage.Pipeline
	Analyzer Analyzer
	Logger   *logging.Logger
	Version  string
}

// Server owns the MCP tool registry and its SSE transport.
type Server struct {
	mcp      *server.MCPServer
	sse      *server.SSEServer
	images   *domainimage.Pipeline
	analyzer Analyzer
	logger   *logging.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Images == nil || opts.Analyzer == nil {
		return nil, errors.New(errors.KindConfig, "mcp.new", "image pipeline and analyzer are required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	s := &Server{
		mcp:      server.NewMCPServer("nutrilens", opts.Version, server.WithToolCapabilities(false)),
		images:   opts.Images,
		analyzer: opts.Analyzer,
		logger:   opts.Logger,
	}

	s.mcp.AddTool(mcp.NewTool(ToolAnalyze,
		mcp.WithDescription("Analyze a food photo and return its nutrition summary."),
		mcp.WithString("image_base64", mcp.Required(), mcp.Description("Base64 encoded image bytes")),
		mcp.WithString("media_type", mcp.Description("MIME type such as image/jpeg; defaults to image/jpeg")),
	), s.handleAnalyze)

	s.mcp.AddTool(mcp.NewTool(ToolParse,
		mcp.WithDescription("Parse a free-text vision model reply into food labels and nutrient estimates."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw model reply")),
	), s.handleParse)

	s.sse = server.NewSSEServer(s.mcp,
		server.WithSSEEndpoint(SSEPath),
		server.WithMessageEndpoint(MessagePath),
	)
	return s, nil
}

// Mount registers the SSE and message endpoints on router.
func (s *Server) Mount(router gin.IRouter) {
	router.GET(SSEPath, gin.WrapH(s.sse.SSEHandler()))
	router.POST(MessagePath, gin.WrapH(s.sse.MessageHandler()))
	s.logger.InfoTag("MCP", "tools %s, %s mounted at %s", ToolAnalyze, ToolParse, SSEPath)
}

// Shutdown closes open SSE sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.sse.Shutdown(ctx)
}

func (s *Server) handleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)
	encoded, _ := args["image_base64"].(string)
	mediaType, _ := args["media_type"].(string)
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	data, err := base64.StdEncoding.DecodeString(stripDataURL(encoded))
	if err != nil || len(data) == 0 {
		return mcp.NewToolResultError("image_base64 must be non-empty base64 image data"), nil
	}

	blob, err := s.images.Process(ctx, domainimage.Input{
		Reader:    bytes.NewReader(data),
		MediaType: mediaType,
		Source:    "mcp",
	})
	if err != nil {
		return mcp.NewToolResultError(httptransport.Classify(err).Detail), nil
	}

	result, err := s.analyzer.Analyze(ctx, blob)
	if err != nil {
		s.logger.WarnTag("MCP", "%s failed: %v", ToolAnalyze, err)
		return mcp.NewToolResultError(httptransport.Classify(err).Detail), nil
	}
	return jsonResult(result.Envelope())
}

func (s *Server) handleParse(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, _ := arguments(req)["text"].(string)
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text is required"), nil
	}
	return jsonResult(ParsedReply(parser.Parse(text)))
}

// ParsedView is the parse tool's reply.
type ParsedView struct {
	PrimaryLabel       string            `json:"primary_label"`
	ItemLabels         []string          `json:"item_labels"`
	EstimatedNutrients map[string]string `json:"estimated_nutrients"`
}

func ParsedReply(rec food.IdentificationRecord) ParsedView {
	view := ParsedView{
		PrimaryLabel:       rec.PrimaryLabel,
		ItemLabels:         rec.ItemLabels,
		EstimatedNutrients: map[string]string{},
	}
	if view.ItemLabels == nil {
		view.ItemLabels = []string{}
	}
	for n, v := range rec.EstimatedNutrients {
		view.EstimatedNutrients[string(n)] = v
	}
	return view
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := sonic.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "mcp.result", "failed to encode tool result", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func arguments(req mcp.CallToolRequest) map[string]any {
	if args, ok := any(req.Params.Arguments).(map[string]any); ok {
		return args
	}
	return map[string]any{}
}

func stripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if _, payload, ok := strings.Cut(s, ","); ok {
			return payload
		}
	}
	return s
}
