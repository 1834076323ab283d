package analyzer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

// ModelDefault is the vision-capable model used for page analysis.
// Override with PAGECHECK_MODEL.
const ModelDefault = "claude-sonnet-4-5-20250929"

// GetModel returns the analysis model, checking PAGECHECK_MODEL first
func GetModel() string {
	if model := os.Getenv("PAGECHECK_MODEL"); model != "" {
		return model
	}
	return ModelDefault
}

// pagePrompt asks for a machine-readable violation list. The rule set
// itself lives on the model side; the engine never interprets it.
const pagePrompt = `You are reviewing one page of an exported design document against the
brand guidelines you have been configured with.

Return ONLY a JSON object of this shape, no prose:

{
  "violations": [
    {"rule": "<rule id>", "severity": "error|warning|info", "message": "<what is wrong>"}
  ],
  "notes": "<optional one-line observation>"
}

An empty violations array means the page passes.`

// Config holds AI analyzer configuration
type Config struct {
	APIKey string // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model  string // Model to use (default: claude-sonnet-4-5-20250929)

	// RequestsPerSecond caps the analysis call rate across all workers.
	// Zero disables rate limiting.
	RequestsPerSecond float64

	MaxTokens int64 // response budget (default 2048)
}

// AIAnalyzer analyzes page rasters with Claude vision calls.
type AIAnalyzer struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter // nil when rate limiting is disabled
	logger    *slog.Logger
}

var _ Analyzer = (*AIAnalyzer)(nil)

// NewAI creates the production analyzer.
func NewAI(cfg *Config) (*AIAnalyzer, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetModel()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests per second cannot be negative (got %v)", cfg.RequestsPerSecond)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AIAnalyzer{
		client:    &client,
		model:     model,
		maxTokens: maxTokens,
		limiter:   limiter,
		logger:    slog.Default().With("component", "analyzer"),
	}, nil
}

// Analyze implements Analyzer. contentRef is the path to a page raster.
func (a *AIAnalyzer) Analyze(ctx context.Context, contentRef string) (json.RawMessage, error) {
	raster, err := os.ReadFile(contentRef)
	if err != nil {
		return nil, fmt.Errorf("failed to read page raster: %w", err)
	}

	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(contentRef)))
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("unsupported page raster type for %s", contentRef)
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait canceled: %w", err)
		}
	}

	start := time.Now()
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(raster)),
				anthropic.NewTextBlock(pagePrompt),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var responseText string
	for _, block := range resp.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	value, err := extractJSON(responseText)
	if err != nil {
		return nil, fmt.Errorf("unparseable analysis response: %w", err)
	}

	a.logger.Debug("page analyzed",
		"ref", contentRef,
		"duration", time.Since(start),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)
	return value, nil
}
