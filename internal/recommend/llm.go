package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// DraftsPerRequest is how many recommendations the model is asked for.
const DraftsPerRequest = 3

const systemPrompt = `You are an expert travel planning assistant. Generate a list of ` +
	`highly attractive travel activities or experiences that match the traveller's goals ` +
	`and parameters. Respond only with a JSON array of objects. Each object simulates a ` +
	`complete travel post ready for a social feed; data should be fictional but realistic.`

// OpenAIConfig configures an OpenAI-compatible chat model.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIModel builds a langchaingo model for an OpenAI-compatible API.
func NewOpenAIModel(cfg OpenAIConfig) (llms.Model, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("recommend: LLM API key is not configured")
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("recommend: init llm: %w", err)
	}
	return model, nil
}

// LLMGenerator asks a chat model for drafts.
type LLMGenerator struct {
	model       llms.Model
	temperature float64
}

// NewLLMGenerator wraps model.
func NewLLMGenerator(model llms.Model) *LLMGenerator {
	return &LLMGenerator{model: model, temperature: 0.7}
}

func userPrompt(req Request) string {
	location := req.Location
	if location == "" {
		location = "Any interesting place"
	}
	duration := req.Duration
	if duration == "" {
		duration = "Flexible"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d travel recommendations. ", DraftsPerRequest)
	fmt.Fprintf(&b, "Main goals: %s. ", strings.Join(req.Goals, ", "))
	fmt.Fprintf(&b, "Location: %s. Duration: %s. ", location, duration)
	b.WriteString(`Each object must have: "title", "description", "thumbnail" (a high quality ` +
		`image URL), "rating" (4.5 to 5.0), "priceRange" (e.g. "$80-120"), "duration" ` +
		`(e.g. "5 hours"), "tags" (array of strings) and "bookingInfo" with "price", ` +
		`"affiliateCode", "duration", "rating" and "priceRange".`)
	return b.String()
}

func (g *LLMGenerator) Generate(ctx context.Context, req Request) ([]Draft, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt(req)),
	}
	resp, err := g.model.GenerateContent(ctx, messages,
		llms.WithTemperature(g.temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return nil, fmt.Errorf("recommend: generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrMalformed
	}
	return ParseDrafts(resp.Choices[0].Content)
}
