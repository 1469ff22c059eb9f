package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/timvw/vibecheck/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AnthropicProvider evaluates screenshots using the Anthropic Messages
// API. Works with both the direct Anthropic API and Azure AI Foundry.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
	apiKey string
}

// NewAnthropicProvider creates an Anthropic-backed provider. A missing
// API key only warns here; the evaluation call reports it as a config
// error.
func NewAnthropicProvider(cfg ProviderConfig) *AnthropicProvider {
	apiKey := cfg.resolveAPIKey("anthropic", "ANTHROPIC_API_KEY")

	var opts []option.RequestOption
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	for k, v := range cfg.ExtraHeaders {
		opts = append(opts, option.WithHeader(k, v))
	}

	m := cfg.Model
	if m == "" {
		m = "claude-sonnet-4-5"
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  m,
		apiKey: apiKey,
	}
}

// Provider returns "anthropic".
func (p *AnthropicProvider) Provider() string {
	return "anthropic"
}

// Model returns the model name.
func (p *AnthropicProvider) Model() string {
	return p.model
}

var evalTracer = otel.Tracer("vibecheck/evaluator")

// Evaluate sends the screenshot and specification to the Anthropic API
// and returns the normalized verdict.
func (p *AnthropicProvider) Evaluate(ctx context.Context, req model.EvaluationRequest) (*model.EvaluationResult, error) {
	if p.apiKey == "" {
		return nil, &model.ConfigError{Msg: "anthropic provider has no API key (set ANTHROPIC_API_KEY)"}
	}

	imgData, mimeType, err := loadImage(req)
	if err != nil {
		return nil, err
	}

	userMessage := UserPromptTemplate + req.Specification
	maxTokens := req.Options.MaxTokens()

	// Start a GenAI generation span following OTel GenAI semantic conventions.
	ctx, span := evalTracer.Start(ctx, "chat "+p.model,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.provider.name", "anthropic"),
			attribute.String("gen_ai.request.model", p.model),
			attribute.Int64("gen_ai.request.max_tokens", maxTokens),
			attribute.Float64("gen_ai.request.temperature", req.Options.Temperature()),
		),
	)
	defer span.End()

	recordSpanInput(span, userMessage)

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Options.Temperature()),
		System: []anthropic.TextBlockParam{
			{Text: SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, encodeImage(imgData)),
				anthropic.NewTextBlock(userMessage),
			),
		},
	})
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "api_error"))
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			return nil, &model.TransportError{Provider: "anthropic", Status: apierr.StatusCode, Err: err}
		}
		return nil, &model.TransportError{Provider: "anthropic", Err: err}
	}

	if len(resp.Content) == 0 {
		span.SetAttributes(attribute.String("error.type", "empty_response"))
		return nil, &model.TransportError{Provider: "anthropic", Err: fmt.Errorf("empty response")}
	}

	rawText := resp.Content[0].Text

	span.SetAttributes(
		attribute.String("gen_ai.response.model", p.model),
		attribute.Int64("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
	)
	if string(resp.StopReason) != "" {
		span.SetAttributes(attribute.StringSlice("gen_ai.response.finish_reasons", []string{string(resp.StopReason)}))
	}
	recordSpanOutput(span, rawText)

	result := ParseReply(rawText)
	result.Usage = model.TokenUsage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	result.Provider = p.Provider()
	result.Model = p.model
	if req.Options.IncludeRawResponse {
		result.RawResponse = rawText
	}
	return result, nil
}

// recordSpanInput records the prompt messages on the span as JSON, per
// the GenAI semconv input format.
func recordSpanInput(span trace.Span, userMessage string) {
	inputMessages := []map[string]string{
		{"role": "system", "content": SystemPrompt},
		{"role": "user", "content": userMessage},
	}
	if inputJSON, err := json.Marshal(inputMessages); err == nil {
		span.SetAttributes(attribute.String("gen_ai.input.messages", string(inputJSON)))
	}
}

// recordSpanOutput records the assistant reply on the span as JSON.
func recordSpanOutput(span trace.Span, rawText string) {
	outputMessages := []map[string]string{
		{"role": "assistant", "content": rawText},
	}
	if outputJSON, err := json.Marshal(outputMessages); err == nil {
		span.SetAttributes(attribute.String("gen_ai.output.messages", string(outputJSON)))
	}
}
