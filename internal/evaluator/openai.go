package evaluator

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/timvw/vibecheck/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIProvider evaluates screenshots using an OpenAI-compatible Chat
// Completions API. Works with OpenAI, Azure OpenAI, and any compatible
// endpoint.
type OpenAIProvider struct {
	client openai.Client
	model  string
	apiKey string
}

// NewOpenAIProvider creates an OpenAI-compatible provider. A missing API
// key only warns here; the evaluation call reports it as a config error.
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	apiKey := cfg.resolveAPIKey("openai", "OPENAI_API_KEY")

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
		m = "gpt-4o-mini"
	}

	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  m,
		apiKey: apiKey,
	}
}

// Provider returns "openai".
func (p *OpenAIProvider) Provider() string {
	return "openai"
}

// Model returns the model name.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Evaluate sends the screenshot and specification to an OpenAI-compatible
// API and returns the normalized verdict.
func (p *OpenAIProvider) Evaluate(ctx context.Context, req model.EvaluationRequest) (*model.EvaluationResult, error) {
	if p.apiKey == "" {
		return nil, &model.ConfigError{Msg: "openai provider has no API key (set OPENAI_API_KEY)"}
	}

	imgData, mimeType, err := loadImage(req)
	if err != nil {
		return nil, err
	}

	userMessage := UserPromptTemplate + req.Specification
	maxTokens := req.Options.MaxTokens()
	dataURL := "data:" + mimeType + ";base64," + encodeImage(imgData)

	// Start a GenAI generation span following OTel GenAI semantic conventions.
	ctx, span := evalTracer.Start(ctx, "chat "+p.model,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.provider.name", "openai"),
			attribute.String("gen_ai.request.model", p.model),
			attribute.Int64("gen_ai.request.max_tokens", maxTokens),
			attribute.Float64("gen_ai.request.temperature", req.Options.Temperature()),
		),
	)
	defer span.End()

	recordSpanInput(span, userMessage)

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(userMessage),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
		MaxCompletionTokens: openai.Int(maxTokens),
		Temperature:         openai.Float(req.Options.Temperature()),
	})
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "api_error"))
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return nil, &model.TransportError{Provider: "openai", Status: apierr.StatusCode, Err: err}
		}
		return nil, &model.TransportError{Provider: "openai", Err: err}
	}

	if len(resp.Choices) == 0 {
		span.SetAttributes(attribute.String("error.type", "empty_response"))
		return nil, &model.TransportError{Provider: "openai", Err: fmt.Errorf("empty response")}
	}

	rawText := resp.Choices[0].Message.Content

	span.SetAttributes(
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.String("gen_ai.response.id", resp.ID),
		attribute.Int64("gen_ai.usage.input_tokens", resp.Usage.PromptTokens),
		attribute.Int64("gen_ai.usage.output_tokens", resp.Usage.CompletionTokens),
	)
	if resp.Choices[0].FinishReason != "" {
		span.SetAttributes(attribute.StringSlice("gen_ai.response.finish_reasons", []string{string(resp.Choices[0].FinishReason)}))
	}
	recordSpanOutput(span, rawText)

	result := ParseReply(rawText)
	result.Usage = model.TokenUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	result.Provider = p.Provider()
	result.Model = p.model
	if req.Options.IncludeRawResponse {
		result.RawResponse = rawText
	}
	return result, nil
}
