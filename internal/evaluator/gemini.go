package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/timvw/vibecheck/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiProvider evaluates screenshots using the Gemini API via the
// google generative-ai SDK.
type GeminiProvider struct {
	model      string
	apiKey     string
	clientOpts []option.ClientOption
}

// NewGeminiProvider creates a Gemini-backed provider. A missing API key
// only warns here; the evaluation call reports it as a config error.
func NewGeminiProvider(cfg ProviderConfig) *GeminiProvider {
	apiKey := cfg.resolveAPIKey("gemini", "GEMINI_API_KEY")

	var opts []option.ClientOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	m := cfg.Model
	if m == "" {
		m = "gemini-2.0-flash"
	}

	return &GeminiProvider{
		model:      m,
		apiKey:     apiKey,
		clientOpts: opts,
	}
}

// Provider returns "gemini".
func (p *GeminiProvider) Provider() string {
	return "gemini"
}

// Model returns the model name.
func (p *GeminiProvider) Model() string {
	return p.model
}

// Evaluate sends the screenshot and specification to the Gemini API and
// returns the normalized verdict.
func (p *GeminiProvider) Evaluate(ctx context.Context, req model.EvaluationRequest) (*model.EvaluationResult, error) {
	if p.apiKey == "" {
		return nil, &model.ConfigError{Msg: "gemini provider has no API key (set GEMINI_API_KEY)"}
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
			attribute.String("gen_ai.provider.name", "gemini"),
			attribute.String("gen_ai.request.model", p.model),
			attribute.Int64("gen_ai.request.max_tokens", maxTokens),
			attribute.Float64("gen_ai.request.temperature", req.Options.Temperature()),
		),
	)
	defer span.End()

	recordSpanInput(span, userMessage)

	client, err := genai.NewClient(ctx, p.clientOpts...)
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "client_error"))
		return nil, &model.TransportError{Provider: "gemini", Err: err}
	}
	defer client.Close()

	temperature := float32(req.Options.Temperature())
	outTokens := int32(maxTokens)

	gm := client.GenerativeModel(p.model)
	gm.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  &outTokens,
		ResponseMIMEType: "application/json",
	}
	gm.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemPrompt)},
	}

	resp, err := gm.GenerateContent(ctx,
		genai.Text(userMessage),
		&genai.Blob{MIMEType: mimeType, Data: imgData},
	)
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "api_error"))
		var apierr *googleapi.Error
		if errors.As(err, &apierr) {
			return nil, &model.TransportError{Provider: "gemini", Status: apierr.Code, Err: err}
		}
		return nil, &model.TransportError{Provider: "gemini", Err: err}
	}

	rawText := firstCandidateText(resp)
	if rawText == "" {
		span.SetAttributes(attribute.String("error.type", "empty_response"))
		return nil, &model.TransportError{Provider: "gemini", Err: fmt.Errorf("empty response")}
	}

	var usage model.TokenUsage
	if resp.UsageMetadata != nil {
		usage = model.TokenUsage{
			InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.model", p.model),
		attribute.Int64("gen_ai.usage.input_tokens", usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", usage.OutputTokens),
	)
	recordSpanOutput(span, rawText)

	result := ParseReply(rawText)
	result.Usage = usage
	result.Provider = p.Provider()
	result.Model = p.model
	if req.Options.IncludeRawResponse {
		result.RawResponse = rawText
	}
	return result, nil
}

// firstCandidateText concatenates the text parts of the first candidate.
func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}
