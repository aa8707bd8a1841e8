package geminiapi

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/surya-d-naidu/HealthCareBot/logger"
	"github.com/surya-d-naidu/HealthCareBot/modelapi"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"google.golang.org/genai"
)

const (
	GEMINI_MODEL_NAME = "gemini-2.5-flash"
)

type GeminiConnectProps struct {
	Logger *logger.LogMiddleware
	APIKey string
	Model  string
	// MaxWorkers bounds concurrent calls from this process.
	MaxWorkers int
	// MaxAttempts only applies to empty responses. Calls that fail are never
	// repeated since they may already have been billed.
	MaxAttempts int
}

type Gemini struct {
	logger      *logger.LogMiddleware
	client      *genai.Client
	model       string
	semaphore   *semaphore.Weighted
	maxAttempts int
}

var ErrEmptyResponse = errors.New("gemini returned an empty response")

func Connect(ctx context.Context, args GeminiConnectProps) (*Gemini, error) {
	tracer := otel.Tracer("geminiapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()
	args.Logger.Logger(ctx).Info("[GeminiAPI] Connecting Gemini API client")

	if args.APIKey == "" {
		return nil, errors.New("gemini api key is not set")
	}

	maxWorkers := args.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	maxAttempts := args.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	model := args.Model
	if model == "" {
		model = GEMINI_MODEL_NAME
	}

	span.SetAttributes(
		attribute.Int("maxWorkers", maxWorkers),
		attribute.Int("maxAttempts", maxAttempts),
		attribute.String("model", model),
	)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  args.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		span.RecordError(err)
		args.Logger.Logger(ctx).Error("[GeminiAPI] Could not create Gemini client", zap.Error(err))
		return nil, fmt.Errorf("could not create gemini client: %w", err)
	}

	return &Gemini{
		logger:      args.Logger,
		client:      client,
		model:       model,
		semaphore:   semaphore.NewWeighted(int64(maxWorkers)),
		maxAttempts: maxAttempts,
	}, nil
}

// buildContents puts the prompt text and the optional image in one user turn.
func buildContents(prompt modelapi.Prompt) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(prompt.Text)}
	if prompt.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(prompt.Image.Data, prompt.Image.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func (g *Gemini) generateConfig() *genai.GenerateContentConfig {
	thinkingBudget := int32(0)
	temperature := float32(0.7)

	return &genai.GenerateContentConfig{
		Temperature: &temperature,
		SafetySettings: []*genai.SafetySetting{
			{
				Category:  genai.HarmCategoryHarassment,
				Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
			},
			{
				Category:  genai.HarmCategoryHateSpeech,
				Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
			},
			{
				Category:  genai.HarmCategorySexuallyExplicit,
				Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
			},
			{
				// Self-harm and medication questions must still get an answer.
				Category:  genai.HarmCategoryDangerousContent,
				Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
			},
		},
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}
}

func (g *Gemini) Complete(ctx context.Context, prompt modelapi.Prompt) (string, error) {
	tracer := otel.Tracer("geminiapi/Complete")
	ctx, span := tracer.Start(ctx, "Complete")
	defer span.End()
	span.SetAttributes(
		attribute.Int("prompt.length", len(prompt.Text)),
		attribute.Bool("prompt.image", prompt.Image != nil),
	)

	if err := g.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return "", err
	}
	defer g.semaphore.Release(1)

	contents := buildContents(prompt)
	cfg := g.generateConfig()

	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		span.AddEvent("Attempt", trace.WithAttributes(attribute.Int("attemptNumber", attempt+1)))
		g.logger.Logger(ctx).Info("[GeminiAPI] LLM generation attempt", zap.Int("attempt", attempt+1))

		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
		if err != nil {
			span.RecordError(err)
			g.logger.Logger(ctx).Error("[GeminiAPI] Error generating LLM content", zap.Error(err), zap.Int("attempt", attempt+1))
			return "", fmt.Errorf("gemini generate content: %w", err)
		}

		if text := resp.Text(); text != "" {
			span.AddEvent("LLM generation successful")
			return text, nil
		}

		g.logger.Logger(ctx).Warn("[GeminiAPI] Received empty or invalid response",
			zap.Int("attempt", attempt+1),
			zap.Int("maxAttempts", g.maxAttempts))
		span.AddEvent("EmptyResponse")

		if attempt < g.maxAttempts-1 {
			delay := modelapi.ExponentialBackoff(attempt)
			span.AddEvent("Backoff", trace.WithAttributes(attribute.Int64("delayMs", delay.Milliseconds())))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return "", ErrEmptyResponse
}

func (g *Gemini) Stream(ctx context.Context, prompt modelapi.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		tracer := otel.Tracer("geminiapi/Stream")
		ctx, span := tracer.Start(ctx, "Stream")
		defer span.End()
		span.SetAttributes(
			attribute.Int("prompt.length", len(prompt.Text)),
			attribute.Bool("prompt.image", prompt.Image != nil),
		)

		if err := g.semaphore.Acquire(ctx, 1); err != nil {
			span.RecordError(err)
			yield("", err)
			return
		}
		defer g.semaphore.Release(1)

		chunks := 0
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, buildContents(prompt), g.generateConfig()) {
			if err != nil {
				span.RecordError(err)
				g.logger.Logger(ctx).Error("[GeminiAPI] Stream failed", zap.Error(err), zap.Int("chunks", chunks))
				yield("", fmt.Errorf("gemini stream: %w", err))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			chunks++
			if !yield(text, nil) {
				span.AddEvent("ConsumerStopped")
				return
			}
		}

		span.SetAttributes(attribute.Int("chunks", chunks))
		if chunks == 0 {
			yield("", ErrEmptyResponse)
		}
	}
}
