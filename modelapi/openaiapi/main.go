package openaiapi

import (
	"context"
	"encoding/base64"
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

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
)

const (
	OPENAI_MODEL_NAME = "gpt-4o-mini"

	// Any OpenAI compatible endpoint works; these are the ones we run against.
	GROQ_BASE_URL      = "https://api.groq.com/openai/v1/"
	DEEPINFRA_BASE_URL = "https://api.deepinfra.com/v1/openai/"
)

type OpenAI struct {
	logger      *logger.LogMiddleware
	semaphore   *semaphore.Weighted
	client      *openai.Client
	model       string
	maxAttempts int
}

type OpenAIConnectProps struct {
	Logger *logger.LogMiddleware
	APIKey string
	// BaseURL is empty for api.openai.com.
	BaseURL     string
	Model       string
	MaxWorkers  int
	MaxAttempts int
}

var ErrEmptyResponse = errors.New("openai returned an empty response")

func Connect(ctx context.Context, args OpenAIConnectProps) (*OpenAI, error) {
	tracer := otel.Tracer("openaiapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()
	args.Logger.Logger(ctx).Info("[OpenAIAPI] Connecting OpenAI compatible client", zap.String("baseURL", args.BaseURL))

	if args.APIKey == "" {
		return nil, errors.New("openai api key is not set")
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
		model = OPENAI_MODEL_NAME
	}

	span.SetAttributes(
		attribute.Int("maxWorkers", maxWorkers),
		attribute.String("model", model),
	)

	opts := []option.RequestOption{
		option.WithAPIKey(args.APIKey),
		// Completions cost money; never let the client replay them.
		option.WithMaxRetries(0),
	}
	if args.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(args.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAI{
		logger:      args.Logger,
		semaphore:   semaphore.NewWeighted(int64(maxWorkers)),
		client:      &client,
		model:       model,
		maxAttempts: maxAttempts,
	}, nil
}

// buildParams sends the prompt as a single user message. An image travels as
// a data URL content part next to the text.
func buildParams(model string, prompt modelapi.Prompt) openai.ChatCompletionNewParams {
	message := openai.UserMessage(prompt.Text)
	if prompt.Image != nil {
		dataURL := "data:" + prompt.Image.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(prompt.Image.Data)
		message = openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(prompt.Text),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		})
	}

	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    []openai.ChatCompletionMessageParamUnion{message},
		Temperature: param.NewOpt(0.7),
	}
}

func (o *OpenAI) Complete(ctx context.Context, prompt modelapi.Prompt) (string, error) {
	tracer := otel.Tracer("openaiapi/Complete")
	ctx, span := tracer.Start(ctx, "Complete")
	defer span.End()
	span.SetAttributes(
		attribute.Int("prompt.length", len(prompt.Text)),
		attribute.Bool("prompt.image", prompt.Image != nil),
	)

	if err := o.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return "", err
	}
	defer o.semaphore.Release(1)

	params := buildParams(o.model, prompt)

	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		span.AddEvent("Attempt", trace.WithAttributes(attribute.Int("attemptNumber", attempt+1)))

		resp, err := o.client.Chat.Completions.New(ctx, params)
		if err != nil {
			span.RecordError(err)
			o.logger.Logger(ctx).Error("[OpenAIAPI] Chat completion failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return "", fmt.Errorf("openai chat completion: %w", err)
		}

		if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
			span.SetAttributes(attribute.Int64("usage.totalTokens", resp.Usage.TotalTokens))
			return resp.Choices[0].Message.Content, nil
		}

		o.logger.Logger(ctx).Warn("[OpenAIAPI] Received empty response", zap.Int("attempt", attempt+1))
		span.AddEvent("EmptyResponse")

		if attempt < o.maxAttempts-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(modelapi.ExponentialBackoff(attempt)):
			}
		}
	}

	return "", ErrEmptyResponse
}

func (o *OpenAI) Stream(ctx context.Context, prompt modelapi.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		tracer := otel.Tracer("openaiapi/Stream")
		ctx, span := tracer.Start(ctx, "Stream")
		defer span.End()

		if err := o.semaphore.Acquire(ctx, 1); err != nil {
			span.RecordError(err)
			yield("", err)
			return
		}
		defer o.semaphore.Release(1)

		stream := o.client.Chat.Completions.NewStreaming(ctx, buildParams(o.model, prompt))
		defer stream.Close()

		chunks := 0
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			chunks++
			if !yield(chunk.Choices[0].Delta.Content, nil) {
				span.AddEvent("ConsumerStopped")
				return
			}
		}

		if err := stream.Err(); err != nil {
			span.RecordError(err)
			o.logger.Logger(ctx).Error("[OpenAIAPI] Stream failed", zap.Error(err), zap.Int("chunks", chunks))
			yield("", fmt.Errorf("openai stream: %w", err))
			return
		}
		span.SetAttributes(attribute.Int("chunks", chunks))
		if chunks == 0 {
			yield("", ErrEmptyResponse)
		}
	}
}
