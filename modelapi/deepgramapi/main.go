package deepgramapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/surya-d-naidu/HealthCareBot/logger"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
	"go.uber.org/zap"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type DeepgramConnectProps struct {
	Logger *logger.LogMiddleware
	APIKey string
}

// DeepgramAPI turns voice notes into user messages.
type DeepgramAPI struct {
	logger *logger.LogMiddleware
	dg     *api.Client
}

var ErrNoTranscript = errors.New("no transcription found in response")

func Connect(ctx context.Context, args DeepgramConnectProps) (*DeepgramAPI, error) {
	tracer := otel.Tracer("deepgramapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	if args.APIKey == "" {
		return nil, errors.New("deepgram api key is not set")
	}

	c := client.NewREST(args.APIKey, &interfaces.ClientOptions{})
	dg := api.New(c)

	args.Logger.Logger(ctx).Info("[DeepgramAPI] Deepgram client ready")
	return &DeepgramAPI{logger: args.Logger, dg: dg}, nil
}

func (d *DeepgramAPI) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	tracer := otel.Tracer("deepgramapi/Transcribe")
	ctx, span := tracer.Start(ctx, "Transcribe")
	defer span.End()

	span.SetAttributes(attribute.Int("audio.data.size", len(audioData)))

	logger := d.logger.Logger(ctx)

	if len(audioData) == 0 {
		return "", errors.New("no audio to transcribe")
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Punctuate:   true,
		SmartFormat: true,
		Language:    "multi",
		Model:       "nova-3",
	}

	span.AddEvent("Calling Deepgram API")
	res, err := d.dg.FromStream(ctx, bytes.NewReader(audioData), options)
	if err != nil {
		logger.Error("[DeepgramAPI] Transcription failed", zap.Error(err))
		span.RecordError(err)
		return "", fmt.Errorf("deepgram transcription failed: %w", err)
	}

	if res != nil && res.Results != nil && len(res.Results.Channels) > 0 {
		channel := res.Results.Channels[0]
		if len(channel.Alternatives) > 0 && channel.Alternatives[0].Transcript != "" {
			transcription := channel.Alternatives[0].Transcript
			// Voice notes may carry health details; only the length is logged.
			logger.Info("[DeepgramAPI] Successfully transcribed audio", zap.Int("transcription.length", len(transcription)))
			span.AddEvent("Transcription successful", trace.WithAttributes(attribute.Int("transcription.length", len(transcription))))
			return transcription, nil
		}
	}

	logger.Warn("[DeepgramAPI] No transcription found in response")
	span.AddEvent("No transcription found in Deepgram response")
	return "", ErrNoTranscript
}
