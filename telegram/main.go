package telegram

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/surya-d-naidu/HealthCareBot/conversation"
	"github.com/surya-d-naidu/HealthCareBot/logger"
	"github.com/surya-d-naidu/HealthCareBot/modelapi"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxDownloadBytes matches the Bot API limit for getFile.
const maxDownloadBytes = 20 << 20

// Transcriber turns a voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type TelegramConnectProps struct {
	Logger *logger.LogMiddleware
	Token  string
	Debug  bool
	Engine *conversation.Engine
	// Transcriber is optional; without one voice notes are declined.
	Transcriber Transcriber
}

type Telegram struct {
	logger      *logger.LogMiddleware
	bot         *tgbotapi.BotAPI
	engine      *conversation.Engine
	transcriber Transcriber

	mu     sync.Mutex
	topics map[int64]conversation.Topic
}

func Connect(ctx context.Context, args TelegramConnectProps) (*Telegram, error) {
	tracer := otel.Tracer("telegram/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	if args.Token == "" {
		return nil, errors.New("telegram bot token is not set")
	}

	bot, err := tgbotapi.NewBotAPI(args.Token)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = args.Debug

	span.SetAttributes(
		attribute.String("bot.username", bot.Self.UserName),
		attribute.Bool("bot.debug", args.Debug),
	)

	args.Logger.Logger(ctx).Info("[Telegram] Bot connected successfully",
		zap.String("username", bot.Self.UserName),
		zap.Bool("debug", args.Debug),
	)

	return &Telegram{
		logger:      args.Logger,
		bot:         bot,
		engine:      args.Engine,
		transcriber: args.Transcriber,
		topics:      make(map[int64]conversation.Topic),
	}, nil
}

// Listen handles updates until ctx is done. Each chat gets its own worker,
// so a slow reply in one chat does not hold up the others.
func (t *Telegram) Listen(ctx context.Context) error {
	tracer := otel.Tracer("telegram/Listen")
	ctx, span := tracer.Start(ctx, "Listen")
	defer span.End()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	defer t.bot.StopReceivingUpdates()

	workers := newDispatcher(t.handleMessage)
	defer workers.wait()

	t.logger.Logger(ctx).Info("[Telegram] Starting message listener")

	for {
		select {
		case <-ctx.Done():
			t.logger.Logger(ctx).Info("[Telegram] Shutting down message listener")
			return nil
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			if update.Message != nil && update.Message.Chat != nil {
				workers.dispatch(ctx, update.Message)
			}
		}
	}
}

func (t *Telegram) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	tracer := otel.Tracer("telegram/handleMessage")
	ctx, span := tracer.Start(ctx, "handleMessage")
	defer span.End()

	if message.From == nil || message.Chat == nil {
		return
	}

	chatID := message.Chat.ID
	kind := messageKind(message)
	span.SetAttributes(
		attribute.Int64("chat.id", chatID),
		attribute.String("message.type", kind),
	)
	log := t.logger.Logger(ctx).With(zap.Int64("chat_id", chatID), zap.String("message.type", kind))
	log.Info("[Telegram] Received message")

	if message.IsCommand() {
		t.handleCommand(ctx, message)
		return
	}

	req := conversation.TurnRequest{
		ConversationID: conversationID(chatID),
		Topic:          t.topic(chatID),
	}

	switch kind {
	case "voice":
		text, err := t.transcribe(ctx, message.Voice.FileID)
		if err != nil {
			span.RecordError(err)
			log.Warn("[Telegram] Could not transcribe voice note", zap.Error(err))
			t.send(ctx, chatID, modelapi.DEVICE_UNAVAILABLE_MESSAGE)
			return
		}
		req.Message = text

	case "photo":
		photo, ok := largestPhoto(message.Photo)
		if !ok {
			return
		}
		data, err := t.download(ctx, photo.FileID)
		if err != nil {
			span.RecordError(err)
			log.Warn("[Telegram] Could not download photo", zap.Error(err))
		} else {
			req.Image = base64.StdEncoding.EncodeToString(data)
		}
		req.Message = photoMessage(message.Caption)

	case "text":
		req.Message = message.Text

	default:
		return
	}

	t.runTurn(ctx, chatID, req)
}

func (t *Telegram) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	tracer := otel.Tracer("telegram/handleCommand")
	ctx, span := tracer.Start(ctx, "handleCommand")
	defer span.End()

	chatID := message.Chat.ID
	command := message.Command()
	span.SetAttributes(attribute.String("command", command))

	if command == "clear" {
		t.engine.Clear(ctx, conversationID(chatID))
		t.send(ctx, chatID, "Conversation cleared. Send a message to start again.")
		return
	}

	topic, ok := topicForCommand(command)
	if !ok {
		t.send(ctx, chatID, helpText)
		return
	}

	t.setTopic(chatID, topic)
	t.engine.Clear(ctx, conversationID(chatID))
	t.runTurn(ctx, chatID, conversation.TurnRequest{
		ConversationID: conversationID(chatID),
		Topic:          topic,
		Message:        "/" + command,
	})
}

func (t *Telegram) runTurn(ctx context.Context, chatID int64, req conversation.TurnRequest) {
	tracer := otel.Tracer("telegram/runTurn")
	ctx, span := tracer.Start(ctx, "runTurn")
	defer span.End()

	if _, err := t.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		t.logger.Logger(ctx).Debug("[Telegram] Could not send typing action", zap.Error(err))
	}

	reply, err := t.engine.Turn(ctx, req)
	if err != nil {
		span.RecordError(err)
		t.logger.Logger(ctx).Error("[Telegram] Turn failed", zap.Error(err), zap.Int64("chat_id", chatID))
		t.send(ctx, chatID, failureText(err, reply))
		return
	}

	t.send(ctx, chatID, renderReply(reply))
}

func (t *Telegram) send(ctx context.Context, chatID int64, text string) {
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		t.logger.Logger(ctx).Error("[Telegram] Failed to send response", zap.Error(err))
	}
}

func (t *Telegram) transcribe(ctx context.Context, fileID string) (string, error) {
	if t.transcriber == nil {
		return "", errors.New("voice transcription is not configured")
	}
	audio, err := t.download(ctx, fileID)
	if err != nil {
		return "", err
	}
	return t.transcriber.Transcribe(ctx, audio)
}

func (t *Telegram) download(ctx context.Context, fileID string) ([]byte, error) {
	tracer := otel.Tracer("telegram/download")
	ctx, span := tracer.Start(ctx, "download")
	defer span.End()

	url, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("could not resolve file: %w", err)
	}

	resp, err := otelhttp.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("could not download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("file.size", len(data)))
	return data, nil
}

func (t *Telegram) topic(chatID int64) conversation.Topic {
	t.mu.Lock()
	defer t.mu.Unlock()
	if topic, ok := t.topics[chatID]; ok {
		return topic
	}
	return conversation.TopicHealthAnalysis
}

func (t *Telegram) setTopic(chatID int64, topic conversation.Topic) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.topics[chatID] = topic
}
