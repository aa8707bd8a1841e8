package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/surya-d-naidu/HealthCareBot/logger"
	"github.com/surya-d-naidu/HealthCareBot/modelapi"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// TurnRequest is one validated inbound user message.
type TurnRequest struct {
	ConversationID string
	Topic          Topic
	Message        string
	// Image is an optional data URL or base64 payload.
	Image string
}

// Reply is what a turn sends back to the user.
type Reply struct {
	ConversationID string
	Text           string
	Emergency      bool
	Resources      *EmergencyResources
	Escalated      bool
	Stage          ActionKind
	Timestamp      time.Time
}

type EngineConnectProps struct {
	Logger      *logger.LogMiddleware
	Store       *Store
	Gateway     modelapi.Gateway
	Scripts     Scripts
	Escalator   *Escalator
	Resources   *EmergencyResources
	CallTimeout time.Duration
	Now         func() time.Time
}

// Engine runs turns. Each turn works on a copy of the session that is only
// stored once the whole turn has succeeded.
type Engine struct {
	logger      *logger.LogMiddleware
	store       *Store
	gateway     modelapi.Gateway
	machine     *Machine
	interpreter *Interpreter
	escalator   *Escalator
	callTimeout time.Duration
	now         func() time.Time
}

func NewEngine(args EngineConnectProps) *Engine {
	scripts := args.Scripts
	if scripts == nil {
		scripts = DefaultScripts()
	}
	resources := DefaultResources
	if args.Resources != nil {
		resources = *args.Resources
	}
	escalator := args.Escalator
	if escalator == nil {
		escalator = NewEscalator(EscalatorConnectProps{Logger: args.Logger, Delay: 2 * time.Second})
	}
	now := args.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		logger:      args.Logger,
		store:       args.Store,
		gateway:     args.Gateway,
		machine:     NewMachine(scripts),
		interpreter: NewInterpreter(resources),
		escalator:   escalator,
		callTimeout: args.CallTimeout,
		now:         now,
	}
}

func (e *Engine) Scripts() Scripts {
	return e.machine.Scripts()
}

// Turn processes one message and returns the full reply.
func (e *Engine) Turn(ctx context.Context, req TurnRequest) (*Reply, error) {
	tracer := otel.Tracer("conversation/Turn")
	ctx, span := tracer.Start(ctx, "Turn")
	defer span.End()

	reply, err := e.turn(ctx, req, nil)
	if err != nil {
		span.RecordError(err)
	}
	return reply, err
}

// TurnStream is Turn with the model output relayed chunk by chunk through
// onChunk. Replies that do not come from the model are relayed as a single
// chunk. An error from onChunk aborts the turn without storing it.
func (e *Engine) TurnStream(ctx context.Context, req TurnRequest, onChunk func(string) error) (*Reply, error) {
	tracer := otel.Tracer("conversation/TurnStream")
	ctx, span := tracer.Start(ctx, "TurnStream")
	defer span.End()

	reply, err := e.turn(ctx, req, onChunk)
	if err != nil {
		span.RecordError(err)
	}
	return reply, err
}

// Clear forgets a conversation. Unknown ids are fine.
func (e *Engine) Clear(ctx context.Context, id string) {
	tracer := otel.Tracer("conversation/Clear")
	ctx, span := tracer.Start(ctx, "Clear")
	defer span.End()

	removed := e.store.Delete(id)
	span.SetAttributes(attribute.Bool("removed", removed))
	e.logger.Logger(ctx).Info("[Engine] Conversation cleared", zap.String("conversationId", id), zap.Bool("removed", removed))
}

// Snapshot returns a copy of the stored session.
func (e *Engine) Snapshot(id string) (*Session, bool) {
	return e.store.Get(id)
}

func (e *Engine) turn(ctx context.Context, req TurnRequest, onChunk func(string) error) (*Reply, error) {
	if req.ConversationID == "" {
		return nil, ErrMissingID
	}
	if !req.Topic.Valid() {
		return nil, fmt.Errorf("%w: unknown topic %q", ErrInvalidInput, req.Topic)
	}
	msg := norm.NFC.String(strings.TrimSpace(req.Message))
	if msg == "" {
		return nil, ErrEmptyMessage
	}

	log := e.logger.Logger(ctx).With(
		zap.String("conversationId", req.ConversationID),
		zap.String("topic", string(req.Topic)),
	)

	var image *modelapi.Image
	if req.Image != "" {
		img, err := DecodeImage(req.Image)
		if err != nil {
			log.Warn("[Engine] Dropping undecodable image", zap.Error(err))
		} else {
			image = img
		}
	}

	lease, err := e.store.Acquire(ctx, req.ConversationID, func() *Session {
		return e.machine.NewSession(req.ConversationID, req.Topic, e.now())
	})
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	current := lease.Session()
	if current.Topic != req.Topic {
		return nil, ErrTopicMismatch
	}

	sess := current.Clone()
	action, ok := e.machine.Advance(sess, msg)
	if !ok {
		return nil, ErrEmptyMessage
	}
	log.Debug("[Engine] Session advanced",
		zap.Stringer("action", action.Kind),
		zap.Int("questionIndex", sess.QuestionIndex),
		zap.Int("message.length", len(msg)))

	reply := &Reply{ConversationID: req.ConversationID, Stage: action.Kind}

	switch action.Kind {
	case ActionAskNext:
		reply.Text = action.Question
		if err := relay(onChunk, reply.Text); err != nil {
			return nil, err
		}

	case ActionEmergencyEscalate:
		text, err := e.escalator.Escalate(ctx)
		if err != nil && !errors.Is(err, ErrMediaAccess) {
			return nil, err
		}
		reply.Text = text
		reply.Escalated = err == nil
		if err := relay(onChunk, reply.Text); err != nil {
			return nil, err
		}
		e.interpreter.Record(sess, msg, reply.Text)

	default:
		prompt := BuildPrompt(sess, msg, action, image)
		raw, err := e.complete(ctx, prompt, onChunk)
		if errors.Is(err, ErrRelayAborted) {
			log.Info("[Engine] Reply relay aborted, session left unchanged", zap.Error(err))
			return nil, err
		}
		if err == nil && strings.TrimSpace(raw) == "" {
			err = errors.New("empty completion")
		}
		if err != nil {
			log.Error("[Engine] Completion failed, session left unchanged", zap.Error(err))
			return &Reply{
				ConversationID: req.ConversationID,
				Text:           modelapi.APOLOGY_MESSAGE,
				Stage:          action.Kind,
				Timestamp:      e.now(),
			}, fmt.Errorf("%w: %w", ErrGatewayFailure, err)
		}

		result := e.interpreter.Apply(sess, msg, raw, action)
		reply.Text = result.Text
		reply.Emergency = result.Emergency
		reply.Resources = result.Resources
		if result.Emergency {
			log.Warn("[Engine] Emergency flagged for conversation")
		}
	}

	sess.UpdatedAt = e.now()
	lease.Commit(sess)

	reply.Timestamp = sess.UpdatedAt
	return reply, nil
}

// complete calls the gateway, streaming when onChunk is set.
func (e *Engine) complete(ctx context.Context, prompt modelapi.Prompt, onChunk func(string) error) (string, error) {
	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	if onChunk == nil {
		return e.gateway.Complete(ctx, prompt)
	}

	var chunks []string
	for chunk, err := range e.gateway.Stream(ctx, prompt) {
		if err != nil {
			return "", err
		}
		if chunk == "" {
			continue
		}
		if err := onChunk(chunk); err != nil {
			return "", fmt.Errorf("%w: %w", ErrRelayAborted, err)
		}
		chunks = append(chunks, chunk)
	}
	return Fold(chunks), nil
}

func relay(onChunk func(string) error, text string) error {
	if onChunk == nil {
		return nil
	}
	if err := onChunk(text); err != nil {
		return fmt.Errorf("%w: %w", ErrRelayAborted, err)
	}
	return nil
}
