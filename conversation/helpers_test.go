package conversation

import (
	"context"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/surya-d-naidu/HealthCareBot/logger"
	"github.com/surya-d-naidu/HealthCareBot/modelapi"
)

// fakeGateway records prompts and answers with reply.
type fakeGateway struct {
	mu      sync.Mutex
	prompts []modelapi.Prompt
	reply   func(ctx context.Context, p modelapi.Prompt) (string, error)
}

func (f *fakeGateway) record(p modelapi.Prompt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
}

func (f *fakeGateway) Prompts() []modelapi.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]modelapi.Prompt(nil), f.prompts...)
}

func (f *fakeGateway) Complete(ctx context.Context, p modelapi.Prompt) (string, error) {
	f.record(p)
	return f.reply(ctx, p)
}

// Stream yields the reply one word at a time.
func (f *fakeGateway) Stream(ctx context.Context, p modelapi.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f.record(p)
		text, err := f.reply(ctx, p)
		if err != nil {
			yield("", err)
			return
		}
		for _, word := range strings.Fields(text) {
			if !yield(word, nil) {
				return
			}
		}
	}
}

func staticReply(text string) func(context.Context, modelapi.Prompt) (string, error) {
	return func(context.Context, modelapi.Prompt) (string, error) { return text, nil }
}

func testLogger() *logger.LogMiddleware {
	return logger.Connect(logger.LoggerConnectProps{Silent: true})
}

func newTestEngine(t *testing.T, gw modelapi.Gateway, scripts Scripts) *Engine {
	t.Helper()
	log := testLogger()
	return NewEngine(EngineConnectProps{
		Logger:    log,
		Store:     NewStore(StoreConnectProps{Logger: log}),
		Gateway:   gw,
		Scripts:   scripts,
		Escalator: NewEscalator(EscalatorConnectProps{Logger: log, Delay: time.Millisecond}),
	})
}

func mustTurn(t *testing.T, e *Engine, id string, topic Topic, msg string) *Reply {
	t.Helper()
	reply, err := e.Turn(context.Background(), TurnRequest{ConversationID: id, Topic: topic, Message: msg})
	if err != nil {
		t.Fatalf("turn %q failed: %v", msg, err)
	}
	return reply
}

// completeIntake sends the opener and one answer per question, returning the
// reply of the turn that starts free chat.
func completeIntake(t *testing.T, e *Engine, id string, topic Topic, answers []string) *Reply {
	t.Helper()
	mustTurn(t, e, id, topic, "hello")
	var reply *Reply
	for _, a := range answers {
		reply = mustTurn(t, e, id, topic, a)
	}
	return reply
}
