package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func chatMessage(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
}

func TestDispatcherKeepsChatOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	d := newDispatcher(func(ctx context.Context, m *tgbotapi.Message) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		got = append(got, m.Text)
		mu.Unlock()
	})

	ctx := context.Background()
	want := []string{"1", "2", "3", "4", "5"}
	for _, text := range want {
		d.dispatch(ctx, chatMessage(1, text))
	}
	d.wait()

	if len(got) != len(want) {
		t.Fatalf("handled %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("handled out of order: %v", got)
		}
	}
	if len(d.workers) != 0 {
		t.Errorf("%d idle workers left running", len(d.workers))
	}
}

func TestDispatcherChatsDoNotBlockEachOther(t *testing.T) {
	release := make(chan struct{})
	handled := make(chan int64, 2)
	d := newDispatcher(func(ctx context.Context, m *tgbotapi.Message) {
		if m.Chat.ID == 1 {
			<-release
		}
		handled <- m.Chat.ID
	})

	ctx := context.Background()
	d.dispatch(ctx, chatMessage(1, "slow"))
	d.dispatch(ctx, chatMessage(2, "fast"))

	select {
	case id := <-handled:
		if id != 2 {
			t.Errorf("chat %d finished first", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("a slow chat held up another chat")
	}

	close(release)
	d.wait()
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	d := newDispatcher(func(ctx context.Context, m *tgbotapi.Message) {
		<-block
	})

	d.dispatch(ctx, chatMessage(1, "a"))
	cancel()
	close(block)

	done := make(chan struct{})
	go func() {
		d.wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after cancellation")
	}
}
