package telegram

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// dispatcher runs one worker per chat. Messages within a chat are handled in
// arrival order; chats never wait on each other. A worker exits once its
// chat has nothing pending.
type dispatcher struct {
	handle func(context.Context, *tgbotapi.Message)

	mu      sync.Mutex
	workers map[int64]*chatWorker
	wg      sync.WaitGroup
}

type chatWorker struct {
	queue chan *tgbotapi.Message
	// guarded by dispatcher.mu
	pending int
}

func newDispatcher(handle func(context.Context, *tgbotapi.Message)) *dispatcher {
	return &dispatcher{handle: handle, workers: make(map[int64]*chatWorker)}
}

func (d *dispatcher) dispatch(ctx context.Context, m *tgbotapi.Message) {
	chatID := m.Chat.ID

	d.mu.Lock()
	w, ok := d.workers[chatID]
	if !ok {
		w = &chatWorker{queue: make(chan *tgbotapi.Message, 32)}
		d.workers[chatID] = w
		d.wg.Add(1)
		go d.work(ctx, chatID, w)
	}
	w.pending++
	d.mu.Unlock()

	select {
	case w.queue <- m:
	case <-ctx.Done():
	}
}

func (d *dispatcher) work(ctx context.Context, chatID int64, w *chatWorker) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-w.queue:
			d.handle(ctx, m)

			d.mu.Lock()
			w.pending--
			if w.pending == 0 {
				delete(d.workers, chatID)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
		}
	}
}

// wait blocks until every worker has exited.
func (d *dispatcher) wait() {
	d.wg.Wait()
}
