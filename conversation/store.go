package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/surya-d-naidu/HealthCareBot/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type StoreConnectProps struct {
	Logger *logger.LogMiddleware
	// TTL evicts conversations idle for longer than this. Zero keeps them
	// until they are cleared.
	TTL time.Duration
	Now func() time.Time
}

// Store holds every live conversation. Turns on one conversation are
// serialized in arrival order; different conversations never wait on each
// other.
type Store struct {
	logger *logger.LogMiddleware
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	// turn is a weight-1 semaphore; its waiters are served FIFO.
	turn *semaphore.Weighted

	// guarded by Store.mu
	session  *Session
	lastUsed time.Time
	active   int
	// committed is false until a turn stores a session. Uncommitted entries
	// are invisible to readers and dropped once no turn holds them.
	committed bool
}

func NewStore(args StoreConnectProps) *Store {
	now := args.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		logger:  args.Logger,
		ttl:     args.TTL,
		now:     now,
		entries: make(map[string]*entry),
	}
}

// Lease is exclusive access to one conversation for the length of a turn.
type Lease struct {
	store    *Store
	id       string
	entry    *entry
	released bool
}

// Acquire waits for the conversation's previous turns to finish. create is
// called under the store lock when id is unseen.
func (s *Store) Acquire(ctx context.Context, id string, create func() *Session) (*Lease, error) {
	tracer := otel.Tracer("conversation/Acquire")
	ctx, span := tracer.Start(ctx, "Acquire")
	defer span.End()

	for {
		s.mu.Lock()
		e, ok := s.entries[id]
		if !ok {
			e = &entry{turn: semaphore.NewWeighted(1), session: create(), lastUsed: s.now()}
			s.entries[id] = e
		}
		e.active++
		s.mu.Unlock()

		if err := e.turn.Acquire(ctx, 1); err != nil {
			span.RecordError(err)
			s.mu.Lock()
			e.active--
			s.dropUnused(id, e)
			s.mu.Unlock()
			return nil, err
		}

		// The conversation may have been cleared while we queued.
		s.mu.Lock()
		current := s.entries[id] == e
		if !current {
			e.active--
		} else if ok && !e.committed {
			// Whoever created it failed before storing anything; start from
			// this turn's own fresh session.
			e.session = create()
		}
		s.mu.Unlock()

		if current {
			span.SetAttributes(attribute.Bool("created", !ok))
			return &Lease{store: s, id: id, entry: e}, nil
		}
		e.turn.Release(1)
		span.AddEvent("EntryReplaced")
	}
}

// Session returns the last committed state. Callers must Clone before mutating.
func (l *Lease) Session() *Session {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return l.entry.session
}

// Commit replaces the stored state with sess.
func (l *Lease) Commit(sess *Session) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.entry.session = sess
	l.entry.committed = true
	l.entry.lastUsed = l.store.now()
}

// Release hands the conversation to the next queued turn. Calling it more
// than once is a no-op.
func (l *Lease) Release() {
	if l.released {
		return
	}
	l.released = true

	l.store.mu.Lock()
	l.entry.active--
	l.entry.lastUsed = l.store.now()
	l.store.dropUnused(l.id, l.entry)
	l.store.mu.Unlock()

	l.entry.turn.Release(1)
}

// dropUnused removes e when no turn ever committed to it and none is
// waiting. Must hold s.mu.
func (s *Store) dropUnused(id string, e *entry) {
	if !e.committed && e.active == 0 && s.entries[id] == e {
		delete(s.entries, id)
	}
}

// Get returns a copy of the committed state of a conversation.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || !e.committed {
		return nil, false
	}
	return e.session.Clone(), true
}

// Delete removes a conversation. Deleting an unknown id is not an error; the
// result only reports whether something was removed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	return ok && e.committed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Evict drops conversations idle for longer than the TTL. Conversations with
// a turn running or queued are kept.
func (s *Store) Evict() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	evicted := 0
	for id, e := range s.entries {
		if e.active == 0 && e.lastUsed.Before(cutoff) {
			delete(s.entries, id)
			evicted++
		}
	}
	return evicted
}

// Run evicts idle conversations until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	if s.ttl <= 0 {
		<-ctx.Done()
		return nil
	}

	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Logger(ctx).Info("[Store] Session janitor started", zap.Duration("ttl", s.ttl))
	for {
		select {
		case <-ctx.Done():
			s.logger.Logger(ctx).Info("[Store] Session janitor stopped")
			return nil
		case <-ticker.C:
			if n := s.Evict(); n > 0 {
				s.logger.Logger(ctx).Info("[Store] Evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}
