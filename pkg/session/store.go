package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidKey is returned when a conversation key is empty or blank.
var ErrInvalidKey = errors.New("invalid conversation key")

// Session is the state of one conversation. All fields are guarded by
// the session mutex so operations on different keys never block each
// other.
type Session struct {
	mu sync.Mutex

	key          string
	turns        []Turn
	requestCount int
	windowStart  time.Time
	lastActivity time.Time
	handoff      bool
}

// Key returns the conversation key.
func (s *Session) Key() string {
	return s.key
}

// AwaitingHandoff reports whether the conversation was handed to a
// human and automated replies are suppressed.
func (s *Session) AwaitingHandoff() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handoff
}

// Store manages sessions keyed by conversation key.
// Store is safe for concurrent use.
type Store struct {
	cfg Config
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects the time source. Tests use this to control window
// resets and eviction deterministically.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a session store with the given limits.
func New(cfg Config, opts ...Option) *Store {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultConfig().HistoryLimit
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultConfig().MaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultConfig().IdleTTL
	}

	s := &Store{
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validKey(key string) bool {
	return strings.TrimSpace(key) != ""
}

// GetOrCreate returns the session for key, creating an empty one on
// first use. Creation also sweeps idle sessions so long-running
// processes reclaim memory even without the periodic sweep.
func (s *Store) GetOrCreate(key string) (*Session, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}

	s.mu.RLock()
	sess, ok := s.sessions[key]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictIdleLocked(now)

	if sess, ok := s.sessions[key]; ok {
		return sess, nil
	}
	sess = &Session{
		key:          key,
		windowStart:  now,
		lastActivity: now,
	}
	s.sessions[key] = sess
	return sess, nil
}

// AppendTurn records a turn for key, truncating from the oldest end
// when the history limit is exceeded.
func (s *Store) AppendTurn(key string, role Role, content string) error {
	sess, err := s.GetOrCreate(key)
	if err != nil {
		return err
	}

	now := s.now()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.turns = append(sess.turns, Turn{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	if n := len(sess.turns); n > s.cfg.HistoryLimit {
		sess.turns = sess.turns[n-s.cfg.HistoryLimit:]
	}
	sess.lastActivity = now
	return nil
}

// History returns a copy of the retained turns for key, oldest first.
func (s *Store) History(key string) ([]Turn, error) {
	sess, err := s.GetOrCreate(key)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return append([]Turn(nil), sess.turns...), nil
}

// CheckAndIncrementQuota reports whether another request is allowed
// for key within the current window. The window resets once its
// duration has elapsed. A rejected request does not mutate state, so
// the counter never grows past the limit.
func (s *Store) CheckAndIncrementQuota(key string) (bool, error) {
	sess, err := s.GetOrCreate(key)
	if err != nil {
		return false, err
	}

	now := s.now()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if now.After(sess.windowStart.Add(s.cfg.Window)) {
		sess.windowStart = now
		sess.requestCount = 0
	}
	if sess.requestCount >= s.cfg.MaxRequests {
		return false, nil
	}
	sess.requestCount++
	sess.lastActivity = now
	return true, nil
}

// MarkHandoff flags the conversation as awaiting a human.
func (s *Store) MarkHandoff(key string) error {
	sess, err := s.GetOrCreate(key)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.handoff = true
	sess.lastActivity = s.now()
	return nil
}

// Reset drops the session for key, discarding its history and quota
// state.
func (s *Store) Reset(key string) {
	if !validKey(key) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// EvictIdle removes sessions whose last activity is older than the
// idle TTL relative to now. It returns the number of evicted sessions.
func (s *Store) EvictIdle(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictIdleLocked(now)
}

func (s *Store) evictIdleLocked(now time.Time) int {
	evicted := 0
	for key, sess := range s.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.lastActivity) > s.cfg.IdleTTL
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
