package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/autenticador/accounts-api/internal/metrics"
	"github.com/autenticador/accounts-api/internal/models"
)

// Fixed storage keys. One session snapshot and one pending-reset marker,
// both opaque strings with no schema versioning.
const (
	userKey       = "session:current_user"
	resetEmailKey = "session:password_reset_email"
)

// Event is emitted on every auth-state change. Seq is monotonically
// increasing; consumers must let a higher Seq win over in-flight syncs.
type Event struct {
	Seq  uint64
	User *models.User
}

// Store persists the current session snapshot and the pending password-reset
// email in Redis, and fans auth-state changes out to subscribers.
type Store struct {
	rdb    redis.UniversalClient
	logger *logrus.Logger

	mu   sync.Mutex
	seq  uint64
	subs map[int]chan Event
	next int
}

func NewStore(rdb redis.UniversalClient, logger *logrus.Logger) *Store {
	return &Store{
		rdb:    rdb,
		logger: logger,
		subs:   make(map[int]chan Event),
	}
}

// SaveUser persists the session snapshot and notifies subscribers
func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}

	err = s.rdb.Set(ctx, userKey, payload, 0).Err()
	metrics.RecordRedisOperation("set", err)
	if err != nil {
		return err
	}

	s.publish(user)
	return nil
}

// LoadUser returns the stored session snapshot, or nil when there is none.
// An unparsable snapshot is treated as absent.
func (s *Store) LoadUser(ctx context.Context) (*models.User, error) {
	raw, err := s.rdb.Get(ctx, userKey).Result()
	if errors.Is(err, redis.Nil) {
		metrics.RecordRedisOperation("get", nil)
		return nil, nil
	}
	metrics.RecordRedisOperation("get", err)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.WithError(err).Warn("Discarding unparsable session snapshot")
		return nil, nil
	}

	return &user, nil
}

// ClearUser drops the session snapshot and notifies subscribers
func (s *Store) ClearUser(ctx context.Context) error {
	err := s.rdb.Del(ctx, userKey).Err()
	metrics.RecordRedisOperation("del", err)
	if err != nil {
		return err
	}

	s.publish(nil)
	return nil
}

// SetPendingResetEmail remembers which account asked for a password reset
func (s *Store) SetPendingResetEmail(ctx context.Context, email string) error {
	err := s.rdb.Set(ctx, resetEmailKey, email, 0).Err()
	metrics.RecordRedisOperation("set", err)
	return err
}

// PendingResetEmail returns the remembered reset email, empty when none
func (s *Store) PendingResetEmail(ctx context.Context) string {
	raw, err := s.rdb.Get(ctx, resetEmailKey).Result()
	if errors.Is(err, redis.Nil) {
		return ""
	}
	if err != nil {
		metrics.RecordRedisOperation("get", err)
		s.logger.WithError(err).Warn("Failed to read pending reset email")
		return ""
	}
	return raw
}

// ClearPendingResetEmail drops the reset marker. Failures are logged only.
func (s *Store) ClearPendingResetEmail(ctx context.Context) {
	err := s.rdb.Del(ctx, resetEmailKey).Err()
	metrics.RecordRedisOperation("del", err)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to clear pending reset email")
	}
}

// Subscribe registers an auth-state listener. The returned cancel func must
// be called at teardown; after it returns the channel is closed.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	ch := make(chan Event, 16)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

func (s *Store) publish(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	ev := Event{Seq: s.seq, User: user}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop the oldest queued event so the most
			// recent state always gets through
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
