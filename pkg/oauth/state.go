package oauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStateNotFound - state неизвестен либо истек
var ErrStateNotFound = errors.New("oauth state not found or expired")

// stateTTL ограничивает окно между выдачей согласия и callback-ом
const stateTTL = 10 * time.Minute

// StateStore - хранилище CSRF-state OAuth-потока.
// State одноразовый: Consume удаляет его атомарно с чтением.
type StateStore interface {
	// Save привязывает state к арендатору
	Save(ctx context.Context, state, tenantID string) error

	// Consume возвращает арендатора и удаляет state;
	// ErrStateNotFound если state неизвестен или истек
	Consume(ctx context.Context, state string) (string, error)
}

// ========== Redis ==========

// Compile-time check
var _ StateStore = (*RedisStateStore)(nil)

// RedisStateStore - хранилище state в Redis с TTL
type RedisStateStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStateStore подключается к Redis и проверяет доступность
func NewRedisStateStore(ctx context.Context, addr, password string, db int) (*RedisStateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStateStore{client: client, prefix: "oauth:state:"}, nil
}

// Close закрывает подключение
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}

func (s *RedisStateStore) Save(ctx context.Context, state, tenantID string) error {
	if err := s.client.Set(ctx, s.prefix+state, tenantID, stateTTL).Err(); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) (string, error) {
	tenantID, err := s.client.GetDel(ctx, s.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return tenantID, nil
}

// ========== Память ==========

// Compile-time check
var _ StateStore = (*MemoryStateStore)(nil)

// MemoryStateStore - хранилище state в памяти для тестов и dev-режима
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]memoryState
}

type memoryState struct {
	tenantID  string
	expiresAt time.Time
}

// NewMemoryStateStore создает пустое хранилище
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]memoryState)}
}

func (s *MemoryStateStore) Save(ctx context.Context, state, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = memoryState{tenantID: tenantID, expiresAt: time.Now().Add(stateTTL)}
	return nil
}

func (s *MemoryStateStore) Consume(ctx context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[state]
	if !ok {
		return "", ErrStateNotFound
	}
	delete(s.states, state)
	if time.Now().After(st.expiresAt) {
		return "", ErrStateNotFound
	}
	return st.tenantID, nil
}
