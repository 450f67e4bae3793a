package settings

import (
	"context"
	"sync"
)

// Subscriber читает настройку и подписывается на ее изменения.
// Обработчик вызывается сразу с текущим значением (или значением по умолчанию)
// и затем при каждом изменении.
type Subscriber interface {
	GetAndSubscribe(ctx context.Context, key string, h Handler, defaultValue string) (func(), error)
}

// Store постоянное хранилище настроек
type Store interface {
	Subscriber
	Get(ctx context.Context, key, defaultValue string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// MemoryStore хранилище настроек в памяти
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[string]string
	registry *Registry
}

// NewMemoryStore создает хранилище с начальными значениями
func NewMemoryStore(initial map[string]string) *MemoryStore {
	values := make(map[string]string, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &MemoryStore{
		values:   values,
		registry: NewRegistry(),
	}
}

// Get возвращает значение или значение по умолчанию
func (s *MemoryStore) Get(_ context.Context, key, defaultValue string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return defaultValue, nil
}

// Set сохраняет значение и уведомляет подписчиков
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	s.registry.Notify(key, value)
	return nil
}

// All возвращает копию всех сохраненных значений
func (s *MemoryStore) All(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

// GetAndSubscribe вызывает обработчик с текущим значением и подписывает его на изменения
func (s *MemoryStore) GetAndSubscribe(ctx context.Context, key string, h Handler, defaultValue string) (func(), error) {
	unsubscribe := s.registry.Subscribe(key, h)

	value, err := s.Get(ctx, key, defaultValue)
	if err != nil {
		unsubscribe()
		return nil, err
	}
	h(key, value)

	return unsubscribe, nil
}
