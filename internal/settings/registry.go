package settings

import "sync"

// Handler вызывается при чтении и при каждом изменении настройки
type Handler func(key, value string)

// Registry реестр наблюдателей: имя настройки -> обработчики
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]map[int]Handler
	nextID   int
}

// NewRegistry создает пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]map[int]Handler),
	}
}

// Subscribe добавляет обработчик для настройки, возвращает функцию отписки
func (r *Registry) Subscribe(key string, h Handler) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	if r.handlers[key] == nil {
		r.handlers[key] = make(map[int]Handler)
	}
	r.handlers[key][id] = h
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.handlers[key], id)
			if len(r.handlers[key]) == 0 {
				delete(r.handlers, key)
			}
		})
	}
}

// Notify вызывает обработчики настройки вне блокировки
func (r *Registry) Notify(key, value string) {
	r.mu.RLock()
	handlers := make([]Handler, 0, len(r.handlers[key]))
	for _, h := range r.handlers[key] {
		handlers = append(handlers, h)
	}
	r.mu.RUnlock()

	for _, h := range handlers {
		h(key, value)
	}
}

// Len количество зарегистрированных обработчиков
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, hs := range r.handlers {
		n += len(hs)
	}
	return n
}
