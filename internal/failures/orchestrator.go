package failures

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flybeeper/efb-backend/internal/metrics"
	"github.com/flybeeper/efb-backend/internal/models"
	"github.com/flybeeper/efb-backend/internal/settings"
	"github.com/flybeeper/efb-backend/pkg/utils"
)

// Переменные симулятора, через которые система отказов принимает команды.
// Симулятор сбрасывает переменную в 0, когда команда обработана.
const (
	ActivateVar   = "L:A32NX_FAILURE_ACTIVATE"
	DeactivateVar = "L:A32NX_FAILURE_DEACTIVATE"
)

var (
	// ErrUnknownFailure отказа нет в каталоге
	ErrUnknownFailure = errors.New("unknown failure")

	// ErrChangeInProgress по отказу уже ждем подтверждения
	ErrChangeInProgress = errors.New("failure change in progress")
)

// Action направление переключения
type Action string

const (
	ActionActivate   Action = "activate"
	ActionDeactivate Action = "deactivate"
)

// Snapshot состояние отказов для клиентов
type Snapshot struct {
	Active   []int `json:"active"`
	Changing []int `json:"changing"`
}

// Listener получает снимок после каждого изменения
type Listener func(Snapshot)

// DefaultAckTimeout сколько ждем сброса переменной после команды
const DefaultAckTimeout = 10 * time.Second

// Orchestrator хранит активные отказы и отправляет команды симулятору.
// Переменная команды хранит одно значение, поэтому по каждому направлению
// в симулятор отправлена не более чем одна неподтвержденная команда.
type Orchestrator struct {
	catalog    *Catalog
	writer     settings.SimVarWriter
	logger     *utils.Logger
	ackTimeout time.Duration

	mu       sync.Mutex
	active   map[int]struct{}
	changing map[int]Action
	// очереди команд, голова отправлена и ждет сброса переменной
	queues map[Action][]int
	// отправленная команда по направлению, 0 если нет
	inflight map[Action]int
	timers   map[Action]*time.Timer

	listeners map[int]Listener
	nextID    int
}

// NewOrchestrator создает оркестратор поверх каталога
func NewOrchestrator(catalog *Catalog, writer settings.SimVarWriter, logger *utils.Logger) (*Orchestrator, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	if writer == nil {
		return nil, fmt.Errorf("simvar writer cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Orchestrator{
		catalog:    catalog,
		writer:     writer,
		logger:     logger.WithField("component", "failures"),
		ackTimeout: DefaultAckTimeout,
		active:     make(map[int]struct{}),
		changing:   make(map[int]Action),
		queues:     make(map[Action][]int),
		inflight:   make(map[Action]int),
		timers:     make(map[Action]*time.Timer),
		listeners:  make(map[int]Listener),
	}, nil
}

// SetAckTimeout задает таймаут подтверждения команды
func (o *Orchestrator) SetAckTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultAckTimeout
	}
	o.mu.Lock()
	o.ackTimeout = d
	o.mu.Unlock()
}

// Catalog каталог отказов
func (o *Orchestrator) Catalog() *Catalog {
	return o.catalog
}

// Toggle активирует неактивный отказ и деактивирует активный.
// Если по направлению уже ждем подтверждения, команда встает в очередь
// и уходит в симулятор после сброса переменной.
func (o *Orchestrator) Toggle(ctx context.Context, id int) (Action, error) {
	if _, ok := o.catalog.Get(id); !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownFailure, id)
	}

	o.mu.Lock()
	if _, busy := o.changing[id]; busy {
		o.mu.Unlock()
		return "", fmt.Errorf("%w: %d", ErrChangeInProgress, id)
	}
	action := ActionActivate
	if _, isActive := o.active[id]; isActive {
		action = ActionDeactivate
	}
	o.changing[id] = action
	o.queues[action] = append(o.queues[action], id)
	snapshot, listeners := o.snapshotLocked(), o.listenersLocked()
	o.mu.Unlock()

	notify(listeners, snapshot)

	if err := o.dispatch(ctx, action, id); err != nil {
		return action, err
	}
	return action, nil
}

// dispatch отправляет голову очереди, если по направлению нет неподтвержденной команды.
// Возвращает ошибку, только если не удалось отправить команду owner.
func (o *Orchestrator) dispatch(ctx context.Context, action Action, owner int) error {
	var ownerErr error
	for {
		o.mu.Lock()
		queue := o.queues[action]
		if len(queue) == 0 || o.inflight[action] != 0 {
			o.mu.Unlock()
			return ownerErr
		}
		id := queue[0]
		o.inflight[action] = id
		o.mu.Unlock()

		err := o.writer.SetSimVarValue(ctx, varFor(action), settings.UnitNumber, float64(id))
		if err == nil {
			metrics.FailureToggles.WithLabelValues(string(action), "sent").Inc()
			o.logger.WithField("failure", id).WithField("action", action).Info("Failure command sent")

			o.mu.Lock()
			if o.inflight[action] == id {
				o.timers[action] = time.AfterFunc(o.ackTimeout, func() {
					o.expire(action, id)
				})
			}
			o.mu.Unlock()
			return ownerErr
		}

		metrics.FailureToggles.WithLabelValues(string(action), "error").Inc()
		o.logger.WithFields(map[string]interface{}{
			"failure": id,
			"action":  action,
			"error":   err,
		}).Error("Failed to send failure command")

		o.mu.Lock()
		o.dropLocked(action, id)
		snapshot, listeners := o.snapshotLocked(), o.listenersLocked()
		o.mu.Unlock()

		notify(listeners, snapshot)
		if id == owner {
			ownerErr = fmt.Errorf("failed to %s failure %d: %w", action, id, err)
		}
	}
}

// expire откатывает команду, которую симулятор не подтвердил вовремя
func (o *Orchestrator) expire(action Action, id int) {
	o.mu.Lock()
	if o.inflight[action] != id {
		o.mu.Unlock()
		return
	}
	o.dropLocked(action, id)
	snapshot, listeners := o.snapshotLocked(), o.listenersLocked()
	timeout := o.ackTimeout
	o.mu.Unlock()

	metrics.FailureToggles.WithLabelValues(string(action), "timeout").Inc()
	o.logger.WithFields(map[string]interface{}{
		"failure": id,
		"action":  action,
		"timeout": timeout,
	}).Warn("Failure command not acknowledged")
	notify(listeners, snapshot)

	o.dispatchNext(action)
}

// dispatchNext отправляет следующую команду очереди вне контекста запроса
func (o *Orchestrator) dispatchNext(action Action) {
	o.mu.Lock()
	timeout := o.ackTimeout
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = o.dispatch(ctx, action, 0)
}

// dropLocked убирает команду из очереди без изменения активных отказов
func (o *Orchestrator) dropLocked(action Action, id int) {
	o.queues[action] = removeID(o.queues[action], id)
	delete(o.changing, id)
	if o.inflight[action] == id {
		o.inflight[action] = 0
		if t := o.timers[action]; t != nil {
			t.Stop()
			delete(o.timers, action)
		}
	}
}

// HandleValue обрабатывает значение переменной, опубликованное мостом.
// Сброс переменной в 0 подтверждает отправленную команду соответствующего направления.
func (o *Orchestrator) HandleValue(name string, value float64) {
	var action Action
	switch name {
	case ActivateVar:
		action = ActionActivate
	case DeactivateVar:
		action = ActionDeactivate
	default:
		return
	}
	if value != 0 {
		return
	}

	o.mu.Lock()
	id := o.inflight[action]
	if id == 0 {
		o.mu.Unlock()
		return
	}
	o.dropLocked(action, id)
	if action == ActionActivate {
		o.active[id] = struct{}{}
	} else {
		delete(o.active, id)
	}
	metrics.ActiveFailures.Set(float64(len(o.active)))
	snapshot, listeners := o.snapshotLocked(), o.listenersLocked()
	pending := len(o.queues[action]) > 0
	o.mu.Unlock()

	metrics.FailureToggles.WithLabelValues(string(action), "acknowledged").Inc()
	o.logger.WithField("failure", id).WithField("action", action).Debug("Failure change acknowledged")
	notify(listeners, snapshot)

	// запись в мост нельзя ждать из обработчика его же сообщений
	if pending {
		go o.dispatchNext(action)
	}
}

// IsActive активен ли отказ
func (o *Orchestrator) IsActive(id int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[id]
	return ok
}

// IsChanging ждет ли отказ подтверждения
func (o *Orchestrator) IsChanging(id int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.changing[id]
	return ok
}

// Snapshot текущее состояние
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Subscribe подписывает слушателя, возвращает функцию отписки
func (o *Orchestrator) Subscribe(l Listener) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = l
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

// View отказ главы с его состоянием для отображения
type View struct {
	models.Failure
	Active      bool   `json:"active"`
	Changing    bool   `json:"changing"`
	Highlighted string `json:"highlighted,omitempty"`
}

// ChapterView отказы главы с подсветкой совпадений поискового запроса
func (o *Orchestrator) ChapterView(chapter models.AtaChapter, query string) []View {
	failures := o.catalog.ByChapter(chapter)

	o.mu.Lock()
	defer o.mu.Unlock()

	views := make([]View, 0, len(failures))
	for _, f := range failures {
		_, active := o.active[f.Identifier]
		_, changing := o.changing[f.Identifier]
		views = append(views, View{
			Failure:     f,
			Active:      active,
			Changing:    changing,
			Highlighted: HighlightedTerm(f.Name, query),
		})
	}
	return views
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	s := Snapshot{
		Active:   make([]int, 0, len(o.active)),
		Changing: make([]int, 0, len(o.changing)),
	}
	for id := range o.active {
		s.Active = append(s.Active, id)
	}
	for id := range o.changing {
		s.Changing = append(s.Changing, id)
	}
	sort.Ints(s.Active)
	sort.Ints(s.Changing)
	return s
}

func (o *Orchestrator) listenersLocked() []Listener {
	out := make([]Listener, 0, len(o.listeners))
	for _, l := range o.listeners {
		out = append(out, l)
	}
	return out
}

func notify(listeners []Listener, s Snapshot) {
	for _, l := range listeners {
		l(s)
	}
}

func varFor(action Action) string {
	if action == ActionDeactivate {
		return DeactivateVar
	}
	return ActivateVar
}

func removeID(ids []int, id int) []int {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
