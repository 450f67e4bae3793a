package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/flybeeper/efb-backend/internal/metrics"
	"github.com/flybeeper/efb-backend/pkg/utils"
)

var (
	// ErrUnknownEnumValue значение отсутствует в таблице перечисления, запись пропускается
	ErrUnknownEnumValue = errors.New("unknown enum value")

	// ErrNotNumeric значение не начинается с целого числа, запись пропускается
	ErrNotNumeric = errors.New("value is not numeric")
)

// SimVarWriter запись переменной симулятора
type SimVarWriter interface {
	SetSimVarValue(ctx context.Context, name, unit string, value float64) error
}

// Resolve переводит сохраненное значение в значение переменной симулятора
func Resolve(e Entry, value string) (float64, error) {
	if e.IsEnum() {
		v, ok := e.Enum[value]
		if !ok {
			return 0, fmt.Errorf("%w %q for %s", ErrUnknownEnumValue, value, e.Key)
		}
		return v, nil
	}

	n, ok := utils.ParseIntPrefix(value)
	if !ok {
		return 0, fmt.Errorf("%w: %q for %s", ErrNotNumeric, value, e.Key)
	}
	return float64(n), nil
}

// Handle активная синхронизация, Close снимает все подписки
type Handle struct {
	mu           sync.Mutex
	unsubscribes []func()
	closed       bool
}

// Subscribed синхронизация активна
func (h *Handle) Subscribed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

// Close снимает подписки, повторный вызов ничего не делает
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, unsubscribe := range h.unsubscribes {
		unsubscribe()
	}
	metrics.SettingsSyncSubscriptions.Sub(float64(len(h.unsubscribes)))
	h.unsubscribes = nil
}

// Sync подписывает каждую запись таблицы на изменения настройки и
// записывает значение в переменную симулятора при чтении и при каждом изменении.
// Ошибки подписки отдельных записей не мешают остальным и возвращаются вместе.
func Sync(ctx context.Context, store Subscriber, writer SimVarWriter, table []Entry, logger *utils.Logger) (*Handle, error) {
	if store == nil {
		return nil, fmt.Errorf("settings store cannot be nil")
	}
	if writer == nil {
		return nil, fmt.Errorf("simvar writer cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	logger = logger.WithField("component", "settings_sync")
	handle := &Handle{}
	var errs []error

	for _, entry := range table {
		entry := entry
		unsubscribe, err := store.GetAndSubscribe(ctx, entry.Key, func(_, value string) {
			propagate(ctx, writer, entry, value, logger)
		}, entry.Default)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"setting": entry.Key,
				"error":   err.Error(),
			}).Error("Failed to subscribe to setting")
			errs = append(errs, fmt.Errorf("subscribe %s: %w", entry.Key, err))
			continue
		}
		handle.unsubscribes = append(handle.unsubscribes, unsubscribe)
	}

	metrics.SettingsSyncSubscriptions.Add(float64(len(handle.unsubscribes)))
	logger.WithField("subscriptions", len(handle.unsubscribes)).Info("Settings sync started")

	return handle, errors.Join(errs...)
}

func propagate(ctx context.Context, writer SimVarWriter, entry Entry, value string, logger *utils.Logger) {
	fields := map[string]interface{}{
		"setting": entry.Key,
		"simvar":  entry.SimVar,
		"value":   value,
	}

	simValue, err := Resolve(entry, value)
	if err != nil {
		metrics.SettingsSyncWrites.WithLabelValues("skipped").Inc()
		logger.WithFields(fields).WithError(err).Debug("Setting value skipped")
		return
	}

	if err := writer.SetSimVarValue(ctx, entry.SimVar, entry.Unit, simValue); err != nil {
		metrics.SettingsSyncWrites.WithLabelValues("error").Inc()
		logger.WithFields(fields).WithError(err).Error("Failed to write setting to simulator")
		return
	}

	metrics.SettingsSyncWrites.WithLabelValues("success").Inc()
	logger.WithFields(fields).Debug("Setting written to simulator")
}
