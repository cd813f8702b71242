// lockout отслеживает неудачные попытки входа и определяет блокировку
// по скользящему окну: идентичность заблокирована, пока число неудач
// внутри окна достигает порога.
//
// Трекер — советующий компонент: сам он никогда не возвращает ошибок;
// преобразование Locked==true в пользовательскую ошибку — ответственность
// сервисного слоя.
package lockout

import (
	"sync"
	"time"
)

// Config — порог и окно блокировки.
type Config struct {
	// MaxFailedAttempts — число неудач в окне, после которого наступает блокировка.
	MaxFailedAttempts int
	// Window — длительность скользящего окна.
	Window time.Duration
}

// Значения по умолчанию: 5 неудач за 15 минут.
const (
	defaultMaxFailedAttempts = 5
	defaultWindow            = 15 * time.Minute
)

// Tracker хранит таймстемпы неудач по идентичности (обычно username).
//
// Все операции над одной идентичностью линеаризуемы: очистка окна, подсчёт
// и добавление выполняются под одним мьютексом, чтобы две конкурентные неудачи
// не могли обе увидеть счётчик ниже порога и пропустить переход в LOCKED.
type Tracker struct {
	mu       sync.Mutex
	cfg      Config
	failures map[string][]time.Time

	now func() time.Time // переопределяется в тестах
}

// New создаёт трекер. Неположительные значения конфигурации заменяются дефолтами.
func New(cfg Config) *Tracker {
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = defaultMaxFailedAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}

	return &Tracker{
		cfg:      cfg,
		failures: make(map[string][]time.Time),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Fail фиксирует неудачную попытку входа для идентичности.
func (t *Tracker) Fail(identity string) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.prune(identity, now)
	t.failures[identity] = append(kept, now)
}

// Reset полностью очищает историю неудач идентичности (успешный вход).
func (t *Tracker) Reset(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.failures, identity)
}

// Locked возвращает true, если число неудач внутри окна достигло порога.
// Устаревшие записи вычищаются лениво при каждом вызове.
func (t *Tracker) Locked(identity string) bool {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.prune(identity, now)
	if len(kept) == 0 {
		delete(t.failures, identity)
		return false
	}

	t.failures[identity] = kept

	return len(kept) >= t.cfg.MaxFailedAttempts
}

// RetryAfter возвращает время до разблокировки (0, если идентичность не заблокирована).
// Блокировка снимается, когда старейшая запись окна выйдет за его границу.
func (t *Tracker) RetryAfter(identity string) time.Duration {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.prune(identity, now)
	if len(kept) < t.cfg.MaxFailedAttempts {
		return 0
	}

	t.failures[identity] = kept

	retry := kept[0].Add(t.cfg.Window).Sub(now)
	if retry < 0 {
		retry = 0
	}

	return retry
}

// Sweep удаляет идентичности, у которых не осталось записей внутри окна.
// Вызывается периодически из фоновой задачи, чтобы карта не росла бесконечно.
func (t *Tracker) Sweep() {
	now := t.now()
	threshold := now.Add(-t.cfg.Window)

	t.mu.Lock()
	defer t.mu.Unlock()

	for identity, hits := range t.failures {
		if len(hits) == 0 || !hits[len(hits)-1].After(threshold) {
			delete(t.failures, identity)
		}
	}
}

// prune возвращает записи идентичности, оставшиеся внутри окна.
// Вызывается строго под t.mu.
func (t *Tracker) prune(identity string, now time.Time) []time.Time {
	threshold := now.Add(-t.cfg.Window)

	hits := t.failures[identity]
	kept := make([]time.Time, 0, len(hits))
	for _, hit := range hits {
		if hit.After(threshold) {
			kept = append(kept, hit)
		}
	}

	return kept
}
