package orchestrator

import (
	"sync"
	"time"
)

// KillSwitch аварийная остановка движка.
// Остановленный движок отклоняет новые прогоны до ручного возобновления.
type KillSwitch struct {
	mu        sync.RWMutex
	stopped   bool
	stoppedAt time.Time
	reason    string
}

// NewKillSwitch создает новый kill switch
func NewKillSwitch() *KillSwitch {
	return &KillSwitch{}
}

// Stop останавливает движок
func (ks *KillSwitch) Stop(reason string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.stopped = true
	ks.stoppedAt = time.Now()
	ks.reason = reason
}

// Resume возобновляет работу движка (требует ручного вмешательства)
func (ks *KillSwitch) Resume() {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.stopped = false
	ks.reason = ""
}

// IsStopped проверяет, остановлен ли движок
func (ks *KillSwitch) IsStopped() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	return ks.stopped
}

// Status возвращает состояние kill switch
func (ks *KillSwitch) Status() (bool, string, time.Time) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	return ks.stopped, ks.reason, ks.stoppedAt
}
