package summon

import (
	"sync"

	"go.uber.org/zap"

	"github.com/pthm/summon/lib/compose"
)

var (
	loggerMu sync.Mutex
	logger   = zap.NewNop()
)

// Logger returns the runtime's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	return logger
}

// SetLogger replaces the runtime's logger, including the default logger of
// compositions created without one. A nil logger restores the no-op default.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
	compose.SetLogger(l.Named("compose"))
}
