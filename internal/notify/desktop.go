package notify

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// DesktopNotifier renderiza notificaciones nativas del sistema.
type DesktopNotifier struct {
	logger *zap.Logger
}

func NewDesktopNotifier(logger *zap.Logger) *DesktopNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DesktopNotifier{logger: logger}
}

func (n *DesktopNotifier) Notify(title, body string, dedupKey int32) error {
	// beeep no expone clave de deduplicación; queda registrada para
	// poder correlacionar notificaciones en los logs.
	n.logger.Debug("desktop notification",
		zap.String("title", title),
		zap.Int32("dedup_key", dedupKey),
	)
	return beeep.Notify(title, body, "")
}
