package notify

import (
	"unicode/utf16"

	"msgapp/internal/domain"
)

// Notifier define la superficie de notificación del sistema: título,
// cuerpo y una clave numérica de deduplicación.
type Notifier interface {
	Notify(title, body string, dedupKey int32) error
}

type disabledNotifier struct{}

// NewDisabledNotifier devuelve un Notifier que suprime todo en silencio.
// Se usa cuando el permiso de notificación fue denegado o el entorno no
// tiene escritorio; no es un error, así que Notify no devuelve nada.
func NewDisabledNotifier() Notifier {
	return &disabledNotifier{}
}

func (n *disabledNotifier) Notify(_, _ string, _ int32) error {
	return nil
}

// MessageTitle arma el título de la notificación de mensaje nuevo.
func MessageTitle(msg domain.Message) string {
	return "Nova mensagem de " + msg.SenderName
}

// DedupKey deriva la clave numérica de deduplicación del id del mensaje,
// con la misma aritmética que un hashCode de Java: desborde de 32 bits
// sobre unidades UTF-16, pares sustitutos incluidos.
func DedupKey(id string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(id)) {
		h = 31*h + int32(u)
	}
	return h
}
