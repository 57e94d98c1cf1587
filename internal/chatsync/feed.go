package chatsync

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"msgapp/internal/domain"
	"msgapp/internal/notify"
	"msgapp/internal/store"
)

const messagesPathPrefix = "messages/"

// Feed mantiene el espejo local de los mensajes de la sala activa y
// decide si un mensaje entrante amerita notificación local. Una sola
// sala a la vez: cambiar de sala desarma la suscripción anterior antes
// de instalar la nueva, para que un callback tardío de la sala vieja no
// mute el estado de la nueva.
type Feed struct {
	store    store.Store
	notifier notify.Notifier
	logger   *zap.Logger
	userID   string

	mu             sync.Mutex
	roomID         string
	messages       []domain.Message
	lastNotifiedID string
	sub            *store.Subscription
	epoch          int

	updates chan []domain.Message
}

func NewFeed(st store.Store, notifier notify.Notifier, userID string, logger *zap.Logger) *Feed {
	if notifier == nil {
		notifier = notify.NewDisabledNotifier()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		store:    st,
		notifier: notifier,
		logger:   logger,
		userID:   userID,
		updates:  make(chan []domain.Message, 1),
	}
}

// SwitchRoom desarma la suscripción previa, limpia el estado local y el
// cursor de deduplicación, y registra el listener de la sala nueva.
func (f *Feed) SwitchRoom(ctx context.Context, roomID string) error {
	f.mu.Lock()
	if f.sub != nil {
		f.sub.Close()
		f.sub = nil
	}
	f.epoch++
	epoch := f.epoch
	f.roomID = roomID
	f.messages = nil
	f.lastNotifiedID = ""
	publishLatest(f.updates, nil)
	f.mu.Unlock()

	sub, err := f.store.Subscribe(ctx, messagesPathPrefix+roomID)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if epoch != f.epoch {
		// otro SwitchRoom o Leave ganó la carrera
		f.mu.Unlock()
		sub.Close()
		return nil
	}
	f.sub = sub
	f.mu.Unlock()

	go func() {
		for snap := range sub.C {
			f.apply(epoch, snap)
		}
	}()
	return nil
}

// apply reconstruye la secuencia completa desde el snapshot y evalúa la
// notificación sobre el mensaje más nuevo. Snapshots de una suscripción
// ya reemplazada se descartan por época. La verificación de época, la
// notificación y la publicación ocurren bajo el mismo lock: después de
// que SwitchRoom o Leave retornan, la sala anterior no publica nada.
func (f *Feed) apply(epoch int, snap store.Snapshot) {
	msgs := buildMessages(snap)

	f.mu.Lock()
	defer f.mu.Unlock()
	if epoch != f.epoch {
		return
	}
	grew := len(msgs) > len(f.messages)
	f.messages = msgs

	if grew {
		last := msgs[len(msgs)-1]
		if last.SenderID != f.userID && last.ID != f.lastNotifiedID {
			f.lastNotifiedID = last.ID
			err := f.notifier.Notify(notify.MessageTitle(last), last.Text, notify.DedupKey(last.ID))
			if err != nil {
				f.logger.Warn("notification failed", zap.String("message_id", last.ID), zap.Error(err))
			}
		}
	}

	publishLatest(f.updates, msgs)
}

func buildMessages(snap store.Snapshot) []domain.Message {
	msgs := make([]domain.Message, 0, len(snap.Children))
	for _, child := range snap.Children {
		var msg domain.Message
		if err := child.Decode(&msg); err != nil {
			continue
		}
		msg.ID = child.Key
		msgs = append(msgs, msg)
	}
	return msgs
}

// Send escribe el mensaje bajo la sala activa con timestamp del cliente.
// Fuego y olvido: el fallo se registra y se traga, el eco local llega
// por la propia suscripción.
func (f *Feed) Send(ctx context.Context, userID, displayName, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	f.mu.Lock()
	roomID := f.roomID
	f.mu.Unlock()
	if roomID == "" {
		return
	}

	path := messagesPathPrefix + roomID
	id, err := f.store.Push(ctx, path)
	if err != nil {
		f.logger.Warn("message id allocation failed", zap.Error(err))
		return
	}
	msg := domain.Message{
		ID:         id,
		SenderID:   userID,
		SenderName: displayName,
		Text:       text,
		Timestamp:  time.Now().UnixMilli(),
	}
	if err := f.store.Set(ctx, path, id, msg); err != nil {
		f.logger.Warn("message send failed", zap.String("message_id", id), zap.Error(err))
	}
}

// Leave desarma la suscripción y vuelve al estado sin sala.
func (f *Feed) Leave() {
	f.mu.Lock()
	if f.sub != nil {
		f.sub.Close()
		f.sub = nil
	}
	f.epoch++
	f.roomID = ""
	f.messages = nil
	f.lastNotifiedID = ""
	publishLatest(f.updates, nil)
	f.mu.Unlock()
}

// Room devuelve el id de la sala activa, o vacío si no hay sala.
func (f *Feed) Room() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roomID
}

// Messages devuelve la última secuencia publicada.
func (f *Feed) Messages() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// Updates entrega la secuencia publicada; canal conflado, solo se
// conserva la más reciente.
func (f *Feed) Updates() <-chan []domain.Message {
	return f.updates
}
