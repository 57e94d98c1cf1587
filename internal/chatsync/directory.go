package chatsync

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"msgapp/internal/domain"
	"msgapp/internal/store"
)

const roomsPath = "rooms"

// Directory mantiene el espejo local del directorio de salas: una
// suscripción continua reconstruye la secuencia completa en cada cambio
// remoto y las mutaciones escriben directo al store, sin eco optimista.
type Directory struct {
	store  store.Store
	logger *zap.Logger

	mu    sync.Mutex
	rooms []domain.Room
	sub   *store.Subscription

	updates chan []domain.Room
}

func NewDirectory(st store.Store, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		store:   st,
		logger:  logger,
		updates: make(chan []domain.Room, 1),
	}
}

// Start registra el listener continuo sobre la colección de salas.
func (d *Directory) Start(ctx context.Context) error {
	sub, err := d.store.Subscribe(ctx, roomsPath)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.sub = sub
	d.mu.Unlock()

	go func() {
		for snap := range sub.C {
			rooms := buildRooms(snap)
			d.mu.Lock()
			d.rooms = rooms
			d.mu.Unlock()
			publishLatest(d.updates, rooms)
		}
	}()
	return nil
}

// buildRooms reconstruye la secuencia desde cero con el orden del
// snapshot. Un hijo sin campo name con contenido se excluye: es una
// lápida o una escritura parcial.
func buildRooms(snap store.Snapshot) []domain.Room {
	rooms := make([]domain.Room, 0, len(snap.Children))
	for _, child := range snap.Children {
		var room domain.Room
		if err := child.Decode(&room); err != nil {
			continue
		}
		if room.Name == "" {
			continue
		}
		room.ID = child.Key
		rooms = append(rooms, room)
	}
	return rooms
}

// Create pide un id nuevo al store y escribe la sala. Sin inserción
// local optimista: la UI se actualiza cuando dispara la suscripción.
// Los fallos se registran y se tragan.
func (d *Directory) Create(ctx context.Context, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	id, err := d.store.Push(ctx, roomsPath)
	if err != nil {
		d.logger.Warn("room id allocation failed", zap.Error(err))
		return
	}
	room := domain.Room{ID: id, Name: name}
	if err := d.store.Set(ctx, roomsPath, id, room); err != nil {
		d.logger.Warn("room create failed", zap.String("room_id", id), zap.Error(err))
	}
}

// Delete borra la sala. Un id inexistente no es un error.
func (d *Directory) Delete(ctx context.Context, id string) {
	if err := d.store.Remove(ctx, roomsPath, id); err != nil {
		d.logger.Warn("room delete failed", zap.String("room_id", id), zap.Error(err))
	}
}

// Rooms devuelve la última secuencia publicada.
func (d *Directory) Rooms() []domain.Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Room, len(d.rooms))
	copy(out, d.rooms)
	return out
}

// Updates entrega la secuencia publicada; canal conflado, solo se
// conserva la más reciente.
func (d *Directory) Updates() <-chan []domain.Room {
	return d.updates
}

// Close desregistra el listener; después no llegan más callbacks.
func (d *Directory) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sub != nil {
		d.sub.Close()
		d.sub = nil
	}
}
