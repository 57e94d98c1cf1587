package store

import (
	"context"
	"encoding/json"
	"errors"
)

// Child es un registro hijo bajo un path, con su key asignada por el store.
type Child struct {
	Key  string
	Data json.RawMessage
}

// Decode deserializa el registro sobre v. Campos ausentes quedan con su
// valor por defecto, así un registro parcial nunca falla al decodificar.
func (c Child) Decode(v any) error {
	if len(c.Data) == 0 {
		return nil
	}
	return json.Unmarshal(c.Data, v)
}

// Snapshot es el conjunto completo de hijos de un path, en el orden de
// enumeración nativo del backend. Se entrega entero en cada cambio.
type Snapshot struct {
	Path     string
	Children []Child
}

// Subscription entrega snapshots por C hasta que se cierra. Cerrarla
// desregistra el listener; después no llegan más callbacks.
type Subscription struct {
	C      <-chan Snapshot
	cancel context.CancelFunc
}

// NewSubscription arma una Subscription sobre un canal y su cancelación.
// Lo usan los backends y cualquier store sintético de pruebas.
func NewSubscription(ch <-chan Snapshot, cancel context.CancelFunc) *Subscription {
	return &Subscription{C: ch, cancel: cancel}
}

func (s *Subscription) Close() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
}

// Store es la capacidad de árbol remoto: colecciones direccionadas por
// path con suscripción continua de snapshot completo, generación de ids,
// escritura y borrado por key.
type Store interface {
	Subscribe(ctx context.Context, path string) (*Subscription, error)
	Push(ctx context.Context, path string) (string, error)
	Set(ctx context.Context, path, key string, value any) error
	Remove(ctx context.Context, path, key string) error
}

var ErrStoreClosed = errors.New("store closed")

// subscriberBuffer acota cuántos snapshots puede acumular un suscriptor
// lento antes de que se le empiecen a descartar los más viejos.
const subscriberBuffer = 32

// offerLatest encola sin bloquear: con el buffer lleno descarta el
// snapshot más viejo, nunca el entrante. Como cada snapshot es el
// estado completo, al suscriptor lento siempre le espera el último.
func offerLatest(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
