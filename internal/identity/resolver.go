package identity

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"msgapp/internal/domain"
)

const (
	// FallbackUserID se usa cuando el proveedor de auth no responde,
	// para que la UI nunca quede bloqueada esperando identidad.
	FallbackUserID = "user_anonimo"

	displayNamePrefix = "Usuário-"
)

// Provider entrega una sesión anónima con un uid opaco. Puede fallar
// (red caída); el Resolver absorbe el fallo.
type Provider interface {
	SignInAnonymously(ctx context.Context) (string, error)
}

// Resolver obtiene la identidad anónima de la sesión exactamente una vez
// por proceso y deriva el nombre visible a partir del uid.
type Resolver struct {
	provider Provider
	logger   *zap.Logger

	once sync.Once
	id   domain.Identity
}

func NewResolver(provider Provider, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{provider: provider, logger: logger}
}

// Resolve es idempotente dentro de la sesión: la primera llamada consulta
// al proveedor, las siguientes devuelven la identidad cacheada. Nunca
// falla: ante cualquier error cae al uid fijo de respaldo.
func (r *Resolver) Resolve(ctx context.Context) domain.Identity {
	r.once.Do(func() {
		uid := FallbackUserID
		if r.provider != nil {
			got, err := r.provider.SignInAnonymously(ctx)
			if err != nil || got == "" {
				r.logger.Warn("anonymous sign-in failed, using fallback identity", zap.Error(err))
			} else {
				uid = got
			}
		}
		r.id = domain.Identity{UserID: uid, DisplayName: DeriveDisplayName(uid)}
	})
	return r.id
}

// DeriveDisplayName construye el nombre visible: prefijo fijo más los
// últimos 4 caracteres del uid.
func DeriveDisplayName(uid string) string {
	runes := []rune(uid)
	if len(runes) > 4 {
		runes = runes[len(runes)-4:]
	}
	return displayNamePrefix + string(runes)
}
