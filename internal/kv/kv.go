// Package kv define el contrato del key-value store compartido con TTL.
//
// Todo el estado del protocolo (oauth state, auth codes, bindings, perfiles,
// refresh tokens, contadores de rate limit) vive detrás de esta interfaz.
// Las operaciones sobre una misma key son linealizables; no hay transacciones
// multi-key y ningún caller debe asumirlas.
//
// Backends:
//   - Redis (distribuido, producción)
//   - Memory (in-process, para desarrollo/testing)
package kv

import (
	"context"
	"errors"
	"time"
)

// Store define las operaciones del key-value store.
type Store interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set guarda un valor. Si ttl es 0, no expira.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetIfAbsent guarda un valor solo si la key no existe (atómico).
	// Retorna true si esta llamada creó la key.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete elimina una key. Eliminar una key inexistente no es error.
	Delete(ctx context.Context, key string) error

	// Incr incrementa un contador (atómico). Crea la key en 0 si no existe.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire fija el TTL de una key existente.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL retorna el tiempo de vida restante de una key.
	// Retorna ErrNotFound si la key no existe; 0 si no tiene expiración.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Errores del store.
var (
	// ErrNotFound indica que la key no existe.
	ErrNotFound = errors.New("kv: key not found")

	// ErrUnavailable indica un fallo de I/O del backend. Los callers lo
	// propagan como 5xx: ningún chequeo de riesgo ni de unicidad "falla abierto".
	ErrUnavailable = errors.New("kv: store unavailable")
)

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Unavailable envuelve un error de backend como ErrUnavailable.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrUnavailable, err)
}
