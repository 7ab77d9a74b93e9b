// Package errs define el error tipado del protocolo de autenticación.
//
// Cada fallo lleva un código estable legible por máquina, el status HTTP al
// que mapea, y opcionalmente retry-after y un mapa de detalles. Los servicios
// retornan *Error; solo la capa HTTP lo traduce a una respuesta.
package errs

import "errors"

// Code es el código estable del fallo.
type Code string

const (
	FeatureDisabled      Code = "FEATURE_DISABLED"
	BadRequest           Code = "BAD_REQUEST"
	Unauthorized         Code = "UNAUTHORIZED"
	Forbidden            Code = "FORBIDDEN"
	RateLimited          Code = "RATE_LIMITED"
	OAuthStateInvalid    Code = "OAUTH_STATE_INVALID"
	OAuthStateExpired    Code = "OAUTH_STATE_EXPIRED"
	OAuthExchangeFailed  Code = "OAUTH_EXCHANGE_FAILED"
	ProviderUnavailable  Code = "PROVIDER_UNAVAILABLE"
	TelegramVerifyFailed Code = "TELEGRAM_VERIFY_FAILED"
	AuthCodeInvalid      Code = "AUTH_CODE_INVALID"
	AuthCodeExpired      Code = "AUTH_CODE_EXPIRED"
	AuthCodeUsed         Code = "AUTH_CODE_USED"
	AccessTokenInvalid   Code = "ACCESS_TOKEN_INVALID"
	AccessTokenExpired   Code = "ACCESS_TOKEN_EXPIRED"
	RefreshTokenInvalid  Code = "REFRESH_TOKEN_INVALID"
	BindConflict         Code = "BIND_CONFLICT"
	UnbindLastProvider   Code = "UNBIND_LAST_PROVIDER"
	SyncPayloadInvalid   Code = "SYNC_PAYLOAD_INVALID"
	InternalError        Code = "INTERNAL_ERROR"
)

// Error es el fallo tipado del dominio.
type Error struct {
	Code              Code
	Message           string
	Status            int
	RetryAfterSeconds int
	Details           map[string]any
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// New crea un *Error con código, mensaje y status HTTP.
func New(code Code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// WithRetryAfter retorna una copia con retry-after en segundos.
func (e *Error) WithRetryAfter(seconds int) *Error {
	cp := *e
	cp.RetryAfterSeconds = seconds
	return &cp
}

// WithDetails retorna una copia con el mapa de detalles.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// As extrae un *Error de cualquier error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode verifica si err es un *Error con el código dado.
func IsCode(err error, code Code) bool {
	if e, ok := As(err); ok {
		return e.Code == code
	}
	return false
}
