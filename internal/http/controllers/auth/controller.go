// Package auth exposes the authentication and session HTTP endpoints.
package auth

import (
	nethttp "net/http"
	"strings"

	"github.com/statusmvp/wallet-auth/internal/auth"
	"github.com/statusmvp/wallet-auth/internal/errs"
	apihttp "github.com/statusmvp/wallet-auth/internal/http"
	"github.com/statusmvp/wallet-auth/internal/http/dto"
	"github.com/statusmvp/wallet-auth/internal/http/helpers"
	"github.com/statusmvp/wallet-auth/internal/observability/logger"
	"github.com/statusmvp/wallet-auth/internal/provider/x"
)

type Controller struct {
	svc *auth.Service
}

func NewController(svc *auth.Service) *Controller {
	return &Controller{svc: svc}
}

// JWKS sirve las claves públicas RSA del emisor.
func (c *Controller) JWKS(w nethttp.ResponseWriter, r *nethttp.Request) {
	apihttp.WriteJSON(w, nethttp.StatusOK, c.svc.JWKS())
}

// StartXLogin inicia el flujo OAuth2 con PKCE.
func (c *Controller) StartXLogin(w nethttp.ResponseWriter, r *nethttp.Request) {
	res, err := c.svc.StartXLogin(r.Context(), r.URL.Query().Get("appRedirectUri"))
	if err != nil {
		apihttp.WriteError(w, r, err)
		return
	}
	apihttp.WriteJSON(w, nethttp.StatusOK, res)
}

// XCallback recibe el retorno del proveedor. Si el login arrancó con un
// appRedirectUri redirige al deep link de la app; si no, responde el
// auth code en JSON.
func (c *Controller) XCallback(w nethttp.ResponseWriter, r *nethttp.Request) {
	cb := x.ParseCallback(r.URL.Query())
	res, err := c.svc.HandleXCallback(
		r.Context(),
		cb.Code,
		cb.State,
		cb.Err,
		cb.ErrDesc,
		helpers.ClientIP(r),
		helpers.DeviceID(r),
	)
	if err != nil {
		apihttp.WriteError(w, r, err)
		return
	}
	if res.AppRedirectURI != "" {
		loc, err := c.svc.CallbackRedirectURL(res.AppRedirectURI, res.AuthCode)
		if err != nil {
			apihttp.WriteError(w, r, err)
			return
		}
		nethttp.Redirect(w, r, loc, nethttp.StatusFound)
		return
	}
	apihttp.WriteJSON(w, nethttp.StatusOK, res.AuthCode)
}

// TelegramLogin verifica el payload del Login Widget y acuña un auth code.
func (c *Controller) TelegramLogin(w nethttp.ResponseWriter, r *nethttp.Request) {
	var req dto.TelegramLoginRequest
	if !apihttp.ReadJSON(w, r, &req) {
		return
	}
	if req.ID == "" || req.AuthDate == "" || req.Hash == "" {
		apihttp.WriteError(w, r, errs.New(errs.BadRequest, "id, authDate and hash are required", nethttp.StatusBadRequest))
		return
	}
	res, err := c.svc.TelegramLogin(r.Context(), req.ToInput(), helpers.ClientIP(r), helpers.DeviceID(r))
	if err != nil {
		apihttp.WriteError(w, r, err)
		return
	}
	apihttp.WriteJSON(w, nethttp.StatusOK, res)
}

// Exchange canjea un auth code de un solo uso por la sesión completa.
func (c *Controller) Exchange(w nethttp.ResponseWriter, r *nethttp.Request) {
	var req dto.ExchangeRequest
	if !apihttp.ReadJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		apihttp.WriteError(w, r, errs.New(errs.BadRequest, "code is required", nethttp.StatusBadRequest))
		return
	}
	res, err := c.svc.Exchange(r.Context(), req.Code, req.Nonce)
	if err != nil {
		apihttp.WriteError(w, r, err)
		return
	}
	logger.From(r.Context()).Info("session issued", logger.WalletSub(res.WalletSub), logger.Provider(res.Provider))
	apihttp.WriteJSON(w, nethttp.StatusOK, res)
}

// Refresh rota el par de tokens.
func (c *Controller) Refresh(w nethttp.ResponseWriter, r *nethttp.Request) {
	var req dto.RefreshRequest
	if !apihttp.ReadJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		apihttp.WriteError(w, r, errs.New(errs.BadRequest, "refreshToken is required", nethttp.StatusBadRequest))
		return
	}
	res, err := c.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		apihttp.WriteError(w, r, err)
		return
	}
	apihttp.WriteJSON(w, nethttp.StatusOK, res)
}

// Me lista los enlaces de proveedor de la wallet autenticada.
func (c *Controller) Me(w nethttp.ResponseWriter, r *nethttp.Request) {
	res, err := c.svc.Me(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		apihttp.WriteError(w, r, err)
		return
	}
	apihttp.WriteJSON(w, nethttp.StatusOK, res)
}

// BindProvider enlaza una identidad adicional a la wallet de la sesión.
func (c *Controller) BindProvider(w nethttp.ResponseWriter, r *nethttp.Request) {
	var req dto.BindRequest
	if !apihttp.ReadJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.AuthCode) == "" {
		apihttp.WriteError(w, r, errs.New(errs.BadRequest, "authCode is required", nethttp.StatusBadRequest))
		return
	}
	res, err := c.svc.BindProvider(r.Context(), r.Header.Get("Authorization"), req.AuthCode)
	if err != nil {
		apihttp.WriteError(w, r, err)
		return
	}
	apihttp.WriteJSON(w, nethttp.StatusOK, res)
}

// UnbindProvider quita un enlace, siempre que no sea el último.
func (c *Controller) UnbindProvider(w nethttp.ResponseWriter, r *nethttp.Request) {
	var req dto.UnbindRequest
	if !apihttp.ReadJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ProviderSub) == "" {
		apihttp.WriteError(w, r, errs.New(errs.BadRequest, "providerSub is required", nethttp.StatusBadRequest))
		return
	}
	res, err := c.svc.UnbindProvider(r.Context(), r.Header.Get("Authorization"), req.ProviderSub)
	if err != nil {
		apihttp.WriteError(w, r, err)
		return
	}
	apihttp.WriteJSON(w, nethttp.StatusOK, res)
}

// GetSync devuelve el estado sincronizado del perfil dApp.
func (c *Controller) GetSync(w nethttp.ResponseWriter, r *nethttp.Request) {
	res, err := c.svc.GetSync(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		apihttp.WriteError(w, r, err)
		return
	}
	apihttp.WriteJSON(w, nethttp.StatusOK, res)
}

// UpsertSync mezcla el delta del cliente con el estado del servidor.
func (c *Controller) UpsertSync(w nethttp.ResponseWriter, r *nethttp.Request) {
	var req dto.SyncPayloadRequest
	if !apihttp.ReadJSON(w, r, &req) {
		return
	}
	res, err := c.svc.UpsertSync(r.Context(), r.Header.Get("Authorization"), req.ToInput())
	if err != nil {
		apihttp.WriteError(w, r, err)
		return
	}
	apihttp.WriteJSON(w, nethttp.StatusOK, res)
}
