// Package config carga la configuración del servicio desde YAML + variables de entorno.
//
// Orden de precedencia: defaults < config.yaml < env. El struct resultante es
// inmutable por convención: se construye una vez en main() y se pasa por
// referencia a los constructores.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration envuelve time.Duration para aceptar en YAML tanto "90s"/"15m"
// como segundos crudos (90), en paridad con la config por properties original.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) Seconds() int64 { return int64(time.Duration(d) / time.Second) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		if dur, perr := time.ParseDuration(strings.TrimSpace(s)); perr == nil {
			*d = Duration(dur)
			return nil
		}
		if i, perr := strconv.Atoi(strings.TrimSpace(s)); perr == nil {
			*d = Duration(time.Duration(i) * time.Second)
			return nil
		}
		return fmt.Errorf("config: invalid duration %q", s)
	}
	var i int64
	if err := value.Decode(&i); err == nil {
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	return fmt.Errorf("config: invalid duration node")
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Store struct {
		// "redis" | "memory"
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"store"`

	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig agrupa toda la configuración del protocolo de autenticación.
type AuthConfig struct {
	Enabled        bool `yaml:"enabled"`
	XEnabled       bool `yaml:"x_enabled"`
	TGEnabled      bool `yaml:"tg_enabled"`
	BindEnabled    bool `yaml:"bind_enabled"`
	SyncEnabled    bool `yaml:"sync_enabled"`
	MetricsEnabled bool `yaml:"metrics_enabled"`

	OneTimeCodeTTL  Duration `yaml:"one_time_code_ttl"`
	OAuthStateTTL   Duration `yaml:"oauth_state_ttl"`
	AssertionTTL    Duration `yaml:"assertion_ttl"`
	AccessTokenTTL  Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL Duration `yaml:"refresh_token_ttl"`

	// Prefijos permitidos para appRedirectUri en el callback.
	AppRedirectAllowlist []string `yaml:"app_redirect_allowlist"`

	Web3Auth Web3AuthConfig `yaml:"web3auth"`
	AppJWT   AppJWTConfig   `yaml:"app_jwt"`
	X        XConfig        `yaml:"x"`
	TG       TGConfig       `yaml:"tg"`
	Risk     RiskConfig     `yaml:"risk"`
}

// Web3AuthConfig configura la assertion RS256 que consume el SDK de wallet embebida.
type Web3AuthConfig struct {
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	KeyID         string `yaml:"key_id"`
	PrivateKeyPEM string `yaml:"private_key_pem"`
}

// AppJWTConfig configura el access token HS256 propio del servicio.
type AppJWTConfig struct {
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	Secret   string `yaml:"secret"`
}

// XConfig configura el cliente OAuth2+PKCE contra X.
type XConfig struct {
	ClientID          string   `yaml:"client_id"`
	ClientSecret      string   `yaml:"client_secret"`
	RedirectURI       string   `yaml:"redirect_uri"`
	Scopes            []string `yaml:"scopes"`
	AuthorizeEndpoint string   `yaml:"authorize_endpoint"`
	TokenEndpoint     string   `yaml:"token_endpoint"`
	UserinfoEndpoint  string   `yaml:"userinfo_endpoint"`
}

// Configured reporta si el mínimo de credenciales/endpoints está presente.
func (x XConfig) Configured() bool {
	return strings.TrimSpace(x.ClientID) != "" &&
		strings.TrimSpace(x.RedirectURI) != "" &&
		strings.TrimSpace(x.AuthorizeEndpoint) != "" &&
		strings.TrimSpace(x.TokenEndpoint) != "" &&
		strings.TrimSpace(x.UserinfoEndpoint) != ""
}

// TGConfig configura la verificación del Telegram Login Widget.
type TGConfig struct {
	BotToken   string   `yaml:"bot_token"`
	AuthMaxAge Duration `yaml:"auth_max_age"`
}

// RiskConfig configura denylists y rate limits.
type RiskConfig struct {
	DenyIPs          []string `yaml:"deny_ips"`
	DenyProviderSubs []string `yaml:"deny_provider_subs"`
	LoginIPLimit     int      `yaml:"login_ip_limit"`
	LoginDeviceLimit int      `yaml:"login_device_limit"`
	BindWalletLimit  int      `yaml:"bind_wallet_limit"`
	Window           Duration `yaml:"window"`
}

// Default retorna la configuración base, alineada con los defaults del protocolo.
func Default() Config {
	var c Config
	c.App.Env = "dev"
	c.App.LogLevel = "info"
	c.Server.Addr = ":8080"
	c.Store.Kind = "redis"
	c.Store.Redis.Addr = "localhost:6379"

	c.Auth = AuthConfig{
		Enabled:         true,
		XEnabled:        true,
		TGEnabled:       true,
		BindEnabled:     true,
		SyncEnabled:     true,
		MetricsEnabled:  true,
		OneTimeCodeTTL:  Duration(60 * time.Second),
		OAuthStateTTL:   Duration(600 * time.Second),
		AssertionTTL:    Duration(300 * time.Second),
		AccessTokenTTL:  Duration(900 * time.Second),
		RefreshTokenTTL: Duration(30 * 24 * time.Hour),
		Web3Auth: Web3AuthConfig{
			Issuer:   "https://auth.status-mvp.local",
			Audience: "status-mvp",
			KeyID:    "status-mvp-auth-v1",
		},
		AppJWT: AppJWTConfig{
			Issuer:   "status-mvp-wallet-auth",
			Audience: "status-mvp-app",
		},
		X: XConfig{
			Scopes:            []string{"tweet.read", "users.read", "offline.access"},
			AuthorizeEndpoint: "https://twitter.com/i/oauth2/authorize",
			TokenEndpoint:     "https://api.twitter.com/2/oauth2/token",
			UserinfoEndpoint:  "https://api.twitter.com/2/users/me",
		},
		TG: TGConfig{
			AuthMaxAge: Duration(600 * time.Second),
		},
		Risk: RiskConfig{
			LoginIPLimit:     20,
			LoginDeviceLimit: 30,
			BindWalletLimit:  20,
			Window:           Duration(60 * time.Second),
		},
	}
	return c
}

// Load lee el YAML (si path no está vacío), aplica overrides de entorno y valida.
func Load(path string) (*Config, error) {
	c := Default()

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate aplica las reglas fatales de arranque.
// Solo errores de material secreto detienen el proceso; todo lo demás son defaults.
func (c *Config) Validate() error {
	if len(c.Auth.AppJWT.Secret) < 32 {
		return fmt.Errorf("config: auth.app_jwt.secret must be at least 32 bytes")
	}
	if strings.EqualFold(c.App.Env, "prod") && strings.TrimSpace(c.Auth.Web3Auth.PrivateKeyPEM) == "" {
		// Una clave efímera rompe la confianza JWKS entre reinicios.
		return fmt.Errorf("config: auth.web3auth.private_key_pem is required in prod")
	}
	for _, d := range []struct {
		name string
		v    Duration
	}{
		{"auth.one_time_code_ttl", c.Auth.OneTimeCodeTTL},
		{"auth.oauth_state_ttl", c.Auth.OAuthStateTTL},
		{"auth.assertion_ttl", c.Auth.AssertionTTL},
		{"auth.access_token_ttl", c.Auth.AccessTokenTTL},
		{"auth.refresh_token_ttl", c.Auth.RefreshTokenTTL},
		{"auth.risk.window", c.Auth.Risk.Window},
		{"auth.tg.auth_max_age", c.Auth.TG.AuthMaxAge},
	} {
		if d.v <= 0 {
			return fmt.Errorf("config: %s must be positive", d.name)
		}
	}
	return nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
		// Aceptar segundos crudos (paridad con la config por properties)
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && i > 0 {
			return time.Duration(i) * time.Second, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	if v, ok := getEnvStr("STORE_KIND"); ok {
		c.Store.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Store.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Store.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Store.Redis.DB = v
	}

	if v, ok := getEnvBool("AUTH_ENABLED"); ok {
		c.Auth.Enabled = v
	}
	if v, ok := getEnvBool("AUTH_X_ENABLED"); ok {
		c.Auth.XEnabled = v
	}
	if v, ok := getEnvBool("AUTH_TG_ENABLED"); ok {
		c.Auth.TGEnabled = v
	}
	if v, ok := getEnvBool("AUTH_BIND_ENABLED"); ok {
		c.Auth.BindEnabled = v
	}
	if v, ok := getEnvBool("AUTH_SYNC_ENABLED"); ok {
		c.Auth.SyncEnabled = v
	}
	if v, ok := getEnvBool("AUTH_METRICS_ENABLED"); ok {
		c.Auth.MetricsEnabled = v
	}

	if v, ok := getEnvDur("AUTH_ONE_TIME_CODE_TTL"); ok {
		c.Auth.OneTimeCodeTTL = Duration(v)
	}
	if v, ok := getEnvDur("AUTH_OAUTH_STATE_TTL"); ok {
		c.Auth.OAuthStateTTL = Duration(v)
	}
	if v, ok := getEnvDur("AUTH_ASSERTION_TTL"); ok {
		c.Auth.AssertionTTL = Duration(v)
	}
	if v, ok := getEnvDur("AUTH_ACCESS_TOKEN_TTL"); ok {
		c.Auth.AccessTokenTTL = Duration(v)
	}
	if v, ok := getEnvDur("AUTH_REFRESH_TOKEN_TTL"); ok {
		c.Auth.RefreshTokenTTL = Duration(v)
	}
	if v, ok := getEnvCSV("AUTH_APP_REDIRECT_ALLOWLIST"); ok {
		c.Auth.AppRedirectAllowlist = v
	}

	if v, ok := getEnvStr("AUTH_WEB3AUTH_ISSUER"); ok {
		c.Auth.Web3Auth.Issuer = v
	}
	if v, ok := getEnvStr("AUTH_WEB3AUTH_AUDIENCE"); ok {
		c.Auth.Web3Auth.Audience = v
	}
	if v, ok := getEnvStr("AUTH_WEB3AUTH_KEY_ID"); ok {
		c.Auth.Web3Auth.KeyID = v
	}
	if v, ok := getEnvStr("AUTH_WEB3AUTH_PRIVATE_KEY_PEM"); ok {
		c.Auth.Web3Auth.PrivateKeyPEM = v
	}

	if v, ok := getEnvStr("AUTH_APP_JWT_ISSUER"); ok {
		c.Auth.AppJWT.Issuer = v
	}
	if v, ok := getEnvStr("AUTH_APP_JWT_AUDIENCE"); ok {
		c.Auth.AppJWT.Audience = v
	}
	if v, ok := getEnvStr("AUTH_APP_JWT_SECRET"); ok {
		c.Auth.AppJWT.Secret = v
	}

	if v, ok := getEnvStr("AUTH_X_CLIENT_ID"); ok {
		c.Auth.X.ClientID = v
	}
	if v, ok := getEnvStr("AUTH_X_CLIENT_SECRET"); ok {
		c.Auth.X.ClientSecret = v
	}
	if v, ok := getEnvStr("AUTH_X_REDIRECT_URI"); ok {
		c.Auth.X.RedirectURI = v
	}
	if v, ok := getEnvCSV("AUTH_X_SCOPES"); ok {
		c.Auth.X.Scopes = v
	}
	if v, ok := getEnvStr("AUTH_X_AUTHORIZE_ENDPOINT"); ok {
		c.Auth.X.AuthorizeEndpoint = v
	}
	if v, ok := getEnvStr("AUTH_X_TOKEN_ENDPOINT"); ok {
		c.Auth.X.TokenEndpoint = v
	}
	if v, ok := getEnvStr("AUTH_X_USERINFO_ENDPOINT"); ok {
		c.Auth.X.UserinfoEndpoint = v
	}

	if v, ok := getEnvStr("AUTH_TG_BOT_TOKEN"); ok {
		c.Auth.TG.BotToken = v
	}
	if v, ok := getEnvDur("AUTH_TG_AUTH_MAX_AGE"); ok {
		c.Auth.TG.AuthMaxAge = Duration(v)
	}

	if v, ok := getEnvCSV("AUTH_RISK_DENY_IPS"); ok {
		c.Auth.Risk.DenyIPs = v
	}
	if v, ok := getEnvCSV("AUTH_RISK_DENY_PROVIDER_SUBS"); ok {
		c.Auth.Risk.DenyProviderSubs = v
	}
	if v, ok := getEnvInt("AUTH_RISK_LOGIN_IP_LIMIT"); ok {
		c.Auth.Risk.LoginIPLimit = v
	}
	if v, ok := getEnvInt("AUTH_RISK_LOGIN_DEVICE_LIMIT"); ok {
		c.Auth.Risk.LoginDeviceLimit = v
	}
	if v, ok := getEnvInt("AUTH_RISK_BIND_WALLET_LIMIT"); ok {
		c.Auth.Risk.BindWalletLimit = v
	}
	if v, ok := getEnvDur("AUTH_RISK_WINDOW"); ok {
		c.Auth.Risk.Window = Duration(v)
	}
}
