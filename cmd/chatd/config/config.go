package config

import (
	"errors"
	"time"
)

// BaseConfig is the root configuration loaded by the go-config container.
type BaseConfig struct {
	App         App         `json:"app" koanf:"app"`
	Auth        Auth        `json:"auth" koanf:"auth"`
	Persistence Persistence `json:"persistence" koanf:"persistence"`
	Relay       Relay       `json:"relay" koanf:"relay"`
}

func (c BaseConfig) Validate() error {
	if c.Auth.SigningKey == "" {
		return errors.New("auth.signing_key is required")
	}
	return nil
}

func (c *BaseConfig) GetApp() App {
	return c.App
}

func (c *BaseConfig) GetAuth() *Auth {
	return &c.Auth
}

func (c *BaseConfig) GetPersistence() *Persistence {
	return &c.Persistence
}

func (c *BaseConfig) GetRelay() Relay {
	return c.Relay
}

type App struct {
	Name    string `json:"name" koanf:"name"`
	Address string `json:"address" koanf:"address"`
}

func (a App) GetName() string {
	if a.Name == "" {
		return "chatd"
	}
	return a.Name
}

func (a App) GetAddress() string {
	if a.Address == "" {
		return ":8570"
	}
	return a.Address
}

// Auth carries token issuing and verification options.
type Auth struct {
	SigningKey string   `json:"signing_key" koanf:"signing_key"`
	// SigningMethod defaults to HS256; the token service rejects anything
	// outside the HMAC family regardless.
	SigningMethod string `json:"signing_method" koanf:"signing_method"`
	ContextKey    string `json:"context_key" koanf:"context_key"`
	// TokenExpiration is the token lifetime in minutes.
	TokenExpiration int      `json:"token_expiration" koanf:"token_expiration"`
	TokenLookup     string   `json:"token_lookup" koanf:"token_lookup"`
	AuthScheme      string   `json:"auth_scheme" koanf:"auth_scheme"`
	Issuer          string   `json:"issuer" koanf:"issuer"`
	Audience        []string `json:"audience" koanf:"audience"`
}

func (a *Auth) GetSigningKey() string {
	return a.SigningKey
}

func (a *Auth) GetSigningMethod() string {
	if a.SigningMethod == "" {
		return "HS256"
	}
	return a.SigningMethod
}

func (a *Auth) GetContextKey() string {
	if a.ContextKey == "" {
		return "user"
	}
	return a.ContextKey
}

func (a *Auth) GetTokenExpiration() int {
	if a.TokenExpiration <= 0 {
		return 24 * 60
	}
	return a.TokenExpiration
}

func (a *Auth) GetTokenLookup() string {
	if a.TokenLookup == "" {
		return "header:Authorization"
	}
	return a.TokenLookup
}

func (a *Auth) GetAuthScheme() string {
	if a.AuthScheme == "" {
		return "Bearer"
	}
	return a.AuthScheme
}

func (a *Auth) GetIssuer() string {
	return a.Issuer
}

func (a *Auth) GetAudience() []string {
	return a.Audience
}

// Persistence carries database options.
type Persistence struct {
	Debug                 bool   `json:"debug" koanf:"debug"`
	Driver                string `json:"driver" koanf:"driver"`
	DSN                   string `json:"dsn" koanf:"dsn"`
	PingTimeoutExpression string `json:"ping_timeout" koanf:"ping_timeout"`
}

func (p *Persistence) GetDebug() bool {
	return p.Debug
}

func (p *Persistence) GetDriver() string {
	if p.Driver == "" {
		return "sqlite"
	}
	return p.Driver
}

func (p *Persistence) GetDSN() string {
	if p.DSN == "" {
		return "file::memory:?cache=shared"
	}
	return p.DSN
}

func (p *Persistence) GetPingTimeout() time.Duration {
	dur, err := time.ParseDuration(p.PingTimeoutExpression)
	if err != nil {
		return 5 * time.Second
	}
	return dur
}

// Relay carries broadcast options.
type Relay struct {
	Topic        string `json:"topic" koanf:"topic"`
	RedisAddr    string `json:"redis_addr" koanf:"redis_addr"`
	HistoryLimit int    `json:"history_limit" koanf:"history_limit"`
}

func (r Relay) GetTopic() string {
	return r.Topic
}

// GetRedisAddr returns the redis address. Empty means the in-process broker.
func (r Relay) GetRedisAddr() string {
	return r.RedisAddr
}

func (r Relay) GetHistoryLimit() int {
	if r.HistoryLimit <= 0 {
		return 50
	}
	return r.HistoryLimit
}
