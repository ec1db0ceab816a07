package app

import (
	"crypto/tls"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/ecohubkosova/ecohub/internal/auth"
	"github.com/ecohubkosova/ecohub/internal/database"
	"github.com/ecohubkosova/ecohub/pkg/mail"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         strings.TrimSpace(c.JWT.Issuer),
		Audience:       strings.TrimSpace(c.JWT.Audience),
		AccessTokenTTL: ttl,
	}
}

// ConnectionConfig converts DatabaseConfig into database.Config for the selected driver.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:            c.Path,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}

	var host DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	return cfg
}

// RedisOptions converts the cache configuration into go-redis client options.
func (c CacheConfig) RedisOptions() *redis.Options {
	opts := &redis.Options{
		Addr:     strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
	if c.Redis.Timeout > 0 {
		opts.DialTimeout = c.Redis.Timeout
		opts.ReadTimeout = c.Redis.Timeout
		opts.WriteTimeout = c.Redis.Timeout
	}
	if c.Redis.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// MailSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) MailSettings() mail.Settings {
	return mail.Settings{
		Provider: c.Provider,
		SMTP: mail.SMTPSettings{
			Enabled:  c.SMTP.Enabled,
			Host:     c.SMTP.Host,
			Port:     c.SMTP.Port,
			Username: c.SMTP.Username,
			Password: c.SMTP.Password,
			From:     c.SMTP.From,
			UseTLS:   c.SMTP.UseTLS,
			Timeout:  c.SMTP.Timeout,
		},
		SendGrid: mail.SendGridSettings{
			Enabled:  c.SendGrid.Enabled,
			APIKey:   c.SendGrid.APIKey,
			From:     c.SendGrid.From,
			FromName: c.SendGrid.FromName,
		},
	}
}
