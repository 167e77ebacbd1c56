package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort                 string   `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL              string   `env:"DATABASE_URL,required"`
	SecretKey                string   `env:"SECRET_KEY,required"`
	Algorithm                string   `env:"ALGORITHM" envDefault:"HS256"`
	AccessTokenExpireMinutes int      `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
	TOTPIssuer               string   `env:"TOTP_ISSUER" envDefault:"Bueiro Digital"`
	CORSOrigins              []string `env:"BACKEND_CORS_ORIGINS" envSeparator:","`
	RedisAddr                string   `env:"REDIS_ADDR"`
	RedisPassword            string   `env:"REDIS_PASSWORD"`
	RedisDB                  int      `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
