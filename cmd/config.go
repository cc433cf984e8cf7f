package main

import "time"

type Config struct {
	Host           string `env:"HOST,default=localhost"`
	Port           int    `env:"PORT,default=8080"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`

	TelegramAPIID   int    `env:"TG_API_ID,required=true"`
	TelegramAPIHash string `env:"TG_API_HASH,required=true"`

	// When both auth values are set, mutating routes require a bearer token
	// issued against the admin password. Leave empty to run the API open.
	AuthSecret        string        `env:"AUTH_SECRET"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
