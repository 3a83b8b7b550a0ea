package test

import (
	"github.com/kelseyhightower/envconfig"
)

// Config selects the broker the scenario runs against. With no
// TEST_REDIS_ADDR the Redis scenario is skipped and only the in-memory
// one runs, so the suite stays self-contained on a developer machine.
type Config struct {
	RedisAddr     string `envconfig:"TEST_REDIS_ADDR"`
	RedisPassword string `envconfig:"TEST_REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"TEST_REDIS_DB" default:"0"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
