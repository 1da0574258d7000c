package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gatekeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations use
// timex.Duration so both "6s" and integer nanoseconds are accepted.
// Zero values leave the corresponding Config field untouched.
type JsonConfig struct {
	EndpointAddrHTTP        string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC        string         `json:"endpoint_addr_grpc"`
	DatabaseDSN             string         `json:"database_dsn"`
	SecretKey               string         `json:"secret_key"`
	Environment             string         `json:"environment"`
	AppDomain               string         `json:"app_domain"`
	BcryptCost              int            `json:"bcrypt_cost"`
	LogLevel                string         `json:"log_level"`
	RedisAddr               string         `json:"redis_addr"`
	RateLimitCapacity       int            `json:"rate_limit_capacity"`
	RateLimitRefillInterval timex.Duration `json:"rate_limit_refill_interval"`
	AMQPURL                 string         `json:"amqp_url"`
	ResetQueue              string         `json:"reset_queue"`
}

// parseJson overlays values from the JSON file at path. An empty path is a
// no-op.
func parseJson(config *Config, path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setStr(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setStr(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setStr(&config.DatabaseDSN, c.DatabaseDSN)
	setStr(&config.SecretKey, c.SecretKey)
	setStr(&config.Environment, c.Environment)
	setStr(&config.AppDomain, c.AppDomain)
	setStr(&config.LogLevel, c.LogLevel)
	setStr(&config.RedisAddr, c.RedisAddr)
	setStr(&config.AMQPURL, c.AMQPURL)
	setStr(&config.ResetQueue, c.ResetQueue)
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.RateLimitCapacity != 0 {
		config.RateLimitCapacity = c.RateLimitCapacity
	}
	if c.RateLimitRefillInterval.Duration != 0 {
		config.RateLimitRefillInterval = c.RateLimitRefillInterval.Duration
	}
	return nil
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
