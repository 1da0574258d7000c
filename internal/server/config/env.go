package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv exports variables from a .env file into the process
// environment without overriding ones already set. An explicit path must
// exist; the implicit ./.env is optional.
func loadDotEnv(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func parseEnv(c *Config) {
	c.EndpointAddrHTTP = envStr("HTTP_ADDR", c.EndpointAddrHTTP)
	c.EndpointAddrGRPC = envStr("GRPC_ADDR", c.EndpointAddrGRPC)
	c.DatabaseDSN = envStr("DATABASE_DSN", c.DatabaseDSN)
	c.SecretKey = envStr("SECRET_KEY", c.SecretKey)
	c.Environment = envStr("ENVIRONMENT", c.Environment)
	c.AppDomain = envStr("APP_DOMAIN", c.AppDomain)
	c.BcryptCost = envInt("BCRYPT_COST", c.BcryptCost)
	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
	c.RedisAddr = envStr("REDIS_ADDR", c.RedisAddr)
	c.RateLimitCapacity = envInt("RATE_LIMIT_CAPACITY", c.RateLimitCapacity)
	c.RateLimitRefillInterval = envDur("RATE_LIMIT_REFILL_INTERVAL", c.RateLimitRefillInterval)
	c.AMQPURL = envStr("RABBITMQ_URL", envStr("AMQP_URL", c.AMQPURL))
	c.ResetQueue = envStr("RESET_QUEUE", c.ResetQueue)
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
