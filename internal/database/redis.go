package database

import (
	"context"
	"net"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// RedisConfig holds the Redis connection settings
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr is host:port
func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// LoadRedisConfig reads the redis.* keys from v
func LoadRedisConfig(v *viper.Viper) RedisConfig {
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	return RedisConfig{
		Host:     v.GetString("redis.host"),
		Port:     v.GetString("redis.port"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}
}

// OpenRedis returns a connected client, or nil when Redis is unreachable. Without Redis the
// hash index and the import rate limit are disabled.
func OpenRedis(ctx context.Context, cfg RedisConfig, log zerolog.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return checkRedis(ctx, rdb, cfg.Addr(), log)
}

func checkRedis(ctx context.Context, rdb *redis.Client, addr string, log zerolog.Logger) *redis.Client {
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("Redis unavailable, hash index and rate limit disabled")
		rdb.Close()
		return nil
	}
	log.Info().Str("addr", addr).Msg("Redis connection established")
	return rdb
}
