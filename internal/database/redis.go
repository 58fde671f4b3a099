package database

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// RedisOptions builds the client options from config. redis.url, when
// set, takes precedence over host/port/password/db.
func RedisOptions() (*redis.Options, error) {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	if raw := viper.GetString("redis.url"); raw != "" {
		return redis.ParseURL(raw)
	}
	return &redis.Options{
		Addr:     viper.GetString("redis.host") + ":" + viper.GetString("redis.port"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	}, nil
}

// InitRedis connects to Redis. It returns nil when Redis is unreachable;
// callers then run single-instance without rate limiting.
func InitRedis(ctx context.Context) *redis.Client {
	opts, err := RedisOptions()
	if err != nil {
		log.Printf("[REDIS] invalid redis.url, continuing without Redis: %v", err)
		return nil
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("[REDIS] connection to %s failed, continuing without Redis: %v", opts.Addr, err)
		rdb.Close()
		return nil
	}

	log.Printf("[REDIS] connected to %s", opts.Addr)
	return rdb
}
