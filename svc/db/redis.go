package db

import (
	"context"
	"crosssync/cfg"
	"crosssync/svc/persist"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const rateLimitScript = `
	local current = redis.call("GET", KEYS[1])
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end
	if current >= tonumber(ARGV[2]) then
		return current + 1
	end
	local new_val = redis.call("INCR", KEYS[1])
	if new_val == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	return new_val
`

// Redis is the session-scoped store: every key expires after ttl.
type Redis struct {
	client    *redis.Client
	timeout   time.Duration
	ttl       time.Duration
	rateLimit *redis.Script
}

func NewRedis(url string, c *cfg.Cfg) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	opt.PoolSize = 20
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.MaxRetries = 3
	opt.MinRetryBackoff = 8 * time.Millisecond
	opt.MaxRetryBackoff = 512 * time.Millisecond
	if c.RedisTLS {
		tlsConfig, err := buildRedisTLSConfig()
		if err != nil {
			return nil, errors.Wrap(err, "failed to build Redis TLS config")
		}
		opt.TLSConfig = tlsConfig
	}
	if c.RedisUsername != "" {
		opt.Username = c.RedisUsername
	}
	if c.RedisPassword.Value() != "" {
		opt.Password = c.RedisPassword.Value()
	}
	r := NewRedisFromClient(redis.NewClient(opt), c.RedisTimeout, c.SessionTTL)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		r.client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return r, nil
}

func NewRedisFromClient(client *redis.Client, timeout, ttl time.Duration) *Redis {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Redis{
		client:    client,
		timeout:   timeout,
		ttl:       ttl,
		rateLimit: redis.NewScript(rateLimitScript),
	}
}
func buildRedisTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	if host := os.Getenv("REDIS_HOSTNAME"); host != "" {
		tlsConfig.ServerName = host
	}
	certPath := os.Getenv("REDIS_TLS_CA_CERT")
	if certPath == "" {
		return tlsConfig, nil
	}
	caCert, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read Redis CA cert: %w", err)
	}
	certPool := x509.NewCertPool()
	if !certPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to append Redis CA cert to pool")
	}
	tlsConfig.RootCAs = certPool
	return tlsConfig, nil
}
func (r *Redis) Name() string { return "session" }

func (r *Redis) Set(ctx context.Context, key string, val []byte) error {
	return r.SetTTL(ctx, key, val, r.ttl)
}
func (r *Redis) SetTTL(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return errors.Wrap(r.client.Set(ctx, key, val, ttl).Err(), "redis set")
}
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}
	return data, nil
}
// Take is GETDEL: concurrent callers see the value at most once.
func (r *Redis) Take(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	data, err := r.client.GetDel(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis getdel")
	}
	return data, nil
}
func (r *Redis) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return errors.Wrap(r.client.Del(ctx, key).Err(), "redis delete")
}

// RateLimit counts a hit in a fixed window and returns the usage including this hit.
func (r *Redis) RateLimit(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	usage, err := r.rateLimit.Run(ctx, r.client, []string{"ratelimit:" + key}, int(window.Milliseconds()), limit).Int()
	if err != nil {
		return 0, errors.Wrap(err, "rate limit lua")
	}
	return usage, nil
}
func (r *Redis) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
