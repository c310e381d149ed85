package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/AzielCF/az-relay/core/config"
	valkeylib "github.com/valkey-io/valkey-go"
)

const DefaultConnectTimeout = 5 * time.Second

type Config struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration
}

// ConfigFrom maps the database section of the app config to a client config.
func ConfigFrom(cfg coreconfig.DatabaseConfig) Config {
	return Config{
		Address:   cfg.ValkeyAddress,
		Password:  cfg.ValkeyPassword,
		DB:        cfg.ValkeyDB,
		KeyPrefix: cfg.ValkeyKeyPrefix,
	}
}

// Client wraps valkey-go with key prefixing and the few compound commands the
// quota, dedup and session stores share.
type Client struct {
	inner     valkeylib.Client
	keyPrefix string
}

// NewClient connects and pings; the caller owns Close.
func NewClient(cfg Config) (*Client, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
		Password:    cfg.Password,
	}

	inner, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := inner.Do(ctx, inner.B().Ping().Build()).Error(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("failed to ping valkey at %s: %w", cfg.Address, err)
	}

	return NewFromInner(inner, cfg.KeyPrefix), nil
}

// NewFromInner wraps an existing client, e.g. a mock in tests.
func NewFromInner(inner valkeylib.Client, prefix string) *Client {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Client{inner: inner, keyPrefix: prefix}
}

func (c *Client) Inner() valkeylib.Client {
	return c.inner
}

func (c *Client) Close() {
	if c.inner != nil {
		c.inner.Close()
	}
}

// Key joins parts with ":" under the configured prefix.
// Key("quota", "ch1", "2024-05-01") -> "azrelay:quota:ch1:2024-05-01"
func (c *Client) Key(parts ...string) string {
	if len(parts) == 0 {
		return strings.TrimSuffix(c.keyPrefix, ":")
	}
	return c.keyPrefix + strings.Join(parts, ":")
}

func (c *Client) KeyPrefix() string {
	return c.keyPrefix
}

func (c *Client) Ping(ctx context.Context) error {
	return c.inner.Do(ctx, c.inner.B().Ping().Build()).Error()
}

// IncrByWithTTL adds delta to key and refreshes its expiry in one round trip.
func (c *Client) IncrByWithTTL(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	results := c.inner.DoMulti(ctx,
		c.inner.B().Incrby().Key(key).Increment(delta).Build(),
		c.inner.B().Expire().Key(key).Seconds(int64(ttl.Seconds())).Build(),
	)
	if err := results[1].Error(); err != nil {
		return 0, err
	}
	return results[0].AsInt64()
}

// SetNX stores key only when absent and reports whether it was stored.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	err := c.inner.Do(ctx, c.inner.B().Set().Key(key).Value(value).Nx().Ex(ttl).Build()).Error()
	if IsNil(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.inner.Do(ctx, c.inner.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func IsNil(err error) bool {
	return valkeylib.IsValkeyNil(err)
}
