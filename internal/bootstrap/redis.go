package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/powra-portal/config"
)

// ConnectRedis returns a client for the session store, retrying the first ping with
// backoff for up to RedisConfig.ConnectTimeout.
//
//nolint:ireturn // single, sentinel and cluster clients share redis.UniversalClient.
func ConnectRedis(ctx context.Context, cfg DatabaseConfig) (redis.UniversalClient, error) {
	client, desc, err := newRedisClient(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}

	err = Retry(ctx, RetryConfig{
		Name:    "redis",
		Timeout: cfg.RedisConfig.ConnectTimeout,
		Logger:  cfg.Logger,
	}, func(ctx context.Context) error {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pctx).Err()
	})
	if err != nil {
		if cerr := client.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close redis client: %w", cerr))
		}
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	loggerOrDefault(cfg.Logger).InfoContext(ctx, "redis connected", "addr", redactRedisAddr(desc))
	return client, nil
}

// newRedisClient picks the topology from config. desc names the target for logs and
// may carry credentials; pass it through redactRedisAddr before logging.
//
//nolint:ireturn // see ConnectRedis
func newRedisClient(cfg config.RedisConfig) (client redis.UniversalClient, desc string, err error) {
	switch {
	case cfg.UseCluster:
		return newClusterClient(cfg)
	case cfg.UseSentinel:
		if len(cfg.SentinelNodes) == 0 {
			return nil, "", errors.New("redis sentinel configuration requires at least one sentinel node")
		}
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       cfg.SentinelMasterName,
			SentinelAddrs:    cfg.SentinelNodes,
			Password:         cfg.Password,
			SentinelPassword: cfg.SentinelPassword,
		}), "sentinel:" + cfg.SentinelMasterName, nil
	}

	uri := strings.TrimSpace(cfg.URI)
	switch {
	case uri == "":
		return nil, "", errors.New("redis direct configuration requires a URI")
	case isRedisURL(uri):
		opt, err := redis.ParseURL(uri)
		if err != nil {
			return nil, "", fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), opt.Addr, nil
	default:
		return redis.NewClient(&redis.Options{Addr: uri, Password: cfg.Password}), uri, nil
	}
}

//nolint:ireturn // see ConnectRedis
func newClusterClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	opts := &redis.ClusterOptions{
		Addrs:    normalizeAddrs(cfg.ClusterNodes),
		Password: cfg.Password,
	}
	if len(opts.Addrs) == 0 {
		seed, err := clusterSeedFromURI(cfg.URI, cfg.Password)
		if err != nil {
			return nil, "", err
		}
		if seed.Addr != "" {
			opts.Addrs = []string{seed.Addr}
			opts.Username = seed.Username
			opts.Password = seed.Password
			opts.TLSConfig = seed.TLS
		}
	}
	if len(opts.Addrs) == 0 {
		return nil, "", errors.New("redis cluster configuration requires at least one address")
	}
	return redis.NewClusterClient(opts), "cluster:" + strings.Join(opts.Addrs, ","), nil
}

// clusterSeed is the single cluster entry point taken from REDIS_URI when
// REDIS_CLUSTER_NODES is empty.
type clusterSeed struct {
	Addr     string
	Username string
	Password string
	TLS      *tls.Config
}

func clusterSeedFromURI(uri, defaultPassword string) (clusterSeed, error) {
	seed := clusterSeed{Addr: strings.TrimSpace(uri), Password: defaultPassword}
	if !isRedisURL(seed.Addr) {
		return seed, nil
	}

	opt, err := redis.ParseURL(seed.Addr)
	if err != nil {
		return clusterSeed{}, fmt.Errorf("parse redis cluster url: %w", err)
	}
	seed.Addr = opt.Addr
	seed.Username = opt.Username
	seed.TLS = opt.TLSConfig
	if opt.Password != "" {
		seed.Password = opt.Password
	}
	return seed, nil
}

func normalizeAddrs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, addr := range raw {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func isRedisURL(s string) bool {
	return strings.HasPrefix(s, "redis://") || strings.HasPrefix(s, "rediss://")
}

// redactRedisAddr strips credentials from a target description.
func redactRedisAddr(desc string) string {
	if u, err := url.Parse(desc); err == nil && u.User != nil {
		u.User = url.User("*")
		return u.Redacted()
	}
	if i := strings.LastIndex(desc, "@"); i > -1 {
		return desc[i+1:]
	}
	return desc
}
