package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/reviewsearch/internal/db"
)

var _ db.Store = (*Store)(nil)

// Config holds connection parameters for the Redis deployment that hosts
// both FT indexes and the query embedding cache.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int

	DialTimeout  time.Duration // 0 keeps the rueidis default
	WriteTimeout time.Duration // 0 keeps the rueidis default
}

// Store implements db.Store over rueidis. It requires the Redis Query Engine
// (FT.* commands with BM25 text scoring and HNSW vectors).
type Store struct {
	client rueidis.Client
}

// NewStore dials Redis. Client-side caching is off: every key this store
// touches is rewritten wholesale by the offline pipeline.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:      cfg.Addrs,
		Username:         cfg.Username,
		Password:         cfg.Password,
		SelectDB:         cfg.DB,
		DisableCache:     true,
		AlwaysRESP2:      true, // FT.SEARCH/FT.INFO parsers expect flat RESP2 arrays
		Dialer:           net.Dialer{Timeout: cfg.DialTimeout},
		ConnWriteTimeout: cfg.WriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: connect %v: %w", cfg.Addrs, err)
	}

	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings with a doubling interval (100ms up to 2s) until Redis
// answers or timeout expires. The last ping error is reported on timeout.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := 100 * time.Millisecond
	var last error
	for {
		if last = s.Ping(ctx); last == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("redis not ready after %s: %w", timeout, errors.Join(ctx.Err(), last))
		case <-time.After(interval):
		}
		interval = min(interval*2, 2*time.Second)
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// redisErrContains reports whether err is a Redis server reply whose message
// contains any of the fragments, ignoring case. Module error texts differ
// between Redis releases ("Unknown index name" vs "no such index").
func redisErrContains(err error, fragments ...string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	msg := strings.ToLower(re.Error())
	for _, f := range fragments {
		if strings.Contains(msg, strings.ToLower(f)) {
			return true
		}
	}
	return false
}
