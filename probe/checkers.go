package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// TCPChecker reports success as soon as the target accepts a TCP connection.
// This is the default probe because it needs no credentials.
type TCPChecker struct {
	Addr    string
	Timeout time.Duration
}

// NewTCPChecker creates a TCP connect probe for addr.
func NewTCPChecker(addr string, timeout time.Duration) *TCPChecker {
	return &TCPChecker{Addr: addr, Timeout: timeout}
}

// Check dials the target and closes the connection immediately.
func (c *TCPChecker) Check(ctx context.Context) error {
	d := net.Dialer{Timeout: c.Timeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.Addr, err)
	}
	return conn.Close()
}

// Target returns the probed address.
func (c *TCPChecker) Target() string { return "tcp://" + c.Addr }

// PostgresChecker verifies the database is accepting queries, not merely TCP
// connections. Postgres answers dials during crash recovery well before it
// can serve a session, so the deep probe avoids a false ready signal.
type PostgresChecker struct {
	url    string
	target string
}

// NewPostgresChecker creates a query probe for the given postgres URL.
func NewPostgresChecker(databaseURL string) *PostgresChecker {
	// Keep credentials out of the printable target.
	target := "postgres"
	if u, err := neturl.Parse(databaseURL); err == nil && u.Host != "" {
		target = "postgres://" + u.Host + u.Path
	}
	return &PostgresChecker{url: databaseURL, target: target}
}

// Check opens a fresh connection and runs SELECT 1.
func (c *PostgresChecker) Check(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, c.url)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	var result int
	if err := conn.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health query failed: %w", err)
	}
	return nil
}

// Target returns the probed server without credentials.
func (c *PostgresChecker) Target() string { return c.target }

// RedisChecker verifies a redis server answers PING.
type RedisChecker struct {
	client *redis.Client
	addr   string
}

// NewRedisChecker creates a PING probe for addr.
func NewRedisChecker(addr, password string) *RedisChecker {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0, // use default DB
	})
	return &RedisChecker{client: client, addr: addr}
}

// Check sends PING and expects PONG.
func (c *RedisChecker) Check(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Target returns the probed address.
func (c *RedisChecker) Target() string { return "redis://" + c.addr }

// Close releases the underlying client and its connection pool.
func (c *RedisChecker) Close() error { return c.client.Close() }

// HTTPChecker verifies an HTTP endpoint responds. Any status below 500 counts
// as ready since a 4xx still proves the service is up and routing requests.
type HTTPChecker struct {
	URL    string
	client *http.Client
}

// NewHTTPChecker creates a GET probe for url.
func NewHTTPChecker(url string, timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{URL: url, client: &http.Client{Timeout: timeout}}
}

// Check issues a GET and drains the response.
func (c *HTTPChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Target returns the probed URL.
func (c *HTTPChecker) Target() string { return c.URL }
