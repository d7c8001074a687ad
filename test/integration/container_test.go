package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "dashboard"
	pgPassword = "dashboard"
	pgDatabase = "dashboard_test"
)

// pgContainer is a throwaway postgres started through the Docker CLI.
type pgContainer struct {
	id  string
	dsn string
}

// startPostgres runs pgImage on a host port chosen by Docker and blocks until
// it answers queries or readyWithin elapses.
func startPostgres(ctx context.Context, readyWithin time.Duration) (*pgContainer, error) {
	out, err := docker(ctx, "run", "-d", "--rm",
		"--label", "dashboard.integration=true",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER="+pgUser,
		"-e", "POSTGRES_PASSWORD="+pgPassword,
		"-e", "POSTGRES_DB="+pgDatabase,
		pgImage,
	)
	if err != nil {
		return nil, err
	}
	pc := &pgContainer{id: out}

	addr, err := pc.hostAddr(ctx)
	if err != nil {
		pc.stop()
		return nil, err
	}
	pc.dsn = fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgUser, pgPassword, addr, pgDatabase)

	if err := pc.waitReady(ctx, readyWithin); err != nil {
		pc.stop()
		return nil, err
	}
	return pc, nil
}

// hostAddr reads the published address of the container's 5432/tcp.
func (pc *pgContainer) hostAddr(ctx context.Context) (string, error) {
	out, err := docker(ctx, "port", pc.id, "5432/tcp")
	if err != nil {
		return "", err
	}
	// Docker may list an IPv6 binding on a second line.
	first, _, _ := strings.Cut(out, "\n")
	host, port, err := net.SplitHostPort(strings.TrimSpace(first))
	if err != nil {
		return "", fmt.Errorf("parse published port %q: %w", out, err)
	}
	return net.JoinHostPort(host, port), nil
}

func (pc *pgContainer) waitReady(ctx context.Context, within time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, within)
	defer cancel()

	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()

	var lastErr error
	for {
		if lastErr = pc.ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres %s not ready after %s: %w", pc.id, within, lastErr)
		case <-tick.C:
		}
	}
}

func (pc *pgContainer) ping(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, pc.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())
	var one int
	return conn.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// stop removes the container. --rm on run makes a second call harmless.
func (pc *pgContainer) stop() {
	_, _ = docker(context.Background(), "rm", "-f", pc.id)
}

func docker(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			return "", fmt.Errorf("docker %s: %s", args[0], strings.TrimSpace(string(out)))
		}
		return "", fmt.Errorf("docker %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}
