package sink

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"testing"
	"time"

	testcontainers "github.com/testcontainers/testcontainers-go"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"
)

// skipWithoutDocker skips t when no container provider is reachable. The
// provider check panics on hosts without any Docker socket.
func skipWithoutDocker(t *testing.T) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("docker unavailable: %v", r)
		}
	}()
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

func newRedisForTest(t *testing.T, maxReports int) *Redis {
	t.Helper()
	skipWithoutDocker(t)

	ctx := context.Background()
	container, err := rediscontainer.Run(ctx, "redis:7.2-alpine")
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("container mapped port: %v", err)
	}
	p, err := strconv.Atoi(port.Port())
	if err != nil {
		t.Fatalf("parse mapped port: %v", err)
	}

	s, err := NewRedis(&RedisConfig{
		Host:        host,
		Port:        p,
		DialTimeout: 5 * time.Second,
		MaxReports:  maxReports,
	})
	if err != nil {
		t.Fatalf("NewRedis() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedis_UploadKeepsNewestFirst(t *testing.T) {
	s := newRedisForTest(t, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		r := sampleReport()
		r.Errors[0].Msg = fmt.Sprintf("e%d", i)
		if err := s.Upload(ctx, "web", r); err != nil {
			t.Fatalf("Upload() error: %v", err)
		}
	}

	reports, err := s.Reports(ctx, "web", 0)
	if err != nil {
		t.Fatalf("Reports() error: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("Reports() = %d, want 3 (capped)", len(reports))
	}
	for i, want := range []string{"e4", "e3", "e2"} {
		if got := reports[i].Errors[0].Msg; got != want {
			t.Errorf("reports[%d] = %q, want %q", i, got, want)
		}
	}

	latest, err := s.Reports(ctx, "web", 1)
	if err != nil {
		t.Fatalf("Reports(1) error: %v", err)
	}
	if len(latest) != 1 || latest[0].Errors[0].Msg != "e4" {
		t.Errorf("Reports(1) = %+v, want only e4", latest)
	}
}

func TestRedis_Beacons(t *testing.T) {
	s := newRedisForTest(t, 0)
	ctx := context.Background()

	if err := s.Send(ctx, "load", "POST", url.Values{"domComplete": {"650"}}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	beacons, err := s.Beacons(ctx, "load")
	if err != nil {
		t.Fatalf("Beacons() error: %v", err)
	}
	if len(beacons) != 1 || beacons[0].Data.Get("domComplete") != "650" {
		t.Errorf("Beacons() = %+v", beacons)
	}
}

func TestSkipWithoutDocker_NeverPanics(t *testing.T) {
	// Either skips or returns; a panic here would abort the package.
	skipWithoutDocker(t)
}

func TestRedis_ConfigErrors(t *testing.T) {
	if _, err := NewRedis(nil); err == nil {
		t.Error("nil config should fail")
	}
	if _, err := NewRedis(&RedisConfig{Host: "localhost"}); err == nil {
		t.Error("missing port should fail")
	}
}
