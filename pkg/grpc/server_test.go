package grpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startTestServer(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := NewServer("bufconn", zerolog.Nop())

	go func() {
		_ = s.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		s.Stop(context.Background())
	})

	return s, healthpb.NewHealthClient(conn)
}

func TestServer_SetServing(t *testing.T) {
	s, client := startTestServer(t)
	ctx := context.Background()

	s.SetServing("boardwatch", true)

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "boardwatch"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	s.SetServing("boardwatch", false)

	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "boardwatch"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestServer_WatchProbe(t *testing.T) {
	s, client := startTestServer(t)

	var healthy atomic.Bool

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.WatchProbe(ctx, "store", 10*time.Millisecond, func(context.Context) error {
		if healthy.Load() {
			return nil
		}

		return errors.New("store unreachable")
	})

	assert.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "store"})

		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 10*time.Millisecond)

	healthy.Store(true)

	assert.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "store"})

		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 10*time.Millisecond)
}
