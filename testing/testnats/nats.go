// Package testnats starts a throwaway NATS server for integration tests.
package testnats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	shared     *Server
	sharedOnce sync.Once
)

type Server struct {
	Container testcontainers.Container
	URL       string
}

// Shared returns one NATS container for the whole test binary. Tests using
// it must not run in parallel.
func Shared(t *testing.T) *Server {
	t.Helper()

	sharedOnce.Do(func() {
		ctx := context.Background()

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "nats:2.10-alpine",
				ExposedPorts: []string{"4222/tcp"},
				WaitingFor:   wait.ForListeningPort("4222/tcp"),
			},
			Started: true,
		})
		require.NoError(t, err)

		host, err := container.Host(ctx)
		require.NoError(t, err)

		port, err := container.MappedPort(ctx, "4222")
		require.NoError(t, err)

		shared = &Server{
			Container: container,
			URL:       "nats://" + host + ":" + port.Port(),
		}
	})

	require.NotNil(t, shared, "NATS container failed to start")
	return shared
}

func (s *Server) Terminate(t *testing.T) {
	t.Helper()
	if s.Container != nil {
		if err := s.Container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
}

// Subscribe collects messages on subject into a buffered channel.
func (s *Server) Subscribe(t *testing.T, subject string) <-chan *nats.Msg {
	t.Helper()

	conn, err := nats.Connect(s.URL)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	ch := make(chan *nats.Msg, 64)
	sub, err := conn.ChanSubscribe(subject, ch)
	require.NoError(t, err)
	require.NoError(t, conn.FlushTimeout(5*time.Second))
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	return ch
}
