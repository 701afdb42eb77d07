package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fakeDB struct{ err error }

func (f *fakeDB) PingContext(context.Context) error { return f.err }

func status(t *testing.T, s *Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.Health().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestCheckDBTracksDatabase(t *testing.T) {
	db := &fakeDB{}
	s := NewServer(db)

	require.NoError(t, s.CheckDB(context.Background()))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, s, ""))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, s, ServiceName))

	db.err = errors.New("database is closed")
	require.Error(t, s.CheckDB(context.Background()))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, s, ""))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, s, ServiceName))
}
