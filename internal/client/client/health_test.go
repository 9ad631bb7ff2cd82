package client

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type fakeHealth struct {
	healthpb.HealthClient

	lastReq *healthpb.HealthCheckRequest
	resp    *healthpb.HealthCheckResponse
	err     error
}

func (f *fakeHealth) Check(ctx context.Context, in *healthpb.HealthCheckRequest, opts ...grpc.CallOption) (*healthpb.HealthCheckResponse, error) {
	f.lastReq = in
	return f.resp, f.err
}

func TestHealthPing_Serving(t *testing.T) {
	f := &fakeHealth{resp: &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}}
	h := &HealthClient{client: f}

	require.NoError(t, h.Ping(context.Background()))
	require.Equal(t, common.ServiceName, f.lastReq.Service)
}

func TestHealthPing_NotServing(t *testing.T) {
	f := &fakeHealth{resp: &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}}
	h := &HealthClient{client: f}

	require.ErrorIs(t, h.Ping(context.Background()), ErrUnavailable)
}

func TestHealthPing_MapsRPCError(t *testing.T) {
	h := &HealthClient{client: &fakeHealth{err: status.Error(codes.Unavailable, "down")}}
	require.ErrorIs(t, h.Ping(context.Background()), ErrUnavailable)

	h = &HealthClient{client: &fakeHealth{err: status.Error(codes.Internal, "boom")}}
	err := h.Ping(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrUnavailable))
}

func TestNewHealthClient_CloseWithoutDialing(t *testing.T) {
	h, err := NewHealthClient("127.0.0.1:1")
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, (&HealthClient{}).Close())
}
