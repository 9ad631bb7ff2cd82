package client

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/todokeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// HealthClient checks the server's grpc.health.v1 endpoint.
type HealthClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      healthpb.HealthClient
}

func NewHealthClient(endpointURL string) (*HealthClient, error) {
	conn, err := grpc.NewClient(endpointURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &HealthClient{endpointURL: endpointURL, conn: conn, client: healthpb.NewHealthClient(conn)}, nil
}

// Ping returns nil when the todo service reports SERVING.
func (h *HealthClient) Ping(ctx context.Context) error {
	resp, err := h.client.Check(ctx, &healthpb.HealthCheckRequest{Service: common.ServiceName})
	if err != nil {
		return h.mapError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.GetStatus())
	}
	return nil
}

func (h *HealthClient) Close() error {
	if h.conn == nil {
		return nil
	}
	return h.conn.Close()
}

func (h *HealthClient) mapError(err error) error {
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.NotFound, codes.Canceled:
			return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
		}
	}
	return fmt.Errorf("health check: %w", err)
}
