package app

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func mustFloat(t *testing.T, s string) float64 {
	t.Helper()
	f, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return f
}

func dialPlanner(t *testing.T, p *Planner) *PlannerClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterPlannerServer(srv, NewGrpcHandler(p))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewPlannerClient(conn)
}

func TestGrpcSimulate(t *testing.T) {
	p := newTestPlanner(t, nil)
	client := dialPlanner(t, p)

	req, err := structpb.NewStruct(map[string]any{"n_sensors": 16, "seed": 3})
	require.NoError(t, err)
	out, err := client.Simulate(context.Background(), req)
	require.NoError(t, err)

	latest := p.Latest()
	require.NotNil(t, latest)
	summary := out.GetFields()["summary"].GetStructValue().AsMap()
	assert.Equal(t, latest.RunID, summary["run_id"])
	assert.Equal(t, 16.0, summary["n_sensors"])

	route := out.GetFields()["route"].GetListValue().GetValues()
	require.Len(t, route, len(latest.Solution.Route))
	assert.Equal(t, 0.0, route[0].GetNumberValue())
}

func TestGrpcSimulate_InvalidArgument(t *testing.T) {
	client := dialPlanner(t, newTestPlanner(t, nil))

	req, err := structpb.NewStruct(map[string]any{"radius_km": -5})
	require.NoError(t, err)
	_, err = client.Simulate(context.Background(), req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	req, err = structpb.NewStruct(map[string]any{"n_sensors": int64(1) << 45})
	require.NoError(t, err)
	_, err = client.Simulate(context.Background(), req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	req, err = structpb.NewStruct(map[string]any{"n_sensors": "many"})
	require.NoError(t, err)
	_, err = client.Simulate(context.Background(), req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
