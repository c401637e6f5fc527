package app

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/simulation"
)

// The planner RPC carries the same JSON documents as POST /simulate inside a
// google.protobuf.Struct, so no generated stubs are needed.
const (
	PlannerServiceName = "irrigation.planner.v1.PlannerService"
	simulateMethod     = "/" + PlannerServiceName + "/Simulate"
)

type PlannerServer interface {
	Simulate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func simulateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlannerServer).Simulate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: simulateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PlannerServer).Simulate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var plannerServiceDesc = grpc.ServiceDesc{
	ServiceName: PlannerServiceName,
	HandlerType: (*PlannerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Simulate", Handler: simulateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "irrigation/planner.proto",
}

func RegisterPlannerServer(s grpc.ServiceRegistrar, srv PlannerServer) {
	s.RegisterService(&plannerServiceDesc, srv)
}

// GrpcHandler exposes Planner.Simulate over gRPC.
type GrpcHandler struct {
	planner *Planner
}

func NewGrpcHandler(p *Planner) *GrpcHandler {
	return &GrpcHandler{planner: p}
}

func (h *GrpcHandler) Simulate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	raw, err := in.MarshalJSON()
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "request: %v", err)
	}
	var req SimulateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "request: %v", err)
	}

	res, err := h.planner.Simulate(req.Config(h.planner.cfg.Defaults))
	if err != nil {
		if errors.Is(err, simulation.ErrInvalidConfiguration) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	h.planner.log.Printf("grpc: Simulate run=%s targets=%d", res.RunID, res.Summary.TargetCount)
	return toStruct(newSimulateResponse(res))
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "response: %v", err)
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, status.Errorf(codes.Internal, "response: %v", err)
	}
	return out, nil
}

// PlannerClient calls a remote planner.
type PlannerClient struct {
	cc grpc.ClientConnInterface
}

func NewPlannerClient(cc grpc.ClientConnInterface) *PlannerClient {
	return &PlannerClient{cc: cc}
}

func (c *PlannerClient) Simulate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, simulateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
