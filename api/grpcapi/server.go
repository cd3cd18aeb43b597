// Package grpcapi exposes the engine's write path over gRPC. The
// service descriptor and codec are registered by hand so the wire
// format stays the engine's own command encoding.
package grpcapi

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"matchbook/service"
)

// Server adapts the engine to the command RPCs.
type Server struct {
	engine *service.Engine
	log    *zap.Logger
}

func NewServer(engine *service.Engine, log *zap.Logger) *Server {
	return &Server{engine: engine, log: log}
}

// NewGRPCServer builds a grpc server with the command codec forced and
// the service registered.
func NewGRPCServer(s *Server) *grpc.Server {
	gs := grpc.NewServer(grpc.ForceServerCodec(wireCodec{}))
	gs.RegisterService(&serviceDesc, s)
	return gs
}

func (s *Server) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*ExecutionResponse, error) {
	exec, err := s.engine.Place(req.Cmd)
	if errors.Is(err, service.ErrInvalidCommand) {
		return nil, status.Errorf(codes.InvalidArgument, "place order: %v", err)
	}
	if err != nil {
		s.log.Error("place order", zap.Uint64("orderId", req.Cmd.OrderID), zap.Error(err))
		return nil, status.Errorf(codes.Internal, "place order: %v", err)
	}
	return &ExecutionResponse{Exec: exec}, nil
}

func (s *Server) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*ExecutionResponse, error) {
	exec, err := s.engine.Cancel(req.OrderID, req.UID)
	if err != nil {
		s.log.Error("cancel order", zap.Uint64("orderId", req.OrderID), zap.Error(err))
		return nil, status.Errorf(codes.Internal, "cancel order: %v", err)
	}
	return &ExecutionResponse{Exec: exec}, nil
}

func (s *Server) MoveOrder(ctx context.Context, req *MoveOrderRequest) (*ExecutionResponse, error) {
	exec, err := s.engine.Move(req.OrderID, req.UID, req.Price)
	if err != nil {
		s.log.Error("move order", zap.Uint64("orderId", req.OrderID), zap.Error(err))
		return nil, status.Errorf(codes.Internal, "move order: %v", err)
	}
	return &ExecutionResponse{Exec: exec}, nil
}

const fullServiceName = "matchbook.v1.Matchbook"

var serviceDesc = grpc.ServiceDesc{
	ServiceName: fullServiceName,
	HandlerType: (*commandServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: placeOrderHandler},
		{MethodName: "CancelOrder", Handler: cancelOrderHandler},
		{MethodName: "MoveOrder", Handler: moveOrderHandler},
	},
	Streams: []grpc.StreamDesc{},
}

type commandServer interface {
	PlaceOrder(context.Context, *PlaceOrderRequest) (*ExecutionResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*ExecutionResponse, error)
	MoveOrder(context.Context, *MoveOrderRequest) (*ExecutionResponse, error)
}

func placeOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PlaceOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(commandServer).PlaceOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + fullServiceName + "/PlaceOrder"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(commandServer).PlaceOrder(ctx, req.(*PlaceOrderRequest))
	})
}

func cancelOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CancelOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(commandServer).CancelOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + fullServiceName + "/CancelOrder"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(commandServer).CancelOrder(ctx, req.(*CancelOrderRequest))
	})
}

func moveOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(MoveOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(commandServer).MoveOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + fullServiceName + "/MoveOrder"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(commandServer).MoveOrder(ctx, req.(*MoveOrderRequest))
	})
}
