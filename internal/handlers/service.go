package handlers

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "reverserelations.v1.ReverseRelations"

// Full method names
const (
	NormalizeValueMethod      = "/" + ServiceName + "/NormalizeValue"
	GetEagerLoadingMapMethod  = "/" + ServiceName + "/GetEagerLoadingMap"
	BeforeElementSaveMethod   = "/" + ServiceName + "/BeforeElementSave"
	ListAvailableFieldsMethod = "/" + ServiceName + "/ListAvailableFields"
)

// ReverseRelationsServer is the server API for the ReverseRelations service.
// Requests and responses are google.protobuf.Struct messages.
type ReverseRelationsServer interface {
	NormalizeValue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEagerLoadingMap(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BeforeElementSave(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAvailableFields(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv ReverseRelationsServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReverseRelationsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ReverseRelationsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ReverseRelationsServiceDesc is the grpc.ServiceDesc for the ReverseRelations service
var ReverseRelationsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReverseRelationsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "NormalizeValue",
			Handler: unaryHandler(NormalizeValueMethod, func(srv ReverseRelationsServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.NormalizeValue(ctx, in)
			}),
		},
		{
			MethodName: "GetEagerLoadingMap",
			Handler: unaryHandler(GetEagerLoadingMapMethod, func(srv ReverseRelationsServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.GetEagerLoadingMap(ctx, in)
			}),
		},
		{
			MethodName: "BeforeElementSave",
			Handler: unaryHandler(BeforeElementSaveMethod, func(srv ReverseRelationsServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.BeforeElementSave(ctx, in)
			}),
		},
		{
			MethodName: "ListAvailableFields",
			Handler: unaryHandler(ListAvailableFieldsMethod, func(srv ReverseRelationsServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return srv.ListAvailableFields(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reverserelations/v1/reverse_relations.proto",
}

// RegisterReverseRelationsServer registers srv on s
func RegisterReverseRelationsServer(s grpc.ServiceRegistrar, srv ReverseRelationsServer) {
	s.RegisterService(&ReverseRelationsServiceDesc, srv)
}

// ReverseRelationsClient is the client API for the ReverseRelations service
type ReverseRelationsClient struct {
	cc grpc.ClientConnInterface
}

// NewReverseRelationsClient creates a client on cc
func NewReverseRelationsClient(cc grpc.ClientConnInterface) *ReverseRelationsClient {
	return &ReverseRelationsClient{cc: cc}
}

// NormalizeValue calls ReverseRelations.NormalizeValue
func (c *ReverseRelationsClient) NormalizeValue(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, NormalizeValueMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEagerLoadingMap calls ReverseRelations.GetEagerLoadingMap
func (c *ReverseRelationsClient) GetEagerLoadingMap(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetEagerLoadingMapMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// BeforeElementSave calls ReverseRelations.BeforeElementSave
func (c *ReverseRelationsClient) BeforeElementSave(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, BeforeElementSaveMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAvailableFields calls ReverseRelations.ListAvailableFields
func (c *ReverseRelationsClient) ListAvailableFields(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListAvailableFieldsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
