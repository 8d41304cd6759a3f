package spentbookv1

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName     = "spentbook.v1.Spentbook"
	SpendFullMethod = "/spentbook.v1.Spentbook/Spend"
	InfoFullMethod  = "/spentbook.v1.Spentbook/Info"
	serviceMetadata = "spentbook/v1/service"
	spendMethodName = "Spend"
	infoMethodName  = "Info"
)

// SpentbookServer is the server API for the Spentbook service.
type SpentbookServer interface {
	Spend(context.Context, *SpendRequest) (*SpendReply, error)
	Info(context.Context, *InfoRequest) (*InfoReply, error)
}

// RegisterSpentbookServer ...
func RegisterSpentbookServer(s grpc.ServiceRegistrar, srv SpentbookServer) {
	s.RegisterService(&Spentbook_ServiceDesc, srv)
}

func _Spentbook_Spend_Handler(
	srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(SpendRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SpentbookServer).Spend(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SpendFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SpentbookServer).Spend(ctx, req.(*SpendRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Spentbook_Info_Handler(
	srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(InfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SpentbookServer).Info(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: InfoFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SpentbookServer).Info(ctx, req.(*InfoRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Spentbook_ServiceDesc is the grpc.ServiceDesc for the Spentbook service.
var Spentbook_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SpentbookServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: spendMethodName, Handler: _Spentbook_Spend_Handler},
		{MethodName: infoMethodName, Handler: _Spentbook_Info_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: serviceMetadata,
}

// SpentbookClient is the client API for the Spentbook service. Calls are
// always encoded with the spentbook protobuf codec.
type SpentbookClient interface {
	Spend(ctx context.Context, in *SpendRequest, opts ...grpc.CallOption) (*SpendReply, error)
	Info(ctx context.Context, in *InfoRequest, opts ...grpc.CallOption) (*InfoReply, error)
}

type spentbookClient struct {
	cc grpc.ClientConnInterface
}

// NewSpentbookClient ...
func NewSpentbookClient(cc grpc.ClientConnInterface) SpentbookClient {
	return &spentbookClient{cc}
}

func (c *spentbookClient) Spend(
	ctx context.Context, in *SpendRequest, opts ...grpc.CallOption,
) (*SpendReply, error) {
	out := new(SpendReply)
	if err := c.cc.Invoke(ctx, SpendFullMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *spentbookClient) Info(
	ctx context.Context, in *InfoRequest, opts ...grpc.CallOption,
) (*InfoReply, error) {
	out := new(InfoReply)
	if err := c.cc.Invoke(ctx, InfoFullMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
