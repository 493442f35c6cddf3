package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "insurance.payments.v1.PaymentGateway"

const (
	MethodCreatePaymentURL = "/" + ServiceName + "/CreatePaymentURL"
	MethodProcessCallback  = "/" + ServiceName + "/ProcessCallback"
)

// PaymentGatewayServer exchanges google.protobuf.Struct messages so no
// generated stubs are needed on either side.
type PaymentGatewayServer interface {
	CreatePaymentURL(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessCallback(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var PaymentGatewayServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PaymentGatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreatePaymentURL", Handler: unaryHandler(MethodCreatePaymentURL, PaymentGatewayServer.CreatePaymentURL)},
		{MethodName: "ProcessCallback", Handler: unaryHandler(MethodProcessCallback, PaymentGatewayServer.ProcessCallback)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "insurance/payments/v1/payments.proto",
}

func RegisterPaymentGatewayServer(s grpc.ServiceRegistrar, srv PaymentGatewayServer) {
	s.RegisterService(&PaymentGatewayServiceDesc, srv)
}

type structMethod func(PaymentGatewayServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PaymentGatewayServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PaymentGatewayServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
