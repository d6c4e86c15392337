package report

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "statusroll.v1.ReportService"

	// ReportMethod is the full method name, as seen by interceptors.
	ReportMethod = "/" + ServiceName + "/Report"
)

// ReportServiceServer is implemented by the server side of ReportService.
type ReportServiceServer interface {
	Report(context.Context, *Report) (*Ack, error)
}

// UnimplementedReportServiceServer answers every call with codes.Unimplemented.
type UnimplementedReportServiceServer struct{}

func (UnimplementedReportServiceServer) Report(context.Context, *Report) (*Ack, error) {
	return nil, grpcstatus.Error(codes.Unimplemented, "method Report not implemented")
}

// RegisterReportServiceServer registers srv on s.
func RegisterReportServiceServer(s grpc.ServiceRegistrar, srv ReportServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReportServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Report", Handler: reportHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "statusroll/v1/report.proto",
}

func reportHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	handle := func(ctx context.Context, req any) (any, error) {
		r, err := FromStruct(req.(*structpb.Struct))
		if err != nil {
			return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
		}
		ack, err := srv.(ReportServiceServer).Report(ctx, r)
		if err != nil {
			return nil, err
		}
		if ack == nil {
			return nil, grpcstatus.Error(codes.Internal, "report: nil ack")
		}
		return ack.ToStruct()
	}
	if interceptor == nil {
		return handle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ReportMethod}
	return interceptor(ctx, in, info, handle)
}

// ReportServiceClient is the client side of ReportService.
type ReportServiceClient interface {
	Report(ctx context.Context, r *Report, opts ...grpc.CallOption) (*Ack, error)
}

type reportServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewReportServiceClient returns a client that sends over cc.
func NewReportServiceClient(cc grpc.ClientConnInterface) ReportServiceClient {
	return &reportServiceClient{cc: cc}
}

func (c *reportServiceClient) Report(ctx context.Context, r *Report, opts ...grpc.CallOption) (*Ack, error) {
	in, err := r.ToStruct()
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ReportMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return AckFromStruct(out)
}
