package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "docconv.v1.DocumentConverter"

// DocumentConverterServer is the gRPC surface. Every method exchanges google.protobuf.Struct
// messages whose fields follow the JSON shapes documented on the request types.
type DocumentConverterServer interface {
	Process(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Fingerprint(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MatchTemplate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateTemplate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateTemplate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTemplate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTemplates(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteTemplate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(DocumentConverterServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(DocumentConverterServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentConverterServer)(nil),
	Methods: []grpc.MethodDesc{
		method("Process", DocumentConverterServer.Process),
		method("Fingerprint", DocumentConverterServer.Fingerprint),
		method("MatchTemplate", DocumentConverterServer.MatchTemplate),
		method("CreateTemplate", DocumentConverterServer.CreateTemplate),
		method("UpdateTemplate", DocumentConverterServer.UpdateTemplate),
		method("GetTemplate", DocumentConverterServer.GetTemplate),
		method("ListTemplates", DocumentConverterServer.ListTemplates),
		method("DeleteTemplate", DocumentConverterServer.DeleteTemplate),
		method("ListRuns", DocumentConverterServer.ListRuns),
		method("RunStats", DocumentConverterServer.RunStats),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docconv/v1/service.proto",
}

func RegisterDocumentConverterServer(s grpc.ServiceRegistrar, srv DocumentConverterServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Client calls a remote DocumentConverter.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with in and returns the Struct reply.
func (c *Client) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// CallJSON encodes req, invokes method and decodes the reply into resp.
func (c *Client) CallJSON(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := encode(req)
	if err != nil {
		return err
	}
	out, err := c.Call(ctx, method, in, opts...)
	if err != nil {
		return err
	}
	return decode(out, resp)
}
