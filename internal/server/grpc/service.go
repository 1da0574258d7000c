package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "gatekeeper.v1.Gatekeeper"

const (
	MethodLogin             = "/" + ServiceName + "/Login"
	MethodRefresh           = "/" + ServiceName + "/Refresh"
	MethodLogout            = "/" + ServiceName + "/Logout"
	MethodListProjectUsers  = "/" + ServiceName + "/ListProjectUsers"
	MethodAddProjectUser    = "/" + ServiceName + "/AddProjectUser"
	MethodRemoveProjectUser = "/" + ServiceName + "/RemoveProjectUser"
)

type gatekeeperServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProjectUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddProjectUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveProjectUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(gatekeeperServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodDesc(name string, fn unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(gatekeeperServer)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*gatekeeperServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc("Login", gatekeeperServer.Login),
		methodDesc("Refresh", gatekeeperServer.Refresh),
		methodDesc("Logout", gatekeeperServer.Logout),
		methodDesc("ListProjectUsers", gatekeeperServer.ListProjectUsers),
		methodDesc("AddProjectUser", gatekeeperServer.AddProjectUser),
		methodDesc("RemoveProjectUser", gatekeeperServer.RemoveProjectUser),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gatekeeper/v1/gatekeeper.proto",
}
