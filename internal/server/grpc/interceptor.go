package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/apperr"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/guard"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/structpb"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// projectIDMetadataKey carries a project id outside the message body.
const projectIDMetadataKey = "project_id"

type policy struct {
	authenticated bool
	guarded       bool
	level         guard.Level
}

var methodPolicies = map[string]policy{
	MethodListProjectUsers:  {authenticated: true, guarded: true, level: guard.AccessUser},
	MethodAddProjectUser:    {authenticated: true, guarded: true, level: guard.AccessAdmin},
	MethodRemoveProjectUser: {authenticated: true, guarded: true, level: guard.AccessAdmin},
}

// UserIDFromContext returns the identity set by accessTokenInterceptor.
func UserIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(userIDKey).(string)
	return s
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if !methodPolicies[info.FullMethod].authenticated {
		return handler(ctx, req)
	}

	accessToken := firstMetadata(ctx, common.AccessTokenHeaderName)
	if accessToken == "" {
		return nil, toStatus(apperr.Unauthenticated("missing token", "No access_token metadata"))
	}

	claims, err := auth.Verify(accessToken, s.jwtSecret)
	if err != nil {
		return nil, toStatus(apperr.Unauthenticated("invalid or expired token", err.Error()))
	}
	if claims.Subject == "" {
		return nil, toStatus(apperr.Unauthenticated("invalid or expired token", "Access token has no subject"))
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, toStatus(apperr.Unauthenticated("invalid or expired token", "Access token subject is not a user id"))
	}

	ctx = context.WithValue(ctx, userIDKey, claims.Subject)
	return handler(ctx, req)
}

func (s *GRPCServer) projectGuardInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	p, ok := methodPolicies[info.FullMethod]
	if !ok || !p.guarded {
		return handler(ctx, req)
	}

	params := guard.Params{}
	if m, ok := req.(proto.Message); ok {
		messageParams(params, m)
	}
	if v := firstMetadata(ctx, projectIDMetadataKey); v != "" {
		params.Set(guard.SourceMetadata, projectIDMetadataKey, v)
	}

	if err := s.guard.Authorize(ctx, UserIDFromContext(ctx), p.level, params); err != nil {
		return nil, toStatus(err)
	}
	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		st := status.Convert(err)
		s.logger.Debug(ctx, "rpc failed", "method", info.FullMethod, "code", st.Code().String(), "message", st.Message())
	}
	return resp, err
}

// messageParams exposes the top-level string fields of m as body
// parameters, under both the proto name and the JSON name.
func messageParams(params guard.Params, m proto.Message) {
	if st, ok := m.(*structpb.Struct); ok {
		for k, v := range st.GetFields() {
			if sv, ok := v.GetKind().(*structpb.Value_StringValue); ok {
				params.Set(guard.SourceBody, k, sv.StringValue)
			}
		}
		return
	}

	m.ProtoReflect().Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		if fd.Kind() != protoreflect.StringKind || fd.IsList() || fd.IsMap() {
			return true
		}
		params.Set(guard.SourceBody, string(fd.Name()), v.String())
		if jn := fd.JSONName(); jn != "" && jn != string(fd.Name()) {
			params.Set(guard.SourceBody, jn, v.String())
		}
		return true
	})
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}
