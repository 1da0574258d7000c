// Package grpc exposes the session and project membership operations over
// gRPC. Messages are google.protobuf.Struct values so clients need no
// generated stubs; the standard health service is registered alongside.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/guard"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/projectusers"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SessionService is satisfied by *services.SessionManager.
type SessionService interface {
	CreateSession(ctx context.Context, user *models.User) (*services.Session, error)
	Refresh(ctx context.Context, token string) (*services.AccessToken, error)
	Expire(ctx context.Context, token string) error
}

// CredentialService is satisfied by *services.CredentialVerifier.
type CredentialService interface {
	VerifyPassword(ctx context.Context, email, password string) (*models.User, error)
}

// Authorizer is satisfied by *guard.Guard.
type Authorizer interface {
	Authorize(ctx context.Context, identity string, level guard.Level, params guard.Params) error
}

type GRPCServer struct {
	address     string
	sessions    SessionService
	credentials CredentialService
	guard       Authorizer
	members     projectusers.Repository
	logger      logging.Logger
	jwtSecret   []byte
	health      *health.Server
}

func NewGRPCServer(a string, l logging.Logger, ss SessionService, cs CredentialService, g Authorizer, m projectusers.Repository, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:     a,
		logger:      l.With("module", "grpc_server"),
		sessions:    ss,
		credentials: cs,
		guard:       g,
		members:     m,
		jwtSecret:   []byte(secretKey),
		health:      health.NewServer(),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.loggingInterceptor,
		s.accessTokenInterceptor,
		s.projectGuardInterceptor,
	))
	srv.RegisterService(&serviceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
