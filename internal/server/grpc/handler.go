package grpc

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/apperr"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email, password := field(req, "email"), field(req, "password")
	if email == "" || password == "" {
		return nil, toStatus(apperr.Invalid("email and password are required", "Empty login field"))
	}

	user, err := s.credentials.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, toStatus(err)
	}
	session, err := s.sessions.CreateSession(ctx, user)
	if err != nil {
		return nil, toStatus(err)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return structpb.NewStruct(map[string]any{
		"accessToken":  session.AccessToken,
		"refreshToken": session.RefreshToken,
		"expiresIn":    session.ExpiresIn,
	})
}

func (s *GRPCServer) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	at, err := s.sessions.Refresh(ctx, field(req, "refreshToken"))
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"accessToken": at.Token,
		"expiresIn":   at.ExpiresIn,
	})
}

func (s *GRPCServer) Logout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if token := field(req, "refreshToken"); token != "" {
		if err := s.sessions.Expire(ctx, token); err != nil {
			return nil, toStatus(err)
		}
	}
	return &structpb.Struct{}, nil
}

func (s *GRPCServer) ListProjectUsers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.members.List(ctx, projectIDOf(req))
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]any, 0, len(list))
	for _, u := range list {
		out = append(out, map[string]any{"id": u.ID, "email": u.Email})
	}
	return structpb.NewStruct(map[string]any{"users": out})
}

func (s *GRPCServer) AddProjectUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	projectID, userID := projectIDOf(req), field(req, "user_id")
	if _, err := uuid.Parse(userID); err != nil {
		return nil, toStatus(apperr.Invalid("user_id must be a UUID", err.Error()))
	}
	if _, err := s.members.Create(ctx, userID, projectID); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, toStatus(apperr.New(apperr.ValidationError, http.StatusConflict, "The user is already a member of the project", "Duplicate membership edge"))
		}
		return nil, toStatus(err)
	}
	return &structpb.Struct{}, nil
}

func (s *GRPCServer) RemoveProjectUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	projectID, userID := projectIDOf(req), field(req, "user_id")
	if _, err := uuid.Parse(userID); err != nil {
		return nil, toStatus(apperr.Invalid("user_id must be a UUID", err.Error()))
	}
	if err := s.members.Delete(ctx, projectID, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, toStatus(apperr.NoSuchUser("The user is not a member of the project", "No membership edge for "+userID))
		}
		return nil, toStatus(err)
	}
	return &structpb.Struct{}, nil
}

func field(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func projectIDOf(req *structpb.Struct) string {
	if v := field(req, "project_id"); v != "" {
		return v
	}
	return field(req, "projectId")
}
