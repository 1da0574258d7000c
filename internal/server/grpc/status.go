package grpc

import (
	"github.com/dmitrijs2005/gatekeeper/internal/server/apperr"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const errorDomain = "gatekeeper"

var kindCodes = map[apperr.Kind]codes.Code{
	apperr.AuthenticationFailed: codes.Unauthenticated,
	apperr.AuthorizationFailed:  codes.PermissionDenied,
	apperr.UserDoesNotExist:     codes.InvalidArgument,
	apperr.ProjectDoesNotExist:  codes.NotFound,
	apperr.MissingProperty:      codes.InvalidArgument,
	apperr.ValidationError:      codes.InvalidArgument,
	apperr.Internal:             codes.Internal,
}

// toStatus converts err into a gRPC status carrying the public message and
// an ErrorInfo detail whose Reason is the error kind.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		if _, isApp := apperr.As(err); !isApp {
			return err
		}
	}

	e := apperr.From(err)
	code, ok := kindCodes[e.Name]
	if !ok {
		code = codes.Unknown
	}
	st := status.New(code, e.Message)
	if withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: string(e.Name), Domain: errorDomain}); derr == nil {
		st = withInfo
	}
	return st.Err()
}

// Reason extracts the error kind from a status produced by toStatus.
func Reason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}
