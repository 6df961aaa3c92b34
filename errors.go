package oauthkit

import (
	"fmt"

	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/request"
	"github.com/dpup/oauthkit/univalue"
	"google.golang.org/grpc/codes"
)

// Error taxonomy. Returned errors are prefixed with context but still match
// these sentinels with errors.Is.
var (
	// ErrParse is returned for malformed provider responses.
	ErrParse = univalue.ErrParse

	// ErrRequest marks transport and HTTP failures, see request.Error.
	ErrRequest = request.ErrRequest

	// ErrAuthorization is returned when a provider rejects a flow.
	ErrAuthorization = errors.NewC("authorization failed", codes.PermissionDenied)

	// ErrAccessDenied is returned when the user declined consent. It also
	// matches ErrAuthorization.
	ErrAccessDenied = errors.NewC(fmt.Errorf("access denied: %w", ErrAuthorization), codes.PermissionDenied)

	// ErrAccessToken is returned when a token is missing, expired or lacks
	// what an operation needs.
	ErrAccessToken = errors.NewC("access token error", codes.Unauthenticated)

	ErrClientNotRegistered     = errors.NewC("client not registered", codes.NotFound)
	ErrDuplicateProvider       = errors.NewC("duplicate provider", codes.AlreadyExists)
	ErrUnknownProvider         = errors.NewC("unknown provider", codes.InvalidArgument)
	ErrUnknownOrExpiredRequest = errors.NewC("unknown or expired authorization request", codes.FailedPrecondition)
	ErrMissingCredentials      = errors.NewC("missing credentials", codes.InvalidArgument)
	ErrNotSupported            = errors.NewC("not supported by provider", codes.Unimplemented)

	// ErrAPI is returned when a provider answers but reports an error.
	ErrAPI = errors.NewC("provider api error", codes.FailedPrecondition)

	// ErrInvalidConfig is returned for incomplete provider configuration.
	ErrInvalidConfig = errors.NewC("invalid provider configuration", codes.InvalidArgument)
)

// APIError carries a provider reported error.
type APIError struct {
	StatusCode int
	Info       ErrorInfo
}

func (e *APIError) Error() string {
	if e.Info.Message != "" && e.Info.Message != e.Info.Code {
		return fmt.Sprintf("provider api error: %s: %s", e.Info.Code, e.Info.Message)
	}
	return "provider api error: " + e.Info.Code
}

// Is matches ErrAPI.
func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

// Code returns a gRPC code for the error.
func (e *APIError) Code() codes.Code {
	return codes.FailedPrecondition
}
