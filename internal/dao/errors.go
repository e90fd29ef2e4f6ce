package dao

import (
	"errors"
	"fmt"

	"propspace/space-portal/space-portal-backend/internal/registry"
)

// ErrorType classifies orchestrator failures.
type ErrorType string

const (
	ErrorTypeUnauthorized ErrorType = "Unauthorized"
	ErrorTypeNotFound     ErrorType = "NotFound"
	ErrorTypeFailure      ErrorType = "Failure"
	// ErrorTypeNftRejected means the remote call completed and the registry
	// rejected the operation with a domain error.
	ErrorTypeNftRejected ErrorType = "NftRejected"
	// ErrorTypeRemoteCallFailed means the call to the registry did not
	// complete. Nothing can be assumed about the remote state; the failure is
	// final and is never retried with side effects.
	ErrorTypeRemoteCallFailed ErrorType = "RemoteCallFailed"
)

// ServiceError is the DAO's error taxonomy. A remote domain rejection keeps
// the registry error attached so callers can act on the specific variant.
type ServiceError struct {
	Type    ErrorType          `json:"type"`
	Nft     *registry.NftError `json:"nft,omitempty"`
	Message string             `json:"message,omitempty"`
}

func (e *ServiceError) Error() string {
	if e.Nft != nil {
		return fmt.Sprintf("%s: %s", e.Type, e.Nft.Error())
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func serviceErr(t ErrorType, format string, args ...any) *ServiceError {
	return &ServiceError{Type: t, Message: fmt.Sprintf(format, args...)}
}

// wrapRemote translates a registry-client error into the orchestrator
// taxonomy, keeping the transport/domain distinction intact.
func wrapRemote(err error) *ServiceError {
	if nerr, ok := registry.AsNftError(err); ok {
		if nerr.Code == "NotCustodian" {
			return &ServiceError{Type: ErrorTypeUnauthorized, Message: nerr.Error()}
		}
		return &ServiceError{Type: ErrorTypeNftRejected, Nft: nerr}
	}
	var callErr *CallError
	if errors.As(err, &callErr) {
		return &ServiceError{Type: ErrorTypeRemoteCallFailed, Message: callErr.Error()}
	}
	return &ServiceError{Type: ErrorTypeFailure, Message: err.Error()}
}
