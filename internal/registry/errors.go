package registry

import (
	"errors"
	"fmt"
)

// ErrNotCustodian is the guard-level authorization failure. It is deliberately
// outside the NFT error taxonomy: handlers surface it as a plain reason string.
var ErrNotCustodian = errors.New("caller is not a custodian of this registry")

// ErrorCode identifies a domain-level registry failure.
type ErrorCode string

const (
	ErrCodeSelfTransfer         ErrorCode = "SelfTransfer"
	ErrCodeTokenNotFound        ErrorCode = "TokenNotFound"
	ErrCodeTxNotFound           ErrorCode = "TxNotFound"
	ErrCodeSelfApprove          ErrorCode = "SelfApprove"
	ErrCodeOperatorNotFound     ErrorCode = "OperatorNotFound"
	ErrCodeUnauthorizedOwner    ErrorCode = "UnauthorizedOwner"
	ErrCodeUnauthorizedOperator ErrorCode = "UnauthorizedOperator"
	ErrCodeExistedNFT           ErrorCode = "ExistedNFT"
	ErrCodeOwnerNotFound        ErrorCode = "OwnerNotFound"
	ErrCodeUnitsNotAvailable    ErrorCode = "UnitsNotAvailable"
	ErrCodeInsufficientUnits    ErrorCode = "InsufficientUnits"
	ErrCodeSenderNotOwner       ErrorCode = "SenderNotOwner"
	ErrCodeOther                ErrorCode = "Other"
)

// NftError is a domain error returned by registry operations. Operations return
// it instead of escalating; no registry failure is fatal.
type NftError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message,omitempty"`
}

func (e *NftError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

// nftErr builds a bare taxonomy error.
func nftErr(code ErrorCode) *NftError {
	return &NftError{Code: code}
}

// otherErr builds an Other(...) error for conditions the taxonomy has no
// dedicated variant for.
func otherErr(format string, args ...any) *NftError {
	return &NftError{Code: ErrCodeOther, Message: fmt.Sprintf(format, args...)}
}

// AsNftError unwraps err into the registry taxonomy if it belongs to it.
func AsNftError(err error) (*NftError, bool) {
	var nerr *NftError
	if errors.As(err, &nerr) {
		return nerr, true
	}
	return nil, false
}
