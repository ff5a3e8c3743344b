package multisig

import (
	"errors"

	"github.com/twitchtv/twirp"
)

var (
	ErrInvalidConfiguration    = errors.New("invalid wallet configuration")
	ErrInvalidTransfer         = errors.New("invalid transfer")
	ErrUnknownWallet           = errors.New("unknown wallet")
	ErrUnknownRequest          = errors.New("unknown request")
	ErrNotASigner              = errors.New("not a valid signer")
	ErrAlreadyApproved         = errors.New("already approved")
	ErrAlreadyCompleted        = errors.New("transaction already completed")
	ErrTransferExecutionFailed = errors.New("transfer execution failed")

	ErrUnknownToken      = errors.New("unknown token")
	ErrTokenExists       = errors.New("token already issued")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// twirpError converts err into the twirp error written to api clients.
func twirpError(err error) twirp.Error {
	var te twirp.Error
	if errors.As(err, &te) {
		return te
	}

	var code twirp.ErrorCode
	switch {
	case errors.Is(err, ErrInvalidConfiguration), errors.Is(err, ErrInvalidTransfer):
		code = twirp.InvalidArgument
	case errors.Is(err, ErrUnknownWallet), errors.Is(err, ErrUnknownRequest), errors.Is(err, ErrUnknownToken):
		code = twirp.NotFound
	case errors.Is(err, ErrNotASigner):
		code = twirp.PermissionDenied
	case errors.Is(err, ErrAlreadyApproved), errors.Is(err, ErrTokenExists):
		code = twirp.AlreadyExists
	case errors.Is(err, ErrAlreadyCompleted):
		code = twirp.FailedPrecondition
	case errors.Is(err, ErrTransferExecutionFailed), errors.Is(err, ErrInsufficientFunds):
		code = twirp.Aborted
	default:
		return twirp.InternalErrorWith(err)
	}

	return twirp.NewError(code, err.Error())
}
