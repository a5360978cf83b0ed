package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Keksclan/rawrguild/breaker"
	"github.com/Keksclan/rawrguild/ledger"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Status maps domain errors onto gRPC status errors. Cooldowns and open
// circuits carry a RetryInfo detail with the remaining wait.
func Status(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var (
		cooldown *ledger.CooldownError
		open     *breaker.OpenError
	)
	switch {
	case errors.As(err, &cooldown):
		msg := fmt.Sprintf("%s (retry in %d ms)", err.Error(), cooldown.RemainingMs())
		return withRetryInfo(codes.ResourceExhausted, msg, cooldown.Remaining)
	case errors.As(err, &open):
		return withRetryInfo(codes.Unavailable, err.Error(), open.RetryIn)
	case errors.Is(err, breaker.ErrOpen):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ledger.ErrInvalidEntry):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func withRetryInfo(code codes.Code, msg string, after time.Duration) error {
	st := status.New(code, msg)
	if after <= 0 {
		return st.Err()
	}
	detailed, err := st.WithDetails(&errdetails.RetryInfo{RetryDelay: durationpb.New(after)})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// RetryAfter extracts the RetryInfo delay attached by Status.
func RetryAfter(err error) (time.Duration, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return 0, false
	}
	for _, d := range st.Details() {
		if ri, ok := d.(*errdetails.RetryInfo); ok && ri.GetRetryDelay() != nil {
			return ri.GetRetryDelay().AsDuration(), true
		}
	}
	return 0, false
}
