package api

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/matheus3301/shiftsync/internal/apperr"
)

// Domain is the ErrorInfo domain attached to every error status.
const Domain = "shiftsync"

func grpcCode(code apperr.Code) codes.Code {
	switch code {
	case apperr.CodeValidation:
		return codes.InvalidArgument
	case apperr.CodeNotFound:
		return codes.NotFound
	case apperr.CodeProcedure:
		return codes.Aborted
	case apperr.CodeSubscription:
		return codes.Unavailable
	case apperr.CodeParse:
		return codes.DataLoss
	default:
		return codes.Internal
	}
}

// ToStatus converts err to a gRPC status error carrying its apperr code as
// an ErrorInfo reason.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	code := apperr.CodeOf(err)
	st := status.New(grpcCode(code), err.Error())
	if code == "" {
		return st.Err()
	}
	info := &errdetails.ErrorInfo{Reason: string(code), Domain: Domain}
	var verr *apperr.ValidationError
	if errors.As(err, &verr) && verr.Field != "" {
		info.Metadata = map[string]string{"field": verr.Field, "message": verr.Message}
	}
	var nf *apperr.NotFoundError
	if errors.As(err, &nf) {
		info.Metadata = map[string]string{"kind": nf.Kind, "id": nf.ID}
	}
	var perr *apperr.ProcedureError
	if errors.As(err, &perr) {
		info.Metadata = map[string]string{"procedure": perr.Procedure, "call_id": perr.CallID}
	}
	withDetails, derr := st.WithDetails(info)
	if derr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

// FromStatus rebuilds the apperr type carried by a status error. Errors
// without shiftsync details are returned unchanged.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return err
	}
	var info *errdetails.ErrorInfo
	for _, d := range st.Details() {
		if ei, ok := d.(*errdetails.ErrorInfo); ok && ei.GetDomain() == Domain {
			info = ei
			break
		}
	}
	if info == nil {
		return err
	}
	cause := errors.New(st.Message())
	md := info.GetMetadata()
	switch apperr.Code(info.GetReason()) {
	case apperr.CodeValidation:
		if md["field"] != "" {
			return &apperr.ValidationError{Field: md["field"], Message: md["message"]}
		}
		return &apperr.ValidationError{Message: st.Message()}
	case apperr.CodeNotFound:
		return &apperr.NotFoundError{Kind: md["kind"], ID: md["id"]}
	case apperr.CodeProcedure:
		return &apperr.ProcedureError{Procedure: md["procedure"], CallID: md["call_id"], Err: cause}
	case apperr.CodeSubscription:
		return &apperr.SubscriptionError{Err: cause}
	case apperr.CodeParse:
		return &apperr.ParseError{Err: cause}
	default:
		return err
	}
}
