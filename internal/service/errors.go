package service

import (
	"context"
	"errors"

	"github.com/emrgen/revision/internal/model"
	"github.com/emrgen/revision/internal/store"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrInvalidContent is returned when version content is not valid JSON.
	ErrInvalidContent = errors.New("content must be valid JSON")
	// ErrInvalidLimit is returned when a list limit is not a positive number.
	ErrInvalidLimit = errors.New("limit must be a positive integer")
	// ErrInvalidVersionType is returned for a versionType other than SNAPSHOT or INCREMENTAL.
	ErrInvalidVersionType = errors.New("versionType must be SNAPSHOT or INCREMENTAL")
	// ErrMissingID is returned when a proposal or form id is empty.
	ErrMissingID = errors.New("id is required")
)

// toStatus converts store and context errors into status errors carrying the
// code the transport reports to the caller.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, store.ErrProposalNotFound),
		errors.Is(err, store.ErrFormNotFound),
		errors.Is(err, store.ErrVersionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrProposalExists),
		errors.Is(err, store.ErrFormExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, store.ErrVersionConflict):
		return status.Error(codes.Aborted, "the history was changed by someone else at the same time, please retry")
	case errors.Is(err, model.ErrImmutableVersion):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrInvalidContent),
		errors.Is(err, ErrInvalidLimit),
		errors.Is(err, ErrInvalidVersionType),
		errors.Is(err, ErrMissingID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	}

	return status.Error(codes.Internal, err.Error())
}
