package room

import (
	"context"
	"fmt"

	"jan-server/services/listen-api/internal/utils/platformerrors"
)

// Reasons attached to domain errors and rendered in API responses.
const (
	ReasonForbidden            = "forbidden"
	ReasonInvalidTransition    = "invalid_transition"
	ReasonTransportUnavailable = "transport_unavailable"
	ReasonRoomNotFound         = "room_not_found"
	ReasonEntryNotFound        = "entry_not_found"
	ReasonCredentialNotFound   = "credential_not_found"
	ReasonRoomExists           = "room_exists"
	ReasonLeaseHeld            = "lease_held"
)

func domainError(ctx context.Context, errType platformerrors.ErrorType, reason, message string, cause error, fields map[string]any) *platformerrors.PlatformError {
	ctxFields := map[string]any{platformerrors.ContextKeyReason: reason}
	for k, v := range fields {
		ctxFields[k] = v
	}
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, errType, message, cause, "", ctxFields)
}

func errForbidden(ctx context.Context, op, identity string) error {
	return domainError(ctx, platformerrors.ErrorTypeForbidden, ReasonForbidden,
		fmt.Sprintf("%s is restricted to the room owner", op), nil,
		map[string]any{"operation": op, "identity": identity})
}

func errInvalidTransition(ctx context.Context, op string, mode Mode) error {
	return domainError(ctx, platformerrors.ErrorTypeConflict, ReasonInvalidTransition,
		fmt.Sprintf("%s is not allowed while the room is %s", op, mode), nil,
		map[string]any{"operation": op, "mode": string(mode)})
}

func errTransportUnavailable(ctx context.Context, op string, cause error) error {
	return domainError(ctx, platformerrors.ErrorTypeUnavailable, ReasonTransportUnavailable,
		fmt.Sprintf("audio transport unavailable during %s, room state unchanged", op), cause,
		map[string]any{"operation": op})
}

func errRoomNotFound(ctx context.Context, roomID string) error {
	return domainError(ctx, platformerrors.ErrorTypeNotFound, ReasonRoomNotFound,
		fmt.Sprintf("room %s not found", roomID), nil, map[string]any{"room_id": roomID})
}

func errEntryNotFound(ctx context.Context, entryID string) error {
	return domainError(ctx, platformerrors.ErrorTypeNotFound, ReasonEntryNotFound,
		fmt.Sprintf("queue entry %s not found", entryID), nil, map[string]any{"entry_id": entryID})
}

func errCredentialNotFound(ctx context.Context, roomID, identity string) error {
	return domainError(ctx, platformerrors.ErrorTypeNotFound, ReasonCredentialNotFound,
		"no live transport leg for this identity", nil, map[string]any{"room_id": roomID, "identity": identity})
}

func errLeaseHeld(ctx context.Context, roomID string, cause error) error {
	return domainError(ctx, platformerrors.ErrorTypeUnavailable, ReasonLeaseHeld,
		"room is currently hosted by another instance", cause, map[string]any{"room_id": roomID})
}

func errValidation(ctx context.Context, message string, cause error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, message, cause, "")
}

// IsForbidden reports whether err is an authorization failure.
func IsForbidden(err error) bool {
	return platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden)
}

// IsInvalidTransition reports whether err rejected an illegal mode change.
func IsInvalidTransition(err error) bool {
	return hasReason(err, ReasonInvalidTransition)
}

// IsTransportUnavailable reports whether err is a rolled back transport failure.
func IsTransportUnavailable(err error) bool {
	return hasReason(err, ReasonTransportUnavailable)
}

// IsNotFound reports whether err refers to an unknown room, entry or credential.
func IsNotFound(err error) bool {
	return platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound)
}

func hasReason(err error, reason string) bool {
	return platformerrors.Reason(err) == reason
}
