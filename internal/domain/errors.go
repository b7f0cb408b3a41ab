package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every AppError belongs to exactly one kind so callers can
// branch with errors.Is without knowing the specific code.
var (
	ErrKindNotFound        = errors.New("not found")
	ErrKindInvalidArgument = errors.New("invalid argument")
	ErrKindConflict        = errors.New("conflict")
	ErrKindInternal        = errors.New("internal")
)

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Kind    error  `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches the error kind and, for two AppErrors, the code.
func (e *AppError) Is(target error) bool {
	if e.Kind != nil && target == e.Kind {
		return true
	}
	var other *AppError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404, Kind: ErrKindNotFound}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 409, Kind: ErrKindConflict}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400, Kind: ErrKindInvalidArgument}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Kind: ErrKindInternal, Cause: cause}
}

// Ladder-specific errors.

func ErrPlayerNotFound(id string) *AppError {
	return &AppError{Code: "PLAYER_NOT_FOUND", Message: fmt.Sprintf("player %s not found", id), Status: 404, Kind: ErrKindNotFound}
}

func ErrMatchNotFound(id string) *AppError {
	return &AppError{Code: "MATCH_NOT_FOUND", Message: fmt.Sprintf("match %s not found", id), Status: 404, Kind: ErrKindNotFound}
}

func ErrSamePlayer() *AppError {
	return &AppError{Code: "SAME_PLAYER", Message: "players cannot play against themselves", Status: 400, Kind: ErrKindInvalidArgument}
}

func ErrOfficeMismatch(office1, office2 string) *AppError {
	return &AppError{
		Code:    "OFFICE_MISMATCH",
		Message: fmt.Sprintf("players must be in the same office (%s vs %s)", office1, office2),
		Status:  400,
		Kind:    ErrKindInvalidArgument,
	}
}

func ErrInvalidWinner() *AppError {
	return &AppError{Code: "INVALID_WINNER", Message: "winner must be one of the match participants", Status: 400, Kind: ErrKindInvalidArgument}
}

func ErrAlreadyQueued() *AppError {
	return &AppError{Code: "ALREADY_QUEUED", Message: "player already in queue", Status: 409, Kind: ErrKindConflict}
}

func ErrMatchNotPending(status MatchStatus) *AppError {
	return &AppError{Code: "MATCH_NOT_PENDING", Message: fmt.Sprintf("match is %s, not pending", status), Status: 409, Kind: ErrKindConflict}
}

// Sentinels for errors.Is comparisons by code.
var (
	ErrCodePlayerNotFound  = &AppError{Code: "PLAYER_NOT_FOUND"}
	ErrCodeMatchNotFound   = &AppError{Code: "MATCH_NOT_FOUND"}
	ErrCodeSamePlayer      = &AppError{Code: "SAME_PLAYER"}
	ErrCodeOfficeMismatch  = &AppError{Code: "OFFICE_MISMATCH"}
	ErrCodeInvalidWinner   = &AppError{Code: "INVALID_WINNER"}
	ErrCodeAlreadyQueued   = &AppError{Code: "ALREADY_QUEUED"}
	ErrCodeMatchNotPending = &AppError{Code: "MATCH_NOT_PENDING"}
)
