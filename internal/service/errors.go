// Package service provides business logic implementations.
package service

import "errors"

// Error taxonomy returned to callers as structured failures. The HTTP
// and bot layers map these to specific user-facing messages; anything
// outside this list surfaces as a generic internal error.
var (
	ErrInvalidCodeFormat       = errors.New("invalid code format")
	ErrCodeNotFound            = errors.New("code not found")
	ErrCodeAlreadyUsed         = errors.New("code already used")
	ErrTargetNotFound          = errors.New("code target not found")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrAlreadyRegistered       = errors.New("already registered for event")
	ErrEventOver               = errors.New("event has already passed")
	ErrAlreadyClaimed          = errors.New("reward already claimed")
	ErrNotUnlocked             = errors.New("achievement not unlocked")
	ErrUnknownAchievement      = errors.New("unknown achievement")
	ErrMilestoneNotReached     = errors.New("not enough progress for milestone reward")
	ErrCodeGenerationExhausted = errors.New("code generation attempts exhausted")
	ErrTransferTokenInvalid    = errors.New("transfer token invalid or expired")
	ErrUserNotFound            = errors.New("user not found")
	ErrInvalidAmount           = errors.New("invalid amount: must be positive")
	ErrSelfTransfer            = errors.New("cannot transfer to self")
)
