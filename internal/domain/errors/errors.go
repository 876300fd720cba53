package errors

import (
	"errors"
	"fmt"
)

var (
	// General errors.
	ErrInternal       = errors.New("internal server error")
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")

	// Authentication errors.
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionExpired       = errors.New("session expired")
	ErrDuplicateIdentity    = errors.New("username already in use")

	// Encryption errors.
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrKeyNotFound      = errors.New("encryption key version not found")
	ErrNoActiveKey      = errors.New("no active encryption key")

	// Infrastructure errors.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrBusUnavailable     = errors.New("message bus unavailable")

	// User and conversation errors.
	ErrUserNotFound     = errors.New("user not found")
	ErrGroupNotFound    = errors.New("group not found")
	ErrNotGroupMember   = errors.New("not a group member")
	ErrMessageTooLong   = errors.New("message too long")
	ErrAlreadyMember    = errors.New("already a group member")
	ErrConnectionClosed = errors.New("connection closed")

	// Friendship and invite errors.
	ErrAlreadyFriends         = errors.New("already friends")
	ErrFriendRequestNotFound  = errors.New("friend request not found")
	ErrDuplicateFriendRequest = errors.New("friend request already sent")
	ErrInviteNotFound         = errors.New("invite not found")
	ErrAlreadyInvited         = errors.New("user already invited")
)

// AppError carries an underlying error together with a caller-facing message
// and a stable code for the wire protocols.
type AppError struct {
	Err     error
	Message string
	Code    string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(err error, message, code string) *AppError {
	return &AppError{Err: err, Message: message, Code: code}
}

// IsUnauthorized reports whether err is an authentication failure the client
// can recover from by re-authenticating.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionExpired)
}

// IsConflict reports whether err is a registration or membership conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrDuplicateIdentity) ||
		errors.Is(err, ErrAlreadyMember)
}

// IsNotFound reports whether err is a missing-resource error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

// IsTransient reports whether err is worth a client-side retry: the durable
// store or the bus was unreachable, not the request itself at fault.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrBusUnavailable)
}
