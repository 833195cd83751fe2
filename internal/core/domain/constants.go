package domain

import "errors"

var (
	ErrInvalidRole        = errors.New("invalid role")
	ErrSendingReplyFailed = errors.New("failed to send reply")
	ErrStorageUnavailable = errors.New("acl storage unavailable")
)
