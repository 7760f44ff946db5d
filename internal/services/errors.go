package services

import (
	"errors"

	"memodesk-backend/internal/providers"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrEmptyMessage      = errors.New("message has no content")
	ErrUnknownAttachment = errors.New("attachment was not uploaded by this user")
	ErrInvalidVisibility = errors.New("visibility must be private or public")
	ErrUnknownModel      = providers.ErrUnknownModel
	ErrUnknownKind       = errors.New("document kind must be text, code or sheet")
)
