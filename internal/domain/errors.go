package domain

import "errors"

var (
	ErrUnknownComponentType = errors.New("unknown component type")
	ErrInvalidComponent     = errors.New("invalid component")
	ErrInvalidSettings      = errors.New("invalid page settings")
	ErrDuplicateComponentID = errors.New("duplicate component id")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrVersionNotFound      = errors.New("version not found")
	ErrSessionOpen          = errors.New("editing session already open")
	ErrSessionNotOpen       = errors.New("no editing session open")
)
