package models

import "errors"

// Panel errors
var (
	ErrUnauthorized    = errors.New("meeting identity is not resolvable")
	ErrFetch           = errors.New("poster fetch failed")
	ErrEmptyResult     = errors.New("no posters available")
	ErrUpload          = errors.New("file upload failed")
	ErrBusy            = errors.New("an upload is already in flight")
	ErrInvalidTab      = errors.New("invalid panel tab")
	ErrPollsDisabled   = errors.New("polls are disabled")
	ErrNotPreviewing   = errors.New("no file is waiting to be sent")
	ErrMessageNotFound = errors.New("message not found")
)
