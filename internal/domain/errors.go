package domain

import "errors"

var (
	// ErrUpstream covers any failed, hung, or malformed response from an
	// external model service.
	ErrUpstream = errors.New("upstream service failure")
	// ErrNotFound indicates a referenced artifact or job does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDecode indicates stored bytes could not be parsed as an image.
	ErrDecode = errors.New("image decode failure")
	// ErrInvalidEdit indicates a layout edit that cannot be applied, such as
	// a crop rectangle outside the image extents.
	ErrInvalidEdit = errors.New("invalid layout edit")
)
