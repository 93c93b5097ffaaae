package models

import "errors"

var (
	// ErrDuplicateLot is returned when a lot id has already been registered.
	ErrDuplicateLot = errors.New("lot already registered")
	// ErrLotNotFound is returned when an operation targets an unknown lot id.
	ErrLotNotFound = errors.New("lot not found")
	// ErrPermissionDenied is returned when a non-owner tries to update thresholds.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrEmptyBatch is returned by the quality classifier for an empty unit sequence.
	ErrEmptyBatch = errors.New("empty inspection batch")
	// ErrInvalidThresholdUpdate is reserved for threshold validation.
	ErrInvalidThresholdUpdate = errors.New("invalid threshold update")
	// ErrInvalidInput indicates a malformed payload at the service boundary.
	ErrInvalidInput = errors.New("invalid input")
)
