// Package handlers defines HTTP-layer error codes used across the API.
//
// Codes are lowercase snake_case and stable: clients branch on them rather
// than on message text. Every error response carries both an HTTP status and
// one of these codes.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"
)
