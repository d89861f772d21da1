package dto

import "fintrack/internal/models"

// ErrorResponse is the body of every failed request. Code is a stable
// machine-readable name such as "InvalidCredentials" or "Validation".
type ErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields []models.FieldError `json:"fields,omitempty"`
}
