// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Callers can quote the code to support staff for faster diagnosis.
//
// # Obfuscation Errors (OBF001-OBF099)
//
// Matched by error kind with errors.Is:
//
//	OBF001 - Unrecognized format: No format yields the requested columns
//	         Action: Check the field names and that the object is CSV, JSON or Parquet
//	OBF002 - Encoding error: Object is not valid UTF-8 text
//	         Action: Save the file as UTF-8 or as Parquet
//	OBF003 - Unknown field: A requested field is not a column
//	         Action: Verify the field names match the column headers exactly
//	OBF004 - Serialization error: Masked data could not be written back
//	         Action: Contact support with the error code
//	OBF005 - No fields: No fields were requested
//	         Action: Name at least one field to obfuscate
//
// # Storage Errors (STO001-STO099)
//
// Matched by message pattern:
//
//	STO001 - Not found: "object not found"
//	STO002 - Access denied: "access denied"
//	STO003 - Connection: "storage connection"
//	STO004 - Invalid location: "invalid location", "unsupported scheme"
//
// # Service Errors (SVC001-SVC099)
//
//	SVC001 - Invalid request: "invalid request"
//	SVC002 - System busy: "too many concurrent jobs"
//	SVC003 - Object too large: "object too large"
//	SVC004 - Timed out: "context deadline exceeded"
//	SVC005 - Audit history unavailable (HTTP API only, not mapped here)
//
// # Authentication (AUTH001-AUTH099)
//
// Written by the HTTP middleware, not mapped here:
//
//	AUTH001 - Missing API key
//	AUTH002 - Invalid API key
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check application logs for the original
// technical error when users report ERR000.
//
// # Pattern Matching
//
// Error kinds are checked first. Patterns are then matched case-insensitively
// using strings.Contains; the first matching pattern wins.

package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorKind maps a sentinel error to its user message.
type errorKind struct {
	target error
	msg    UserMessage
}

// errorKinds is checked with errors.Is before any pattern. Order matters:
// ErrNoFields and ErrUnknownField come before ErrUnrecognizedFormat.
var errorKinds = []errorKind{
	{
		target: ErrNoFields,
		msg: UserMessage{
			Message: "No fields were requested for obfuscation",
			Action:  "Name at least one field to obfuscate",
			Code:    "OBF005",
		},
	},
	{
		target: ErrEncoding,
		msg: UserMessage{
			Message: "The object is not valid UTF-8 text",
			Action:  "Save the file as UTF-8 or as Parquet",
			Code:    "OBF002",
		},
	},
	{
		target: ErrUnknownField,
		msg: UserMessage{
			Message: "A requested field is not a column of the object",
			Action:  "Verify the field names match the column headers exactly",
			Code:    "OBF003",
		},
	},
	{
		target: ErrUnrecognizedFormat,
		msg: UserMessage{
			Message: "The object format could not be recognized",
			Action:  "Check the field names and that the object is CSV, JSON or Parquet",
			Code:    "OBF001",
		},
	},
	{
		target: ErrSerialization,
		msg: UserMessage{
			Message: "The masked data could not be written back",
			Action:  "Please contact support with this code",
			Code:    "OBF004",
		},
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Packages that core cannot import (storage, service) keep their error text
// aligned with these patterns.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Storage Errors (STO001-STO004)
	// =========================================================================
	{
		pattern: "object not found",
		msg: UserMessage{
			Message: "The object does not exist",
			Action:  "Check the storage path",
			Code:    "STO001",
		},
	},
	{
		pattern: "access denied",
		msg: UserMessage{
			Message: "Access to the object was denied",
			Action:  "Check the credentials and bucket permissions",
			Code:    "STO002",
		},
	},
	{
		pattern: "storage connection",
		msg: UserMessage{
			Message: "Unable to reach object storage",
			Action:  "Please try again in a few moments",
			Code:    "STO003",
		},
	},
	{
		pattern: "invalid location",
		msg: UserMessage{
			Message: "The storage path is not valid",
			Action:  "Use a path like s3://bucket/key",
			Code:    "STO004",
		},
	},
	{
		pattern: "unsupported scheme",
		msg: UserMessage{
			Message: "The storage scheme is not supported",
			Action:  "Use s3://, az://, gs:// or a local file",
			Code:    "STO004",
		},
	},

	// =========================================================================
	// Service Errors (SVC001-SVC004)
	// =========================================================================
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request is not valid",
			Action:  "Provide file_to_obfuscate and pii_fields",
			Code:    "SVC001",
		},
	},
	{
		pattern: "too many concurrent jobs",
		msg: UserMessage{
			Message: "System is busy processing other objects",
			Action:  "Please wait a moment and try again",
			Code:    "SVC002",
		},
	},
	{
		pattern: "object too large",
		msg: UserMessage{
			Message: "The object exceeds the maximum size limit",
			Action:  "Split the object into smaller files",
			Code:    "SVC003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller object or try again later",
			Code:    "SVC004",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Error kinds are checked with errors.Is first, then the message is searched
// for known patterns (case-insensitive). If nothing matches, a generic
// fallback message with code ERR000 is returned.
//
// Example:
//
//	_, err := Obfuscate(t, NewFieldSet("ssn"))
//	msg := MapError(err)
//	// msg.Code == "OBF003"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error.
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
