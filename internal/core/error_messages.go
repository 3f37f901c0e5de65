package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. Users can quote the code to support staff for faster diagnosis.
//
// Known errors are recognised first by identity (errors.Is against the
// sentinels of this package), then by case-insensitive substring patterns
// for errors raised by drivers and the network.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: the file exceeds the upload limit
//	FILE002 - Unsupported type: only .csv and .tsv files are accepted
//	FILE003 - Encoding error: the file does not match the chosen encoding
//	FILE004 - No file: nothing was uploaded yet
//	FILE005 - Empty file: the file has no content
//	FILE006 - Invalid CSV: ragged rows or an unterminated quote
//
// # Preview / Settings Errors (PRV001-PRV099)
//
//	PRV001 - Invalid settings: delimiter, quote, escape or encoding rejected
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - No target: catalog, schema and table must be selected
//	VAL002 - Not validated: append requires a passing validation first
//	VAL003 - Table not found: the target table does not exist
//	VAL004 - Invalid value: a cell does not parse as its column type
//
// # Append Errors (APP001-APP099)
//
//	APP001 - Append in progress: another append is running for this session
//	APP002 - Duplicate key: the target rejected a duplicate row
//	APP003 - Constraint violation: a NOT NULL, CHECK or foreign key rule failed
//
// # Database Errors (DB001-DB099)
//
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//	DB007 - Deadlock
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - System busy: every validation/append slot is in use
//	RUN002 - Request cancelled
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check application logs for the original
// technical error when users report ERR000.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// sentinelMessages is checked in order with errors.Is.
var sentinelMessages = []sentinelMessage{
	{ErrFileTooLarge, UserMessage{"File exceeds the maximum upload size", "Split the file into smaller files", "FILE001"}},
	{ErrUnsupportedExtension, UserMessage{"Unsupported file type", "Upload a .csv or .tsv file", "FILE002"}},
	{ErrInvalidEncoding, UserMessage{"File does not match the selected encoding", "Choose a different encoding in the parse settings", "FILE003"}},
	{ErrNoFile, UserMessage{"No file was uploaded", "Upload a CSV or TSV file first", "FILE004"}},
	{ErrEmptyFile, UserMessage{"The uploaded file is empty", "Upload a file with a header and data rows", "FILE005"}},
	{ErrRaggedRow, UserMessage{"Rows have different numbers of fields", "Check the delimiter and quote settings", "FILE006"}},
	{ErrUnterminatedQuote, UserMessage{"A quoted field is never closed", "Check the quote and escape settings", "FILE006"}},
	{ErrInvalidSettings, UserMessage{"The parse settings are not valid", "Use a single-character delimiter that differs from the quote", "PRV001"}},
	{ErrNoTarget, UserMessage{"No target table selected", "Select a catalog, schema and table", "VAL001"}},
	{ErrNotValidated, UserMessage{"The file has not passed validation for this table", "Run validation again with the current settings", "VAL002"}},
	{ErrTableNotFound, UserMessage{"Table not found", "Verify the catalog, schema and table names", "VAL003"}},
	{ErrRunInProgress, UserMessage{"An append is already running", "Wait for it to finish", "APP001"}},
	{ErrTooManyRuns, UserMessage{"System is busy processing other files", "Please wait a moment and try again", "RUN001"}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages. The first matching pattern wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{"invalid number", UserMessage{"A value is not a valid number for its column", "Validate the file to see which values are affected", "VAL004"}},
	{"invalid date", UserMessage{"A value is not a valid date or timestamp", "Use YYYY-MM-DD or YYYY-MM-DD HH:MM:SS", "VAL004"}},
	{"invalid boolean", UserMessage{"A value is not a valid boolean", "Use true/false, yes/no, t/f, y/n or 1/0", "VAL004"}},
	{"does not exist", UserMessage{"Table not found", "Verify the catalog, schema and table names", "VAL003"}},
	{"no such table", UserMessage{"Table not found", "Verify the catalog, schema and table names", "VAL003"}},
	{"duplicate key", UserMessage{"A row with this key already exists in the table", "Remove rows that are already loaded", "APP002"}},
	{"unique constraint", UserMessage{"A row with this key already exists in the table", "Remove rows that are already loaded", "APP002"}},
	{"violates not-null", UserMessage{"A required column is empty", "Fill in the empty values", "APP003"}},
	{"not null constraint", UserMessage{"A required column is empty", "Fill in the empty values", "APP003"}},
	{"foreign key", UserMessage{"Referenced record does not exist", "Load the referenced rows first", "APP003"}},
	{"check constraint", UserMessage{"A value breaks a table rule", "Review the table's constraints", "APP003"}},
	{"connection refused", UserMessage{"Unable to connect to the warehouse", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Warehouse connection was interrupted", "Please try again", "DB005"}},
	{"context deadline exceeded", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"deadlock", UserMessage{"The warehouse was busy with conflicting operations", "Please try again", "DB007"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "RUN002"}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	_, err := svc.AppendSession(ctx, sess, settings)
//	msg := MapError(err)
//	// msg.Code == "VAL002" when the file was not validated
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
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

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
