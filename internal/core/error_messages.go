package core

// error_messages.go maps storage and load failures to short messages with a
// code operators can quote.
//
// # Codes
//
//	DB001   Duplicate key                 "duplicate key"
//	DB002   Unique constraint             "unique constraint", "violates unique"
//	DB004   Connection refused            "connection refused", SQLSTATE class 08
//	DB005   Connection reset              "connection reset", "broken pipe"
//	DB006   Timeout                       "timeout", SQLSTATE 57014
//	DB007   Deadlock                      "deadlock", SQLSTATE 40P01
//	DB008   Permission denied             "permission denied", SQLSTATE 42501
//	DB009   Object missing                "does not exist", "no such table"
//	DB010   Invalid statement             "syntax error", SQLSTATE class 42
//	DB011   Bad value for column          "invalid input syntax", SQLSTATE class 22
//	FEED001 Feed not found                "no such file or directory"
//	FEED002 Feed is not a zip or folder   "not a valid zip file"
//	FEED003 Malformed csv                 "parse error on line"
//	FEED004 Path outside feed root        "outside the feed root"
//	LOAD001 Load cancelled                "context canceled"
//	LOAD002 Too many loads                "too many concurrent loads"
//	LOAD003 Load not found                "load not found"
//	LOAD004 Load timed out                "context deadline exceeded"
//	TBL001  Unknown table                 "unknown table"
//	ERR000  Anything else
//
// Patterns are matched case-insensitively with strings.Contains. The first
// matching pattern wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgDuplicateKey = UserMessage{
		Message: "A record with this key already exists",
		Action:  "Load the feed into a fresh schema",
		Code:    "DB001",
	}
	msgUnique = UserMessage{
		Message: "This value must be unique but already exists",
		Action:  "Load the feed into a fresh schema",
		Code:    "DB002",
	}
	msgConnRefused = UserMessage{
		Message: "Unable to connect to database",
		Action:  "Check the database URL and try again in a few moments",
		Code:    "DB004",
	}
	msgConnReset = UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}
	msgTimeout = UserMessage{
		Message: "Operation timed out",
		Action:  "Increase the load timeout or try again later",
		Code:    "DB006",
	}
	msgDeadlock = UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}
	msgPermission = UserMessage{
		Message: "The database user may not create or write this schema",
		Action:  "Grant CREATE on the database to the loading user",
		Code:    "DB008",
	}
	msgMissingObject = UserMessage{
		Message: "A database object the load expected does not exist",
		Action:  "Check that the schema was created and try again",
		Code:    "DB009",
	}
	msgSyntax = UserMessage{
		Message: "The database rejected a generated statement",
		Action:  "Check that the database driver matches the server",
		Code:    "DB010",
	}
	msgBadValue = UserMessage{
		Message: "The database rejected a value for its column type",
		Action:  "Review the table's errors and report the offending value",
		Code:    "DB011",
	}
)

var errorPatterns = []errorPattern{
	{pattern: "duplicate key", msg: msgDuplicateKey},
	{pattern: "unique constraint", msg: msgUnique},
	{pattern: "violates unique", msg: msgUnique},
	{pattern: "connection refused", msg: msgConnRefused},
	{pattern: "connection reset", msg: msgConnReset},
	{pattern: "broken pipe", msg: msgConnReset},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Load was cancelled",
			Action:  "Start a new load when ready",
			Code:    "LOAD001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Load timed out",
			Action:  "Increase the load timeout or load a smaller feed",
			Code:    "LOAD004",
		},
	},
	{pattern: "timeout", msg: msgTimeout},
	{pattern: "deadlock", msg: msgDeadlock},
	{pattern: "permission denied", msg: msgPermission},
	{pattern: "does not exist", msg: msgMissingObject},
	{pattern: "no such table", msg: msgMissingObject},
	{pattern: "syntax error", msg: msgSyntax},
	{pattern: "invalid input syntax", msg: msgBadValue},
	{
		pattern: "no such file or directory",
		msg: UserMessage{
			Message: "Feed file not found",
			Action:  "Check the path of the feed",
			Code:    "FEED001",
		},
	},
	{
		pattern: "not a valid zip file",
		msg: UserMessage{
			Message: "Feed is neither a zip archive nor a folder",
			Action:  "Provide a GTFS zip file or an unpacked feed folder",
			Code:    "FEED002",
		},
	},
	{
		pattern: "parse error on line",
		msg: UserMessage{
			Message: "A feed file is not valid CSV",
			Action:  "Check quoting in the reported file and line",
			Code:    "FEED003",
		},
	},
	{
		pattern: "outside the feed root",
		msg: UserMessage{
			Message: "Feed path is not allowed",
			Action:  "Give a path inside the configured feed directory",
			Code:    "FEED004",
		},
	},
	{
		pattern: "too many concurrent loads",
		msg: UserMessage{
			Message: "System is busy processing other loads",
			Action:  "Please wait a moment and try again",
			Code:    "LOAD002",
		},
	},
	{
		pattern: "load not found",
		msg: UserMessage{
			Message: "Load not found",
			Action:  "The load may have expired. Please start a new load",
			Code:    "LOAD003",
		},
	},
	{
		pattern: "unknown table",
		msg: UserMessage{
			Message: "Unknown table",
			Action:  "This table is not part of the configured schema",
			Code:    "TBL001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the server logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Postgres
// errors are classified by SQLSTATE first; everything else falls back to
// pattern matching on the error text.
//
// Example:
//
//	err := errors.New("duplicate key value violates unique constraint")
//	msg := MapError(err)
//	// msg.Code == "DB001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := mapSQLState(pgErr.Code); ok {
			return msg
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

func mapSQLState(code string) (UserMessage, bool) {
	switch {
	case code == "23505":
		return msgDuplicateKey, true
	case code == "40P01":
		return msgDeadlock, true
	case code == "57014":
		return msgTimeout, true
	case code == "42501":
		return msgPermission, true
	case code == "42P01" || code == "3F000":
		return msgMissingObject, true
	case strings.HasPrefix(code, "08"):
		return msgConnRefused, true
	case strings.HasPrefix(code, "22"):
		return msgBadValue, true
	case strings.HasPrefix(code, "42"):
		return msgSyntax, true
	}
	return UserMessage{}, false
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

// IsUserFacing reports whether err maps to a known message.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with its user message.
type UserError struct {
	UserMessage
	Err error
}

// NewUserError wraps err. It returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{UserMessage: MapError(err), Err: err}
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }
