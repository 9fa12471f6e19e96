package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Submission & Judge errors
// 14000-14999: Contest & Scoreboard errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	ServiceUnavailable  ErrorCode = 10004
	Timeout             ErrorCode = 10005

	// Database errors (10100-10199)
	DatabaseError  ErrorCode = 10100
	RecordNotFound ErrorCode = 10101

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10201

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300

	// ========== Submission & Judge Errors (13000-13999) ==========

	// Submission (13000-13099)
	SubmissionNotFound      ErrorCode = 13000
	SubmissionAlreadyJudged ErrorCode = 13001
	TooManySubmissions      ErrorCode = 13002
	LanguageNotSupported    ErrorCode = 13003

	// Judge (13100-13199)
	JudgeQueueFull     ErrorCode = 13100
	JudgeSystemError   ErrorCode = 13101
	SandboxUnavailable ErrorCode = 13102
	ArtifactMissing    ErrorCode = 13103

	// ========== Contest & Scoreboard Errors (14000-14999) ==========

	ContestNotFound    ErrorCode = 14000
	ProblemNotFound    ErrorCode = 14001
	ScoreboardNotFound ErrorCode = 14200
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	DatabaseError:  "Database operation failed",
	RecordNotFound: "Record not found in database",

	CacheError: "Cache operation failed",
	LockFailed: "Failed to acquire lock",

	ValidationFailed: "Validation failed",

	SubmissionNotFound:      "Submission not found",
	SubmissionAlreadyJudged: "Submission has already been judged",
	TooManySubmissions:      "Too many pending submissions",
	LanguageNotSupported:    "Programming language is not supported",

	JudgeQueueFull:     "Judge queue is full",
	JudgeSystemError:   "Judge system error",
	SandboxUnavailable: "Sandbox executor is unavailable",
	ArtifactMissing:    "Execution artifact is missing",

	ContestNotFound:    "Contest not found",
	ProblemNotFound:    "Problem not found",
	ScoreboardNotFound: "Scoreboard not found",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus maps the error code to an HTTP status code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == RecordNotFound, c == SubmissionNotFound,
		c == ContestNotFound, c == ProblemNotFound, c == ScoreboardNotFound:
		return 404
	case c == TooManySubmissions:
		return 429
	case c == SubmissionAlreadyJudged:
		return 409
	case c == ServiceUnavailable, c == JudgeQueueFull, c == SandboxUnavailable:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == LanguageNotSupported:
		return 400
	default:
		return 500
	}
}
