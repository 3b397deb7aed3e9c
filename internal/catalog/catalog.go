// Package catalog holds the fixed set of client-facing errors. Every error
// response the API produces is built from an Entry of this catalog, which
// keeps the {message, error} shape uniform across handlers.
package catalog

import "go.uber.org/zap"

// Key identifies a catalog entry.
type Key string

// Entry is the client-facing text of an error.
type Entry struct {
	Group   string
	Message string
	Code    string
}

// Body is the JSON body of an error response.
func (e Entry) Body() map[string]string {
	return map[string]string{"message": e.Message, "error": e.Code}
}

// Authentication errors.
const (
	TokenExpired          Key = "TOKEN_EXPIRED"
	InvalidToken          Key = "INVALID_TOKEN"
	AuthRequired          Key = "AUTH_REQUIRED"
	UsernameAlreadyTaken  Key = "USERNAME_ALREADY_TAKEN"
	EmailAlreadyTaken     Key = "EMAIL_ALREADY_TAKEN"
	InvalidPassword       Key = "INVALID_PASSWORD"
	LoginFailed           Key = "LOGIN_FAILED"
	InvalidUser           Key = "INVALID_USER"
	SudoPasswordIncorrect Key = "SUDO_PASSWORD_INCORRECT"
)

// Request errors.
const (
	BadRequestBodyNotFound Key = "BAD_REQUEST_BODY_NOT_FOUND"
	BadRequestBodyNotValid Key = "BAD_REQUEST_BODY_NOT_VALID"
)

// Server errors.
const (
	InternalServerError Key = "INTERNAL_SERVER_ERROR"
)

// Assistant API errors.
const (
	ClientRunFail          Key = "CLIENT_RUN_FAIL"
	RequestFailed          Key = "REQUEST_FAILED"
	UnhandledException     Key = "UNHANDLED_EXCEPTION"
	FileNotFound           Key = "FILE_NOT_FOUND"
	FilenameNotAllowed     Key = "FILENAME_NOT_ALLOWED"
	AssistantNotFound      Key = "ASSISTANT_NOT_FOUND"
	AssistantAlreadyExists Key = "ASSISTANT_ALREADY_EXISTS"
)

var entries = map[Key]Entry{
	TokenExpired:          {"AuthenticationErrors", "Token expired, login again to get a new one.", "token_expired"},
	InvalidToken:          {"AuthenticationErrors", "Signature verification failed", "invalid_token"},
	AuthRequired:          {"AuthenticationErrors", "Authorization is required to access this resource", "auth_required"},
	UsernameAlreadyTaken:  {"AuthenticationErrors", "Username already taken", "username_already_taken"},
	EmailAlreadyTaken:     {"AuthenticationErrors", "Email already in use", "email_already_taken"},
	InvalidPassword:       {"AuthenticationErrors", "Password is not valid", "invalid_password"},
	LoginFailed:           {"AuthenticationErrors", "Login failed", "login_failed"},
	InvalidUser:           {"AuthenticationErrors", "The user who sent the request was not found", "invalid_user"},
	SudoPasswordIncorrect: {"AuthenticationErrors", "The sudo password is incorrect", "sudo_password_incorrect"},

	BadRequestBodyNotFound: {"RequestErrors", "Bad request from client side, a json body was expected", "bad_request_body_not_found"},
	BadRequestBodyNotValid: {"RequestErrors", "The request body was found, but its value is not valid", "bad_request_body_not_valid"},

	InternalServerError: {"ServerErrors", "An internal server error occured", "internal_server_error"},

	ClientRunFail:          {"AiErrors", "The call to the AI API failed.", "client_run_fail"},
	RequestFailed:          {"AiErrors", "Communication to the AI API failed.", "request_failed"},
	UnhandledException:     {"AiErrors", "An unhandled exception occured.", "unhandled_exception"},
	FileNotFound:           {"AiErrors", "The file was not found in the request", "file_not_found"},
	FilenameNotAllowed:     {"AiErrors", "The filename is not allowed", "filename_not_allowed"},
	AssistantNotFound:      {"AiErrors", "The assistant was not found", "assistant_not_found"},
	AssistantAlreadyExists: {"AiErrors", "Assistant already exists.", "assistant_already_exists"},
}

// Lookup returns the entry for key. The second result is false when the key
// is not part of the catalog.
func Lookup(key Key) (Entry, bool) {
	e, ok := entries[key]
	return e, ok
}

// Report looks up key and logs the retrieved entry at error level together
// with cause, if any. Logging always happens, including for unknown keys,
// which fall back to the INTERNAL_SERVER_ERROR entry.
func Report(logger *zap.Logger, key Key, cause error) Entry {
	e, ok := Lookup(key)
	if !ok {
		logger.Error("Failed to retrieve error from catalog", zap.String("key", string(key)), zap.Error(cause))
		return entries[InternalServerError]
	}

	fields := []zap.Field{
		zap.String("group", e.Group),
		zap.String("message", e.Message),
		zap.String("code", e.Code),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	logger.Error("Error retrieved", fields...)

	return e
}
