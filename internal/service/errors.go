package service

import "errors"

var (
	ErrValidation            = errors.New("validation failed")
	ErrUsernameTaken         = errors.New("username already taken")
	ErrEmailTaken            = errors.New("email already taken")
	ErrSudoPasswordIncorrect = errors.New("sudo password incorrect")
	ErrPasswordRequired      = errors.New("password required")
	ErrInvalidPassword       = errors.New("invalid password")
	ErrLoginFailed           = errors.New("login failed")
	ErrUserNotFound          = errors.New("user not found")
	ErrMailRelay             = errors.New("mail relay failed")

	ErrTokenMissing = errors.New("token missing")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")

	ErrAssistantNotFound  = errors.New("assistant not found")
	ErrAssistantExists    = errors.New("assistant already exists")
	ErrRunFailed          = errors.New("assistant run failed")
	ErrIndexFailed        = errors.New("file indexing failed")
	ErrRemote             = errors.New("assistants API call failed")
	ErrFileMissing        = errors.New("file missing")
	ErrFilenameNotAllowed = errors.New("filename not allowed")
)
