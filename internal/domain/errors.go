package domain

import (
	"errors"
	"fmt"
)

// PermissionKind names an OS privilege the user can grant in settings.
type PermissionKind string

const (
	PermissionMicrophone        PermissionKind = "microphone"
	PermissionScreenRecording   PermissionKind = "screenRecording"
	PermissionSpeechRecognition PermissionKind = "speechRecognition"
)

// PermissionError reports a denied privilege. It is recoverable by the user.
type PermissionError struct {
	Kind PermissionKind
	Err  error
}

// Error formats the denial for logs and UI.
func (e *PermissionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s permission denied", e.Kind)
	}
	return fmt.Sprintf("%s permission denied: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying platform error.
func (e *PermissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RecoverySuggestion tells the user where the privilege is granted.
func (e *PermissionError) RecoverySuggestion() string {
	if e == nil {
		return ""
	}
	return RecoveryForPermission(e.Kind)
}

// RecoveryForPermission returns remediation text for a permission kind.
func RecoveryForPermission(kind PermissionKind) string {
	switch kind {
	case PermissionMicrophone:
		return "Allow microphone access in System Settings > Privacy & Security > Microphone."
	case PermissionScreenRecording:
		return "Allow screen and system audio recording in System Settings > Privacy & Security > Screen Recording."
	case PermissionSpeechRecognition:
		return "Allow speech recognition in System Settings > Privacy & Security > Speech Recognition."
	default:
		return ""
	}
}

// ServiceErrorKind classifies service-unavailability failures.
type ServiceErrorKind string

const (
	ServiceEngineStart             ServiceErrorKind = "engineStart"
	ServiceLanguageNotDownloaded   ServiceErrorKind = "languageNotDownloaded"
	ServiceLanguagePairUnsupported ServiceErrorKind = "languagePairUnsupported"
	ServiceUnsupportedDevice       ServiceErrorKind = "unsupportedDevice"
	ServiceNoTranslationSession    ServiceErrorKind = "noTranslationSession"
	ServiceAccessDenied            ServiceErrorKind = "accessDenied"
)

// ServiceError is a typed failure of an external service, optionally with a
// recovery suggestion. These are not retried automatically.
type ServiceError struct {
	Kind     ServiceErrorKind
	Detail   string
	Recovery string
	Err      error
}

// Error formats the failure with its detail and cause.
func (e *ServiceError) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RecoverySuggestion returns the stored suggestion, if any.
func (e *ServiceError) RecoverySuggestion() string {
	if e == nil {
		return ""
	}
	return e.Recovery
}

// NewServiceError builds a ServiceError.
func NewServiceError(kind ServiceErrorKind, detail string, err error) *ServiceError {
	return &ServiceError{Kind: kind, Detail: detail, Err: err}
}

// ClassifyPermission reports whether err represents a recoverable permission
// problem and which one. Engine-start failures that wrap a permission denial
// are classified by their cause.
func ClassifyPermission(err error) (PermissionKind, bool) {
	if err == nil {
		return "", false
	}

	var permErr *PermissionError
	if errors.As(err, &permErr) {
		return permErr.Kind, true
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Kind == ServiceEngineStart {
		if inner := errors.Unwrap(svcErr); inner != nil && errors.As(inner, &permErr) {
			return permErr.Kind, true
		}
	}
	return "", false
}

// Recovery extracts a recovery suggestion from err. A permission problem,
// even one wrapped in an engine-start failure, yields the permission's
// guidance; otherwise the first non-empty suggestion in the chain wins.
func Recovery(err error) string {
	if kind, ok := ClassifyPermission(err); ok {
		return RecoveryForPermission(kind)
	}
	for ; err != nil; err = errors.Unwrap(err) {
		if suggester, ok := err.(interface{ RecoverySuggestion() string }); ok {
			if suggestion := suggester.RecoverySuggestion(); suggestion != "" {
				return suggestion
			}
		}
	}
	return ""
}
