package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening on the webserver port
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeHTTP indicates a non-2xx status without an error payload
	ErrTypeHTTP
	// ErrTypeErrorPayload indicates the webserver answered with {"error": "..."}
	ErrTypeErrorPayload
	// ErrTypeIndexUnavailable indicates the Home Assistant entity index could not be read
	ErrTypeIndexUnavailable
	// ErrTypeParse indicates a malformed response body
	ErrTypeParse
	// ErrTypeMalformedInput indicates a local file or argument was rejected before sending
	ErrTypeMalformedInput
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
	NetworkErrorCancelled
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeErrorPayload:
		return "Server Error"
	case ErrTypeIndexUnavailable:
		return "Entity Index Unavailable"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeMalformedInput:
		return "Malformed Input"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// BackendError represents an error that occurred talking to the DAO webserver
type BackendError struct {
	Type           ErrorType           // Category of error
	Op             string              // Operation that failed, e.g. "search entities"
	Message        string              // Human-readable error message
	StatusCode     int                 // HTTP status code (if applicable)
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
}

// Error implements the error interface
func (e *BackendError) Error() string {
	prefix := e.Type.String()
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *BackendError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes a transport error and returns a more specific error type
func ClassifyNetworkError(err error) *BackendError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return &BackendError{
			Type:           ErrTypeNetwork,
			Message:        "Request cancelled",
			Err:            err,
			NetworkSubtype: NetworkErrorCancelled,
		}
	}

	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return &BackendError{
			Type:           ErrTypeTimeout,
			Message:        "Request timed out",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &BackendError{
			Type:           ErrTypeDNS,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return &BackendError{
				Type:           ErrTypeConnectionRefused,
				Message:        "Webserver refused connection",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
			}
		}
		if errors.Is(opErr.Err, syscall.EHOSTUNREACH) {
			return &BackendError{
				Type:           ErrTypeNetwork,
				Message:        "Host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
			}
		}
		if errors.Is(opErr.Err, syscall.ENETUNREACH) {
			return &BackendError{
				Type:           ErrTypeNetwork,
				Message:        "Network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassifyNetworkError(urlErr.Err)
	}

	return &BackendError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(op, message string, err error) *BackendError {
	classified := ClassifyNetworkError(err)
	if classified == nil {
		return &BackendError{Type: ErrTypeNetwork, Op: op, Message: message}
	}
	classified.Op = op
	classified.Message = message
	return classified
}

// NewHTTPError creates an HTTP-level error
func NewHTTPError(op string, statusCode int, message string) *BackendError {
	return &BackendError{
		Type:       ErrTypeHTTP,
		Op:         op,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewErrorPayloadError wraps an {"error": "..."} body returned by the webserver
func NewErrorPayloadError(op string, statusCode int, message string) *BackendError {
	return &BackendError{
		Type:       ErrTypeErrorPayload,
		Op:         op,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewIndexUnavailableError wraps any failure reading the entity index.
// The cause keeps its own classification and is reachable with errors.As.
func NewIndexUnavailableError(op string, cause error) *BackendError {
	e := &BackendError{
		Type:    ErrTypeIndexUnavailable,
		Op:      op,
		Message: "entity index unavailable",
		Err:     cause,
	}
	var inner *BackendError
	if errors.As(cause, &inner) {
		e.StatusCode = inner.StatusCode
		e.NetworkSubtype = inner.NetworkSubtype
	}
	return e
}

// NewParseError creates a parsing error
func NewParseError(op, message string, err error) *BackendError {
	return &BackendError{
		Type:    ErrTypeParse,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewMalformedInputError creates an error for input rejected before any request is made
func NewMalformedInputError(message string, err error) *BackendError {
	return &BackendError{
		Type:    ErrTypeMalformedInput,
		Message: message,
		Err:     err,
	}
}

func errorType(err error) (ErrorType, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Type, true
	}
	return ErrTypeUnknown, false
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS)
func IsNetworkError(err error) bool {
	t, ok := errorType(err)
	if !ok {
		return false
	}
	switch t {
	case ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS:
		return true
	case ErrTypeIndexUnavailable:
		var be *BackendError
		errors.As(err, &be)
		return IsNetworkError(be.Err)
	}
	return false
}

// IsHTTPError checks if an error is an HTTP error
func IsHTTPError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeHTTP
}

// IsErrorPayload checks if the webserver reported the error itself
func IsErrorPayload(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeErrorPayload
}

// IsIndexUnavailable checks if an entity fetch or search failed
func IsIndexUnavailable(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeIndexUnavailable
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeParse
}

// IsMalformedInput checks if an error is a local input rejection
func IsMalformedInput(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeMalformedInput
}

// IsNetworkOrServerError reports whether the failure happened on the wire or
// on the webserver, as opposed to local input validation.
func IsNetworkOrServerError(err error) bool {
	t, ok := errorType(err)
	if !ok {
		return false
	}
	switch t {
	case ErrTypeMalformedInput, ErrTypeUnknown:
		return false
	}
	return true
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	var be *BackendError
	if !errors.As(err, &be) {
		return "An unexpected error occurred. Please try again."
	}

	switch be.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The webserver did not respond in time.",
			"Troubleshooting:",
			"  • Check that the Day Ahead Optimizer add-on is running",
			"  • Try increasing the timeout with --timeout",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The webserver refused the connection.",
			"Troubleshooting:",
			"  • Check that the Day Ahead Optimizer add-on is started",
			fmt.Sprintf("  • Verify the port number (default is %d)", DefaultPort),
			"  • Run 'dao-cfg scan' to find webservers on your network",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the webserver hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of hostname",
			"  • Check your network DNS settings",
		}, "\n")

	case ErrTypeNetwork:
		switch be.NetworkSubtype {
		case NetworkErrorHostUnreachable, NetworkErrorNetworkUnreachable:
			return strings.Join([]string{
				"The webserver is not reachable on the network.",
				"Troubleshooting:",
				"  • Verify the URL is correct",
				"  • Check that you're on the same network as Home Assistant",
			}, "\n")
		case NetworkErrorCancelled:
			return "The request was cancelled."
		}
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Check your network connection",
			"  • Verify the webserver URL",
		}, "\n")

	case ErrTypeHTTP:
		if be.StatusCode == 404 {
			return "The webserver does not know this endpoint. Check that the add-on version supports the configuration API."
		}
		return fmt.Sprintf("The webserver returned HTTP error %d. Check the add-on log for details.", be.StatusCode)

	case ErrTypeErrorPayload:
		return "The webserver reported: " + be.Message

	case ErrTypeIndexUnavailable:
		return strings.Join([]string{
			"Home Assistant entities could not be loaded.",
			"Troubleshooting:",
			"  • Check the Home Assistant URL and token in the DAO options",
			"  • Entity fields still accept typed values",
		}, "\n")

	case ErrTypeParse:
		return "Failed to parse the webserver's response. The add-on version may be incompatible."

	case ErrTypeMalformedInput:
		return be.Message

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var be *BackendError
	if !errors.As(err, &be) {
		return err.Error()
	}

	switch be.Type {
	case ErrTypeTimeout:
		return "Webserver not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Webserver refused connection - is the add-on running?"
	case ErrTypeDNS:
		return "Cannot resolve webserver hostname"
	case ErrTypeNetwork:
		switch be.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "Webserver unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable"
		case NetworkErrorCancelled:
			return "Request cancelled"
		default:
			return "Network error - check connection"
		}
	case ErrTypeHTTP:
		return fmt.Sprintf("Webserver error (HTTP %d)", be.StatusCode)
	case ErrTypeErrorPayload:
		return be.Message
	case ErrTypeIndexUnavailable:
		return "Error loading entities. Check Home Assistant connection."
	case ErrTypeParse:
		return "Failed to parse webserver response"
	default:
		return be.Message
	}
}
