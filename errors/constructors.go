package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *NestError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *NestError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// DecodeFailed reports a wire value that could not be turned into an envelope or snapshot.
func DecodeFailed(reason string, cause error) *NestError {
	if cause == nil {
		return New(ErrCodeDecodeFailed, fmt.Sprintf("decode failed: %s", reason))
	}
	return Wrap(cause, ErrCodeDecodeFailed, fmt.Sprintf("decode failed: %s", reason))
}

// PersistenceFailed reports a rejected or stalled write to the shared store.
func PersistenceFailed(namespace, key string, cause error) *NestError {
	return Wrap(cause, ErrCodePersistenceFailed,
		fmt.Sprintf("failed to persist %s/%s", namespace, key)).
		WithDetail("namespace", namespace).
		WithDetail("key", key)
}

// PermissionDenied is returned when a non-GM participant mutates a privileged domain.
func PermissionDenied(participant, domain string) *NestError {
	return New(ErrCodePermissionDenied,
		fmt.Sprintf("participant '%s' may not modify %s", participant, domain)).
		WithDetail("participant", participant).
		WithDetail("domain", domain)
}

// UnknownDomain creates an error for a domain missing from the registry
func UnknownDomain(domain string) *NestError {
	return New(ErrCodeUnknownDomain, fmt.Sprintf("unknown domain '%s'", domain)).
		WithDetail("domain", domain)
}

// RelayUnavailable creates an error for an unreachable relay
func RelayUnavailable(address string, cause error) *NestError {
	return Wrap(cause, ErrCodeRelayUnavailable, fmt.Sprintf("relay not reachable at %s", address)).
		WithDetail("address", address)
}

// RelayRunning is returned when a second relay is started on the same machine.
func RelayRunning(pid int) *NestError {
	return New(ErrCodeRelayRunning, fmt.Sprintf("relay already running (PID %d)", pid)).
		WithDetail("pid", pid)
}

func NotFound(what string) *NestError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", what)).
		WithDetail("item", what)
}
