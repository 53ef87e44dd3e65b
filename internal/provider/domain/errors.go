package domain

import "errors"

var (
	ErrProviderUnavailable = errors.New("provider_unavailable")
	ErrProviderRejected    = errors.New("provider_rejected")
	ErrRemoteNotFound      = errors.New("provider_resource_not_found")
	ErrInvalidSignature    = errors.New("invalid_signature")
	ErrInvalidPayload      = errors.New("invalid_payload")
	ErrUnknownProvider     = errors.New("unknown_provider")
	ErrNotConfigured       = errors.New("provider_not_configured")
)
