package billing

import (
	"errors"

	"github.com/uozi-tech/billing-sdk-go/internal/authz"
	"github.com/uozi-tech/billing-sdk-go/internal/connection"
	"github.com/uozi-tech/billing-sdk-go/internal/usage"
)

var (
	// ErrNotInitialized is returned by Instance before Initialize succeeded.
	ErrNotInitialized = errors.New("billing: client not initialized")

	// ErrAlreadyInitialized is returned by Initialize when a client with a
	// different configuration already exists.
	ErrAlreadyInitialized = errors.New("billing: client already initialized with a different configuration")

	// ErrConnectionFailed reports a failed or timed out connect.
	ErrConnectionFailed = connection.ErrConnectionFailed

	// ErrNotConnected is returned by ReportUsage while no session is up.
	ErrNotConnected = connection.ErrNotConnected

	// ErrPublishFailed reports a usage publish that was not acknowledged.
	ErrPublishFailed = connection.ErrPublishFailed

	// ErrClosed is returned by a Connect interrupted by Disconnect.
	ErrClosed = connection.ErrClosed

	// ErrValidation matches every *ValidationError.
	ErrValidation = usage.ErrValidation

	// ErrDenied matches every *DeniedError.
	ErrDenied = authz.ErrDenied
)

// ValidationError names the invalid usage record field.
type ValidationError = usage.ValidationError

// DeniedError carries the reason an API key was rejected and the masked key.
type DeniedError = authz.DeniedError
