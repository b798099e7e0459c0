// Package errors contains helper functions and types to classify payment engine errors
package errors

import (
	"errors"
)

// Category defines error category
type Category int

const (
	// CategoryNoError is the zero value, no classification.
	CategoryNoError Category = iota
	// CategoryInvalidInput The message could not be parsed or carried an invalid
	// amount or value. Reported synchronously with a corrective hint, never retried.
	CategoryInvalidInput
	// CategoryUnsupportedToken The token symbol is not in the supported set.
	CategoryUnsupportedToken
	// CategoryNotFound A recipient or record lookup found nothing.
	CategoryNotFound
	// CategoryInsufficientFunds The sender balance does not cover the requested amount.
	CategoryInsufficientFunds
	// CategoryExpired A pending confirmation was consumed, timed out, or never issued.
	// Always resolved as "please resend", never as a generic failure.
	CategoryExpired
	// CategoryDependencyFailure A dependent service (RPC node, datastore) is failing.
	CategoryDependencyFailure
	// CategoryStatusUnclear Local retries were exhausted after a transfer may already
	// have been broadcast. Never presented as a hard payment failure.
	CategoryStatusUnclear
	// CategoryGeneralError The service failed in an unexpected way.
	CategoryGeneralError
)

func (c Category) String() string {
	switch c {
	case CategoryInvalidInput:
		return "CategoryInvalidInput"
	case CategoryUnsupportedToken:
		return "CategoryUnsupportedToken"
	case CategoryNotFound:
		return "CategoryNotFound"
	case CategoryInsufficientFunds:
		return "CategoryInsufficientFunds"
	case CategoryExpired:
		return "CategoryExpired"
	case CategoryDependencyFailure:
		return "CategoryDependencyFailure"
	case CategoryStatusUnclear:
		return "CategoryStatusUnclear"
	default:
		return "CategoryGeneralError"
	}
}

// ServiceError is the error type carried across the payment engine.
// Message is user-facing; Err is the wrapped internal cause for logs.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

// Error method to comply with error interface
func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is implements the custom condition to check an error is equal to a service error
func (err ServiceError) Is(target error) bool {
	return err.Message == target.Error()
}

// Is checks that provided error is a ServiceError with desired Category
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Category == cat {
		return true
	}
	return false
}

// UserMessage returns the user-facing text for an error, or a generic
// fallback when the error carries no classification.
func UserMessage(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return "Something went wrong. Please try again."
}

// InvalidInputError returns an error with category InvalidInput
func InvalidInputError(err error, message string) error {
	if err == nil {
		err = errors.New("invalid input: " + message)
	}
	return &ServiceError{
		Category: CategoryInvalidInput,
		Message:  message,
		Err:      err,
	}
}

// UnsupportedTokenError returns an error with category UnsupportedToken
func UnsupportedTokenError(err error, message string) error {
	if err == nil {
		err = errors.New("unsupported token: " + message)
	}
	return &ServiceError{
		Category: CategoryUnsupportedToken,
		Message:  message,
		Err:      err,
	}
}

// NotFoundError returns an error with category NotFound
func NotFoundError(err error, message string) error {
	if err == nil {
		err = errors.New("not found: " + message)
	}
	return &ServiceError{
		Category: CategoryNotFound,
		Message:  message,
		Err:      err,
	}
}

// InsufficientFundsError returns an error with category InsufficientFunds
func InsufficientFundsError(err error, message string) error {
	if err == nil {
		err = errors.New("insufficient funds")
	}
	return &ServiceError{
		Category: CategoryInsufficientFunds,
		Message:  message,
		Err:      err,
	}
}

// ExpiredError returns an error with category Expired
func ExpiredError(err error, message string) error {
	if err == nil {
		err = errors.New("confirmation expired")
	}
	return &ServiceError{
		Category: CategoryExpired,
		Message:  message,
		Err:      err,
	}
}

// DependencyFailureError returns an error with category DependencyFailure
func DependencyFailureError(err error, message string) error {
	if err == nil {
		err = errors.New("dependency failure")
	}
	return &ServiceError{
		Category: CategoryDependencyFailure,
		Message:  message,
		Err:      err,
	}
}

// StatusUnclearError returns an error with category StatusUnclear
func StatusUnclearError(err error, message string) error {
	if err == nil {
		err = errors.New("status unclear")
	}
	return &ServiceError{
		Category: CategoryStatusUnclear,
		Message:  message,
		Err:      err,
	}
}

// GeneralError returns a general service error
func GeneralError(err error) error {
	if err == nil {
		err = errors.New("internal error")
	}
	return &ServiceError{
		Category: CategoryGeneralError,
		Message:  "Something went wrong. Please try again.",
		Err:      err,
	}
}
