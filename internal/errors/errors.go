// Package errors classifies the failures a vertical build can run into.
//
// Every component returns a *ClassifiedError so the orchestrator can tell an
// expected outcome (a held lock, a mistyped export id) from an infrastructure
// problem (the document store being unreachable) without string matching.
package errors

import (
	stdErrors "errors"
	"fmt"
	"maps"
)

// Category is the broad class of a failure.
type Category string

const (
	// InvalidInput family. All three are fatal for the job and never retried.
	CategoryInvalid     Category = "invalid"
	CategoryMismatch    Category = "mismatch"
	CategoryUnsupported Category = "unsupported"

	CategoryNotFound     Category = "not_found"
	CategoryConflict     Category = "conflict"
	CategoryExternalTool Category = "external_tool"
	CategoryBackingStore Category = "backing_store"
	CategoryInternal     Category = "internal"
)

// ErrorContext carries structured key/value details for logging.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Merge combines two contexts, with other taking precedence.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	if c == nil {
		return other
	}
	if other == nil {
		return c
	}
	result := make(ErrorContext, len(c)+len(other))
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}

// ClassifiedError is an error with a category, a human readable message,
// an optional cause and structured context.
type ClassifiedError struct {
	category Category
	message  string
	cause    error
	context  ErrorContext
}

// Error returns the message, followed by the cause when there is one.
func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap implements Go 1.13+ error unwrapping.
func (e *ClassifiedError) Unwrap() error { return e.cause }

// Category returns the error category.
func (e *ClassifiedError) Category() Category { return e.category }

// Message returns the message without the cause.
func (e *ClassifiedError) Message() string { return e.message }

// Context returns the error context.
func (e *ClassifiedError) Context() ErrorContext { return e.context }

// Is matches another ClassifiedError of the same category and message.
func (e *ClassifiedError) Is(target error) bool {
	if other, ok := target.(*ClassifiedError); ok {
		return e.category == other.category && e.message == other.message
	}
	return false
}

// CategoryOf returns the category of the first ClassifiedError in err's chain,
// or CategoryInternal when there is none.
func CategoryOf(err error) Category {
	var ce *ClassifiedError
	if stdErrors.As(err, &ce) {
		return ce.category
	}
	return CategoryInternal
}

// HasCategory reports whether err is classified as category.
func HasCategory(err error, category Category) bool {
	return err != nil && CategoryOf(err) == category
}

// IsInvalidInput reports whether err belongs to the InvalidInput family.
func IsInvalidInput(err error) bool {
	switch CategoryOf(err) {
	case CategoryInvalid, CategoryMismatch, CategoryUnsupported:
		return err != nil
	}
	return false
}

func IsConflict(err error) bool     { return HasCategory(err, CategoryConflict) }
func IsNotFound(err error) bool     { return HasCategory(err, CategoryNotFound) }
func IsBackingStore(err error) bool { return HasCategory(err, CategoryBackingStore) }
func IsExternalTool(err error) bool { return HasCategory(err, CategoryExternalTool) }

// Message renders err for a receipt: a single human readable line.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
