package errors

import "fmt"

// ErrorBuilder provides a fluent API for creating ClassifiedError instances.
type ErrorBuilder struct {
	category Category
	message  string
	cause    error
	context  ErrorContext
}

// NewError starts a ClassifiedError with the given category and message.
func NewError(category Category, message string) *ErrorBuilder {
	return &ErrorBuilder{category: category, message: message}
}

// NewErrorf is NewError with a formatted message.
func NewErrorf(category Category, format string, args ...any) *ErrorBuilder {
	return NewError(category, fmt.Sprintf(format, args...))
}

// WrapError starts a ClassifiedError that wraps an existing error.
func WrapError(err error, category Category, message string) *ErrorBuilder {
	return &ErrorBuilder{category: category, message: message, cause: err}
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// WithContextMap adds multiple context values.
func (b *ErrorBuilder) WithContextMap(ctx ErrorContext) *ErrorBuilder {
	b.context = b.context.Merge(ctx)
	return b
}

// Build returns the ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Invalid is shorthand for a CategoryInvalid error.
func Invalid(format string, args ...any) *ClassifiedError {
	return NewErrorf(CategoryInvalid, format, args...).Build()
}

// NotFound is shorthand for a CategoryNotFound error.
func NotFound(format string, args ...any) *ClassifiedError {
	return NewErrorf(CategoryNotFound, format, args...).Build()
}

// Mismatch reports a field whose two sides disagree.
func Mismatch(field string, got, want any) *ClassifiedError {
	return NewErrorf(CategoryMismatch, "manifest.json mismatch for %s: manifest=%v payload=%v", field, got, want).
		WithContext("field", field).
		Build()
}

// BackingStore wraps a document store failure.
func BackingStore(err error, message string) *ClassifiedError {
	return WrapError(err, CategoryBackingStore, message).Build()
}
