package common

import (
	"context"

	"github.com/google/uuid"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyAttemptID contextKey = "attempt_id"
	ContextKeyImageFile contextKey = "image_file"
)

// WithAttemptID adds a processing attempt ID to the context
func WithAttemptID(ctx context.Context, attemptID uuid.UUID) context.Context {
	return context.WithValue(ctx, ContextKeyAttemptID, attemptID)
}

// AttemptIDFromContext extracts the attempt ID from context
func AttemptIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(ContextKeyAttemptID).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// WithImageFile adds the source image filename to the context
func WithImageFile(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ContextKeyImageFile, name)
}

// ImageFileFromContext extracts the source image filename from context
func ImageFileFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(ContextKeyImageFile).(string); ok {
		return name
	}
	return ""
}
