package services

import (
	"context"
	"strings"
	"time"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// normalizeEmail lower-cases and trims an address so comparisons are case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func stringPtr(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// utcNow keeps stored timestamps comparable across drivers that compare them as text.
func utcNow() time.Time {
	return time.Now().UTC()
}
