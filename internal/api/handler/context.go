package handler

import (
	"context"

	"github.com/saferoute/saferoute/internal/api/middleware"
)

// GetServiceName retrieves the authenticated caller service from the context.
// This is a convenience wrapper around middleware.GetServiceName.
func GetServiceName(ctx context.Context) string {
	return middleware.GetServiceName(ctx)
}
