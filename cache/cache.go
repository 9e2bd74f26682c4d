// Package cache holds the profile cache port and its implementations.
package cache

import (
	"context"
	"time"

	"crm-backoffice/models"
)

// ProfileCache avoids refetching a profile inside a freshness window.
// Get may return a stale value with fresh=false; callers decide whether to use it.
type ProfileCache interface {
	Get(ctx context.Context, key string) (profile *models.Profile, fresh bool)
	Put(ctx context.Context, key string, profile *models.Profile, at time.Time)
	Delete(ctx context.Context, key string)
}
