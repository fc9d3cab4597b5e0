package config

import (
	"time"

	platformconfig "admissions/internal/platform/config"
	"admissions/internal/ratelimit/models"
)

// Config holds the limit of every profile.
type Config struct {
	Limits map[models.Profile]models.Limit
}

// DefaultConfig returns the built-in profile limits.
func DefaultConfig() *Config {
	return &Config{
		Limits: map[models.Profile]models.Limit{
			models.ProfileAuth:    {MaxRequests: 5, Window: 15 * time.Minute},
			models.ProfileAPI:     {MaxRequests: 100, Window: time.Minute},
			models.ProfileUpload:  {MaxRequests: 10, Window: time.Hour},
			models.ProfileEmail:   {MaxRequests: 20, Window: time.Hour},
			models.ProfileGeneral: {MaxRequests: 1000, Window: time.Minute},
		},
	}
}

// FromPlatform applies RATELIMIT_<PROFILE>_MAX/_WINDOW overrides to the
// defaults. Overrides for unknown profiles are ignored.
func FromPlatform(cfg platformconfig.RateLimitConfig) *Config {
	c := DefaultConfig()
	for name, o := range cfg.Overrides {
		profile := models.Profile(name)
		limit, ok := c.Limits[profile]
		if !ok {
			continue
		}
		if o.MaxRequests > 0 {
			limit.MaxRequests = o.MaxRequests
		}
		if o.Window > 0 {
			limit.Window = o.Window
		}
		c.Limits[profile] = limit
	}
	return c
}

// Limit returns the limit for a profile, falling back to general.
func (c *Config) Limit(profile models.Profile) models.Limit {
	if l, ok := c.Limits[profile]; ok {
		return l
	}
	return c.Limits[models.ProfileGeneral]
}
