package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryAfterSeconds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 900, RetryAfterSeconds(now.Add(15*time.Minute), now))
	assert.Equal(t, 2, RetryAfterSeconds(now.Add(1001*time.Millisecond), now), "rounds up")
	assert.Equal(t, 1, RetryAfterSeconds(now, now), "never below one second")
}

func TestRecordExpired(t *testing.T) {
	now := time.Now()
	r := Record{Count: 3, ResetAt: now}

	assert.False(t, r.Expired(now), "window is live at its reset instant")
	assert.True(t, r.Expired(now.Add(time.Millisecond)))
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile("upload")
	require.NoError(t, err)
	assert.Equal(t, ProfileUpload, p)

	_, err = ParseProfile("")
	require.Error(t, err)
	_, err = ParseProfile("admin")
	require.Error(t, err)
}

func TestResetRateLimitRequest(t *testing.T) {
	req := &ResetRateLimitRequest{Identifier: " 1.2.3.4 ", Profile: " AUTH "}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, []Profile{ProfileAuth}, req.Profiles())

	all := &ResetRateLimitRequest{Identifier: "1.2.3.4"}
	require.NoError(t, all.Validate())
	assert.Equal(t, Profiles, all.Profiles())

	require.Error(t, (&ResetRateLimitRequest{}).Validate())
	require.Error(t, (&ResetRateLimitRequest{Identifier: "x", Profile: "admin"}).Validate())
}
