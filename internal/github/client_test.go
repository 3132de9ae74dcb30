package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-github/v55/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/githunter/githunter/internal/errors"
)

func TestMapPrimaryError(t *testing.T) {
	rateErr := &github.RateLimitError{Message: "API rate limit exceeded for 1.2.3.4"}
	err := mapPrimaryError(rateErr, "user")
	require.True(t, apperrors.IsRateLimited(err))
	// The upstream message survives verbatim
	assert.Equal(t, "API rate limit exceeded for 1.2.3.4", err.(*apperrors.AppError).Message)

	abuseErr := &github.AbuseRateLimitError{Message: "You have exceeded a secondary rate limit"}
	assert.True(t, apperrors.IsRateLimited(mapPrimaryError(abuseErr, "user")))

	notFound := &github.ErrorResponse{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  "Not Found",
	}
	assert.True(t, apperrors.IsNotFound(mapPrimaryError(notFound, "user")))

	forbidden := &github.ErrorResponse{
		Response: &http.Response{StatusCode: http.StatusForbidden},
		Message:  "API rate limit exceeded",
	}
	assert.True(t, apperrors.IsRateLimited(mapPrimaryError(forbidden, "repositories")))

	plain := errors.New("connection reset")
	mapped := mapPrimaryError(plain, "repositories")
	assert.False(t, apperrors.IsNotFound(mapped))
	assert.False(t, apperrors.IsRateLimited(mapped))
	assert.ErrorIs(t, mapped, plain)
}

func TestMapPrimaryErrorWrapped(t *testing.T) {
	inner := &github.ErrorResponse{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  "Not Found",
	}
	wrapped := fmt.Errorf("fetching user: %w", inner)

	assert.True(t, apperrors.IsNotFound(mapPrimaryError(wrapped, "user")))
}

func TestNewClientWithoutToken(t *testing.T) {
	c, err := NewClient("", zap.NewNop().Sugar())
	require.NoError(t, err)

	// Without a token there is no GraphQL access, so pinned lookups
	// short-circuit to an empty result
	names, err := c.GetPinnedRepoNames(context.Background(), "anyone")
	require.NoError(t, err)
	assert.Empty(t, names)
}
