package twitterapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/graph"
	"friendgeo/pkg/logger"
	"friendgeo/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ graph.GraphSource = (*Client)(nil)

func TestFetchGraphPaginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		assert.Equal(t, "42", r.URL.Query().Get("userId"))
		assert.Equal(t, "200", r.URL.Query().Get("pageSize"))

		switch {
		case r.URL.Path == followersPath && r.URL.Query().Get("cursor") == "":
			w.Write([]byte(`{"followers":[{"id":"1","userName":"a","location":"Portland, OR"},{"id":"","userName":"ghost"}],"has_next_page":true,"next_cursor":"c2","status":"success"}`))
		case r.URL.Path == followersPath && r.URL.Query().Get("cursor") == "c2":
			w.Write([]byte(`{"followers":[{"id":"2","userName":"b"}],"has_next_page":true,"next_cursor":"0","status":"success"}`))
		case r.URL.Path == followingsPath:
			w.Write([]byte(`{"followings":[{"id":"3","userName":"c","location":"Austin"}],"has_next_page":false,"next_cursor":"","status":"success"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, "k", time.Second, logger.NewNopLogger())
	ctx := context.Background()

	page, err := c.FetchGraph(ctx, "42", models.Followers, "")
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	assert.Equal(t, "c2", page.NextCursor)
	assert.Equal(t, []models.ProfileSnippet{{ID: "1", Username: "a", RawLocation: "Portland, OR"}}, page.Users)

	page, err = c.FetchGraph(ctx, "42", models.Followers, "c2")
	require.NoError(t, err)
	assert.False(t, page.HasMore, "cursor 0 ends the listing")
	assert.Empty(t, page.NextCursor)

	page, err = c.FetchGraph(ctx, "42", models.Following, "")
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "Austin", page.Users[0].RawLocation)
}

func TestFetchGraphErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
		fatal     bool
	}{
		{"rate limited", http.StatusTooManyRequests, "", true, false},
		{"bad key", http.StatusUnauthorized, "", false, true},
		{"forbidden", http.StatusForbidden, "", false, true},
		{"server", http.StatusServiceUnavailable, "", true, false},
		{"error body", http.StatusOK, `{"status":"error","msg":"upstream timeout"}`, true, false},
		{"private account", http.StatusNotFound, "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(server.URL, "k", time.Second, logger.NewNopLogger())
			_, err := c.FetchGraph(context.Background(), "42", models.Followers, "")
			require.Error(t, err)
			assert.Equal(t, tt.retryable, errs.Retryable(err))
			assert.Equal(t, tt.fatal, errs.IsFatalError(err))
		})
	}
}

func TestFetchGraphRejectsUnknownDirection(t *testing.T) {
	c := NewClient("http://unused", "k", time.Second, logger.NewNopLogger())
	_, err := c.FetchGraph(context.Background(), "42", models.Direction("sideways"), "")
	assert.True(t, errs.IsValidation(err))
}
