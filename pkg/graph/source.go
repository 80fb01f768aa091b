package graph

import (
	"context"

	"friendgeo/pkg/models"
)

// GraphSource lists one page of a user's followers or followings. An empty
// cursor requests the first page. Implementations classify failures with
// pkg/errors so the fetcher can tell throttling and transient faults from
// fatal ones.
type GraphSource interface {
	FetchGraph(ctx context.Context, userID string, direction models.Direction, cursor string) (models.GraphPage, error)
}
