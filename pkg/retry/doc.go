// Package retry implements the bounded backoff used for every provider call.
//
// Rate-limit and transient errors are retried with a per-type exponential
// backoff; once MaxRetries is spent the last error is returned wrapped in
// ErrExhausted and the caller skips the unit without checkpointing it. Fatal
// errors pass straight through so the caller can abort the run.
//
//	etb := retry.NewErrorTypeBackoff(time.Second, 30*time.Second, time.Minute)
//	page, err := retry.DoWithResult(ctx, func(ctx context.Context) (models.GraphPage, error) {
//		return source.FetchGraph(ctx, userID, models.Followers, cursor)
//	}, &retry.Config{MaxRetries: 3, BackoffFor: etb.ForError})
package retry
