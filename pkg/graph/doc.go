// Package graph fetches the follower and following lists of target users
// and keeps them as write-once edge sets.
//
// The Fetcher drives a GraphSource through a bounded worker pool, a shared
// rate limiter and per-page retries. The order of side effects per user is
// fixed: fetch every page, append the edge set to the EdgeStore, then mark
// the checkpoint. A crash between the last two steps is repaired on the next
// run without any API call.
//
//	edges, _ := graph.Load(layout.EdgesPattern(city, typ), layout.EdgesPath(city, typ, seg), log)
//	f := graph.NewFetcher(source, edges, cp, limiter, retryCfg, m, graph.Options{Threads: 4}, log)
//	report, err := f.Run(ctx, users)
package graph
