// Package twitterapi fetches follower and following listings from the hosted
// twitterapi.io service. The Client satisfies graph.GraphSource: each call
// returns one page, and pagination, retry and pacing stay with the fetcher.
//
// Status codes are mapped onto friendgeo error types: 429 is a rate limit,
// 401 and 403 abort the run, and 5xx or network failures are retried.
package twitterapi
