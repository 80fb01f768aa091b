// Package ratelimit provides client-side pacing for the graph and geocoding
// providers. TokenBucket wraps golang.org/x/time/rate and adds a shared pause
// that workers trigger after a provider rate-limit response.
package ratelimit
