// Package retry re-runs failed network operations with backoff.
//
// Only typed failures from pkg/errors that are worth another try are
// retried: transport errors, timeouts, HTTP 429 and 5xx. Waiting between
// attempts stops as soon as the context is done.
//
//	data, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
//	    return client.Fetch(ctx, url)
//	}, &retry.Config{MaxAttempts: 2})
package retry
