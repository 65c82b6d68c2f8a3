// Package client provides the outbound HTTP client used to load documents.
//
// It is built on go-resty/resty over a hashicorp/go-retryablehttp transport,
// with a token bucket limiter and one circuit breaker per origin. Bodies are
// decoded from gzip, deflate, or zstd with klauspost/compress and capped at
// a configurable size.
//
//	c := client.NewClient(client.DefaultOptions())
//	resp, err := c.Get(ctx, "https://example.com/", nil)
package client
