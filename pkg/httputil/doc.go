// Package httputil holds small HTTP helpers shared by the render service,
// its cache backends and the Go client.
//
//   - [Retry]: retries operations that fail with a [RetryableError],
//     doubling the delay after each attempt
//   - [NewHTTPClient]: the HTTP client used to talk to a dotcharts server
//
// Only errors explicitly wrapped in [RetryableError] are retried:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    ...
//	})
package httputil
