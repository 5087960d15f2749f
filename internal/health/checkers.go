package health

import (
	"context"
	"fmt"
	"net/http"
)

// Pinger is anything that can probe its backing dependency. The PostgreSQL
// template and transcript stores implement it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker wraps a [Pinger] as a named readiness check.
func PingChecker(name string, p Pinger) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			return p.Ping(ctx)
		},
	}
}

// EndpointChecker probes an HTTP endpoint with a GET request. Any response is
// treated as healthy except 5xx; readiness asks "is the backend reachable",
// not "does this route exist".
func EndpointChecker(name, url string, client *http.Client) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("health: build request for %s: %w", url, err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("health: %s unreachable: %w", url, err)
			}
			resp.Body.Close()
			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("health: %s returned status %d", url, resp.StatusCode)
			}
			return nil
		},
	}
}
