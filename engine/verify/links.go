package verify

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"siteforge/engine/models"
	"siteforge/engine/telemetry/circuit"
	"siteforge/engine/telemetry/retry"
)

// ProbeLinks HEADs (falling back to GET when a target rejects HEAD) every
// link the crawler recorded on the rebuilt pages, wrapped in the shared
// transient-I/O retry policy and a per-run circuit breaker so a single dead
// host can't make the whole probe run time out link by link (spec §4.6
// "Links").
func ProbeLinks(ctx context.Context, links []string, timeout time.Duration) []models.LinkResult {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	breaker := circuit.NewBreaker("verify-links", 5, 30*time.Second)
	policy := retry.DefaultPolicy()

	out := make([]models.LinkResult, 0, len(links))
	for _, link := range links {
		out = append(out, probeOne(ctx, client, breaker, policy, link))
	}
	return out
}

func probeOne(ctx context.Context, client *http.Client, breaker *gobreaker.CircuitBreaker, policy retry.Policy, link string) models.LinkResult {
	var status int
	var redirected bool

	err := retry.Do(ctx, policy, func(attempt int) error {
		_, berr := breaker.Execute(func() (interface{}, error) {
			code, redir, doErr := fetchStatus(ctx, client, link, http.MethodHead)
			if doErr != nil || code == http.StatusMethodNotAllowed {
				code, redir, doErr = fetchStatus(ctx, client, link, http.MethodGet)
			}
			if doErr != nil {
				return nil, doErr
			}
			status = code
			redirected = redir
			if status >= 500 {
				return nil, errStatus(status)
			}
			return nil, nil
		})
		return berr
	})

	ok := err == nil && status > 0 && status < 400
	return models.LinkResult{URL: link, StatusCode: status, Ok: ok, Redirected: redirected}
}

func fetchStatus(ctx context.Context, client *http.Client, link, method string) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, link, nil)
	if err != nil {
		return 0, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	redirected := len(resp.Request.URL.String()) > 0 && resp.Request.URL.String() != link
	return resp.StatusCode, redirected, nil
}

type errStatus int

func (e errStatus) Error() string {
	return http.StatusText(int(e))
}
