package harvest

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dainst/marc-authority-harvester/errors"
	"github.com/dainst/marc-authority-harvester/logger"
)

// FetcherConfig bounds the retry loop of the Fetcher.
type FetcherConfig struct {
	// MaxRetries is the retry budget after the first attempt. A budget of 5
	// means at most 6 requests for one URL.
	MaxRetries int

	// Timeout is the deadline for the first attempt. Each retry escalates it
	// by TimeoutStep up to TimeoutMax; the upstream thesaurus service is
	// known to answer slowly under load, so escalation beats failing fast.
	Timeout     time.Duration
	TimeoutStep time.Duration
	TimeoutMax  time.Duration

	// Backoff is the wait between attempts.
	Backoff time.Duration
}

// DefaultFetcherConfig returns the retry defaults used by all sources.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		MaxRetries:  5,
		Timeout:     60 * time.Second,
		TimeoutStep: 60 * time.Second,
		TimeoutMax:  300 * time.Second,
		Backoff:     2 * time.Second,
	}
}

// Fetcher issues single detail or feed-page requests with a bounded,
// synchronous retry loop. Retry eligibility is an exhaustive decision over
// the closed failure-kind set in the errors package: 5xx answers, connection
// failures and timeouts retry; 4xx answers and decode failures do not.
type Fetcher struct {
	client  *http.Client
	cfg     FetcherConfig
	limiter *rate.Limiter // nil = unlimited
	log     *zap.SugaredLogger
}

// NewFetcher creates a fetcher. The limiter may be nil.
func NewFetcher(client *http.Client, cfg FetcherConfig, limiter *rate.Limiter, log *zap.SugaredLogger) *Fetcher {
	return &Fetcher{client: client, cfg: cfg, limiter: limiter, log: log}
}

// Fetch requests the URL, retrying transient failures until the budget is
// exhausted. Each retry fully blocks until the previous attempt concludes.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), "fetch cancelled during backoff")
			case <-time.After(f.cfg.Backoff):
			}
		}

		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, errors.Wrap(err, "fetch cancelled waiting for rate limit")
			}
		}

		timeout := f.timeoutFor(attempt)
		payload, err := f.attempt(ctx, url, timeout)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, errors.Wrap(lastErr, "fetch cancelled")
		}
		if !errors.IsRetryable(err) {
			return nil, err
		}

		f.log.Warnw("Retrying request after transient failure",
			logger.FieldURL, url,
			logger.FieldAttempt, attempt+1,
			logger.FieldTimeout, timeout,
			logger.FieldError, err,
		)
	}

	f.log.Errorw("Retry budget exhausted",
		logger.FieldURL, url,
		"attempts", f.cfg.MaxRetries+1,
		logger.FieldError, lastErr,
	)
	return nil, errors.Wrapf(lastErr, "retries exhausted after %d attempts", f.cfg.MaxRetries+1)
}

// timeoutFor escalates the request deadline per attempt, capped at TimeoutMax.
func (f *Fetcher) timeoutFor(attempt int) time.Duration {
	timeout := f.cfg.Timeout + time.Duration(attempt)*f.cfg.TimeoutStep
	if f.cfg.TimeoutMax > 0 && timeout > f.cfg.TimeoutMax {
		timeout = f.cfg.TimeoutMax
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return timeout
}

// attempt issues one request and classifies its outcome into the sentinel
// failure kinds.
func (f *Fetcher) attempt(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrClientStatus, "invalid request for %s: %v", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) && ctx.Err() == nil {
			return nil, errors.Wrapf(errors.ErrTimeout, "%s after %s", url, timeout)
		}
		return nil, errors.Wrapf(errors.ErrConnection, "%s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, errors.Wrapf(errors.ErrServerStatus, "status %d for %s", resp.StatusCode, url)
	}
	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return nil, errors.Wrapf(errors.ErrClientStatus, "status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrConnection, "reading body of %s: %v", url, err)
	}
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
