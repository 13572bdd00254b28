// Package fetch implements bounded, retried body retrieval: the unit
// of work that the exact dedup pass drives.
package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/semaphore"

	"js-rec/internal/platform/logx"
)

// Razones de fallo terminales.
const (
	ReasonNetwork = "network"
	ReasonLocal   = "local"
)

// Error es el fallo terminal tipado de una URL tras agotar intentos.
type Error struct {
	URL      string
	Reason   string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %s tras %d intentos: %v", e.URL, e.Reason, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options configura el fetcher. Los ceros toman los defaults
// (10 slots, 3 intentos, 30s por intento, 2s de backoff).
type Options struct {
	Concurrency    int
	Attempts       int
	AttemptTimeout time.Duration
	Backoff        time.Duration
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 10
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 30 * time.Second
	}
	if o.Backoff < 0 {
		o.Backoff = 2 * time.Second
	}
}

// Client retrieves URL bodies under a global concurrency cap. It is
// stateless per call and never touches the dedup set.
type Client struct {
	http    *http.Client
	tickets *semaphore.Weighted
	opts    Options
}

func New(opts Options) *Client {
	opts.normalize()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	// Compression is negotiated and decoded by hand so the bytes we
	// hash are the decoded representation regardless of what the
	// transport agreed on.
	transport.DisableCompression = true

	return &Client{
		http:    &http.Client{Transport: transport},
		tickets: semaphore.NewWeighted(int64(opts.Concurrency)),
		opts:    opts,
	}
}

// Fetch retrieves the full body of rawURL. It blocks until a
// concurrency ticket is available, then attempts the retrieval up to
// the configured number of times with a fixed backoff in between. The
// ticket is released on every exit path, including cancellation.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.tickets.Acquire(ctx, 1); err != nil {
		return nil, &Error{URL: rawURL, Reason: ReasonNetwork, Attempts: 0, Err: err}
	}
	defer c.tickets.Release(1)

	var lastErr error
	for attempt := 1; attempt <= c.opts.Attempts; attempt++ {
		body, err := c.attempt(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, &Error{URL: rawURL, Reason: ReasonNetwork, Attempts: attempt, Err: ctx.Err()}
		}
		if attempt < c.opts.Attempts {
			logx.Debug("reintentando", logx.Fields{"url": rawURL, "intento": attempt, "error": fmt.Sprint(err)})
			if err := sleep(ctx, c.opts.Backoff); err != nil {
				return nil, &Error{URL: rawURL, Reason: ReasonNetwork, Attempts: attempt, Err: err}
			}
		}
	}
	return nil, &Error{URL: rawURL, Reason: ReasonNetwork, Attempts: c.opts.Attempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, rawURL string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.opts.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drenar para reutilizar la conexión.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))
		return nil, fmt.Errorf("estado %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	// La lectura completa del cuerpo sigue acotada por attemptCtx: el
	// transporte corta la conexión cuando el contexto vence.
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
