// Package probe implements the cheap dedup tier: HEAD requests that
// synthesize a weak content identity from response validators without
// transferring bodies.
package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"js-rec/internal/core/pipeline"
	"js-rec/internal/platform/logx"
)

// Fingerprint es el sustituto débil de identidad de contenido extraído
// de las cabeceras de respuesta.
type Fingerprint struct {
	ETag         string
	Length       string
	LastModified string
}

// Usable reports whether the fingerprint carries at least one real
// validator. Content-Length alone is never a validator: two URLs with
// the same size and empty validators must not be treated as a match.
func (f Fingerprint) Usable() bool {
	return f.ETag != "" || f.LastModified != ""
}

// Key returns the comparison key. Format kept stable for operators who
// grep probe traces.
func (f Fingerprint) Key() string {
	return fmt.Sprintf("%s_%s_%s", f.ETag, f.Length, f.LastModified)
}

// Kind clasifica el resultado de un sondeo.
type Kind int

const (
	// Identity: respuesta 2xx con al menos un validador usable.
	Identity Kind = iota
	// Unknown: respuesta 2xx sin validadores usables.
	Unknown
	// Unreachable: fallo de red o estado no exitoso.
	Unreachable
)

// Outcome es el resultado terminal de sondear una URL.
type Outcome struct {
	URL         string
	Kind        Kind
	Fingerprint Fingerprint
	Err         error
}

// Prober issues HEAD checks. TLS verification is disabled: in a recon
// context self-signed or mismatched certificates must not abort the
// scan.
type Prober struct {
	client *http.Client
}

func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	return &Prober{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// Probe issues a single no-body existence check. Redirects are
// followed; the fingerprint describes the final response.
func (p *Prober) Probe(ctx context.Context, rawURL string) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return Outcome{URL: rawURL, Kind: Unreachable, Err: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Outcome{URL: rawURL, Kind: Unreachable, Err: err}
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Outcome{
			URL:  rawURL,
			Kind: Unreachable,
			Err:  fmt.Errorf("estado %d", resp.StatusCode),
		}
	}

	fp := Fingerprint{
		ETag:         strings.Trim(resp.Header.Get("ETag"), `"`),
		Length:       resp.Header.Get("Content-Length"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if !fp.Usable() {
		return Outcome{URL: rawURL, Kind: Unknown, Fingerprint: fp}
	}
	return Outcome{URL: rawURL, Kind: Identity, Fingerprint: fp}
}

// HostResult resume la pasada de sondeo sobre un host. Unreachable
// records are excluded from Kept (the probe-only URL list only carries
// URLs that answered), but handed back so a following exact pass can
// still drive them: there the probe stays a pure optimization.
type HostResult struct {
	Kept        []pipeline.Record
	Unreachable []pipeline.Record
	Collapsed   int
}

// CollapseHost probes every record of one host with at most workers
// concurrent requests and keeps, in input order, one representative per
// usable fingerprint plus every record without validators. Records
// whose probe fails are dropped from the kept list and counted; the
// exact pass decides their fate when it runs.
//
// Collapsing here is heuristic: identical validators are assumed, not
// proven, to mean identical content. Exactness is restored by the hash
// tier for every body actually fetched.
func (p *Prober) CollapseHost(ctx context.Context, records []pipeline.Record, workers int) (HostResult, error) {
	if len(records) == 0 {
		return HostResult{}, nil
	}
	if workers <= 0 || workers > len(records) {
		workers = len(records)
	}

	outcomes := make([]Outcome, len(records))
	group, groupCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)

	for i, record := range records {
		i, record := i, record
		group.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
			defer func() { <-sem }()
			outcomes[i] = p.Probe(groupCtx, record.URL)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return HostResult{}, err
	}

	var result HostResult
	seen := make(map[string]string, len(records))
	for i, record := range records {
		outcome := outcomes[i]
		switch outcome.Kind {
		case Unreachable:
			result.Unreachable = append(result.Unreachable, record)
			logx.Debug("sondeo fallido", logx.Fields{"url": record.URL, "error": fmt.Sprint(outcome.Err)})
		case Unknown:
			// Sin validadores no hay colapso posible: ambas URLs
			// siguen a la pasada exacta.
			result.Kept = append(result.Kept, record)
		case Identity:
			key := outcome.Fingerprint.Key()
			if first, dup := seen[key]; dup {
				result.Collapsed++
				logx.Trace("huella repetida", logx.Fields{"url": record.URL, "igual_a": first})
				continue
			}
			seen[key] = record.URL
			result.Kept = append(result.Kept, record)
		}
	}
	return result, nil
}
