// Package app secuencia las fases del pipeline: partición, pasada de
// sondeo opcional, pasada exacta y reporte de salidas.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"js-rec/internal/core/dedup"
	"js-rec/internal/core/fetch"
	"js-rec/internal/core/pipeline"
	"js-rec/internal/core/probe"
	"js-rec/internal/platform/config"
	"js-rec/internal/platform/logx"
	"js-rec/internal/platform/netutil"
	"js-rec/internal/platform/out"
)

// Nombres de salida dentro de outdir.
const (
	dedupeFile   = "urls.dedupe"
	failedFile   = "urls.failed"
	summaryFile  = "summary.json"
	artifactsDir = "js"
)

// Run ejecuta el pipeline completo según la configuración. Solo los
// errores de configuración (entrada ilegible, outdir no escribible)
// son fatales; los fallos por URL se agregan en el Summary.
func Run(ctx context.Context, cfg *config.Config) (*Summary, error) {
	start := time.Now()

	if cfg.Input == "" {
		return nil, errors.New("falta el archivo de entrada (--input)")
	}
	file, err := os.Open(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer la entrada: %w", err)
	}
	urls, err := pipeline.ReadList(file)
	file.Close()
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer la entrada: %w", err)
	}

	summary := &Summary{Input: len(urls)}

	logx.Debugf("fase: partitioning")
	part := pipeline.Group(urls)
	summary.Malformed = part.Malformed
	if part.Malformed > 0 {
		logx.Warnf("%d URLs malformadas excluidas", part.Malformed)
	}
	logDomains(part)

	// Orden estable: hosts en orden de aparición, URLs en orden de
	// entrada dentro de cada host. Los outcomes no conservan orden.
	survivors := make([]pipeline.Record, 0, part.Total())

	if cfg.ProbeEnabled() {
		logx.Debugf("fase: probe pass")
		kept, err := runProbePass(ctx, cfg, part, summary)
		if err != nil {
			return summary, err
		}
		survivors = kept
	} else {
		for _, host := range part.Order {
			survivors = append(survivors, part.Hosts[host]...)
		}
	}

	if cfg.FetchEnabled() {
		logx.Debugf("fase: exact pass")
		if err := runExactPass(ctx, cfg, survivors, summary); err != nil {
			return summary, err
		}
	}

	logx.Debugf("fase: reporting")
	summary.DurationMS = time.Since(start).Milliseconds()
	if err := report(cfg, summary); err != nil {
		return summary, err
	}

	logx.Info("pipeline terminado", logx.Fields{
		"entrada":     summary.Input,
		"malformadas": summary.Malformed,
		"colapsadas":  summary.Collapsed,
		"almacenadas": summary.Stored,
		"duplicadas":  summary.Duplicates,
		"fallidas":    summary.Failed,
	})
	return summary, nil
}

// runProbePass collapses same-fingerprint URLs per host and persists
// the deduplicated URL list. Hosts run sequentially; concurrency lives
// inside each host, capped at min(workers, len(host URLs)).
func runProbePass(ctx context.Context, cfg *config.Config, part pipeline.Partition, summary *Summary) ([]pipeline.Record, error) {
	prober := probe.New(cfg.ProbeTimeout())

	var survivors []pipeline.Record
	var keptURLs []string
	for _, host := range part.Order {
		records := part.Hosts[host]
		logx.Debug("sondeando host", logx.Fields{"host": host, "urls": len(records)})

		result, err := prober.CollapseHost(ctx, records, cfg.ProbeWorkers)
		if err != nil {
			return nil, err
		}
		summary.Collapsed += result.Collapsed
		summary.Unreachable += len(result.Unreachable)

		for _, record := range result.Kept {
			keptURLs = append(keptURLs, record.URL)
		}
		survivors = append(survivors, result.Kept...)
		// Las inaccesibles no entran a la lista deduplicada pero sí a
		// la pasada exacta: que el ciclo de reintentos decida.
		survivors = append(survivors, result.Unreachable...)
	}

	if err := out.WriteSortedLines(cfg.OutDir, dedupeFile, keptURLs); err != nil {
		return nil, fmt.Errorf("no se pudo escribir %s: %w", dedupeFile, err)
	}
	logx.Infof("sondeo: %d URLs únicas, %d colapsadas, %d inaccesibles",
		len(keptURLs), summary.Collapsed, summary.Unreachable)
	return survivors, nil
}

// runExactPass fetches every surviving record under the global
// concurrency bound and offers each body to the dedup store. One
// outcome per record, in completion order.
func runExactPass(ctx context.Context, cfg *config.Config, records []pipeline.Record, summary *Summary) error {
	store, err := dedup.NewStore(filepath.Join(cfg.OutDir, artifactsDir))
	if err != nil {
		return fmt.Errorf("no se pudo crear el directorio de artefactos: %w", err)
	}
	client := fetch.New(fetch.Options{
		Concurrency:    cfg.Concurrency,
		Attempts:       cfg.Retries,
		AttemptTimeout: cfg.AttemptTimeout(),
		Backoff:        cfg.Backoff(),
	})

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	for _, record := range records {
		record := record
		group.Go(func() error {
			outcome := fetchOne(groupCtx, client, store, record)
			if groupCtx.Err() != nil {
				// Interrupción: la URL queda sin outcome y se trata
				// como no intentada en una próxima ejecución.
				return groupCtx.Err()
			}
			mu.Lock()
			summary.record(outcome)
			mu.Unlock()
			return nil
		})
	}
	return group.Wait()
}

func fetchOne(ctx context.Context, client *fetch.Client, store *dedup.Store, record pipeline.Record) Outcome {
	body, err := client.Fetch(ctx, record.URL)
	if err != nil {
		var fe *fetch.Error
		if errors.As(err, &fe) {
			return Outcome{URL: record.URL, Status: StatusFailed, Reason: fe.Reason, Attempts: fe.Attempts}
		}
		return Outcome{URL: record.URL, Status: StatusFailed, Reason: fetch.ReasonNetwork}
	}

	commit, err := store.Offer(record.URL, body)
	if err != nil {
		logx.Error("escritura de artefacto fallida", logx.Fields{"url": record.URL, "error": fmt.Sprint(err)})
		return Outcome{URL: record.URL, Status: StatusFailed, Reason: fetch.ReasonLocal}
	}

	switch commit.Status {
	case dedup.Stored:
		logx.Debug("almacenado", logx.Fields{"url": record.URL, "artefacto": commit.Artifact})
		return Outcome{URL: record.URL, Status: StatusStored, Artifact: commit.Artifact, Digest: commit.Digest}
	default:
		logx.Trace("duplicado omitido", logx.Fields{"url": record.URL, "digest": commit.Digest})
		return Outcome{URL: record.URL, Status: StatusDuplicate, Artifact: commit.Artifact, Digest: commit.Digest}
	}
}

func report(cfg *config.Config, summary *Summary) error {
	if failed := summary.FailedOutcomes(); len(failed) > 0 {
		w, err := out.New(cfg.OutDir, failedFile)
		if err != nil {
			return err
		}
		for _, o := range failed {
			if err := w.WriteLine(fmt.Sprintf("%s %s attempts=%d", o.URL, o.Reason, o.Attempts)); err != nil {
				w.Close()
				return err
			}
		}
		if err := w.Close(); err != nil {
			return err
		}
	}

	raw, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cfg.OutDir, summaryFile), append(raw, '\n'), 0o644)
}

func logDomains(part pipeline.Partition) {
	if logx.GetLevel() < logx.LevelDebug {
		return
	}
	perDomain := make(map[string]int)
	for host, records := range part.Hosts {
		perDomain[netutil.RegisteredDomain(host)] += len(records)
	}
	for domain, count := range perDomain {
		logx.Debug("dominio", logx.Fields{"dominio": domain, "urls": count})
	}
}
