// Package pipeline orchestrates one warehouse run: read the flat export,
// normalize and enrich it, build the star schema frames, and load them.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"salesdw/internal/config"
	"salesdw/internal/frame"
	"salesdw/internal/load"
	"salesdw/internal/metrics"
	"salesdw/internal/source/csvfile"
	"salesdw/internal/star"
	"salesdw/internal/storage"
	"salesdw/internal/transform"
)

// Logger is the minimal logging interface used by the pipeline.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// NewRepoFn is a seam for constructing the storage repository.
// When nil, storage.New is used. Tests inject a fake repository.
type NewRepoFn func(ctx context.Context, cfg storage.Config) (storage.Repository, error)

// ReadFn is a seam for reading the source frame. When nil, csvfile.Read is
// used against the configured path.
type ReadFn func(path string, opt csvfile.Options) (*frame.Frame, error)

// Pipeline executes a full rebuild of the sales warehouse. Each run drops
// and recreates the star schema, so reruns are idempotent.
type Pipeline struct {
	Config config.Pipeline
	Logger Logger

	NewRepo NewRepoFn
	Read    ReadFn
}

// Run executes the stages in order and stops at the first failure.
func (p *Pipeline) Run(ctx context.Context) error {
	logf := p.logger()

	repo, err := p.newRepo(ctx)
	if err != nil {
		return fmt.Errorf("connect storage kind=%s: %w", p.Config.Storage.Kind, err)
	}
	defer repo.Close()

	if err := p.initSchema(ctx, repo); err != nil {
		return err
	}

	f, err := p.runExtract()
	if err != nil {
		return err
	}

	f = p.runTransform(f)

	dims, fact, err := p.runBuild(f)
	if err != nil {
		return err
	}

	if err := p.runLoad(ctx, repo, dims, fact); err != nil {
		return err
	}

	logf("stage=done source_rows=%d fact_rows=%d", f.Len(), fact.Len())
	return nil
}

// initSchema rebuilds the warehouse tables from the configured DDL script.
// An empty script path skips the stage; the tables must then already exist.
func (p *Pipeline) initSchema(ctx context.Context, repo storage.Repository) error {
	if p.Config.Schema.ScriptPath == "" {
		p.logger()("stage=ddl skipped")
		return nil
	}

	start := time.Now()
	script, err := os.ReadFile(p.Config.Schema.ScriptPath)
	if err != nil {
		return p.fail("ddl", start, fmt.Errorf("read schema script: %w", err))
	}
	if err := repo.ExecScript(ctx, string(script)); err != nil {
		return p.fail("ddl", start, err)
	}

	p.ok("ddl", start)
	return nil
}

func (p *Pipeline) runExtract() (*frame.Frame, error) {
	start := time.Now()

	read := p.Read
	if read == nil {
		read = csvfile.Read
	}
	f, err := read(p.Config.Source.CSVPath, csvfile.Options{Encoding: p.Config.Source.Encoding})
	if err != nil {
		return nil, p.fail("extract", start, err)
	}

	metrics.AddCounter("etl_records_total", float64(f.Len()), metrics.Labels{"kind": "source"})
	p.logger()("stage=extract ok rows=%d columns=%d duration=%s", f.Len(), len(f.Columns), durMS(start))
	p.count("extract", "ok", start)
	return f, nil
}

func (p *Pipeline) runTransform(f *frame.Frame) *frame.Frame {
	start := time.Now()

	layouts := p.Config.Source.DateLayouts
	if len(layouts) == 0 {
		layouts = transform.DefaultDateLayouts
	}
	f = transform.Normalize(f, layouts)
	p.ok("normalize", start)

	start = time.Now()
	f = transform.Engineer(f)
	p.ok("features", start)
	return f
}

func (p *Pipeline) runBuild(f *frame.Frame) (*star.Dimensions, *frame.Frame, error) {
	start := time.Now()

	dims, err := star.BuildDimensions(f)
	if err != nil {
		return nil, nil, p.fail("dimensions", start, err)
	}
	p.ok("dimensions", start)

	start = time.Now()
	strict := p.Config.Load.OnUnresolved == "fail"
	fact, err := star.BuildFactSales(f, dims, strict)
	if err != nil {
		return nil, nil, p.fail("fact", start, err)
	}
	metrics.AddCounter("etl_records_total", float64(fact.Len()), metrics.Labels{"kind": "fact"})
	p.ok("fact", start)

	return dims, fact, nil
}

// runLoad writes dimensions before the fact table so foreign keys resolve.
func (p *Pipeline) runLoad(ctx context.Context, repo storage.Repository, dims *star.Dimensions, fact *frame.Frame) error {
	start := time.Now()

	loader := &load.BulkLoader{
		Repo:      repo,
		BatchSize: p.Config.Load.BatchSize,
		Logger:    p.Logger,
	}

	tables := []struct {
		name string
		f    *frame.Frame
	}{
		{star.TableDate, dims.Date},
		{star.TableCustomer, dims.Customer},
		{star.TableProduct, dims.Product},
		{star.TableShipMode, dims.ShipMode},
		{star.TableLocation, dims.Location},
		{star.TableFact, fact},
	}

	for _, t := range tables {
		if _, err := loader.Load(ctx, t.name, t.f); err != nil {
			return p.fail("load", start, err)
		}
	}

	p.ok("load", start)
	return nil
}

func (p *Pipeline) newRepo(ctx context.Context) (storage.Repository, error) {
	newRepo := p.NewRepo
	if newRepo == nil {
		newRepo = storage.New
	}
	return newRepo(ctx, storage.Config{
		Kind: p.Config.Storage.Kind,
		DSN:  p.Config.Storage.DSN,
	})
}

func (p *Pipeline) logger() func(format string, v ...any) {
	if p.Logger == nil {
		l := log.New(discardWriter{}, "", 0)
		return l.Printf
	}
	return p.Logger.Printf
}

func (p *Pipeline) ok(stage string, start time.Time) {
	p.logger()("stage=%s ok duration=%s", stage, durMS(start))
	p.count(stage, "ok", start)
}

func (p *Pipeline) fail(stage string, start time.Time, err error) error {
	p.logger()("stage=%s status=error duration=%s err=%v", stage, durMS(start), err)
	p.count(stage, "error", start)
	return fmt.Errorf("%s: %w", stage, err)
}

func (p *Pipeline) count(stage, status string, start time.Time) {
	labels := metrics.Labels{"step": stage, "status": status}
	metrics.IncCounter("etl_step_total", labels)
	metrics.ObserveHistogram("etl_step_duration_seconds", time.Since(start).Seconds(), labels)
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
