package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"excess_mortality/config"
	"excess_mortality/ingest"
	"excess_mortality/internal/httpapi"
	"excess_mortality/internal/store"
	"excess_mortality/internal/watch"
	"excess_mortality/metrics"
	"excess_mortality/mortality"
)

// App wires the pipeline, the run store, the input watcher and the HTTP hand-off together.
type App struct {
	cfg     config.Config
	store   *store.Store
	metrics *metrics.Metrics
	watcher *watch.Watcher
	mux     *http.ServeMux

	// runs are serialized; the watcher and POST /ops/rerun may overlap.
	mu sync.Mutex
}

func New(cfg config.Config) (*App, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, store: st, metrics: metrics.New(), mux: http.NewServeMux()}
	a.watcher = watch.New([]string{cfg.MortalityPath, cfg.BaselinePath}, func(ctx context.Context) error {
		_, err := a.RunOnce(ctx)
		return err
	})
	httpapi.NewRouter(st, a.metrics, a).Register(a.mux)
	return a, nil
}

// RunOnce reads both inputs, runs the pipeline and persists the result.
// A failed run is recorded with its error and leaves the previous result current.
func (a *App) RunOnce(ctx context.Context) (*mortality.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	started := time.Now().UTC()
	a.metrics.RecordStart()
	runID, err := a.store.StartRun(ctx, started)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	read, res, err := a.execute()
	finished := time.Now().UTC()
	if err != nil {
		a.metrics.RecordRun(read, 0, 0, finished.Sub(started), finished, err)
		a.failRun(ctx, runID, err, finished)
		return nil, err
	}
	if err := a.store.SaveResult(ctx, runID, read, res, finished); err != nil {
		err = fmt.Errorf("save run: %w", err)
		a.metrics.RecordRun(read, 0, 0, finished.Sub(started), finished, err)
		a.failRun(ctx, runID, err, finished)
		return nil, err
	}
	a.metrics.RecordRun(read, len(res.Canonical), len(res.Report.Summaries), finished.Sub(started), finished, nil)
	log.Printf("app: run %s ok read=%d kept=%d geographies=%d wide=%d elapsed=%s",
		runID, read, len(res.Canonical), len(res.Report.Summaries), len(res.Wide), finished.Sub(started))
	return res, nil
}

func (a *App) failRun(ctx context.Context, runID string, cause error, ts time.Time) {
	if err := a.store.FailRun(ctx, runID, cause, ts); err != nil {
		log.Printf("app: record failed run %s: %v", runID, err)
	}
	log.Printf("app: run %s failed: %v", runID, cause)
}

func (a *App) execute() (int, *mortality.Result, error) {
	pipeline := a.cfg.Pipeline
	raw, err := readFile(a.cfg.MortalityPath, ingest.ReadMortality)
	if err != nil {
		return 0, nil, fmt.Errorf("read mortality: %w", err)
	}
	rows, err := readFile(a.cfg.BaselinePath, func(r io.Reader) ([]mortality.BaselineRow, error) {
		return ingest.ReadBaseline(r, pipeline.BaselineGeoCol, pipeline.BaselineColumnIDs())
	})
	if err != nil {
		return len(raw), nil, fmt.Errorf("read baseline: %w", err)
	}
	baseline, err := mortality.BuildBaseline(rows, pipeline.BaselineOptions())
	if err != nil {
		return len(raw), nil, fmt.Errorf("baseline: %w", err)
	}
	res, err := mortality.Run(raw, baseline, pipeline.Options())
	if err != nil {
		return len(raw), nil, err
	}
	return len(raw), res, nil
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	return read(f)
}

// Run executes the pipeline once, then keeps watching inputs and serving
// results when configured to. It returns when ctx is done.
func (a *App) Run(ctx context.Context) error {
	if _, err := a.RunOnce(ctx); err != nil && !a.cfg.ServeHTTP && !a.cfg.WatchInputs {
		return err
	}
	if a.cfg.WatchInputs {
		if err := a.watcher.Start(ctx); err != nil {
			return err
		}
		log.Printf("app: watching %s and %s", a.cfg.MortalityPath, a.cfg.BaselinePath)
	}
	if !a.cfg.ServeHTTP {
		if a.cfg.WatchInputs {
			<-ctx.Done()
		}
		return nil
	}
	srv := &http.Server{Addr: a.cfg.HTTPPort, Handler: a.mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	log.Printf("http listening on %s", a.cfg.HTTPPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) Close() error { return a.store.Close() }

func (a *App) Store() *store.Store        { return a.store }
func (a *App) Metrics() *metrics.Metrics { return a.metrics }
func (a *App) Mux() *http.ServeMux       { return a.mux }
