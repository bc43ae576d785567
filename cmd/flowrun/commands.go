package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/poiesic/flowrun"
	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/flow"
	"github.com/poiesic/flowrun/ingestion"
	"github.com/poiesic/flowrun/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

const previewWidth = 80

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one path is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ingester, err := db.NewIngester(ingestion.WithProgress(c.App.ErrWriter))
	if err != nil {
		return fmt.Errorf("failed to create ingester: %w", err)
	}
	defer ingester.Release()

	report, err := ingester.IngestPaths(c.Context, c.Args().Slice()...)
	if report != nil {
		fmt.Fprintf(c.App.Writer, "Added: %d, duplicates: %d, unsupported: %d, failed: %d\n",
			len(report.Added), report.Duplicates, report.Unsupported, report.Failed)
	}
	if err != nil {
		return fmt.Errorf("ingestion finished with errors: %w", err)
	}
	return nil
}

func runCommand(c *cli.Context) error {
	var opts []flowrun.DatabaseOption
	var server *http.Server
	if addr := c.String("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, flowrun.WithMetrics(reg))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		server = &http.Server{Addr: addr, Handler: mux}
	}

	db, err := openDatabase(c, opts...)
	if err != nil {
		return err
	}
	defer db.Close()

	sched, err := db.NewScheduler()
	if err != nil {
		return err
	}

	if server != nil {
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(c.App.ErrWriter, "metrics server: %v\n", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			server.Shutdown(ctx)
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigs:
			fmt.Fprintf(c.App.ErrWriter, "received %s, finishing current record\n", sig)
			sched.Stop()
		case <-done:
		}
	}()

	fmt.Fprintf(c.App.ErrWriter, "Store: %s (%s)\n", db.Config().Store.Path, db.Config().Store.Driver)
	fmt.Fprintf(c.App.ErrWriter, "Mode: %s\n", db.Config().Scheduler.Mode)
	fmt.Fprintln(c.App.ErrWriter)

	if err := sched.Run(c.Context); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func onceCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := db.Runner().RunOnce(c.Context)
	printResults(c, results)
	if err != nil {
		return fmt.Errorf("pass finished with errors: %w", err)
	}
	return nil
}

func printResults(c *cli.Context, results flow.Results) {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%d\n", name, results[name])
	}
	fmt.Fprintf(w, "total\t%d\n", results.Total())
	w.Flush()
}

func flowsCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	flows, err := db.Executor().Flows(c.Context)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTABLE\tSTAMP\tPRIORITY\tDEPENDS ON\tHASH")
	for _, f := range flows {
		hash := f.Hash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			f.Name, f.Table, f.Stamp, f.Priority, strings.Join(f.Dependencies, ","), hash)
	}
	return w.Flush()
}

func staleCommand(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("flow name is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.Executor().Stale(c.Context, name)
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Fprintln(c.App.Writer, rec.Ref())
	}
	fmt.Fprintf(c.App.ErrWriter, "%d stale records\n", len(records))
	return nil
}

func resetCommand(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("flow name is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.Executor().Reset(c.Context, name, c.Bool("stale-only"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Reset %d records of %s\n", n, name)
	return nil
}

func searchCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("query is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher(search.WithThreshold(float32(c.Float64("threshold"))))
	if err != nil {
		return err
	}
	results, err := searcher.Search(c.Context, text, c.Int("limit"))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Fprintf(c.App.Writer, "%2d. [%5.1f%%] score %.3f  %s\n", i+1, hit.Similarity*100, hit.Score, hit.Document)
		fmt.Fprintf(c.App.Writer, "    %s\n", search.Preview(hit.Text(), previewWidth))
	}
	return nil
}

func queueEnqueueCommand(c *cli.Context) error {
	if c.NArg() != 3 {
		return fmt.Errorf("expected KIND TABLE ID")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	task, err := db.Queue().Enqueue(c.Context, c.Args().Get(0), c.Args().Get(1), c.Args().Get(2))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Enqueued task %s\n", task.ID)
	return nil
}

func queueRequeueCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.Queue().Requeue(c.Context, core.TaskStatus(c.String("from")))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Requeued %d tasks\n", n)
	return nil
}

func queueStatusCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := db.Queue().Counts(c.Context)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	for _, status := range []core.TaskStatus{core.TaskPending, core.TaskProcessing, core.TaskProcessed, core.TaskFailed} {
		fmt.Fprintf(w, "%s\t%d\n", status, counts[status])
	}
	return w.Flush()
}
