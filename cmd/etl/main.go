package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"covidetl/internal/app"
	"covidetl/internal/datasets"
	"covidetl/internal/operations"
	"covidetl/pkg/contracts"
)

// shutdownTimeout bounds the flush of telemetry and the status server
const shutdownTimeout = 10 * time.Second

func main() {
	// a missing .env is normal
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type cliFlags struct {
	configPath  string
	catalogPath string
	datasets    string
	outDir      string
	overwrite   bool
	list        bool
	version     bool
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{}
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "YAML config file (defaults to $ETL_CONFIG_FILE or config.yaml)")
	fs.StringVar(&f.catalogPath, "catalog", "", "YAML catalog with extra datasets")
	fs.StringVar(&f.datasets, "datasets", "", "comma-separated datasets to run (default: all)")
	fs.StringVar(&f.outDir, "out", "", "output directory for CSV files")
	fs.BoolVar(&f.overwrite, "overwrite", false, "replace existing outputs")
	fs.BoolVar(&f.list, "list", false, "list the built-in datasets and exit")
	fs.BoolVar(&f.version, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// splitList splits a comma-separated flag, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}
	if f.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return 0
	}
	if f.list {
		printDatasets(stdout, datasets.Builtin())
		return 0
	}

	application, err := app.NewApplication(ctx, app.Options{
		ConfigPath:  f.configPath,
		CatalogPath: f.catalogPath,
		Datasets:    splitList(f.datasets),
		OutputDir:   f.outDir,
		Overwrite:   f.overwrite,
	})
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			application.Logger.Warn("shutdown incomplete", slog.String("error", err.Error()))
		}
	}()

	reports, err := application.Run(ctx)
	printReports(stdout, reports)
	if err != nil {
		application.Logger.Error("pipeline finished with errors", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

func printDatasets(w io.Writer, specs []operations.DatasetSpec) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tOUTPUT\tDESCRIPTION")
	for _, s := range specs {
		fmt.Fprintf(tw, "%s\t%s.csv\t%s\n", s.Name, s.Output.FileName, s.Description)
	}
	tw.Flush()
}

func printReports(w io.Writer, reports []*operations.RunReport) {
	for _, r := range reports {
		fmt.Fprintln(w, r.String())
		for _, s := range r.Steps {
			if s.Error != "" {
				fmt.Fprintf(w, "    step %d %s: %s\n", s.Index, s.Type, s.Error)
			}
		}
		for _, s := range r.Saves {
			if s.Error != "" {
				fmt.Fprintf(w, "    save %s: %s\n", s.Sink, s.Error)
			}
		}
		if r.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", r.Error)
		}
	}
}
