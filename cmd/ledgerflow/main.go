package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/ledgerflow/ledgerflow/internal/app"
	"github.com/ledgerflow/ledgerflow/internal/models"
)

const usage = `ledgerflow - personal finance transaction pipeline

Usage:
  ledgerflow [-config path] <command> [flags]

Commands:
  normalize     ingest and normalize all active source exports
  categorize    assign AI categories to normalized transactions
  runs          list recent processing runs
  categories    list configured categories
`

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := run(ctx, application, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, application *app.App, command string, args []string) error {
	switch command {
	case "normalize":
		return runNormalize(ctx, application)
	case "categorize":
		return runCategorize(ctx, application)
	case "runs":
		return listRuns(ctx, application, args)
	case "categories":
		return listCategories(ctx, application)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runNormalize(ctx context.Context, application *app.App) error {
	run, err := application.Coordinator.RunNormalization(ctx)
	if err != nil {
		return err
	}
	printRun(run)
	return nil
}

func runCategorize(ctx context.Context, application *app.App) error {
	run, err := application.Coordinator.RunCategorization(ctx)
	if err != nil {
		return err
	}
	printRun(run)
	return nil
}

func listRuns(ctx context.Context, application *app.App, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	runType := fs.String("type", "", "filter by run type (NORMALISATION or CATEGORISATION)")
	limit := fs.Int("limit", 10, "maximum runs to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	runs, err := application.Storage.RunStore().List(ctx, models.RunType(*runType), *limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tTYPE\tSTATUS\tPROCESSED\tOK\tFAILED\tDUPES")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.RunType, r.Status, r.Processed, r.Succeeded, r.Failed, r.Duplicates)
	}
	return w.Flush()
}

func listCategories(ctx context.Context, application *app.App) error {
	categories, err := application.Storage.CategoriesStore().List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tACTIVE\tDESCRIPTION")
	for _, c := range categories {
		fmt.Fprintf(w, "%s\t%v\t%s\n", c.Name, c.IsActive, c.Description)
	}
	return w.Flush()
}

func printRun(run *models.ProcessingRun) {
	fmt.Printf("run %s (%s): %s\n", run.ID, run.RunType, run.Status)
	fmt.Printf("  processed=%d succeeded=%d failed=%d duplicates=%d\n",
		run.Processed, run.Succeeded, run.Failed, run.Duplicates)
	for _, e := range run.ErrorLog {
		if e.SourceID != "" {
			fmt.Printf("  error [%s row %d]: %s\n", e.SourceID, e.RowIndex, e.Message)
		} else {
			fmt.Printf("  error: %s\n", e.Message)
		}
	}
}
