// Command cardspend-cli analyzes a statement file from the command line,
// printing the category summary and writing the chart PNG.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"cardspend/internal/cli"
	"cardspend/internal/config"
	"cardspend/internal/core"
	"cardspend/internal/log"
	"cardspend/internal/pipeline"
	"cardspend/internal/rules"
	"cardspend/internal/services"
	"cardspend/internal/statement"
	"cardspend/internal/storage"
)

func main() {
	var (
		file      = flag.String("file", "", "statement file to analyze (.csv, .txt or .xlsx)")
		out       = flag.String("out", "chart.png", "where to write the chart PNG")
		rulesFile = flag.String("rules", "", "YAML rule file, overrides RULES_SOURCE")
		verbose   = flag.Bool("v", false, "list every categorized transaction")
		dumpRules = flag.Bool("dump-rules", false, "print the active rules as YAML and exit")
		syncRules = flag.String("sync-rules", "", "replace the rules in this SQLite database with the active rules and exit")
	)
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentCLI)

	cfg := config.Load()
	cfg.AMQPURL = ""
	if *rulesFile != "" {
		cfg.RulesSource = rules.SourceYAML
		cfg.RulesFile = *rulesFile
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := run(ctx, cfg, logger, options{
		file:      *file,
		out:       *out,
		verbose:   *verbose,
		dumpRules: *dumpRules,
		syncRules: *syncRules,
	}, os.Stdout); err != nil {
		logger.Error("Analysis failed", log.FieldError, err, log.FieldErrorKind, string(core.KindOf(err)))
		os.Exit(1)
	}
}

type options struct {
	file      string
	out       string
	verbose   bool
	dumpRules bool
	syncRules string
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger, opts options, stdout io.Writer) error {
	svc, cleanup, err := cli.BuildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	switch {
	case opts.dumpRules:
		return rules.WriteYAML(stdout, svc.Rules())
	case opts.syncRules != "":
		return syncRuleRepository(ctx, opts.syncRules, svc.Rules(), logger)
	}

	if opts.file == "" {
		return core.NewError(core.KindMissingInput, "no statement file supplied, use -file")
	}
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return core.WrapError(core.KindMissingInput, err, "read %s", opts.file)
	}
	name := filepath.Base(opts.file)

	report, err := svc.Analyze(ctx, services.Upload{Filename: name, Body: bytes.NewReader(data)})
	if err != nil {
		return err
	}

	if opts.verbose {
		if err := listTransactions(cfg, svc.Rules(), name, data, stdout); err != nil {
			return err
		}
	}
	printSummary(stdout, report)

	if !report.HasChart() {
		fmt.Fprintln(stdout, "No spending rows found; nothing to chart")
		return nil
	}
	if err := os.WriteFile(opts.out, report.Chart, 0o644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	logger.Info("Chart written", "path", opts.out, "bytes", len(report.Chart))
	return nil
}

func listTransactions(cfg *config.Config, set core.CategorySet, name string, data []byte, w io.Writer) error {
	reader, err := statement.NewReader(cfg.ReaderOptions())
	if err != nil {
		return err
	}
	table, err := reader.Read(name, bytes.NewReader(data))
	if err != nil {
		return err
	}
	txs, _, err := pipeline.Transactions(table, set, cfg.PipelineOptions())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tDATE\tDESCRIPTION\tAMOUNT\tCATEGORY")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", tx.Line, tx.Date, tx.Description, tx.Amount.StringFixed(2), tx.Category)
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}

func printSummary(w io.Writer, report services.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CATEGORY\tROWS\tAMOUNT\t")
	for _, c := range report.Categories {
		fmt.Fprintf(tw, "%s\t%d\t%s\t\n", c.Label, c.Count, core.Round2(c.Amount).StringFixed(2))
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t%s\t\n", report.RowCount, report.Total.StringFixed(2))
	_ = tw.Flush()
	if report.Excluded > 0 {
		fmt.Fprintf(w, "%d non-spending rows excluded\n", report.Excluded)
	}
}

func syncRuleRepository(ctx context.Context, dbPath string, set core.CategorySet, logger *log.Logger) error {
	repo, err := storage.NewRuleRepository(dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.ReplaceRules(ctx, set); err != nil {
		return err
	}
	logger.Info("Rules synced", "path", dbPath, "rules", set.Len())
	return nil
}
