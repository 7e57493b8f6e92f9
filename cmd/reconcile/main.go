package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"quad/internal/config"
	"quad/internal/database"
	"quad/internal/logging"
	"quad/internal/repository"
	"quad/internal/service"
)

func main() {
	// Define subcommands
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	resolveCmd := flag.NewFlagSet("resolve", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: stdout)")

	// Resolve flags
	resolveID := resolveCmd.String("id", "", "Issue ID to resolve (required unless -all)")
	resolveAll := resolveCmd.Bool("all", false, "Resolve every open issue")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	logger, err := logging.New(cfg.EffectiveLogLevel(), cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	reconcileService := service.NewReconcileService(
		repository.NewProfileRepository(db),
		repository.NewIssueRepository(db),
		logger)

	switch os.Args[1] {
	case "list":
		listCmd.Parse(os.Args[2:])
		handleList(ctx, reconcileService, logger)

	case "export":
		exportCmd.Parse(os.Args[2:])
		handleExport(ctx, reconcileService, logger, *exportOutput)

	case "resolve":
		resolveCmd.Parse(os.Args[2:])
		if *resolveID == "" && !*resolveAll {
			fmt.Println("Error: -id or -all is required")
			resolveCmd.PrintDefaults()
			os.Exit(1)
		}
		handleResolve(ctx, reconcileService, logger, *resolveID, *resolveAll)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleList(ctx context.Context, reconcileService *service.ReconcileService, logger *zap.Logger) {
	issues, err := reconcileService.ListOpen(ctx)
	if err != nil {
		logger.Fatal("Failed to list issues", zap.Error(err))
	}
	if len(issues) == 0 {
		fmt.Println("No open provisioning issues")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tACCOUNT\tEMAIL\tROLE\tSTAGE\tCREATED")
	for _, issue := range issues {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			issue.ID, issue.AccountID, issue.Email, issue.Role, issue.Stage,
			issue.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

func handleExport(ctx context.Context, reconcileService *service.ReconcileService, logger *zap.Logger, outputPath string) {
	if outputPath == "" {
		if err := reconcileService.Export(ctx, os.Stdout); err != nil {
			logger.Fatal("Export failed", zap.Error(err))
		}
		return
	}

	// Ensure directory exists
	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create output directory", zap.Error(err))
		}
	}

	file, err := os.Create(outputPath)
	if err != nil {
		logger.Fatal("Failed to create output file", zap.Error(err))
	}
	defer file.Close()

	if err := reconcileService.Export(ctx, file); err != nil {
		logger.Fatal("Export failed", zap.Error(err))
	}
	logger.Info("Export complete", zap.String("path", outputPath))
}

func handleResolve(ctx context.Context, reconcileService *service.ReconcileService, logger *zap.Logger, id string, all bool) {
	ids := []string{id}
	if all {
		issues, err := reconcileService.ListOpen(ctx)
		if err != nil {
			logger.Fatal("Failed to list issues", zap.Error(err))
		}
		ids = ids[:0]
		for _, issue := range issues {
			ids = append(ids, issue.ID)
		}
	}

	failed := 0
	for _, issueID := range ids {
		if err := reconcileService.Resolve(ctx, issueID); err != nil {
			logger.Error("Failed to resolve issue", zap.String("id", issueID), zap.Error(err))
			failed++
			continue
		}
		logger.Info("Issue resolved", zap.String("id", issueID))
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Quad provisioning reconciliation tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  reconcile list                       List open provisioning issues")
	fmt.Println("  reconcile export [-output FILE]      Export open issues as JSON")
	fmt.Println("  reconcile resolve -id ID | -all      Write the missing role profiles")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  reconcile list")
	fmt.Println("  reconcile export -output issues.json")
	fmt.Println("  reconcile resolve -id 3f2a9c1e-...")
}
