package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/primatransit/tour-audit-backend/internal/config"
	"github.com/primatransit/tour-audit-backend/internal/database"
	"github.com/primatransit/tour-audit-backend/internal/models"
	"github.com/primatransit/tour-audit-backend/internal/services"
	"github.com/primatransit/tour-audit-backend/pkg/routing"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	outputFlag string
	quietFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run a one-shot tour consistency audit",
	Long: `Loads the full tour graph from the dispatch database, runs every
consistency check against it and prints the findings. The exit code reflects
whether the audit completed, not whether findings were produced.`,
	RunE: runAudit,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "text", "Output format: text or json")
	rootCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Only print the summary")
}

func runAudit(cmd *cobra.Command, args []string) error {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{})
	if quietFlag {
		logger.SetLevel(logrus.WarnLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	tourRepository := database.NewTourRepository(db)
	routingClient := routing.NewClient(cfg.Routing.BaseURL, cfg.Routing.Timeout)
	routingCache := routing.NewCache(routingClient)
	auditService := services.NewTourAuditService(tourRepository, routingCache, logger)

	result, err := auditService.Run()
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	switch outputFlag {
	case "json":
		return printJSON(result)
	case "text":
		printText(result)
		return nil
	default:
		return fmt.Errorf("unknown output format %q, expected text or json", outputFlag)
	}
}

func printJSON(result *services.AuditResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

func printText(result *services.AuditResult) {
	fmt.Println("=== Tour Consistency Audit ===")
	fmt.Printf("Run ID:   %s\n", result.RunID)
	fmt.Printf("Tours:    %d\n", result.TourCount)
	fmt.Printf("Duration: %v\n", result.FinishedAt.Sub(result.StartedAt))
	fmt.Println()

	if !quietFlag {
		for _, finding := range result.Findings {
			marker := "❌"
			if finding.Severity == models.SeverityInfo {
				marker = "ℹ️ "
			}
			fmt.Printf("%s [%s] tour %d: %s\n", marker, finding.Kind, finding.TourID, finding.Message)
		}
		if len(result.Findings) > 0 {
			fmt.Println()
		}
	}

	fmt.Printf("Total findings: %d (%d errors, %d info)\n",
		result.Summary.Total, result.Summary.Errors, result.Summary.Infos)
	for kind, count := range result.Summary.ByKind {
		fmt.Printf("  %-35s %d\n", kind, count)
	}

	if result.Summary.Errors == 0 {
		fmt.Println("\n✅ No consistency errors found")
	}
}

func main() {
	Execute()
}
