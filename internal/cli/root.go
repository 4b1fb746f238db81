// Package cli implements the ingrescan command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ingrescan-health-server/internal/config"
	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/service"
	"github.com/ingrescan-health-server/internal/stack"
)

// options are the persistent flags shared by every command.
type options struct {
	dataDir  string
	dbPath   string
	mode     string
	rules    string
	offline  bool
	jsonOut  bool
	logLevel string

	allergens  []string
	conditions []string
}

// NewRootCommand builds the ingrescan command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	defaults := config.LoadLiteConfig()

	root := &cobra.Command{
		Use:           "ingrescan",
		Short:         "Food health scanner: ingredient safety, allergens and a 0-10 health score",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.dataDir, "data-dir", defaults.DataDir, "data directory for the catalog and exports")
	flags.StringVar(&opts.dbPath, "db", defaults.CatalogPath, "catalog database path (default <data-dir>/catalog.db)")
	flags.StringVar(&opts.mode, "mode", defaults.ScoringMode, "scoring mode: simple or weighted")
	flags.StringVar(&opts.rules, "rules", defaults.RulesFile, "rule table YAML overriding the built-in tables")
	flags.BoolVar(&opts.offline, "offline", defaults.Offline, "skip Open Food Facts and Wikipedia")
	flags.BoolVar(&opts.jsonOut, "json", false, "print JSON instead of text")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(scanCmd(opts))
	root.AddCommand(analyzeCmd(opts))
	root.AddCommand(classifyCmd(opts))
	root.AddCommand(allergensCmd(opts))
	root.AddCommand(conditionsCmd(opts))
	root.AddCommand(importCmd(opts))
	root.AddCommand(exportCmd(opts))
	root.AddCommand(serveCmd(opts))
	root.AddCommand(mcpCmd(opts))
	root.AddCommand(setupCmd(opts))

	return root
}

// addProfileFlags registers --allergens and --conditions on a command.
func addProfileFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringSliceVar(&opts.allergens, "allergens", nil, "declared allergens, comma separated")
	cmd.Flags().StringSliceVar(&opts.conditions, "conditions", nil, "health conditions, comma separated")
}

func (o *options) profile() domain.UserProfile {
	return domain.UserProfile{Allergens: o.allergens, Conditions: o.conditions}
}

func (o *options) liteConfig() *config.LiteConfig {
	cfg := config.LoadLiteConfig()
	cfg.DataDir = o.dataDir
	cfg.CatalogPath = o.dbPath
	cfg.ScoringMode = o.mode
	cfg.RulesFile = o.rules
	cfg.Offline = o.offline
	cfg.LogLevel = o.logLevel
	cfg.LogFormat = "text"
	return cfg
}

func (o *options) logger() *logrus.Logger {
	return stack.NewLogger(o.logLevel, "text")
}

func (o *options) openStack() (*stack.Stack, error) {
	return stack.NewLite(o.liteConfig(), o.logger())
}

func (o *options) analyzeOptions() (service.AnalyzeOptions, error) {
	mode, err := domain.ParseScoringMode(o.mode)
	if err != nil {
		return service.AnalyzeOptions{}, err
	}
	return service.AnalyzeOptions{Mode: mode}, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult renders an analysis as text or JSON.
func (o *options) printResult(w io.Writer, result *domain.AnalysisResult) error {
	if o.jsonOut {
		return writeJSON(w, result)
	}

	fmt.Fprintf(w, "%s", result.ProductName)
	if result.Barcode != "" {
		fmt.Fprintf(w, " (%s)", result.Barcode)
	}
	fmt.Fprintf(w, "\nStatus: %s\n", result.Status)
	if result.Status == domain.STATUS_NOT_FOUND {
		fmt.Fprintln(w, "Product not found. Use 'ingrescan analyze' to enter ingredients and nutrients manually.")
		return nil
	}

	fmt.Fprintf(w, "Score: %.1f/10  Tier: %s  Rating: %s  Mode: %s\n", result.Score, result.Tier, result.Rating, result.ScoringMode)
	fmt.Fprintf(w, "Data confidence: %s\n", result.DataConfidence)
	if result.NutriScore != nil {
		fmt.Fprintf(w, "Nutri-Score: %s (%d)\n", result.NutriScore.Grade, result.NutriScore.Score)
	}
	if len(result.MatchedAllergens) > 0 {
		fmt.Fprintf(w, "Allergens: %v\n", result.MatchedAllergens)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warning := range result.WarningStrings() {
			fmt.Fprintf(w, "  %s\n", warning)
		}
	}
	if len(result.Ingredients) > 0 {
		fmt.Fprintln(w, "Ingredients:")
		for _, ing := range result.Ingredients {
			fmt.Fprintf(w, "  %-30s %s\n", ing.CanonicalName, ing.Safety)
		}
	}
	for _, s := range result.Suggestions {
		fmt.Fprintf(w, "Tip: %s\n", s)
	}
	if len(result.SuggestedAlternatives) > 0 {
		fmt.Fprintf(w, "Try instead: %v\n", result.SuggestedAlternatives)
	}
	return nil
}
