package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ingrescan-health-server/internal/api"
	"github.com/ingrescan-health-server/internal/catalog"
	"github.com/ingrescan-health-server/internal/config"
	"github.com/ingrescan-health-server/internal/domain"
	"github.com/ingrescan-health-server/internal/mcp"
	"github.com/ingrescan-health-server/internal/service"
	"github.com/ingrescan-health-server/internal/setup"
	"github.com/ingrescan-health-server/internal/stack"
)

func scanCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [barcode]",
		Short: "Look up a barcode and score the product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzeOpts, err := opts.analyzeOptions()
			if err != nil {
				return err
			}
			s, err := opts.openStack()
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.Analyzer.AnalyzeBarcode(cmd.Context(), args[0], opts.profile(), analyzeOpts)
			if err != nil {
				return err
			}
			return opts.printResult(cmd.OutOrStdout(), result)
		},
	}
	addProfileFlags(cmd, opts)
	return cmd
}

func analyzeCmd(opts *options) *cobra.Command {
	var (
		name        string
		ingredients string
		nutrients   []string
		liquid      bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score a product entered by hand",
		Example: `  ingrescan analyze --name "Cola" --ingredients "water, sugar, caffeine" \
      --nutrient sugars=10.6 --nutrient energy_kcal=42 --liquid --conditions diabetes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseNutrients(nutrients)
			if err != nil {
				return err
			}
			if strings.TrimSpace(ingredients) == "" && len(values) == 0 {
				return domain.NewValidationError("ingredients", "ingredients or nutrients are required", nil)
			}
			analyzeOpts, err := opts.analyzeOptions()
			if err != nil {
				return err
			}
			s, err := opts.openStack()
			if err != nil {
				return err
			}
			defer s.Close()

			product := &domain.ProductRecord{
				Name:           name,
				IngredientText: ingredients,
				Nutrients:      domain.NutrientsFromMap(values),
				IsLiquid:       liquid,
			}
			return opts.printResult(cmd.OutOrStdout(), s.Analyzer.AnalyzeManual(product, opts.profile(), analyzeOpts))
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "product name")
	cmd.Flags().StringVar(&ingredients, "ingredients", "", "ingredient list as printed on the label")
	cmd.Flags().StringArrayVar(&nutrients, "nutrient", nil, "nutrient per 100 g/ml as key=value, repeatable")
	cmd.Flags().BoolVar(&liquid, "liquid", false, "product is a beverage")
	addProfileFlags(cmd, opts)
	return cmd
}

// parseNutrients turns "key=value" pairs into a nutrient map.
func parseNutrients(pairs []string) (map[string]float64, error) {
	values := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, domain.NewValidationError("nutrient", "expected key=value", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, domain.NewValidationError("nutrient", "value is not a number", pair)
		}
		values[strings.TrimSpace(key)] = v
	}
	return values, nil
}

func classifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [ingredient...]",
		Short: "Classify ingredients as SAFE, MODERATE, HARMFUL or UNKNOWN",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStack()
			if err != nil {
				return err
			}
			defer s.Close()

			var names []string
			for _, arg := range args {
				names = append(names, service.ParseIngredients(arg)...)
			}
			ingredients := s.Analyzer.ClassifyIngredients(cmd.Context(), names)

			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, ingredients)
			}
			for _, ing := range ingredients {
				fmt.Fprintf(out, "%-30s %-9s %s\n", ing.CanonicalName, ing.Safety, ing.Description)
			}
			return nil
		},
	}
}

func allergensCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allergens [ingredient list]",
		Short: "Check an ingredient list against declared allergens",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.allergens) == 0 {
				return domain.NewValidationError("allergens", "at least one allergen is required", nil)
			}
			tables, err := stack.LoadTables(opts.rules)
			if err != nil {
				return err
			}
			resolver := service.NewAllergenResolver(tables)
			ingredients := service.ParseIngredients(strings.Join(args, ", "))
			matched := resolver.Match(ingredients, opts.allergens)

			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, map[string]interface{}{"matched": matched})
			}
			if len(matched) == 0 {
				fmt.Fprintln(out, "No declared allergens found.")
				return nil
			}
			fmt.Fprintf(out, "Contains: %s\n", strings.Join(matched, ", "))
			for _, ing := range ingredients {
				if _, info, ok := resolver.AllergenInfo(ing); ok {
					fmt.Fprintf(out, "  %s: %s\n", ing, info)
				}
			}
			return nil
		},
	}
	addProfileFlags(cmd, opts)
	return cmd
}

func conditionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "conditions",
		Short: "List the health conditions with nutrient rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := stack.LoadTables(opts.rules)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), tables.Conditions())
			}
			for _, c := range tables.Conditions() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func importCmd(opts *options) *cobra.Command {
	var ingredientsFile bool

	cmd := &cobra.Command{
		Use:   "import [csv]",
		Short: "Import products (or ingredient references with --ingredients) into the local catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStack()
			if err != nil {
				return err
			}
			defer s.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			var result *catalog.ImportResult
			if ingredientsFile {
				result, err = s.ImportIngredients(cmd.Context(), f)
			} else {
				result, err = catalog.NewImporter(s.Catalog, s.Logger).ImportProducts(cmd.Context(), f)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, result)
			}
			fmt.Fprintf(out, "Imported %d, skipped %d\n", result.Imported, result.Skipped)
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  %s\n", e)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ingredientsFile, "ingredients", false, "the file holds ingredient reference rows")
	return cmd
}

func exportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export the local product catalog as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.liteConfig()
			if err := cfg.EnsureDataDir(); err != nil {
				return err
			}
			store, err := catalog.NewSQLiteStore(cfg.CatalogDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			path := filepath.Join(cfg.ExportDir(), fmt.Sprintf("catalog-%s.json", time.Now().Format("20060102-150405")))
			if len(args) == 1 {
				path = args[0]
			}
			if path == "-" {
				return store.ExportJSON(cmd.Context(), cmd.OutOrStdout())
			}

			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := store.ExportJSON(cmd.Context(), f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported catalog to %s\n", path)
			return nil
		},
	}
}

func serveCmd(opts *options) *cobra.Command {
	var (
		configFile string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := config.NewManagerWithFile(configFile)
			if err != nil {
				return err
			}
			cfg := manager.GetConfig()
			if port > 0 {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("mode") {
				cfg.Scoring.Mode = opts.mode
			}
			if cmd.Flags().Changed("db") {
				cfg.Catalog.SQLitePath = opts.dbPath
			}
			if err := manager.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			logger := stack.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			full, err := stack.NewFull(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer full.Close()

			return api.NewServer(manager, api.DependenciesFrom(full), logger).Start(ctx)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "config file (default: config.yaml in ., ./config, /etc/ingrescan)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port, overrides the config")
	return cmd
}

func mcpCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the scan tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStack()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := mcp.NewServer(mcp.ServerInfo{Name: setup.ServerName}, s.Analyzer, s.Logger, mcp.WithCatalog(s.Catalog))
			return server.Start(ctx)
		},
	}
}

func setupCmd(opts *options) *cobra.Command {
	var (
		configPath string
		binary     string
		status     bool
		remove     bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the MCP server with the desktop MCP client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath
			if path == "" {
				var err error
				if path, err = setup.DesktopConfigPath(); err != nil {
					return err
				}
			}

			switch {
			case status:
				st, err := setup.GetStatus(path, opts.dataDir)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(out, st)
				}
				fmt.Fprintf(out, "Config: %s\nRegistered: %t\n", st.ConfigPath, st.Registered)
				if st.Registered {
					fmt.Fprintf(out, "Server: %s\nData: %s\n", st.ServerPath, st.DataDir)
				}
				for _, issue := range st.Issues {
					fmt.Fprintf(out, "  ! %s\n", issue)
				}
				return nil
			case remove:
				removed, err := setup.Unregister(path)
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(out, "Removed %s from %s\n", setup.ServerName, path)
				} else {
					fmt.Fprintf(out, "%s was not registered in %s\n", setup.ServerName, path)
				}
				return nil
			}

			args = nil
			if binary == "" {
				self, err := os.Executable()
				if err != nil {
					return err
				}
				binary, args = self, []string{"mcp"}
			}
			entry, err := setup.Register(path, setup.Options{BinaryPath: binary, Args: args, DataDir: opts.dataDir})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Registered %s in %s\nCommand: %s %s\n", setup.ServerName, path, entry.Command, strings.Join(entry.Args, " "))
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "client-config", "", "client config file (default: the desktop client's config)")
	cmd.Flags().StringVar(&binary, "binary", "", "server binary (default: this executable with the mcp subcommand)")
	cmd.Flags().BoolVar(&status, "status", false, "show the current registration")
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the registration")
	return cmd
}

// Execute runs the CLI with a cancellable background context.
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}
