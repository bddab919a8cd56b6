package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"extflow/internal/app"
	"extflow/internal/config"
	"extflow/internal/db"
)

var rootCmd = &cobra.Command{
	Use:   "xf",
	Short: "Extension project workflow CLI",
	Long: `xf runs the status workflow for university extension projects.
Core concepts:
- Status: en_formulacion -> en_revision_director -> en_revision_decano -> en_revision_fries -> en_revision_vicerrectoria -> aprobado, with rechazado as the other exit.
- Roles, highest first: administrador, fries, vicerrectoria, decano, director_programa, formulador. When a user holds several, only the highest one decides.
- Transitions: each role may move a project to a fixed set of statuses, whatever the current one is. fries and administrador may move it anywhere.
- Backend: the university API owns project records; xf authorizes and forwards status changes to it.
- Journal: every transition attempt is kept in .extflow/extflow.db, view it with 'xf journal tail'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("EXTFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("verbose", false, "development logging")
	rootCmd.PersistentFlags().String("backend-url", "", "university backend base URL (overrides config)")
	rootCmd.PersistentFlags().String("jwt-secret", "", "HS256 secret for bearer tokens (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("backend-url", rootCmd.PersistentFlags().Lookup("backend-url"))
	_ = viper.BindPFlag("jwt-secret", rootCmd.PersistentFlags().Lookup("jwt-secret"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(transitionsCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(journalCmd())
	rootCmd.AddCommand(configCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the workflow HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") || cfg.Server.Addr == "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") || cfg.Server.BasePath == "" {
				cfg.Server.BasePath = basePath
			}
			logger, err := app.NewLogger(viper.GetBool("verbose"))
			if err != nil {
				return err
			}
			defer logger.Sync()
			if cfg.Auth.JWTSecret == "change-me" {
				logger.Warn("auth.jwt_secret is still the default value; set it in extflow.yml or EXTFLOW_JWT_SECRET")
			}

			a, err := app.Open(cmd.Context(), viper.GetString("workspace"), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			handler, err := a.Handler()
			if err != nil {
				return err
			}
			a.StartWebhooks(cmd.Context())

			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving workflow API",
				zap.String("addr", cfg.Server.Addr),
				zap.String("base_path", cfg.Server.BasePath),
				zap.String("backend", cfg.Backend.BaseURL),
				zap.Bool("journal", cfg.JournalEnabled()),
				zap.Bool("enforce_requirements", cfg.Workflow.EnforceRequirements),
			)
			fmt.Printf("Serving workflow API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
				cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Manage extflow.yml"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			redacted := *cfg
			if redacted.Auth.JWTSecret != "" {
				redacted.Auth.JWTSecret = "********"
			}
			return printJSONOrTable(redacted, func() {
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				_ = enc.Encode(redacted)
				_ = enc.Close()
			})
		},
	})
	var backendURL string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default extflow.yml in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if _, err := config.FromYAML([]byte(config.GenerateDefault(backendURL))); err != nil {
				return err
			}
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(backendURL)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&backendURL, "backend", "http://localhost:4000/api", "university backend base URL")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)
	return cfgCmd
}

// --- helpers ---

// loadConfig reads extflow.yml from the workspace and applies flag and
// environment overrides. Without a file, --backend-url is enough to run.
func loadConfig() (*config.Config, error) {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	backendURL := strings.TrimSpace(viper.GetString("backend-url"))
	if cfg == nil {
		if backendURL == "" {
			return nil, fmt.Errorf("no %s found; run xf config init or pass --backend-url", config.Path(workspace))
		}
		cfg = config.Default(backendURL)
	}
	if backendURL != "" {
		cfg.Backend.BaseURL = backendURL
	}
	if secret := viper.GetString("jwt-secret"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printJSONOrTable(v any, render func()) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	return tw
}
