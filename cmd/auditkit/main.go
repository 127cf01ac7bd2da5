package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/pavelanni/auditkit/internal/engine"
	"github.com/pavelanni/auditkit/internal/handler"
	appI18n "github.com/pavelanni/auditkit/internal/i18n"
	"github.com/pavelanni/auditkit/internal/model"
	"github.com/pavelanni/auditkit/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "auditkit",
		Short: "Audit template and scoring server",
	}

	serve := serveCmd()
	root.AddCommand(serve, validateCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `auditkit --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP audit server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "auditkit.db", "SQLite database path")
	f.StringSliceP("templates", "t", nil, "Paths to template seed files, JSON or YAML (repeatable)")
	f.StringP("lang", "l", "en", "Diagnostic message language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate template files without touching the database",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValidate,
	}
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export audit results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "auditkit.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("AUDITKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("auditkit")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/auditkit")
	v.AddConfigPath("/etc/auditkit")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedTemplates(db, v.GetStringSlice("templates")); err != nil {
		return fmt.Errorf("seed templates: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	h := handler.New(db)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}

func runValidate(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)

	failed := 0
	for _, path := range args {
		templates, err := loadTemplateFile(path)
		if err != nil {
			return err
		}
		for _, t := range templates {
			result := engine.Validate(t)
			if result.OK {
				color.Green("OK    %s: %s", path, t.Name)
				continue
			}
			failed++
			color.Red("FAIL  %s: %s (%d error(s))", path, t.Name, len(result.Errors))
			for _, d := range result.Errors {
				fmt.Printf("      %s %s: %s\n", d.Path(), d.Code, d.Message)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d template(s) failed validation", failed)
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportAllResults()
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	export := model.AuditExport{
		ExportedAt: time.Now(),
		Results:    results,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

// seedTemplates imports template files once each, keyed by content hash. A
// changed file is skipped rather than re-imported, so audits recorded against
// the stored copy keep their meaning.
func seedTemplates(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetSeedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("template file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("template file changed since last import, skipping to preserve existing audits",
				"path", path)
			continue
		}

		templates, err := parseTemplates(path, data)
		if err != nil {
			return err
		}

		imported := 0
		for _, t := range templates {
			now := time.Now()
			t.State = model.StateDraft
			t.Locked = false
			t.CreatedAt = now
			t.UpdatedAt = now
			if t.Version == "" {
				t.Version = "1.0.0"
			}
			t.EnsureIDs()

			// Valid seed templates go straight to published so audits can
			// start against them. Invalid ones stay editable drafts.
			if result := engine.Validate(t); result.OK {
				t.State = model.StatePublished
			} else {
				slog.Warn("seed template failed validation, importing as draft",
					"path", path, "template", t.Name, "errors", len(result.Errors))
			}

			if err := db.SaveTemplate(t); err != nil {
				return fmt.Errorf("save template %q from %s: %w", t.Name, path, err)
			}
			imported++
		}

		if err := db.SetSeedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported templates", "path", path, "count", imported)
	}
	return nil
}

func loadTemplateFile(path string) ([]*model.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	templates, err := parseTemplates(path, data)
	if err != nil {
		return nil, err
	}
	for _, t := range templates {
		t.EnsureIDs()
	}
	return templates, nil
}

// parseTemplates decodes a seed file as either a single template or a list.
// YAML files are converted to JSON first so both formats share one set of
// field names.
func parseTemplates(path string, data []byte) ([]*model.Template, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", path, err)
		}
		data = converted
	}

	var list []*model.Template
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var single model.Template
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return []*model.Template{&single}, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
