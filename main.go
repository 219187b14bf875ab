// Package main provides the pagebuilder binary: an MCP server for building
// landing pages plus a small CLI over the same page store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	pageApp "pagebuilder/internal/app"
	"pagebuilder/internal/config"
	"pagebuilder/internal/logger"
	"pagebuilder/internal/service"
)

const (
	Version = "0.1.0"
	appName = "pagebuilder"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

// load reads the configuration and builds the logger. A --log-level flag
// wins over the file and the environment.
func (g *globalFlags) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, appName)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log, nil
}

// withApp runs fn against a fully wired App and shuts it down afterwards.
func (g *globalFlags) withApp(fn func(ctx context.Context, a *pageApp.App) error) error {
	cfg, log, err := g.load()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()
	a, err := pageApp.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	return errors.Join(runErr, a.Shutdown(ctx))
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Landing page editor with undo history and autosave",
		Long: `pagebuilder edits landing pages made of typed components.

Edits go through editing sessions with undo/redo history. Sessions are
autosaved after a quiet period and every save records a version that can be
restored later. The serve command exposes everything as MCP tools on stdio.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(g),
		pagesCmd(g),
		newPageCmd(g),
		versionsCmd(g),
		templatesCmd(),
		pruneCmd(g),
		configCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

func serveCmd(g *globalFlags) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error("metrics server", zap.Error(err))
					}
				}()
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(ctx)
				}()
				log.Info("metrics listening", zap.String("addr", metricsAddr))
			}
			return pageApp.ServeMCP(cfg, log)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func pagesCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "List landing pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(func(ctx context.Context, a *pageApp.App) error {
				pages, err := a.Pages().ListPages(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(pages)
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tCOMPONENTS\tUPDATED")
				for _, p := range pages {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, p.Category, p.Components, p.UpdatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newPageCmd(g *globalFlags) *cobra.Command {
	var templateID, category string
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a landing page, optionally from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(func(ctx context.Context, a *pageApp.App) error {
				if templateID != "" {
					doc, err := a.Pages().CreateFromTemplate(ctx, templateID, args[0])
					if err != nil {
						return err
					}
					fmt.Println(doc.ID)
					return nil
				}
				doc, err := a.Pages().CreatePage(ctx, args[0], category)
				if err != nil {
					return err
				}
				fmt.Println(doc.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&templateID, "template", "t", "", "Template ID (see templates)")
	cmd.Flags().StringVar(&category, "category", "", "Page category")
	return cmd
}

func versionsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <page-id>",
		Short: "List the saved versions of a page, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(func(ctx context.Context, a *pageApp.App) error {
				versions, err := a.Pages().ListVersions(ctx, args[0])
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "INDEX\tSAVED\tCOMPONENTS")
				for i, v := range versions {
					fmt.Fprintf(tw, "%d\t%s\t%d\n", i, v.Timestamp.Format(time.RFC3339), v.Components.Len())
				}
				return tw.Flush()
			})
		},
	}
}

func templatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the built-in page templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Templates are static, so no store is opened.
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tCOMPONENTS")
			for _, t := range service.ListTemplates() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", t.ID, t.Name, t.Category, t.Components().Len())
			}
			return tw.Flush()
		},
	}
}

func pruneCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete version lists of pages that no longer exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(func(ctx context.Context, a *pageApp.App) error {
				pruned, err := a.Maintenance().RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("pruned %d version lists\n", len(pruned))
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("%s already exists", args[0])
			}
			if err := config.Default().SaveToFile(args[0]); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	})
	return cmd
}
