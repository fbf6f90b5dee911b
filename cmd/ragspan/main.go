package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ragspan/internal/domain"
	"ragspan/internal/extract"
	"ragspan/internal/highlight"
	"ragspan/internal/httpapi"
	"ragspan/internal/service"
	"ragspan/internal/tui"
)

var (
	configPath string
	verbose    bool
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "ragspan",
		Short:        "Search PDF and text documents and locate every passage",
		Long:         "ragspan indexes PDF and text documents and answers queries with the passages that match, down to page, line and bounding box.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ./config.yaml or ~/.config/ragspan/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(indexCmd())
	root.AddCommand(queryCmd())
	root.AddCommand(tuiCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(cacheCmd())
	root.AddCommand(doctorCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <files or globs>...",
		Short: "Index documents and print a report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			report, err := a.svc.IngestPaths(cmd.Context(), args)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

type queryResult struct {
	Rank         int             `json:"rank"`
	Score        float64         `json:"score"`
	DocumentName string          `json:"document_name"`
	ChunkID      string          `json:"chunk_id"`
	Location     string          `json:"location"`
	Text         string          `json:"text"`
	Regions      []domain.Region `json:"regions"`
}

func queryCmd() *cobra.Command {
	var (
		question string
		k        int
		asJSON   bool
		asPrompt bool
		lines    int
	)
	cmd := &cobra.Command{
		Use:   "query -q <question> <files or globs>...",
		Short: "Index documents, then print the passages that best match a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if k <= 0 {
				k = a.cfg.Search.TopK
			}
			report, err := a.svc.IngestPaths(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, f := range report.Failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", f.Name, f.Err)
			}
			results, err := a.svc.Search(cmd.Context(), question, k)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				rows := make([]queryResult, len(results))
				for i, r := range results {
					rows[i] = queryResult{
						Rank:         i + 1,
						Score:        r.Score,
						DocumentName: r.DocumentName,
						ChunkID:      r.Chunk.ID,
						Location:     highlight.Location(r.Chunk),
						Text:         r.Chunk.Text,
						Regions:      highlight.Highlight(r.Chunk),
					}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			case asPrompt:
				fmt.Fprintln(out, service.BuildContext(results))
				return nil
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(out, "%d. %s  %s  score=%.3f\n", i+1, r.DocumentName, highlight.Location(r.Chunk), r.Score)
				ex, err := a.svc.Excerpt(r.Chunk.ID, lines)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, ex.String(highlight.Marker{Open: ">>>", Close: "<<<"}))
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "question to search for")
	cmd.Flags().IntVarP(&k, "top", "k", 0, "number of results (default: search.top_k)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&asPrompt, "prompt", false, "print results as numbered context for an answer prompt")
	cmd.Flags().IntVar(&lines, "context", 1, "lines of surrounding text to show")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

func tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui <files or globs>...",
		Short: "Index documents and search them interactively",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			report, err := a.svc.IngestPaths(cmd.Context(), args)
			if err != nil {
				return err
			}
			if len(report.Indexed) == 0 {
				printReport(cmd.ErrOrStderr(), report)
				return errors.New("no document could be indexed")
			}
			_, err = tea.NewProgram(tui.New(a.svc, a.cfg.Search.TopK), tea.WithAltScreen()).Run()
			return err
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve [files or globs]...",
		Short: "Serve the JSON API, optionally indexing documents first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if len(args) > 0 {
				report, err := a.svc.IngestPaths(cmd.Context(), args)
				if err != nil {
					return err
				}
				printReport(cmd.ErrOrStderr(), report)
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			srv := httpapi.New(addr, a.svc, a.cfg.Search.TopK, a.metrics, a.log)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the embedding cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached embedding",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.cache.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Embedding cache cleared.")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Remove embeddings computed by models other than the configured one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.cache.PurgeStale(cmd.Context(), a.embedder.Model())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d embeddings not produced by %s.\n", n, a.embedder.Model())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show how many embeddings are cached",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.cache.Len(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d cached embeddings (model %s, store %s)\n", n, a.embedder.Model(), a.cfg.Cache.Type)
			return nil
		},
	})
	return cmd
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that external tools are available",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := extract.CheckAvailable(cfg.Extractor.Binary); err != nil {
				fmt.Fprintf(out, "✗ %v\n  %s\n", err, extract.InstallInstructions())
				return err
			}
			fmt.Fprintf(out, "✓ %s found\n", cfg.Extractor.Binary)
			return nil
		},
	}
}

func printReport(w io.Writer, r *domain.Report) {
	fmt.Fprintf(w, "Indexed %d documents, %d chunks (%d cached, %d computed) in %s\n",
		len(r.Indexed), r.Chunks, r.CacheHits, r.Computed, r.Duration.Round(time.Millisecond))
	for _, d := range r.Indexed {
		size := fmt.Sprintf("%d words", d.Words)
		if d.Pages > 0 {
			size = fmt.Sprintf("%d pages, %s", d.Pages, size)
		}
		fmt.Fprintf(w, "  ✓ %s  %d chunks  (%s)\n", d.Name, d.Chunks, size)
		if d.Summary != "" {
			fmt.Fprintf(w, "    %s\n", d.Summary)
		}
		if len(d.Keywords) > 0 {
			fmt.Fprintf(w, "    keywords: %s\n", strings.Join(d.Keywords, ", "))
		}
	}
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  ✗ %s  %v\n", f.Name, f.Err)
	}
}
