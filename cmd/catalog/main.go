// Command catalog acquires books from a Gutendex-compatible catalog and
// records their metadata for the builder.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/catalog/jsonstore"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/catalog/pgstore"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/content"
)

const cacheBytes = 64 << 20

func main() {
	var configPath string
	rootCmd := &cobra.Command{
		Use:           "catalog",
		Short:         "Acquire books and metadata for the search corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/development.yaml", "path to config file")

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download books until the target count is reached",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, configPath)
		},
	}
	fetchCmd.Flags().Int("target", 0, "override catalog.targetCount")
	fetchCmd.Flags().Int("min-words", 0, "override catalog.minWords")
	fetchCmd.Flags().Bool("covers", false, "download cover images")
	rootCmd.AddCommand(fetchCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "import <metadata.json>",
		Short: "Copy an existing metadata file into the configured metadata store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, configPath, args[0])
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
		os.Exit(1)
	}
}

func runFetch(cmd *cobra.Command, configPath string) error {
	cfg, err := bootstrap.Load(configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("target") {
		cfg.Catalog.TargetCount, _ = flags.GetInt("target")
	}
	if flags.Changed("min-words") {
		cfg.Catalog.MinWords, _ = flags.GetInt("min-words")
	}
	if flags.Changed("covers") {
		cfg.Catalog.DownloadCovers, _ = flags.GetBool("covers")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := bootstrap.OpenMetadataStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	cache, err := catalog.NewTTLCache(cacheBytes, cfg.Catalog.CacheTTL)
	if err != nil {
		return err
	}
	defer cache.Close()

	client := catalog.NewClient(cfg.Catalog, cache, bootstrap.Metrics(cfg))
	d := catalog.NewDownloader(client, store, content.NewDir(cfg.Content.Dir), cfg.Catalog)
	rep, err := d.Run(ctx)
	if rep != nil {
		if encErr := writeJSON(cmd, rep); encErr != nil {
			return encErr
		}
	}
	if errors.Is(err, context.Canceled) && rep != nil {
		slog.Info("download interrupted; rerun to resume", "total", rep.Total)
		return nil
	}
	return err
}

func runImport(cmd *cobra.Command, configPath, path string) error {
	cfg, err := bootstrap.Load(configPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := jsonstore.Open(path)
	if err != nil {
		return err
	}
	docs, err := src.List(ctx)
	if err != nil {
		return err
	}
	dir := content.NewDir(cfg.Content.Dir)
	missing := 0
	for _, m := range docs {
		if !dir.Exists(m.Locator) {
			missing++
			slog.Warn("content file missing", "book_id", m.ID, "locator", m.Locator)
		}
	}

	dst, closeDst, err := bootstrap.OpenMetadataStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDst()

	added := 0
	if pg, ok := dst.(*pgstore.Store); ok {
		added, err = pg.Import(ctx, docs)
		if err != nil {
			return err
		}
	} else {
		for _, m := range docs {
			err := dst.Append(ctx, m)
			if errors.Is(err, catalog.ErrDuplicate) {
				continue
			}
			if err != nil {
				return fmt.Errorf("importing book %d: %w", m.ID, err)
			}
			added++
		}
	}
	slog.Info("catalog import finished", "source", path, "read", len(docs), "added", added, "missing_content", missing)
	return writeJSON(cmd, map[string]int{"read": len(docs), "added": added, "missing_content": missing})
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
