// trophyctl is a maintenance tool around the achievements library: probe a
// game through the fallback chain and inspect or clear the local caches.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/questlog/achievements/internal/bgfetch"
	"github.com/questlog/achievements/internal/cache"
	"github.com/questlog/achievements/internal/config"
	"github.com/questlog/achievements/internal/iconcache"
	"github.com/questlog/achievements/models"
	"github.com/questlog/achievements/orchestrator"
	"github.com/questlog/achievements/pagecache"
	"github.com/questlog/achievements/resolver"
	"github.com/questlog/achievements/scrape/exophase"
	"github.com/questlog/achievements/scrape/trueach"
	"github.com/questlog/achievements/webfetch"
)

// CLI is the complete command structure for trophyctl.
type CLI struct {
	// Global flags
	Verbose      bool   `help:"Enable debug logging"`
	CacheDBFile  string `help:"Path to the search cache SQLite database" default:"./cache.db"`
	PageCacheDir string `help:"Directory for cached achievement pages" default:"./pagecache"`

	Probe ProbeCmd `cmd:"" help:"Run one game through the fallback provider chain"`
	Cache CacheCmd `cmd:"" help:"Manage the local caches"`
}

// ProbeCmd runs the secondary chain for a single game and prints the result.
type ProbeCmd struct {
	Name     string        `arg:"" help:"Game name to look up"`
	Platform string        `help:"Platform hint for candidate selection (e.g. Steam, Xbox)"`
	Browser  bool          `help:"Fall back to a headless browser fetch when plain HTTP is blocked"`
	Timeout  time.Duration `help:"Overall probe timeout" default:"2m"`
}

// CacheCmd groups the cache subcommands.
type CacheCmd struct {
	Clear CacheClearCmd `cmd:"" help:"Drop all cached search results, pages and icons"`
}

// CacheClearCmd empties the search cache tables and the page cache.
type CacheClearCmd struct{}

// Execute runs the Kong-based CLI.
func Execute() {
	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("trophyctl"),
		kong.Description("Probe game achievement sources and manage their local caches."),
		kong.UsageOnError(),
	)

	initLogging(cli.Verbose)
	initConfig(&cli)

	if err := ctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig(cli *CLI) {
	config.Init()

	viper.AutomaticEnv()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("Failed to read config file", "error", err)
			os.Exit(1)
		}
	}

	viper.Set("cache.dbfile", cli.CacheDBFile)
	viper.Set("pagecache.dir", cli.PageCacheDir)
}

func (p *ProbeCmd) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	pages := pagecache.New(config.PageCacheDir(), config.PageCacheTTL())
	images := resolver.New()
	bg := bgfetch.New(config.BackgroundWorkers())
	defer bg.Shutdown()

	var fetcher webfetch.Fetcher = webfetch.NewHTTPFetcher(config.FetchTimeout())
	if p.Browser {
		fetcher = webfetch.NewChainFetcher(fetcher, webfetch.NewChromeFetcher(config.FetchTimeout()))
	}

	exo := exophase.NewClient(fetcher, pages, images, bg)
	taXbox := orchestrator.NewTrueAchSecondary(trueach.NewClient(trueach.OriginXbox, fetcher, pages))
	taSteam := orchestrator.NewTrueAchSecondary(trueach.NewClient(trueach.OriginSteam, fetcher, pages))

	chain := orchestrator.New(images, exo, taXbox, taSteam)
	chain.AddImageSource(taXbox)
	chain.AddImageSource(taSteam)

	game := models.Game{Name: p.Name}
	ga := chain.Run(ctx, game, p.Platform)
	chain.EnrichImages(ctx, ga)
	localizeIcons(ctx, ga)

	out, err := json.MarshalIndent(ga, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !ga.HasAchievements() {
		slog.Warn("No provider returned achievements", "game", p.Name)
	}
	return nil
}

// localizeIcons mirrors unlocked-icon images into the configured icon
// directory and points the result at the local copies. A failed download
// leaves the remote URL in place.
func localizeIcons(ctx context.Context, ga *models.GameAchievements) {
	dir := config.IconDir()
	if dir == "" {
		return
	}
	icons := iconcache.New(dir)
	key := ga.Game.Key()
	for i := range ga.Items {
		iconURL := ga.Items[i].URLUnlocked
		if iconURL == "" {
			continue
		}
		path, err := icons.Fetch(ctx, key, iconURL)
		if err != nil {
			slog.Debug("Icon download failed", "game", ga.Game.Name, "url", iconURL, "error", err)
			continue
		}
		ga.Items[i].URLUnlocked = path
	}
}

// search cache tables dropped by cache clear
var cacheTables = []string{"exophase_search_cache", "trueach_search_cache", "title_id_cache"}

// page cache providers cleared by cache clear
var cacheProviders = []string{"Exophase", "TrueAchievements", "TrueSteamAchievements"}

func (c *CacheClearCmd) Run() error {
	db, err := cache.GetGlobalCache()
	if err != nil {
		return fmt.Errorf("failed to open search cache: %w", err)
	}
	for _, table := range cacheTables {
		if err := db.ClearAll(table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	pages := pagecache.New(config.PageCacheDir(), config.PageCacheTTL())
	for _, provider := range cacheProviders {
		if err := pages.Clear(provider); err != nil {
			return fmt.Errorf("failed to clear %s page cache: %w", provider, err)
		}
	}

	if dir := config.IconDir(); dir != "" {
		if err := iconcache.New(dir).ClearAll(); err != nil {
			return fmt.Errorf("failed to clear icon cache: %w", err)
		}
	}

	slog.Info("Caches cleared")
	return nil
}
