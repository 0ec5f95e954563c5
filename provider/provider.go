// Package provider defines the achievement provider contract and the
// storefront-backed providers. A provider wraps an opaque store client,
// maps its raw records into the canonical model, and reports its
// connection state so the orchestrator knows when to fall back.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/questlog/achievements/internal/errs"
	"github.com/questlog/achievements/models"
)

// RawAchievement is a storefront record before normalization. Locked
// achievements may carry a sentinel zero or year-one DateUnlocked; the
// mapping boundary converts those to absent.
type RawAchievement struct {
	APIName      string
	Name         string
	Description  string
	URLUnlocked  string
	URLLocked    string
	DateUnlocked time.Time
	Percent      float64
	GamerScore   float64
	IsHidden     bool
	Category     string
}

// StoreClient is the opaque storefront adapter a host supplies. The
// library never implements storefront authentication itself.
type StoreClient interface {
	// FetchAchievements returns the player's raw achievement records and
	// any game statistics for the game.
	FetchAchievements(ctx context.Context, game models.Game) ([]RawAchievement, []models.GameStat, error)
	// IsUserLoggedIn reports whether the store session is authenticated.
	IsUserLoggedIn(ctx context.Context) (bool, error)
}

// Notifier delivers user-facing provider notices to the host, such as
// "store session expired".
type Notifier interface {
	Notify(provider, message string)
}

// NopNotifier discards all notices.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string) {}

// RaritySource backfills unlock percentages onto achievements whose
// primary source has none. Satisfied by the Exophase client.
type RaritySource interface {
	SetRarity(ctx context.Context, ga *models.GameAchievements, platformHint string) error
}

// AchievementProvider is the inbound contract every provider satisfies.
// GetAchievements returns an empty, non-nil aggregate when the game simply
// has no achievements; errors mean the provider could not answer.
type AchievementProvider interface {
	Name() string
	GetAchievements(ctx context.Context, game models.Game) (*models.GameAchievements, error)
	ValidateConfiguration(ctx context.Context) bool
	IsConnected(ctx context.Context) bool
	EnabledInSettings() bool
}

// StoreProvider implements AchievementProvider over a StoreClient. Use the
// per-store constructors; they bake in the platform hint and rarity policy
// for each storefront.
type StoreProvider struct {
	name         string
	platformHint string
	client       StoreClient
	notifier     Notifier
	enabled      bool

	// rarity backfill for stores that report no unlock percentages
	raritySource RaritySource

	sf        singleflight.Group
	connMu    sync.Mutex
	connected *bool
}

// Option configures a StoreProvider at construction.
type Option func(*StoreProvider)

// WithNotifier routes provider notices to the host.
func WithNotifier(n Notifier) Option {
	return func(p *StoreProvider) { p.notifier = n }
}

// WithRaritySource enables percentage backfill from a secondary source.
func WithRaritySource(src RaritySource) Option {
	return func(p *StoreProvider) { p.raritySource = src }
}

// Disabled constructs the provider switched off; GetAchievements still
// works when called directly, but chains skip it.
func Disabled() Option {
	return func(p *StoreProvider) { p.enabled = false }
}

func newStore(name, platformHint string, client StoreClient, opts ...Option) *StoreProvider {
	p := &StoreProvider{
		name:         name,
		platformHint: platformHint,
		client:       client,
		notifier:     NopNotifier{},
		enabled:      true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewSteam builds the Steam storefront provider.
func NewSteam(client StoreClient, opts ...Option) *StoreProvider {
	return newStore("Steam", "Steam", client, opts...)
}

// NewGOG builds the GOG storefront provider.
func NewGOG(client StoreClient, opts ...Option) *StoreProvider {
	return newStore("GOG", "GOG", client, opts...)
}

// NewEpic builds the Epic Games Store provider.
func NewEpic(client StoreClient, opts ...Option) *StoreProvider {
	return newStore("Epic", "Epic", client, opts...)
}

// NewEA builds the EA app provider. EA reports no unlock percentages, so
// pair it with a rarity source.
func NewEA(client StoreClient, opts ...Option) *StoreProvider {
	return newStore("EA", "Electronic Arts", client, opts...)
}

// NewXbox builds the Xbox Live provider. Xbox reports gamerscore but no
// percentages, so pair it with a rarity source.
func NewXbox(client StoreClient, opts ...Option) *StoreProvider {
	return newStore("Xbox", "Xbox", client, opts...)
}

// Name identifies the provider in source links and logs.
func (p *StoreProvider) Name() string { return p.name }

// PlatformHint is the platform scope for secondary-source searches about
// this store's games.
func (p *StoreProvider) PlatformHint() string { return p.platformHint }

// EnabledInSettings reports whether chains should consult this provider.
func (p *StoreProvider) EnabledInSettings() bool { return p.enabled }

// GetAchievements fetches the player's achievements from the store and
// maps them into the canonical model. An authenticated-session failure is
// reported to the notifier and returned, so the caller can fall back.
func (p *StoreProvider) GetAchievements(ctx context.Context, game models.Game) (*models.GameAchievements, error) {
	ga := models.NewGameAchievements(game)

	raw, stats, err := p.client.FetchAchievements(ctx, game)
	if err != nil {
		if errs.IsNotAuthenticated(err) {
			p.notifier.Notify(p.name, fmt.Sprintf("%s session is not authenticated", p.name))
			p.invalidateConnection()
		}
		return ga, fmt.Errorf("%s achievements fetch: %w", p.name, err)
	}

	ga.Items = mapRaw(raw)
	ga.ItemsStats = stats

	if ga.HasAchievements() {
		ga.SourceLink = &models.SourceLink{
			GameName: game.Name,
			Name:     p.name,
			URL:      "",
		}
		p.backfillRarity(ctx, ga)
	}
	return ga, nil
}

// mapRaw normalizes raw store records. Sentinel unlock dates become nil
// and a missing gamerscore is derived from the percentage.
func mapRaw(raw []RawAchievement) []models.Achievement {
	items := make([]models.Achievement, 0, len(raw))
	for _, r := range raw {
		apiName := r.APIName
		if apiName == "" {
			apiName = r.Name
		}
		score := r.GamerScore
		if score == 0 {
			score = models.CalcGamerScore(r.Percent)
		}
		items = append(items, models.Achievement{
			APIName:      apiName,
			Name:         r.Name,
			Description:  r.Description,
			URLUnlocked:  r.URLUnlocked,
			URLLocked:    r.URLLocked,
			DateUnlocked: models.NormalizeUnlockDate(r.DateUnlocked),
			Percent:      r.Percent,
			GamerScore:   score,
			IsHidden:     r.IsHidden,
			Category:     r.Category,
		})
	}
	return items
}

// backfillRarity overlays percentages from the rarity source when the
// store supplied none.
func (p *StoreProvider) backfillRarity(ctx context.Context, ga *models.GameAchievements) {
	if p.raritySource == nil {
		return
	}
	for i := range ga.Items {
		if ga.Items[i].Percent > 0 {
			return
		}
	}
	if err := p.raritySource.SetRarity(ctx, ga, p.platformHint); err != nil {
		slog.Warn("Rarity backfill failed", "provider", p.name, "game", ga.Game.Name, "error", err)
	}
}

// IsConnected reports whether the store session is authenticated.
// Concurrent probes collapse into one request and the result is cached
// until invalidated.
func (p *StoreProvider) IsConnected(ctx context.Context) bool {
	p.connMu.Lock()
	if p.connected != nil {
		cached := *p.connected
		p.connMu.Unlock()
		return cached
	}
	p.connMu.Unlock()

	v, _, _ := p.sf.Do("connected", func() (any, error) {
		ok, err := p.client.IsUserLoggedIn(ctx)
		if err != nil {
			slog.Debug("Connection probe failed", "provider", p.name, "error", err)
			ok = false
		}
		p.connMu.Lock()
		p.connected = &ok
		p.connMu.Unlock()
		return ok, nil
	})
	b, _ := v.(bool)
	return b
}

func (p *StoreProvider) invalidateConnection() {
	p.connMu.Lock()
	p.connected = nil
	p.connMu.Unlock()
}

// ValidateConfiguration reports whether the provider is usable: enabled
// and with an authenticated session.
func (p *StoreProvider) ValidateConfiguration(ctx context.Context) bool {
	return p.enabled && p.IsConnected(ctx)
}
