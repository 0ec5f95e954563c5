package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog/achievements/internal/errs"
	"github.com/questlog/achievements/models"
)

type fakeStore struct {
	mu        sync.Mutex
	raw       []RawAchievement
	stats     []models.GameStat
	fetchErr  error
	loggedIn  bool
	loginErr  error
	probes    atomic.Int32
	probeHold chan struct{}
}

func (f *fakeStore) FetchAchievements(ctx context.Context, game models.Game) ([]RawAchievement, []models.GameStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw, f.stats, f.fetchErr
}

func (f *fakeStore) IsUserLoggedIn(ctx context.Context) (bool, error) {
	f.probes.Add(1)
	if f.probeHold != nil {
		<-f.probeHold
	}
	return f.loggedIn, f.loginErr
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []string
}

func (r *recordingNotifier) Notify(provider, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, provider+": "+message)
}

func TestGetAchievementsMapsAndNormalizes(t *testing.T) {
	unlocked := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		raw: []RawAchievement{
			{APIName: "ACH_WIN", Name: "Winner", Percent: 42, DateUnlocked: unlocked},
			{Name: "Locked One", Percent: 1.5, DateUnlocked: time.Time{}},
			{Name: "Sentinel", DateUnlocked: time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
		stats: []models.GameStat{{Name: "kills", Value: 10}},
	}
	p := NewSteam(store)

	ga, err := p.GetAchievements(context.Background(), models.Game{ID: "10", Name: "Half-Life"})
	require.NoError(t, err)
	require.Len(t, ga.Items, 3)

	require.NotNil(t, ga.Items[0].DateUnlocked)
	assert.Equal(t, unlocked, *ga.Items[0].DateUnlocked)
	assert.Equal(t, "ACH_WIN", ga.Items[0].APIName)

	// missing apiName falls back to name, sentinel dates normalize to nil
	assert.Equal(t, "Locked One", ga.Items[1].APIName)
	assert.Nil(t, ga.Items[1].DateUnlocked)
	assert.Nil(t, ga.Items[2].DateUnlocked)

	// gamerscore derived from percent when absent
	assert.InDelta(t, 15.0, ga.Items[0].GamerScore, 0.001)
	assert.InDelta(t, 180.0, ga.Items[1].GamerScore, 0.001)

	require.NotNil(t, ga.SourceLink)
	assert.Equal(t, "Steam", ga.SourceLink.Name)
	assert.Len(t, ga.ItemsStats, 1)
	assert.Equal(t, 1, ga.Unlocked())
}

func TestGetAchievementsEmptyIsNotAnError(t *testing.T) {
	p := NewGOG(&fakeStore{})

	ga, err := p.GetAchievements(context.Background(), models.Game{Name: "No Cheevos"})
	require.NoError(t, err)
	assert.NotNil(t, ga)
	assert.False(t, ga.HasAchievements())
	assert.Nil(t, ga.SourceLink)
}

func TestGetAchievementsNotAuthenticatedNotifies(t *testing.T) {
	store := &fakeStore{fetchErr: errs.NewNotAuthenticated("Epic")}
	notifier := &recordingNotifier{}
	p := NewEpic(store, WithNotifier(notifier))

	ga, err := p.GetAchievements(context.Background(), models.Game{Name: "Fortnite"})
	require.Error(t, err)
	assert.True(t, errs.IsNotAuthenticated(err))
	assert.NotNil(t, ga)
	require.Len(t, notifier.notices, 1)
	assert.Contains(t, notifier.notices[0], "Epic")
}

type fakeRarity struct {
	calls int
	hint  string
}

func (f *fakeRarity) SetRarity(ctx context.Context, ga *models.GameAchievements, platformHint string) error {
	f.calls++
	f.hint = platformHint
	for i := range ga.Items {
		ga.Items[i].Percent = 50
	}
	return nil
}

func TestRarityBackfillOnlyWhenMissing(t *testing.T) {
	rarity := &fakeRarity{}
	store := &fakeStore{raw: []RawAchievement{{Name: "A"}, {Name: "B"}}}
	p := NewXbox(store, WithRaritySource(rarity))

	ga, err := p.GetAchievements(context.Background(), models.Game{Name: "Halo"})
	require.NoError(t, err)
	assert.Equal(t, 1, rarity.calls)
	assert.Equal(t, "Xbox", rarity.hint)
	assert.InDelta(t, 50.0, ga.Items[0].Percent, 0.001)

	// store now reports percentages, no backfill
	store.mu.Lock()
	store.raw = []RawAchievement{{Name: "A", Percent: 12}}
	store.mu.Unlock()
	_, err = p.GetAchievements(context.Background(), models.Game{Name: "Halo"})
	require.NoError(t, err)
	assert.Equal(t, 1, rarity.calls)
}

func TestIsConnectedCollapsesAndCachesProbes(t *testing.T) {
	store := &fakeStore{loggedIn: true, probeHold: make(chan struct{})}
	p := NewEA(store)

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.IsConnected(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(store.probeHold)
	wg.Wait()

	for _, r := range results {
		assert.True(t, r)
	}
	assert.Equal(t, int32(1), store.probes.Load(), "concurrent probes must collapse")

	// cached afterwards
	store.probeHold = nil
	assert.True(t, p.IsConnected(context.Background()))
	assert.Equal(t, int32(1), store.probes.Load())
}

func TestAuthFailureInvalidatesCachedConnection(t *testing.T) {
	store := &fakeStore{loggedIn: true}
	p := NewSteam(store)
	require.True(t, p.IsConnected(context.Background()))

	store.mu.Lock()
	store.fetchErr = errs.NewNotAuthenticated("Steam")
	store.loggedIn = false
	store.mu.Unlock()
	_, err := p.GetAchievements(context.Background(), models.Game{Name: "X"})
	require.Error(t, err)

	assert.False(t, p.IsConnected(context.Background()), "probe re-runs after auth failure")
}

func TestValidateConfiguration(t *testing.T) {
	connected := &fakeStore{loggedIn: true}
	assert.True(t, NewSteam(connected).ValidateConfiguration(context.Background()))

	disabled := NewSteam(connected, Disabled())
	assert.False(t, disabled.ValidateConfiguration(context.Background()))
	assert.False(t, disabled.EnabledInSettings())

	loggedOut := &fakeStore{loggedIn: false}
	assert.False(t, NewGOG(loggedOut).ValidateConfiguration(context.Background()))
}

func TestProbeErrorMeansDisconnected(t *testing.T) {
	store := &fakeStore{loginErr: errors.New("network down")}
	p := NewXbox(store)
	assert.False(t, p.IsConnected(context.Background()))
}
