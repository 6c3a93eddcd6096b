package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reelhub/internal/core/domain"
	"reelhub/internal/core/ports"
	"reelhub/internal/infrastructure/codec"
	"reelhub/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	viewerU1  = domain.Identity{UserID: "u1", Role: domain.RoleViewer}
	curatorC1 = domain.Identity{UserID: "c1", Role: domain.RoleCurator}
	adminA1   = domain.Identity{UserID: "a1", Role: domain.RoleAdmin}
)

// MockDocumentStore for failure paths the in-memory store cannot produce.
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Create(ctx context.Context, key domain.DocumentKey, data []byte) error {
	args := m.Called(ctx, key, data)
	return args.Error(0)
}

func (m *MockDocumentStore) Get(ctx context.Context, key domain.DocumentKey) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDocumentStore) Update(ctx context.Context, key domain.DocumentKey, fn ports.MutateFunc) ([]byte, error) {
	args := m.Called(ctx, key, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDocumentStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDocumentStore) Close() error {
	return m.Called().Error(0)
}

// stepClock returns a strictly increasing time on every call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingMetrics struct {
	mu      sync.Mutex
	results map[string][]string
}

func (m *recordingMetrics) RecordProfileOperation(operation, result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		m.results = make(map[string][]string)
	}
	m.results[operation] = append(m.results[operation], result)
}

func (m *recordingMetrics) last(operation string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.results[operation]
	if len(r) == 0 {
		return ""
	}
	return r[len(r)-1]
}

func newTestProfileService(t *testing.T, opts ...ProfileServiceOption) (*ProfileService, *memory.MemoryDocumentStore) {
	t.Helper()
	store := memory.NewMemoryDocumentStore()
	c, err := codec.New(codec.JSON)
	require.NoError(t, err)

	clock := &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]ProfileServiceOption{WithClock(clock.Now)}, opts...)
	return NewProfileService(store, c, NewAuthorizationGate(false), zaptest.NewLogger(t).Sugar(), opts...), store
}

func TestProfileService_ViewerWatchlist(t *testing.T) {
	svc, _ := newTestProfileService(t)
	ctx := context.Background()

	created, err := svc.CreateProfile(ctx, viewerU1, "u1", domain.VariantViewer, domain.ProfileFields{
		Watchlist: []string{"tt001", "tt001"},
		Expertise: []string{"ignored"},
	})
	require.NoError(t, err)
	require.NotNil(t, created.Viewer)
	assert.Len(t, created.Viewer.Watchlist, 1)
	assert.Equal(t, created.Viewer.CreatedAt, created.Viewer.UpdatedAt)

	doc, err := svc.AddWatchlistItem(ctx, viewerU1, "u1", "tt002")
	require.NoError(t, err)
	assert.Len(t, doc.Watchlist, 2)
	assert.True(t, doc.UpdatedAt.After(doc.CreatedAt))
	updatedAt := doc.UpdatedAt

	// Adding the same movie again is a no-op and leaves updatedAt alone.
	doc, err = svc.AddWatchlistItem(ctx, viewerU1, "u1", "tt002")
	require.NoError(t, err)
	assert.Len(t, doc.Watchlist, 2)
	assert.Equal(t, updatedAt, doc.UpdatedAt)

	doc, err = svc.RemoveWatchlistItem(ctx, viewerU1, "u1", "tt001")
	require.NoError(t, err)
	require.Len(t, doc.Watchlist, 1)
	assert.Equal(t, "tt002", doc.Watchlist[0].MovieID)

	got, err := svc.GetProfile(ctx, viewerU1, "u1", domain.VariantViewer)
	require.NoError(t, err)
	assert.Equal(t, doc, got.Viewer)
}

func TestProfileService_CuratedListLifecycle(t *testing.T) {
	svc, _ := newTestProfileService(t, WithIDGenerator(func() string { return "list-1" }))
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, curatorC1, "c1", domain.VariantCurator, domain.ProfileFields{
		Expertise: []string{"noir", " noir ", "western"},
	})
	require.NoError(t, err)

	list, doc, err := svc.CreateCuratedList(ctx, curatorC1, "c1", "Top Noir", "Shadows and smoke")
	require.NoError(t, err)
	assert.Equal(t, "list-1", list.ListID)
	assert.Equal(t, 1, doc.ListsCount)
	assert.Equal(t, []string{"noir", "western"}, doc.Expertise)
	assert.Empty(t, list.Movies)

	list, err = svc.AddMovieToList(ctx, curatorC1, "c1", "list-1", domain.ListMovie{
		MovieID:     "tt0033870",
		MovieTitle:  "The Maltese Falcon",
		MoviePoster: "https://img.example/falcon.jpg",
	})
	require.NoError(t, err)
	require.Len(t, list.Movies, 1)
	assert.False(t, list.Movies[0].AddedAt.IsZero())

	list, err = svc.AddMovieToList(ctx, curatorC1, "c1", "list-1", domain.ListMovie{MovieID: "tt0033870", MovieTitle: "Duplicate"})
	require.NoError(t, err)
	require.Len(t, list.Movies, 1)
	assert.Equal(t, "The Maltese Falcon", list.Movies[0].MovieTitle)

	name := "Top Noir Classics"
	list, err = svc.UpdateCuratedList(ctx, curatorC1, "c1", "list-1", domain.ListPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, list.ListName)
	assert.Equal(t, "Shadows and smoke", list.Description)

	list, err = svc.RemoveMovieFromList(ctx, curatorC1, "c1", "list-1", "tt0033870")
	require.NoError(t, err)
	assert.Empty(t, list.Movies)

	lists, err := svc.ListCuratedLists(ctx, curatorC1, "c1")
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, name, lists[0].ListName)

	doc, err = svc.DeleteCuratedList(ctx, curatorC1, "c1", "list-1")
	require.NoError(t, err)
	assert.Equal(t, 0, doc.ListsCount)
	assert.Empty(t, doc.CuratedLists)

	_, err = svc.DeleteCuratedList(ctx, curatorC1, "c1", "list-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProfileService_ListOperationsOnMissingList(t *testing.T) {
	svc, _ := newTestProfileService(t)
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, curatorC1, "c1", domain.VariantCurator, domain.ProfileFields{})
	require.NoError(t, err)

	name := "x"
	_, err = svc.UpdateCuratedList(ctx, curatorC1, "c1", "nope", domain.ListPatch{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.AddMovieToList(ctx, curatorC1, "c1", "nope", domain.ListMovie{MovieID: "tt1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.RemoveMovieFromList(ctx, curatorC1, "c1", "nope", "tt1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProfileService_UpdateCuratedListRequiresAField(t *testing.T) {
	svc, _ := newTestProfileService(t)
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, curatorC1, "c1", domain.VariantCurator, domain.ProfileFields{})
	require.NoError(t, err)
	list, _, err := svc.CreateCuratedList(ctx, curatorC1, "c1", "Top Noir", "")
	require.NoError(t, err)

	_, err = svc.UpdateCuratedList(ctx, curatorC1, "c1", list.ListID, domain.ListPatch{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// authorization still comes first
	_, err = svc.UpdateCuratedList(ctx, viewerU1, "c1", list.ListID, domain.ListPatch{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestProfileService_CreateConflict(t *testing.T) {
	metrics := &recordingMetrics{}
	svc, _ := newTestProfileService(t, WithProfileMetrics(metrics))
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, viewerU1, "u1", domain.VariantViewer, domain.ProfileFields{})
	require.NoError(t, err)
	assert.Equal(t, "ok", metrics.last("create_profile"))

	_, err = svc.CreateProfile(ctx, viewerU1, "u1", domain.VariantViewer, domain.ProfileFields{})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, "conflict", metrics.last("create_profile"))

	// Variants are separate documents.
	_, err = svc.CreateProfile(ctx, viewerU1, "u1", domain.VariantCurator, domain.ProfileFields{})
	assert.NoError(t, err)
}

func TestProfileService_AuthorizationComesFirst(t *testing.T) {
	metrics := &recordingMetrics{}
	svc, store := newTestProfileService(t, WithProfileMetrics(metrics))
	ctx := context.Background()

	// No profile exists for c1, yet a stranger learns only that access is denied.
	_, err := svc.GetProfile(ctx, viewerU1, "c1", domain.VariantCurator)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, "unauthorized", metrics.last("get_profile"))

	// Invalid input from an unauthorized caller is still reported as unauthorized.
	_, _, err = svc.CreateCuratedList(ctx, viewerU1, "c1", "", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, _, err = svc.CreateCuratedList(ctx, curatorC1, "c1", "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.GetProfile(ctx, curatorC1, "c1", domain.VariantCurator)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Admin reads of other profiles are not granted.
	_, err = svc.GetProfile(ctx, adminA1, "c1", domain.VariantCurator)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.Equal(t, 0, store.Len())
}

func TestProfileService_AdminProfiles(t *testing.T) {
	svc, _ := newTestProfileService(t)
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, curatorC1, "c1", domain.VariantAdmin, domain.ProfileFields{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	created, err := svc.CreateProfile(ctx, adminA1, "a1", domain.VariantAdmin, domain.ProfileFields{})
	require.NoError(t, err)
	assert.Empty(t, created.Admin.ActivityLog)

	doc, err := svc.AppendActivityLog(ctx, adminA1, "a1", domain.ActivityEntry{Action: "ban_user", Details: "u9"})
	require.NoError(t, err)
	require.Len(t, doc.ActivityLog, 1)
	assert.False(t, doc.ActivityLog[0].Timestamp.IsZero())

	_, err = svc.AppendActivityLog(ctx, curatorC1, "a1", domain.ActivityEntry{Action: "ban_user"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.AppendActivityLog(ctx, adminA1, "a1", domain.ActivityEntry{Action: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProfileService_AdminOverride(t *testing.T) {
	store := memory.NewMemoryDocumentStore()
	c, err := codec.New(codec.JSON)
	require.NoError(t, err)
	svc := NewProfileService(store, c, NewAuthorizationGate(true), zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	_, err = svc.CreateProfile(ctx, curatorC1, "c1", domain.VariantCurator, domain.ProfileFields{})
	require.NoError(t, err)

	doc, err := svc.UpdateExpertise(ctx, adminA1, "c1", []string{"horror"})
	require.NoError(t, err)
	assert.Equal(t, []string{"horror"}, doc.Expertise)

	_, err = svc.ListCuratedLists(ctx, adminA1, "c1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestProfileService_ConcurrentListMutationsKeepCount(t *testing.T) {
	var seq atomic.Int64
	svc, _ := newTestProfileService(t, WithIDGenerator(func() string {
		return fmt.Sprintf("list-%d", seq.Add(1))
	}))
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, curatorC1, "c1", domain.VariantCurator, domain.ProfileFields{})
	require.NoError(t, err)

	const seeded = 10
	for i := 0; i < seeded; i++ {
		_, _, err := svc.CreateCuratedList(ctx, curatorC1, "c1", fmt.Sprintf("seed %d", i), "")
		require.NoError(t, err)
	}

	const creators = 20
	var wg sync.WaitGroup
	errs := make(chan error, creators+seeded)
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := svc.CreateCuratedList(ctx, curatorC1, "c1", fmt.Sprintf("list %d", i), "")
			errs <- err
		}(i)
	}
	for i := 1; i <= seeded; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.DeleteCuratedList(ctx, curatorC1, "c1", fmt.Sprintf("list-%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := svc.GetProfile(ctx, curatorC1, "c1", domain.VariantCurator)
	require.NoError(t, err)
	assert.Len(t, got.Curator.CuratedLists, creators)
	assert.Equal(t, creators, got.Curator.ListsCount)
}

func TestProfileService_UpdateExpertiseIdempotent(t *testing.T) {
	svc, _ := newTestProfileService(t)
	ctx := context.Background()

	_, err := svc.CreateProfile(ctx, curatorC1, "c1", domain.VariantCurator, domain.ProfileFields{})
	require.NoError(t, err)

	first, err := svc.UpdateExpertise(ctx, curatorC1, "c1", []string{"noir", "giallo"})
	require.NoError(t, err)
	second, err := svc.UpdateExpertise(ctx, curatorC1, "c1", []string{"noir", "giallo"})
	require.NoError(t, err)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	_, err = svc.AddRecommendation(ctx, curatorC1, "c1", "tt0038355", "Bogart at his best")
	require.NoError(t, err)
	doc, err := svc.AddRecommendation(ctx, curatorC1, "c1", "tt0038355", "Still great")
	require.NoError(t, err)
	assert.Len(t, doc.Recommendations, 2)
}

func TestProfileService_CanceledBeforeStart(t *testing.T) {
	svc, store := newTestProfileService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.CreateProfile(ctx, viewerU1, "u1", domain.VariantViewer, domain.ProfileFields{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Len())
}

func TestProfileService_StoreUnavailable(t *testing.T) {
	store := new(MockDocumentStore)
	c, err := codec.New(codec.JSON)
	require.NoError(t, err)
	metrics := &recordingMetrics{}
	svc := NewProfileService(store, c, NewAuthorizationGate(false), zaptest.NewLogger(t).Sugar(), WithProfileMetrics(metrics))

	down := fmt.Errorf("update document: %w: connection refused", domain.ErrStoreUnavailable)
	store.On("Update", mock.Anything, domain.ProfileKey("u1", domain.VariantViewer), mock.Anything).Return(nil, down)
	store.On("Get", mock.Anything, domain.ProfileKey("u1", domain.VariantViewer)).Return(nil, down)

	_, err = svc.AddWatchlistItem(context.Background(), viewerU1, "u1", "tt1")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, "unavailable", metrics.last("add_watchlist_item"))

	_, err = svc.GetProfile(context.Background(), viewerU1, "u1", domain.VariantViewer)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	store.AssertExpectations(t)
}

func TestProfileService_UnknownVariant(t *testing.T) {
	svc, _ := newTestProfileService(t)

	_, err := svc.CreateProfile(context.Background(), viewerU1, "u1", domain.Variant("critic"), domain.ProfileFields{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
