package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axellelanca/shortlink/internal/config"
	"github.com/axellelanca/shortlink/internal/database"
	customerrors "github.com/axellelanca/shortlink/internal/errors"
	"github.com/axellelanca/shortlink/internal/models"
	"github.com/axellelanca/shortlink/internal/repository"
)

func newTestService(t *testing.T) *LinkService {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.Migrate(db))

	svc := NewLinkService(repository.NewLinkRepository(db), 5*time.Second)
	svc.now = steppingClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	return svc
}

// steppingClock returns a clock that advances one second per call so
// created_at ordering is deterministic.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func TestCreateLink_GeneratesUniqueSixCharCodes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		link, err := svc.CreateLink(ctx, fmt.Sprintf("https://example.com/%d", i), "")
		require.NoError(t, err)
		assert.Regexp(t, `^[A-Za-z0-9]{6}$`, link.Code)
		assert.False(t, seen[link.Code], "duplicate code %s", link.Code)
		seen[link.Code] = true

		assert.Zero(t, link.TotalClicks)
		assert.Nil(t, link.LastClicked)
		assert.NotZero(t, link.ID)
	}
}

func TestCreateLink_NormalizesTargetURL(t *testing.T) {
	svc := newTestService(t)

	link, err := svc.CreateLink(context.Background(), "example.com/a/b", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a/b", link.TargetURL)
	assert.Len(t, link.Code, GeneratedCodeLength)

	stored, err := svc.GetLinkByShortCode(context.Background(), link.Code)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a/b", stored.TargetURL)
}

func TestNormalizeTargetURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "bare host and path", raw: "example.com/a/b", want: "https://example.com/a/b"},
		{name: "http kept", raw: "http://example.com", want: "http://example.com"},
		{name: "https kept", raw: "https://go.dev/doc?x=1", want: "https://go.dev/doc?x=1"},
		{name: "surrounding whitespace", raw: "  example.org  ", want: "https://example.org"},
		{name: "localhost with port", raw: "http://localhost:3000/x", want: "http://localhost:3000/x"},
		{name: "empty", raw: "", wantErr: true},
		{name: "no tld", raw: "notaurl", wantErr: true},
		{name: "other scheme", raw: "ftp://example.com", wantErr: true},
		{name: "spaces in host", raw: "exa mple.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTargetURL(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, customerrors.ErrInvalidInput)
				assert.ErrorIs(t, err, customerrors.ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateLink_RejectsMalformedCustomCodes(t *testing.T) {
	svc := newTestService(t)

	for _, code := range []string{"abc", "abcde", "abcdefghi", "abc-12", "abc_123", "héllo1", "abc 12"} {
		t.Run(code, func(t *testing.T) {
			_, err := svc.CreateLink(context.Background(), "https://example.com", code)
			require.Error(t, err)
			assert.ErrorIs(t, err, customerrors.ErrInvalidInput)
			assert.ErrorIs(t, err, customerrors.ErrInvalidShortCode)
		})
	}
}

func TestCreateLink_CustomCode(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, "https://example.com", "Custom88")
	require.NoError(t, err)
	assert.Equal(t, "Custom88", link.Code)

	_, err = svc.CreateLink(ctx, "https://example.org", "Custom88")
	assert.ErrorIs(t, err, customerrors.ErrShortCodeTaken)
}

func TestAssignCode(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateLink(ctx, "https://example.com", "taken1")
	require.NoError(t, err)

	code, err := svc.AssignCode(ctx, "free12")
	require.NoError(t, err)
	assert.Equal(t, "free12", code)

	_, err = svc.AssignCode(ctx, "taken1")
	assert.ErrorIs(t, err, customerrors.ErrShortCodeTaken)

	_, err = svc.AssignCode(ctx, "bad!")
	assert.ErrorIs(t, err, customerrors.ErrInvalidShortCode)

	code, err = svc.AssignCode(ctx, "")
	require.NoError(t, err)
	assert.True(t, ValidShortCode(code))
}

func TestAssignCode_ExhaustsRetryBudget(t *testing.T) {
	repo := &stubRepository{exists: func(string) bool { return true }}
	svc := NewLinkService(repo, time.Second)

	calls := 0
	svc.generate = func() (string, error) {
		calls++
		return "AAAAAA", nil
	}

	_, err := svc.AssignCode(context.Background(), "")
	assert.ErrorIs(t, err, customerrors.ErrShortCodeGenerationFailed)
	assert.Equal(t, MaxCodeAttempts, calls)
}

func TestCreateLink_RetriesGeneratedCodeLostAtInsert(t *testing.T) {
	repo := &stubRepository{
		exists: func(string) bool { return false },
		create: func(link *models.Link) error {
			if link.Code == "raced1" {
				return customerrors.ErrShortCodeTaken
			}
			return nil
		},
	}
	svc := NewLinkService(repo, time.Second)
	codes := []string{"raced1", "fresh1"}
	svc.generate = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	link, err := svc.CreateLink(context.Background(), "https://example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "fresh1", link.Code)
}

func TestCreateLink_CustomCodeLostAtInsertIsConflict(t *testing.T) {
	// The existence check passes but the unique constraint fires on insert.
	repo := &stubRepository{
		exists: func(string) bool { return false },
		create: func(*models.Link) error { return customerrors.ErrShortCodeTaken },
	}
	svc := NewLinkService(repo, time.Second)

	_, err := svc.CreateLink(context.Background(), "https://example.com", "racer1")
	assert.ErrorIs(t, err, customerrors.ErrShortCodeTaken)
	assert.Equal(t, 1, repo.creates)
}

func TestCreateLink_ExhaustedWhenEveryInsertCollides(t *testing.T) {
	repo := &stubRepository{
		exists: func(string) bool { return false },
		create: func(*models.Link) error { return customerrors.ErrShortCodeTaken },
	}
	svc := NewLinkService(repo, time.Second)

	_, err := svc.CreateLink(context.Background(), "https://example.com", "")
	assert.ErrorIs(t, err, customerrors.ErrShortCodeGenerationFailed)
	assert.Equal(t, MaxCodeAttempts, repo.creates)
}

func TestCreateLink_MixedCollisionsShareOneAttemptBudget(t *testing.T) {
	checks := 0
	repo := &stubRepository{
		// Nine of every ten generated codes already exist.
		exists: func(string) bool {
			checks++
			return checks%10 != 0
		},
		create: func(*models.Link) error { return customerrors.ErrShortCodeTaken },
	}
	svc := NewLinkService(repo, time.Second)

	generations := 0
	svc.generate = func() (string, error) {
		generations++
		return fmt.Sprintf("code%02d", generations%100), nil
	}

	_, err := svc.CreateLink(context.Background(), "https://example.com", "")
	assert.ErrorIs(t, err, customerrors.ErrShortCodeGenerationFailed)
	assert.LessOrEqual(t, generations, MaxCodeAttempts)
	assert.Equal(t, 1, repo.creates)
}

func TestRecordClickAndResolve_ConcurrentClicksAreAllCounted(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, "https://example.com/hot", "")
	require.NoError(t, err)

	_, err = svc.RecordClickAndResolve(ctx, link.Code)
	require.NoError(t, err)

	const clicks = 40
	var wg sync.WaitGroup
	errs := make(chan error, clicks)
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resolved, err := svc.RecordClickAndResolve(ctx, link.Code)
			if err != nil {
				errs <- err
				return
			}
			if resolved.TargetURL != "https://example.com/hot" {
				errs <- fmt.Errorf("unexpected target %q", resolved.TargetURL)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	got, err := svc.GetLinkByShortCode(ctx, link.Code)
	require.NoError(t, err)
	assert.EqualValues(t, 1+clicks, got.TotalClicks)
	require.NotNil(t, got.LastClicked)
}

func TestRecordClickAndResolve_ReturnsUpdatedRow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, "https://example.com", "")
	require.NoError(t, err)

	first, err := svc.RecordClickAndResolve(ctx, link.Code)
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.TotalClicks)
	require.NotNil(t, first.LastClicked)

	second, err := svc.RecordClickAndResolve(ctx, link.Code)
	require.NoError(t, err)
	assert.EqualValues(t, 2, second.TotalClicks)
	assert.True(t, second.LastClicked.After(*first.LastClicked))
	assert.Equal(t, link.CreatedAt.Unix(), second.CreatedAt.Unix())
}

func TestRecordClickAndResolve_UnknownCode(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	existing, err := svc.CreateLink(ctx, "https://example.com", "keep12")
	require.NoError(t, err)

	_, err = svc.RecordClickAndResolve(ctx, "nope12")
	assert.ErrorIs(t, err, customerrors.ErrShortCodeNotFound)

	_, err = svc.RecordClickAndResolve(ctx, "no")
	assert.ErrorIs(t, err, customerrors.ErrInvalidShortCode)

	unchanged, err := svc.GetLinkByShortCode(ctx, existing.Code)
	require.NoError(t, err)
	assert.Zero(t, unchanged.TotalClicks)
	assert.Nil(t, unchanged.LastClicked)
}

func TestListLinks_PagesNewestFirstWithoutOverlap(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var created []string
	for i := 0; i < 25; i++ {
		link, err := svc.CreateLink(ctx, fmt.Sprintf("https://example.com/%d", i), "")
		require.NoError(t, err)
		created = append(created, link.Code)
	}

	first, err := svc.ListLinks(ctx, 0, 10)
	require.NoError(t, err)
	second, err := svc.ListLinks(ctx, 10, 10)
	require.NoError(t, err)

	assert.EqualValues(t, 25, first.Total)
	require.Len(t, first.Links, 10)
	require.Len(t, second.Links, 10)

	var got []string
	for _, page := range []*LinkPage{first, second} {
		for i := 1; i < len(page.Links); i++ {
			assert.False(t, page.Links[i].CreatedAt.After(page.Links[i-1].CreatedAt), "not ordered by created_at desc")
		}
		for _, l := range page.Links {
			got = append(got, l.Code)
		}
	}

	// The 20 most recent links, newest first.
	var want []string
	for i := len(created) - 1; i >= len(created)-20; i-- {
		want = append(want, created[i])
	}
	assert.Equal(t, want, got)

	last, err := svc.ListLinks(ctx, 20, 10)
	require.NoError(t, err)
	assert.Len(t, last.Links, 5)
}

func TestListLinks_RejectsOutOfRangeWindow(t *testing.T) {
	svc := newTestService(t)

	for _, tc := range []struct{ offset, limit int }{{0, 0}, {0, 101}, {-1, 10}} {
		_, err := svc.ListLinks(context.Background(), tc.offset, tc.limit)
		assert.ErrorIs(t, err, customerrors.ErrInvalidPagination, "offset=%d limit=%d", tc.offset, tc.limit)
	}

	page, err := svc.ListLinks(context.Background(), 0, MaxPageSize)
	require.NoError(t, err)
	assert.Empty(t, page.Links)
	assert.Zero(t, page.Total)
}

func TestDeleteLink_ThenLookupIsNotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, "https://example.com", "gone99")
	require.NoError(t, err)

	deleted, err := svc.DeleteLink(ctx, "gone99")
	require.NoError(t, err)
	assert.Equal(t, link.ID, deleted.ID)
	assert.Equal(t, "https://example.com", deleted.TargetURL)

	_, err = svc.GetLinkByShortCode(ctx, "gone99")
	assert.ErrorIs(t, err, customerrors.ErrShortCodeNotFound)

	_, err = svc.DeleteLink(ctx, "gone99")
	assert.ErrorIs(t, err, customerrors.ErrShortCodeNotFound)

	// The code is free again.
	_, err = svc.CreateLink(ctx, "https://example.org", "gone99")
	assert.NoError(t, err)
}

func TestOperations_SurfaceStoreUnavailability(t *testing.T) {
	repo := &stubRepository{
		failWith: customerrors.Unavailable(context.DeadlineExceeded),
	}
	svc := NewLinkService(repo, time.Second)
	ctx := context.Background()

	_, err := svc.RecordClickAndResolve(ctx, "abc123")
	assert.ErrorIs(t, err, customerrors.ErrDatabaseConnection)

	_, err = svc.CreateLink(ctx, "https://example.com", "")
	assert.ErrorIs(t, err, customerrors.ErrDatabaseConnection)

	_, err = svc.ListLinks(ctx, 0, 10)
	assert.ErrorIs(t, err, customerrors.ErrDatabaseConnection)
}

func TestOperations_ApplyQueryTimeout(t *testing.T) {
	var deadline time.Time
	repo := &stubRepository{
		onRecord: func(ctx context.Context) {
			deadline, _ = ctx.Deadline()
		},
	}
	svc := NewLinkService(repo, 2*time.Second)

	before := time.Now()
	_, _ = svc.RecordClickAndResolve(context.Background(), "abc123")
	require.False(t, deadline.IsZero())
	assert.WithinDuration(t, before.Add(2*time.Second), deadline, time.Second)
}

func TestGenerateShortCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateShortCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[A-Za-z0-9]{6}$`, code)
	}
}

// stubRepository is an in-memory LinkRepository whose behaviour each test
// overrides through the function fields.
type stubRepository struct {
	exists   func(code string) bool
	create   func(link *models.Link) error
	onRecord func(ctx context.Context)
	failWith error

	creates int
}

func (s *stubRepository) CreateLink(_ context.Context, link *models.Link) error {
	s.creates++
	if s.failWith != nil {
		return s.failWith
	}
	if s.create != nil {
		return s.create(link)
	}
	return nil
}

func (s *stubRepository) GetLinkByShortCode(context.Context, string) (*models.Link, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	return nil, customerrors.ErrShortCodeNotFound
}

func (s *stubRepository) ShortCodeExists(_ context.Context, code string) (bool, error) {
	if s.failWith != nil {
		return false, s.failWith
	}
	if s.exists != nil {
		return s.exists(code), nil
	}
	return false, nil
}

func (s *stubRepository) RecordClick(ctx context.Context, _ string, _ time.Time) (*models.Link, error) {
	if s.onRecord != nil {
		s.onRecord(ctx)
	}
	if s.failWith != nil {
		return nil, s.failWith
	}
	return nil, customerrors.ErrShortCodeNotFound
}

func (s *stubRepository) ListLinks(context.Context, int, int) ([]models.Link, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	return nil, nil
}

func (s *stubRepository) CountLinks(context.Context) (int64, error) {
	if s.failWith != nil {
		return 0, s.failWith
	}
	return 0, nil
}

func (s *stubRepository) DeleteLinkByShortCode(context.Context, string) (*models.Link, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	return nil, customerrors.ErrShortCodeNotFound
}

func (s *stubRepository) Ping(context.Context) error {
	if s.failWith != nil {
		return s.failWith
	}
	return nil
}

var _ repository.LinkRepository = (*stubRepository)(nil)

func TestErrValidationFailed_MatchesKinds(t *testing.T) {
	err := invalidCode("x")
	assert.True(t, errors.Is(err, customerrors.ErrInvalidInput))
	assert.True(t, errors.Is(err, customerrors.ErrInvalidShortCode))
	assert.False(t, errors.Is(err, customerrors.ErrInvalidURL))
}
