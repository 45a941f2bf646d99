package cookies

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/interfaces"
	"github.com/ternarybob/pagerender/internal/models"
)

type mockCookieStorage struct {
	mock.Mock
}

func (m *mockCookieStorage) SaveCookies(ctx context.Context, records []models.CookieRecord) error {
	return m.Called(ctx, records).Error(0)
}

func (m *mockCookieStorage) GetCookie(ctx context.Context, key string) (*models.CookieRecord, error) {
	args := m.Called(ctx, key)
	record, _ := args.Get(0).(*models.CookieRecord)
	return record, args.Error(1)
}

func (m *mockCookieStorage) LoadCookies(ctx context.Context) ([]models.CookieRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]models.CookieRecord)
	return records, args.Error(1)
}

func (m *mockCookieStorage) DeleteCookies(ctx context.Context, keys []string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *mockCookieStorage) DeleteAllCookies(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCookieStorage) PurgeExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockCookieStorage) CountCookies(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func newMemoryJar() *Jar {
	return NewJar(nil, arbor.NewLogger())
}

func TestJar_HostOnlyCookie(t *testing.T) {
	jar := newMemoryJar()
	ctx := context.Background()

	require.NoError(t, jar.SetCookie(ctx, "https://example.com", "sid=abc; path=/"))

	header, err := jar.GetCookieHeader(ctx, "https://example.com/article/1")
	require.NoError(t, err)
	assert.Equal(t, "sid=abc", header)

	header, err = jar.GetCookieHeader(ctx, "https://www.example.com/")
	require.NoError(t, err)
	assert.Empty(t, header, "host-only cookie must not leak to subdomains")
}

func TestJar_DomainCookieMatchesSubdomains(t *testing.T) {
	jar := newMemoryJar()
	ctx := context.Background()

	require.NoError(t, jar.SetCookie(ctx, "https://www.example.com", "sid=abc; domain=.example.com; path=/"))

	for _, url := range []string{"https://example.com", "https://www.example.com/x", "http://news.example.com/"} {
		header, err := jar.GetCookieHeader(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, "sid=abc", header, url)
	}

	header, err := jar.GetCookieHeader(ctx, "https://notexample.com")
	require.NoError(t, err)
	assert.Empty(t, header)
}

func TestJar_HostOnlyAndDomainCookiesCoexist(t *testing.T) {
	jar := newMemoryJar()
	ctx := context.Background()

	require.NoError(t, jar.SetCookie(ctx, "https://example.com", "sid=1; domain=.example.com; path=/"))
	require.NoError(t, jar.SetCookie(ctx, "https://example.com", "sid=1; path=/"))

	assert.Equal(t, 2, jar.Len())
}

func TestJar_RejectsForeignDomain(t *testing.T) {
	jar := newMemoryJar()
	ctx := context.Background()

	err := jar.SetCookie(ctx, "https://example.com", "sid=abc; domain=other.com")
	assert.ErrorIs(t, err, interfaces.ErrInvalidCookie)

	err = jar.SetCookie(ctx, "https://example.com", "sid=abc; domain=com")
	assert.ErrorIs(t, err, interfaces.ErrInvalidCookie)
}

func TestJar_RejectsMalformedInput(t *testing.T) {
	jar := newMemoryJar()
	ctx := context.Background()

	assert.ErrorIs(t, jar.SetCookie(ctx, "https://example.com", "novalue"), interfaces.ErrInvalidCookie)
	assert.ErrorIs(t, jar.SetCookie(ctx, "not a url", "a=1"), interfaces.ErrInvalidCookie)
	assert.Equal(t, 0, jar.Len())
}

func TestJar_PathScoping(t *testing.T) {
	jar := newMemoryJar()
	ctx := context.Background()

	require.NoError(t, jar.SetCookie(ctx, "https://example.com/news/story", "scoped=1"))
	require.NoError(t, jar.SetCookie(ctx, "https://example.com/", "root=1; path=/"))

	header, err := jar.GetCookieHeader(ctx, "https://example.com/news/other")
	require.NoError(t, err)
	assert.Equal(t, "scoped=1; root=1", header, "longer path first")

	header, err = jar.GetCookieHeader(ctx, "https://example.com/newsletter")
	require.NoError(t, err)
	assert.Equal(t, "root=1", header)
}

func TestJar_SecureCookieOnlyOverHTTPS(t *testing.T) {
	jar := newMemoryJar()
	ctx := context.Background()

	require.NoError(t, jar.SetCookie(ctx, "https://example.com", "sid=abc; path=/; Secure"))

	header, _ := jar.GetCookieHeader(ctx, "http://example.com/")
	assert.Empty(t, header)
	header, _ = jar.GetCookieHeader(ctx, "https://example.com/")
	assert.Equal(t, "sid=abc", header)
}

func TestJar_ExpiryAndMaxAge(t *testing.T) {
	jar := newMemoryJar()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	jar.now = func() time.Time { return now }

	require.NoError(t, jar.SetCookie(ctx, "https://example.com", "short=1; path=/; Max-Age=60"))
	require.NoError(t, jar.SetCookie(ctx, "https://example.com", "keep=1; path=/"))
	assert.Equal(t, 2, jar.Len())

	now = now.Add(2 * time.Minute)
	header, _ := jar.GetCookieHeader(ctx, "https://example.com/")
	assert.Equal(t, "keep=1", header)
	assert.Equal(t, 1, jar.PurgeExpired(ctx))

	require.NoError(t, jar.SetCookie(ctx, "https://example.com", "keep=1; path=/; Max-Age=0"))
	assert.Equal(t, 0, jar.Len())
}

func TestJar_FlushPersistsChanges(t *testing.T) {
	storage := new(mockCookieStorage)
	jar := NewJar(storage, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, jar.SetCookie(ctx, "https://example.com", "sid=abc; path=/"))

	storage.On("SaveCookies", ctx, mock.MatchedBy(func(records []models.CookieRecord) bool {
		return len(records) == 1 && records[0].Name == "sid" && records[0].HostOnly
	})).Return(nil).Once()

	require.NoError(t, jar.Flush(ctx))
	// nothing pending: no further storage calls
	require.NoError(t, jar.Flush(ctx))

	storage.AssertExpectations(t)
}

func TestJar_FlushAfterRemoveAllClearsStorage(t *testing.T) {
	storage := new(mockCookieStorage)
	jar := NewJar(storage, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, jar.SetCookie(ctx, "https://example.com", "old=1; path=/"))
	require.NoError(t, jar.RemoveAll(ctx))
	require.NoError(t, jar.SetCookie(ctx, "https://example.com", "new=1; path=/"))

	storage.On("DeleteAllCookies", ctx).Return(nil).Once()
	storage.On("SaveCookies", ctx, mock.MatchedBy(func(records []models.CookieRecord) bool {
		return len(records) == 1 && records[0].Name == "new"
	})).Return(nil).Once()

	require.NoError(t, jar.Flush(ctx))
	storage.AssertExpectations(t)
}

func TestJar_LoadSkipsExpired(t *testing.T) {
	storage := new(mockCookieStorage)
	jar := NewJar(storage, arbor.NewLogger())
	ctx := context.Background()

	storage.On("LoadCookies", ctx).Return([]models.CookieRecord{
		{Name: "live", Value: "1", Domain: "example.com", Path: "/", HostOnly: true},
		{Name: "dead", Value: "1", Domain: "example.com", Path: "/", HostOnly: true, Expires: time.Now().Add(-time.Hour)},
	}, nil)

	require.NoError(t, jar.Load(ctx))
	assert.Equal(t, 1, jar.Len())

	header, _ := jar.GetCookieHeader(ctx, "https://example.com/")
	assert.Equal(t, "live=1", header)
}

func TestJar_StoreRecordsNormalizesDomain(t *testing.T) {
	jar := newMemoryJar()
	ctx := context.Background()

	require.NoError(t, jar.StoreRecords(ctx, []models.CookieRecord{
		{Name: "tab", Value: "v", Domain: ".Example.com"},
		{Name: "", Value: "ignored", Domain: "example.com"},
	}))

	records, err := jar.CookiesForURL(ctx, "https://www.example.com/any")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "example.com", records[0].Domain)
	assert.Equal(t, "/", records[0].Path)
}

func TestJar_SetCookieKeepsValueVerbatim(t *testing.T) {
	jar := newMemoryJar()
	ctx := context.Background()

	require.NoError(t, jar.SetCookie(ctx, "https://example.com/a", `data="x\y"; Path=/; Secure`))

	records, err := jar.CookiesForURL(ctx, "https://example.com/b")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, `"x\y"`, records[0].Value)
	assert.Equal(t, "/", records[0].Path)
	assert.True(t, records[0].Secure)
}
