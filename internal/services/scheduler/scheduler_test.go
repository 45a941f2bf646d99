package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/common"
	"github.com/ternarybob/pagerender/internal/models"
)

type mockJar struct {
	mock.Mock
}

func (m *mockJar) Flush(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockJar) PurgeExpired(ctx context.Context) int {
	return m.Called(ctx).Int(0)
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) SaveCookies(ctx context.Context, records []models.CookieRecord) error {
	return m.Called(ctx, records).Error(0)
}

func (m *mockStorage) GetCookie(ctx context.Context, key string) (*models.CookieRecord, error) {
	args := m.Called(ctx, key)
	record, _ := args.Get(0).(*models.CookieRecord)
	return record, args.Error(1)
}

func (m *mockStorage) LoadCookies(ctx context.Context) ([]models.CookieRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]models.CookieRecord)
	return records, args.Error(1)
}

func (m *mockStorage) DeleteCookies(ctx context.Context, keys []string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *mockStorage) DeleteAllCookies(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStorage) PurgeExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStorage) CountCookies(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestRegisterJobValidation(t *testing.T) {
	s := NewService(arbor.NewLogger())
	noop := func(ctx context.Context) error { return nil }

	require.NoError(t, s.RegisterJob("a", "@every 1m", "job a", noop))
	assert.Error(t, s.RegisterJob("a", "@every 1m", "duplicate", noop))
	assert.Error(t, s.RegisterJob("b", "not a schedule", "bad", noop))
	assert.Error(t, s.TriggerJob("missing"))

	_, err := s.GetJobStatus("missing")
	assert.Error(t, err)
	assert.Len(t, s.GetAllJobStatuses(), 1)
}

func TestRunJobTracksStatus(t *testing.T) {
	s := NewService(arbor.NewLogger())
	fail := true
	require.NoError(t, s.RegisterJob("flaky", "@hourly", "fails once", func(ctx context.Context) error {
		if fail {
			fail = false
			return errors.New("disk full")
		}
		return nil
	}))

	assert.Error(t, s.RunJob("flaky"))
	status, err := s.GetJobStatus("flaky")
	require.NoError(t, err)
	assert.Equal(t, "disk full", status.LastError)
	require.NotNil(t, status.LastRun)
	assert.False(t, status.IsRunning)

	require.NoError(t, s.RunJob("flaky"))
	status, err = s.GetJobStatus("flaky")
	require.NoError(t, err)
	assert.Empty(t, status.LastError)
}

func TestRunJobRecoversPanic(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.RegisterJob("boom", "@hourly", "panics", func(ctx context.Context) error {
		panic("unexpected")
	}))

	err := s.RunJob("boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected")
}

func TestStartStop(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.RegisterJob("tick", "@every 1h", "tick", func(ctx context.Context) error { return nil }))

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())

	status, err := s.GetJobStatus("tick")
	require.NoError(t, err)
	require.NotNil(t, status.NextRun)
	assert.True(t, status.NextRun.After(time.Now()))

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop())
}

func TestTriggerJob(t *testing.T) {
	s := NewService(arbor.NewLogger())
	ran := make(chan struct{})
	require.NoError(t, s.RegisterJob("now", "@daily", "manual", func(ctx context.Context) error {
		close(ran)
		return nil
	}))

	require.NoError(t, s.TriggerJob("now"))
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("triggered job did not run")
	}
}

func TestRegisterCookieJobs(t *testing.T) {
	s := NewService(arbor.NewLogger())
	jar := &mockJar{}
	storage := &mockStorage{}

	jar.On("PurgeExpired", mock.Anything).Return(2).Once()
	jar.On("Flush", mock.Anything).Return(nil).Once()
	storage.On("PurgeExpired", mock.Anything).Return(3, nil).Once()

	err := RegisterCookieJobs(s, jar, storage, common.CookiesConfig{FlushSchedule: "@every 1m", PurgeExpired: true}, arbor.NewLogger())
	require.NoError(t, err)
	assert.Len(t, s.GetAllJobStatuses(), 2)

	require.NoError(t, s.RunJob(JobCookieFlush))
	require.NoError(t, s.RunJob(JobCookiePurge))

	jar.AssertExpectations(t)
	storage.AssertExpectations(t)
}

func TestRegisterCookieJobsWithoutPurge(t *testing.T) {
	s := NewService(arbor.NewLogger())
	jar := &mockJar{}
	jar.On("Flush", mock.Anything).Return(errors.New("badger closed")).Once()

	err := RegisterCookieJobs(s, jar, &mockStorage{}, common.CookiesConfig{FlushSchedule: "@every 1m"}, arbor.NewLogger())
	require.NoError(t, err)
	assert.Len(t, s.GetAllJobStatuses(), 1)

	assert.Error(t, s.RunJob(JobCookieFlush))
	jar.AssertNotCalled(t, "PurgeExpired", mock.Anything)
}

func TestRegisterCookieJobsDisabled(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, RegisterCookieJobs(s, &mockJar{}, nil, common.CookiesConfig{}, arbor.NewLogger()))
	assert.Empty(t, s.GetAllJobStatuses())
}
