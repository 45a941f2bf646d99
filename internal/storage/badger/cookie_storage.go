package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pagerender/internal/interfaces"
	"github.com/ternarybob/pagerender/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CookieStorage implements interfaces.CookieStorage on badgerhold.
// Records are keyed by CookieRecord.Key().
type CookieStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCookieStorage creates a new CookieStorage instance
func NewCookieStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CookieStorage {
	return &CookieStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CookieStorage) SaveCookies(ctx context.Context, records []models.CookieRecord) error {
	for i := range records {
		record := records[i]
		if err := s.db.Store().Upsert(record.Key(), &record); err != nil {
			return fmt.Errorf("failed to save cookie %s: %w", record.Key(), err)
		}
	}
	return nil
}

func (s *CookieStorage) GetCookie(ctx context.Context, key string) (*models.CookieRecord, error) {
	var record models.CookieRecord
	err := s.db.Store().Get(key, &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrCookieNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cookie: %w", err)
	}
	return &record, nil
}

// LoadCookies returns every stored record ordered by creation time
func (s *CookieStorage) LoadCookies(ctx context.Context) ([]models.CookieRecord, error) {
	var records []models.CookieRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Name").Ne("").SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to load cookies: %w", err)
	}
	return records, nil
}

// DeleteCookies removes the given keys; missing keys are ignored
func (s *CookieStorage) DeleteCookies(ctx context.Context, keys []string) error {
	for _, key := range keys {
		err := s.db.Store().Delete(key, &models.CookieRecord{})
		if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("failed to delete cookie %s: %w", key, err)
		}
	}
	return nil
}

func (s *CookieStorage) DeleteAllCookies(ctx context.Context) error {
	if err := s.db.Store().DeleteMatching(&models.CookieRecord{}, nil); err != nil {
		return fmt.Errorf("failed to delete all cookies: %w", err)
	}
	return nil
}

func (s *CookieStorage) PurgeExpired(ctx context.Context) (int, error) {
	records, err := s.LoadCookies(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	var expired []string
	for _, record := range records {
		if record.Expired(now) {
			expired = append(expired, record.Key())
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	if err := s.DeleteCookies(ctx, expired); err != nil {
		return 0, err
	}
	s.logger.Debug().Int("count", len(expired)).Msg("Purged expired cookies")
	return len(expired), nil
}

func (s *CookieStorage) CountCookies(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.CookieRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count cookies: %w", err)
	}
	return int(count), nil
}
