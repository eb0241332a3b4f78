package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mmgo/internal/domain"
)

// FillRecord is a persisted simulated execution.
type FillRecord struct {
	ID        string    `gorm:"primaryKey"`
	Side      string    `gorm:"index"`
	Price     string    // decimal as string, exact
	Qty       string
	QuoteID   string
	Timestamp time.Time `gorm:"index"`
	CreatedAt time.Time
}

// PnLRecord is one persisted mark-to-market snapshot.
type PnLRecord struct {
	ID         uint `gorm:"primaryKey;autoIncrement"`
	Realized   string
	Unrealized string
	Total      string
	MarkPrice  string
	AsOf       time.Time `gorm:"index"`
}

// SpreadRecord is one persisted spread-stats row for a notional size.
type SpreadRecord struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	Size   string `gorm:"index"`
	Avg    string
	Median string
	Min    string
	Max    string
	Count  int
	AsOf   time.Time `gorm:"index"`
}

// Storage persists simulation output to SQLite for post-run analysis.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at path.
func NewStorage(path string) (*Storage, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&FillRecord{}, &PnLRecord{}, &SpreadRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// SaveFill persists one fill.
func (s *Storage) SaveFill(f domain.Fill) error {
	return s.db.Create(&FillRecord{
		ID:        f.ID,
		Side:      string(f.Side),
		Price:     f.Price.String(),
		Qty:       f.Qty.String(),
		QuoteID:   f.QuoteID,
		Timestamp: f.Timestamp,
	}).Error
}

// SavePnL persists one P&L snapshot.
func (s *Storage) SavePnL(p domain.PnLSnapshot) error {
	return s.db.Create(&PnLRecord{
		Realized:   p.Realized.String(),
		Unrealized: p.Unrealized.String(),
		Total:      p.Total.String(),
		MarkPrice:  p.MarkPrice.String(),
		AsOf:       p.AsOf,
	}).Error
}

// SaveSpreadStats persists one spread-stats row.
func (s *Storage) SaveSpreadStats(st domain.SpreadStats, asOf time.Time) error {
	return s.db.Create(&SpreadRecord{
		Size:   st.Size.String(),
		Avg:    st.Avg.String(),
		Median: st.Median.String(),
		Min:    st.Min.String(),
		Max:    st.Max.String(),
		Count:  st.Count,
		AsOf:   asOf,
	}).Error
}

// Fills returns all persisted fills ordered by time.
func (s *Storage) Fills() ([]FillRecord, error) {
	var fills []FillRecord
	err := s.db.Order("timestamp asc").Find(&fills).Error
	return fills, err
}

// PnLHistory returns all persisted P&L snapshots ordered by time.
func (s *Storage) PnLHistory() ([]PnLRecord, error) {
	var rows []PnLRecord
	err := s.db.Order("as_of asc").Find(&rows).Error
	return rows, err
}

// SpreadHistory returns persisted spread stats for one size ordered by time.
func (s *Storage) SpreadHistory(size string) ([]SpreadRecord, error) {
	var rows []SpreadRecord
	err := s.db.Where("size = ?", size).Order("as_of asc").Find(&rows).Error
	return rows, err
}

// Close closes the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
