package repository

import (
	"context"
	"errors"

	"walletd/internal/apperrors"
	"walletd/internal/models"

	"gorm.io/gorm"
)

// ErrRecordNotFound returned by Get when no record has the id
var ErrRecordNotFound = errors.New("wallet record not found")

// WalletRecordStore persistence for wallet records. Every failure other than
// ErrRecordNotFound surfaces as a StorageError.
type WalletRecordStore interface {
	Put(ctx context.Context, record *models.WalletRecord) error
	// GetAll returns records most recent first
	GetAll(ctx context.Context) ([]*models.WalletRecord, error)
	Get(ctx context.Context, id string) (*models.WalletRecord, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// walletRecordRepository implements WalletRecordStore on gorm
type walletRecordRepository struct {
	db *gorm.DB
}

// NewWalletRecordRepository creates a gorm backed WalletRecordStore
func NewWalletRecordRepository(db *gorm.DB) WalletRecordStore {
	return &walletRecordRepository{db: db}
}

func (r *walletRecordRepository) Put(ctx context.Context, record *models.WalletRecord) error {
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		return apperrors.Storage("failed to save wallet record", err)
	}
	return nil
}

func (r *walletRecordRepository) GetAll(ctx context.Context) ([]*models.WalletRecord, error) {
	var records []*models.WalletRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, apperrors.Storage("failed to load wallet records", err)
	}
	return records, nil
}

func (r *walletRecordRepository) Get(ctx context.Context, id string) (*models.WalletRecord, error) {
	var record models.WalletRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, apperrors.Storage("failed to load wallet record", err)
	}
	return &record, nil
}

func (r *walletRecordRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.WalletRecord{})
	if result.Error != nil {
		return apperrors.Storage("failed to delete wallet record", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Close is a no-op, the connection pool is owned by package db
func (r *walletRecordRepository) Close() error {
	return nil
}
