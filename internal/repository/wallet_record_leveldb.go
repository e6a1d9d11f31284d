package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"walletd/internal/apperrors"
	"walletd/internal/models"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const walletKeyPrefix = "wallet:"

// levelDBWalletStore embedded WalletRecordStore, one JSON value per record
type levelDBWalletStore struct {
	db *leveldb.DB
}

// OpenLevelDBWalletStore opens (or creates) the store under dir
func OpenLevelDBWalletStore(dir string) (WalletRecordStore, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{})
	if err != nil {
		return nil, apperrors.Storage(fmt.Sprintf("failed to open leveldb at %s", dir), err)
	}
	return &levelDBWalletStore{db: db}, nil
}

// NewMemWalletStore in-memory store, used by tests and ephemeral runs
func NewMemWalletStore() WalletRecordStore {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		// memory storage cannot fail to open
		panic(err)
	}
	return &levelDBWalletStore{db: db}
}

func walletKey(id string) []byte {
	return []byte(walletKeyPrefix + id)
}

func (s *levelDBWalletStore) Put(ctx context.Context, record *models.WalletRecord) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Storage("failed to save wallet record", err)
	}
	value, err := json.Marshal(record)
	if err != nil {
		return apperrors.Storage("failed to encode wallet record", err)
	}
	if err := s.db.Put(walletKey(record.ID), value, &opt.WriteOptions{Sync: true}); err != nil {
		return apperrors.Storage("failed to save wallet record", err)
	}
	return nil
}

func (s *levelDBWalletStore) GetAll(ctx context.Context) ([]*models.WalletRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Storage("failed to load wallet records", err)
	}

	iter := s.db.NewIterator(util.BytesPrefix([]byte(walletKeyPrefix)), nil)
	defer iter.Release()

	var records []*models.WalletRecord
	for iter.Next() {
		var record models.WalletRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			return nil, apperrors.Storage(fmt.Sprintf("corrupt wallet record %s", iter.Key()), err)
		}
		records = append(records, &record)
	}
	if err := iter.Error(); err != nil {
		return nil, apperrors.Storage("failed to iterate wallet records", err)
	}

	models.SortByRecency(records)
	return records, nil
}

func (s *levelDBWalletStore) Get(ctx context.Context, id string) (*models.WalletRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Storage("failed to load wallet record", err)
	}
	value, err := s.db.Get(walletKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, apperrors.Storage("failed to load wallet record", err)
	}
	var record models.WalletRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, apperrors.Storage("corrupt wallet record", err)
	}
	return &record, nil
}

func (s *levelDBWalletStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Storage("failed to delete wallet record", err)
	}
	ok, err := s.db.Has(walletKey(id), nil)
	if err != nil {
		return apperrors.Storage("failed to delete wallet record", err)
	}
	if !ok {
		return ErrRecordNotFound
	}
	if err := s.db.Delete(walletKey(id), &opt.WriteOptions{Sync: true}); err != nil {
		return apperrors.Storage("failed to delete wallet record", err)
	}
	return nil
}

func (s *levelDBWalletStore) Close() error {
	return s.db.Close()
}
