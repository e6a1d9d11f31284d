package models

import (
	"sort"
	"time"
)

// WalletRecord persisted account. Only Label mutates after creation.
type WalletRecord struct {
	ID      string `json:"id" gorm:"primaryKey;type:varchar(36)"` // UUID
	Label   string `json:"label" gorm:"type:varchar(100);not null"`
	Address string `json:"address" gorm:"type:varchar(42);not null;index"` // checksummed

	// codec blobs, the raw key is never stored
	EncryptedSecret     []byte `json:"encrypted_secret" gorm:"type:bytea;not null"`
	HasSeedPhrase       bool   `json:"has_seed_phrase" gorm:"default:false"`
	EncryptedSeedPhrase []byte `json:"encrypted_seed_phrase,omitempty" gorm:"type:bytea"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (WalletRecord) TableName() string {
	return "wallet_records"
}

// SortByRecency orders records most recent first. Ties fall back to ID so the order is stable.
func SortByRecency(records []*WalletRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}
