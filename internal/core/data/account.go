package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Account contains the login information specific to each registered user.
//
// Passwords are stored in the clear; the protocol compares the raw
// credential the client sends and hardening authentication is explicitly
// out of scope for this service.
type Account struct {
	ID               uint64 `gorm:"primaryKey"`
	Username         string `gorm:"unique; not null"`
	Password         string `gorm:"not null"`
	RegistrationDate time.Time
	DeletedAt        gorm.DeletedAt
}

// FindAccountByUsername searches for an account with the specified username,
// returning the *Account instance if found or nil if there is no match.
func FindAccountByUsername(db *gorm.DB, username string) (*Account, error) {
	var account Account
	err := db.Where("username = ?", username).First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &account, nil
}

// FindUnscopedAccount searches for a potentially soft-deleted account with
// the specified username, returning the *Account instance if found or nil
// if there is no match.
func FindUnscopedAccount(db *gorm.DB, username string) (*Account, error) {
	var account Account
	err := db.Unscoped().Where("username = ?", username).First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &account, nil
}

// AllAccounts returns every non-deleted account in registration order.
func AllAccounts(db *gorm.DB) ([]Account, error) {
	var accounts []Account
	if err := db.Order("id").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// CreateAccount persists the Account record to the database.
func CreateAccount(db *gorm.DB, account *Account) error {
	if account.RegistrationDate.IsZero() {
		account.RegistrationDate = time.Now()
	}
	return db.Create(account).Error
}

// DeleteAccount soft deletes the account so that it can be restored later.
func DeleteAccount(db *gorm.DB, account *Account) error {
	return db.Delete(account).Error
}

// PermanentlyDeleteAccount removes the account record entirely.
func PermanentlyDeleteAccount(db *gorm.DB, account *Account) error {
	return db.Unscoped().Delete(account).Error
}

// stockAccounts are the users seeded into an empty database so that a fresh
// install can be played immediately.
var stockAccounts = []Account{
	{Username: "test", Password: "test"},
	{Username: "yossi", Password: "123"},
	{Username: "master", Password: "master"},
}

// SeedStockAccounts populates an empty accounts table with the stock users.
// It is a no-op if any account already exists.
func SeedStockAccounts(db *gorm.DB) error {
	var count int64
	if err := db.Model(&Account{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for i := range stockAccounts {
		account := stockAccounts[i]
		if err := CreateAccount(db, &account); err != nil {
			return err
		}
	}
	return nil
}
