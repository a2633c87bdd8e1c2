package models

import (
	"strings"

	"gorm.io/gorm"
)

// User represents a registered user owning one or more accounts.
type User struct {
	Model
	Username string `gorm:"uniqueIndex"`
	Email    string
	Phone    string
	Avatar   string
}

func (u *User) BeforeSave(_ *gorm.DB) error {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)

	return nil
}

// Accounts returns all accounts belonging to this user.
func (u User) Accounts(db *gorm.DB) ([]Account, error) {
	var accounts []Account
	err := db.Where(&Account{UserID: u.ID}).Find(&accounts).Error
	return accounts, err
}
