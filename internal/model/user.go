package model

import (
	"strings"
)

// User is an authenticated account: a requester, observer, unit member or
// validator depending on the links it holds.
type User struct {
	Base
	FirstName    string `db:"first_name" json:"first_name"`
	LastName     string `db:"last_name" json:"last_name"`
	Email        string `db:"email" json:"email"`
	PasswordHash string `db:"password_hash" json:"-"`
	PhoneNumber  string `db:"phone_number" json:"phone_number,omitempty"`
	UnitName     string `db:"unit_name" json:"unit_name,omitempty"`
	IsStaff      bool   `db:"is_staff" json:"is_staff"`
}

// FullName is the display name used in validation trees and notifications.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
