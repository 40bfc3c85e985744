package entity

import "time"

// UserStatus is the account state kept by the user directory.
type UserStatus int16

const (
	// UserStatusUnknown means the stored value is not recognized.
	UserStatusUnknown UserStatus = 0
	// UserStatusActive means the user may log in.
	UserStatusActive UserStatus = 1
	// UserStatusSuspended means the user is blocked from logging in.
	UserStatusSuspended UserStatus = 2
)

func (us UserStatus) String() string {
	switch us {
	case UserStatusActive:
		return "active"
	case UserStatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Ensure maps unrecognized values to UserStatusUnknown.
func (us UserStatus) Ensure() UserStatus {
	switch us {
	case UserStatusActive, UserStatusSuspended:
		return us
	default:
		return UserStatusUnknown
	}
}

// User is a directory entry. The auth module only reads users.
type User struct {
	ID          int64
	PhoneNumber string
	Name        string
	Status      UserStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanLogin reports whether the account is allowed to request or verify codes.
func (u User) CanLogin() bool {
	return u.Status.Ensure() == UserStatusActive
}
