package models

import "time"

// UserStatus is the user-asserted status, distinct from the connection-derived
// presence fact kept by the presence registry. The two can disagree.
type UserStatus string

const (
	UserOnline  UserStatus = "online"
	UserOffline UserStatus = "offline"
)

func (s UserStatus) IsValid() bool {
	return s == UserOnline || s == UserOffline
}

type User struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Username    string     `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string     `json:"displayName"`
	Avatar      string     `json:"avatar,omitempty"`
	Provider    string     `gorm:"size:16" json:"provider"` // discord, github or google
	Status      UserStatus `gorm:"size:16;default:offline" json:"status"`
	LastSeen    time.Time  `json:"lastSeen"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// StatusUpdate is the payload published on the cross-instance status channel.
// Origin identifies the publishing instance so subscribers can skip their own
// updates.
type StatusUpdate struct {
	UserID    string     `json:"userId"`
	Status    UserStatus `json:"status"`
	Origin    string     `json:"origin,omitempty"`
	Timestamp int64      `json:"timestamp"`
}
