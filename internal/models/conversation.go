package models

import "time"

// Conversation is a two-party direct-message thread. Participant ids are
// stored in lexical order so a (sender, receiver) pair always resolves to the
// same row.
type Conversation struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	P1        string    `gorm:"index:idx_participants;not null" json:"p1"`
	P2        string    `gorm:"index:idx_participants;not null" json:"p2"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	if c.P1 == userID {
		return c.P2
	}
	return c.P1
}

// Has reports whether userID is one of the two participants.
func (c *Conversation) Has(userID string) bool {
	return c.P1 == userID || c.P2 == userID
}
