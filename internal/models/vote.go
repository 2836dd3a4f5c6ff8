package models

import (
	"time"

	"github.com/google/uuid"
)

// VoteValue is a user's directional opinion on a report. NoVote is never
// persisted: the absence of a Vote row means the user has not voted.
type VoteValue int

const (
	Downvote VoteValue = -1
	NoVote   VoteValue = 0
	Upvote   VoteValue = 1
)

func (v VoteValue) Valid() bool {
	return v >= Downvote && v <= Upvote
}

// Vote is unique per (report, user) and always carries Upvote or Downvote.
type Vote struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReportID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_report_user,priority:1" json:"report_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_report_user,priority:2;index" json:"user_id"`
	Value     VoteValue `gorm:"type:smallint;not null;check:value <> 0" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
