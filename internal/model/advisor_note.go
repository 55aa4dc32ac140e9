package model

import (
	"time"

	"gorm.io/gorm"
)

// AdvisorNote is strictly internal to the owning business. The consumer
// the note is about can never read it, even by direct id lookup.
type AdvisorNote struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	BusinessID    uint           `json:"business_id" gorm:"index;not null"`
	AuthorUserID  uint           `json:"author_user_id" gorm:"index;not null"`
	SubjectUserID uint           `json:"subject_user_id" gorm:"index;not null"`
	Body          string         `json:"body" gorm:"type:text;not null"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`

	Revisions []AdvisorNoteRevision `json:"revisions,omitempty" gorm:"foreignKey:NoteID"`
}

// AdvisorNoteRevision preserves prior bodies of a note. Same visibility
// rules as the note itself.
type AdvisorNoteRevision struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	NoteID       uint      `json:"note_id" gorm:"index;not null"`
	AuthorUserID uint      `json:"author_user_id" gorm:"index;not null"`
	Body         string    `json:"body" gorm:"type:text;not null"`
	CreatedAt    time.Time `json:"created_at"`
}
