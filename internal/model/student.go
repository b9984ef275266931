package model

import (
	"time"
)

// Student is one person eligible to pick a photo. Records are provisioned
// outside this service; only the choice fields are ever written here.
type Student struct {
	ID              string     `db:"id" json:"id"`
	FirstName       string     `db:"first_name" json:"firstName"`
	LastName        string     `db:"last_name" json:"lastName"`
	AccessCode      string     `db:"access_code" json:"-"`
	ChosenPhotoURL  *string    `db:"chosen_photo_url" json:"chosenPhotoUrl,omitempty"`
	ChosenPhotoName *string    `db:"chosen_photo_name" json:"chosenPhotoName"`
	HasChosen       bool       `db:"has_chosen" json:"hasChosen"`
	ChoiceTimestamp *time.Time `db:"choice_timestamp" json:"choiceTimestamp,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
}

// ChoiceUpdate is the partial update written when a student confirms a photo.
// The choice timestamp is stamped by the store, not carried here.
type ChoiceUpdate struct {
	PhotoURL  string
	PhotoName *string
}

// StudentFilter narrows admin listings.
type StudentFilter struct {
	HasChosen *bool
	Limit     int
	Offset    int
}

// Clone returns a deep copy so snapshots never alias session state.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}
	c := *s
	c.ChosenPhotoURL = cloneString(s.ChosenPhotoURL)
	c.ChosenPhotoName = cloneString(s.ChosenPhotoName)
	if s.ChoiceTimestamp != nil {
		ts := *s.ChoiceTimestamp
		c.ChoiceTimestamp = &ts
	}
	return &c
}

// StoredChoice returns the previously confirmed photo URL, if any.
func (s *Student) StoredChoice() (string, bool) {
	if s.HasChosen && s.ChosenPhotoURL != nil && *s.ChosenPhotoURL != "" {
		return *s.ChosenPhotoURL, true
	}
	return "", false
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
