package model

import (
	"sort"
	"time"
)

// Photo is one candidate image belonging to a student.
type Photo struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"-"`
	URL          string    `db:"url" json:"url"`
	OriginalName string    `db:"original_name" json:"originalName"`
	CapturedAt   time.Time `db:"captured_at" json:"capturedAt"`
}

// SortPhotosByCapture orders photos ascending by capture time. Ties keep the
// order the store returned them in.
func SortPhotosByCapture(photos []Photo) {
	sort.SliceStable(photos, func(i, j int) bool {
		return photos[i].CapturedAt.Before(photos[j].CapturedAt)
	})
}

// FindPhotoByURL returns the photo with the given URL, if present.
func FindPhotoByURL(photos []Photo, url string) (*Photo, bool) {
	for i := range photos {
		if photos[i].URL == url {
			return &photos[i], true
		}
	}
	return nil, false
}
