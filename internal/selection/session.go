package selection

import (
	"github.com/yearbook/picker-server-go/internal/model"
)

// Session is a point-in-time copy of one browser session's selection state.
// Invariants:
//   - ResolvedRecordID is set iff Record is set.
//   - A default CurrentSelectionURL names a photo in Photos or the record's
//     stored choice. SelectPhoto may set anything.
//   - IsBusy is true only in the Resolving and Confirming states.
type Session struct {
	State               model.SessionState `json:"state"`
	EnteredCode         string             `json:"enteredCode"`
	ResolvedRecordID    *string            `json:"resolvedRecordId"`
	Record              *model.Student     `json:"record"`
	Photos              []model.Photo      `json:"photos"`
	CurrentSelectionURL *string            `json:"currentSelectionUrl"`
	IsBusy              bool               `json:"isBusy"`
	LastError           *string            `json:"lastError"`
	LastNotice          *string            `json:"lastNotice"`
}

// CanSubmitCode reports whether the code form should be enabled.
func (s Session) CanSubmitCode() bool {
	return !s.IsBusy
}

// CanConfirm reports whether the confirm control should be enabled.
func (s Session) CanConfirm() bool {
	return !s.IsBusy && s.Record != nil && s.CurrentSelectionURL != nil
}

// SelectedPhoto returns the photo currently selected, if it is in the list.
func (s Session) SelectedPhoto() (*model.Photo, bool) {
	if s.CurrentSelectionURL == nil {
		return nil, false
	}
	return model.FindPhotoByURL(s.Photos, *s.CurrentSelectionURL)
}
