// Package selection implements the code-redemption and photo-confirmation
// workflow for a single browser session.
//
// A Controller moves through Idle -> Resolving -> Ready -> Confirming -> Ready.
// Idle and Ready are the only rest states. While a store call is outstanding
// the session is busy: a second SubmitCode is refused and ConfirmSelection is
// ignored. SelectPhoto only touches local state and is allowed whenever a
// record is resolved.
package selection

import (
	"context"
	"strings"
	"sync"

	apperrors "github.com/yearbook/picker-server-go/internal/errors"
	"github.com/yearbook/picker-server-go/internal/model"
)

// Messages surfaced through LastError and LastNotice.
const (
	MsgEmptyCode    = "empty code"
	MsgInvalidCode  = "invalid code"
	MsgFetchFailed  = "fetch failed"
	MsgUpdateFailed = "update failed"
	MsgConfirmed    = "confirmed"
)

// RecordStore is the document store the controller reads students and photos
// from and writes confirmed choices to.
type RecordStore interface {
	// FindByAccessCode returns every student whose access code equals code,
	// in store order.
	FindByAccessCode(ctx context.Context, code string) ([]model.Student, error)
	// ListPhotos returns the photos of the student with the given store id.
	ListPhotos(ctx context.Context, studentID string) ([]model.Photo, error)
	// UpdateChoice writes the chosen photo fields and a server-side choice
	// timestamp onto the student with the given store id.
	UpdateChoice(ctx context.Context, studentID string, choice model.ChoiceUpdate) error
}

// Controller owns one SelectionSession. It is safe for concurrent use; the
// mutex guards fields only and is never held across a store call.
type Controller struct {
	store RecordStore

	mu               sync.Mutex
	state            model.SessionState
	enteredCode      string
	resolvedRecordID *string
	record           *model.Student
	photos           []model.Photo
	selectionURL     *string
	lastError        *string
	lastNotice       *string
}

// NewController creates a controller in the Idle state.
func NewController(store RecordStore) *Controller {
	return &Controller{
		store:  store,
		state:  model.SessionStateIdle,
		photos: []model.Photo{},
	}
}

// SubmitCode resolves rawCode to a student record and loads its photos.
//
// On failure the returned error is an AppError (validation, not found,
// transient or busy) and, except for busy, its message is also stored as
// LastError.
func (c *Controller) SubmitCode(ctx context.Context, rawCode string) error {
	code := strings.TrimSpace(rawCode)

	c.mu.Lock()
	if c.state.Busy() {
		c.mu.Unlock()
		return apperrors.Busy()
	}
	if code == "" {
		c.lastError = strPtr(MsgEmptyCode)
		c.mu.Unlock()
		return apperrors.ValidationError(MsgEmptyCode)
	}

	c.enteredCode = code
	c.resolvedRecordID = nil
	c.record = nil
	c.photos = []model.Photo{}
	c.selectionURL = nil
	c.lastError = nil
	c.lastNotice = nil
	c.state = model.SessionStateResolving
	c.mu.Unlock()

	// In-flight lookups run to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	record, photos, appErr := c.resolve(ctx, code)

	c.mu.Lock()
	defer c.mu.Unlock()

	if appErr != nil {
		c.lastError = strPtr(appErr.Message)
		c.state = model.SessionStateIdle
		return appErr
	}

	c.resolvedRecordID = strPtr(record.ID)
	c.record = record
	c.photos = photos

	if url, ok := record.StoredChoice(); ok {
		c.selectionURL = strPtr(url)
	} else if len(photos) > 0 {
		c.selectionURL = strPtr(photos[0].URL)
	}

	c.state = model.SessionStateReady
	return nil
}

func (c *Controller) resolve(ctx context.Context, code string) (*model.Student, []model.Photo, *apperrors.AppError) {
	matches, err := c.store.FindByAccessCode(ctx, code)
	if err != nil {
		return nil, nil, apperrors.Transient(MsgFetchFailed, err)
	}
	if len(matches) == 0 {
		return nil, nil, apperrors.NotFound(MsgInvalidCode)
	}

	// Access codes are unique by provisioning; if not, the first match wins.
	record := matches[0].Clone()

	photos, err := c.store.ListPhotos(ctx, record.ID)
	if err != nil {
		return nil, nil, apperrors.Transient(MsgFetchFailed, err)
	}

	sorted := make([]model.Photo, len(photos))
	copy(sorted, photos)
	model.SortPhotosByCapture(sorted)

	return record, sorted, nil
}

// SelectPhoto sets the current selection. The URL is not checked against the
// photo list.
func (c *Controller) SelectPhoto(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.record == nil {
		return apperrors.NoRecordResolved()
	}
	c.selectionURL = strPtr(url)
	return nil
}

// ConfirmSelection persists the current selection onto the resolved record.
//
// It returns (false, nil) without doing anything when the session is not
// Ready or has no record or selection. A store failure returns a transient
// error and leaves the record and selection as they were.
func (c *Controller) ConfirmSelection(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state != model.SessionStateReady || c.record == nil ||
		c.resolvedRecordID == nil || c.selectionURL == nil {
		c.mu.Unlock()
		return false, nil
	}

	c.state = model.SessionStateConfirming
	c.lastError = nil
	c.lastNotice = nil

	recordID := *c.resolvedRecordID
	choice := model.ChoiceUpdate{PhotoURL: *c.selectionURL}
	if photo, ok := model.FindPhotoByURL(c.photos, choice.PhotoURL); ok {
		choice.PhotoName = strPtr(photo.OriginalName)
	}
	c.mu.Unlock()

	err := c.store.UpdateChoice(context.WithoutCancel(ctx), recordID, choice)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = model.SessionStateReady

	if err != nil {
		c.lastError = strPtr(MsgUpdateFailed)
		return false, apperrors.Transient(MsgUpdateFailed, err)
	}

	c.lastNotice = strPtr(MsgConfirmed)
	if c.record != nil {
		mirrored := c.record.Clone()
		mirrored.ChosenPhotoURL = strPtr(choice.PhotoURL)
		mirrored.ChosenPhotoName = cloneStr(choice.PhotoName)
		mirrored.HasChosen = true
		c.record = mirrored
	}
	return true, nil
}

// Snapshot returns a copy of the observable session state.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	photos := make([]model.Photo, len(c.photos))
	copy(photos, c.photos)

	return Session{
		State:               c.state,
		EnteredCode:         c.enteredCode,
		ResolvedRecordID:    cloneStr(c.resolvedRecordID),
		Record:              c.record.Clone(),
		Photos:              photos,
		CurrentSelectionURL: cloneStr(c.selectionURL),
		IsBusy:              c.state.Busy(),
		LastError:           cloneStr(c.lastError),
		LastNotice:          cloneStr(c.lastNotice),
	}
}

func strPtr(s string) *string {
	return &s
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	return strPtr(*p)
}
