package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yearbook/picker-server-go/internal/audit"
	apperrors "github.com/yearbook/picker-server-go/internal/errors"
	"github.com/yearbook/picker-server-go/internal/metrics"
	"github.com/yearbook/picker-server-go/internal/model"
	"github.com/yearbook/picker-server-go/internal/selection"
	"github.com/yearbook/picker-server-go/internal/sse"
	"github.com/yearbook/picker-server-go/internal/util"
)

// EventChoiceConfirmed is the event type published on sse.TopicChoices after
// a choice is stored.
const EventChoiceConfirmed = "choice_confirmed"

// EventPublisher delivers events to admin subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, topic, eventType string, payload any) error
}

// ClientInfo identifies the caller in audit entries.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// ChoiceConfirmedEvent is published after a choice is written to the store.
type ChoiceConfirmedEvent struct {
	StudentID   string    `json:"studentId"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	PhotoURL    string    `json:"photoUrl"`
	PhotoName   *string   `json:"photoName"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

// SelectionService runs controller operations for a browser session and
// records what happened.
type SelectionService struct {
	metrics   *metrics.Metrics
	publisher EventPublisher
}

func NewSelectionService(m *metrics.Metrics, publisher EventPublisher) *SelectionService {
	return &SelectionService{metrics: m, publisher: publisher}
}

func (s *SelectionService) SubmitCode(ctx context.Context, sess *BrowserSession, rawCode string, client ClientInfo) (selection.Session, error) {
	err := sess.Controller.SubmitCode(ctx, rawCode)
	snap := sess.Controller.Snapshot()

	outcome := outcomeOf(err)
	s.metrics.ObserveCodeLookup(outcome)

	event := audit.Event{
		SessionID: sess.ID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
	}
	if err == nil {
		event.Type = audit.EventCodeAccepted
		event.StudentID = *snap.ResolvedRecordID
		event.Details = map[string]interface{}{
			"photoCount": len(snap.Photos),
			"hasChosen":  snap.Record.HasChosen,
		}
	} else {
		event.Type = audit.EventCodeRejected
		event.Details = map[string]interface{}{
			"code":    util.MaskAccessCode(strings.TrimSpace(rawCode)),
			"outcome": string(outcome),
		}
		if outcome == model.OutcomeTransient {
			event.Details["error"] = err
		}
	}
	audit.Log(ctx, event)

	return snap, err
}

func (s *SelectionService) SelectPhoto(sess *BrowserSession, url string) (selection.Session, error) {
	err := sess.Controller.SelectPhoto(url)
	return sess.Controller.Snapshot(), err
}

func (s *SelectionService) ConfirmSelection(ctx context.Context, sess *BrowserSession, client ClientInfo) (selection.Session, bool, error) {
	confirmed, err := sess.Controller.ConfirmSelection(ctx)
	snap := sess.Controller.Snapshot()

	switch {
	case err != nil:
		s.metrics.ObserveConfirmation(model.OutcomeTransient)
		event := audit.Event{
			Type:      audit.EventChoiceFailed,
			SessionID: sess.ID,
			IP:        client.IP,
			UserAgent: client.UserAgent,
			Details:   map[string]interface{}{"error": err},
		}
		if snap.ResolvedRecordID != nil {
			event.StudentID = *snap.ResolvedRecordID
		}
		audit.Log(ctx, event)
		return snap, false, err

	case !confirmed:
		s.metrics.ObserveConfirmation(model.OutcomeNoop)
		return snap, false, nil
	}

	s.metrics.ObserveConfirmation(model.OutcomeSuccess)

	record := snap.Record
	payload := ChoiceConfirmedEvent{
		StudentID:   record.ID,
		FirstName:   record.FirstName,
		LastName:    record.LastName,
		PhotoURL:    *record.ChosenPhotoURL,
		PhotoName:   record.ChosenPhotoName,
		ConfirmedAt: time.Now().UTC(),
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventChoiceConfirmed,
		SessionID: sess.ID,
		StudentID: record.ID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Details:   map[string]interface{}{"photoUrl": payload.PhotoURL},
	})

	// Best effort: the choice is already stored.
	if err := s.publisher.Publish(context.WithoutCancel(ctx), sse.TopicChoices, EventChoiceConfirmed, payload); err != nil {
		log.Warn().Err(err).Str("studentId", record.ID).Msg("failed to publish choice confirmation")
	}

	return snap, true, nil
}

func outcomeOf(err error) model.Outcome {
	if err == nil {
		return model.OutcomeSuccess
	}
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		return model.OutcomeValidation
	case apperrors.ErrCodeNotFound:
		return model.OutcomeNotFound
	case apperrors.ErrCodeBusy:
		return model.OutcomeBusy
	default:
		return model.OutcomeTransient
	}
}
