package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BoronSpoon/equipment-reservation/internal/calendar"
	"github.com/BoronSpoon/equipment-reservation/internal/directory"
	"github.com/BoronSpoon/equipment-reservation/internal/instrumentation"
	"github.com/BoronSpoon/equipment-reservation/internal/logging"
	"github.com/BoronSpoon/equipment-reservation/internal/syncengine"
)

// Notification kinds recorded in metrics.
const (
	KindCalendar  = "calendar"
	KindDirectory = "directory"
)

// Notification outcomes recorded in metrics and returned to the caller.
const (
	statusQueued    = "queued"
	statusCoalesced = "coalesced"
	statusIgnored   = "ignored"
	statusRejected  = "rejected"
	statusInvalid   = "invalid"
)

// Google push channel headers.
const (
	headerChannelToken  = "X-Goog-Channel-Token"
	headerResourceState = "X-Goog-Resource-State"
	resourceStateSync   = "sync"
)

const maxNotificationBody = 64 << 10

// Syncer is the part of the sync engine reachable from notifications.
type Syncer interface {
	RunSync(ctx context.Context, writeCalendarID string, fullSync bool) (*syncengine.Result, error)
	OnSubscriptionChange(ctx context.Context, readCalendarID string, subscriberIndex int) (*syncengine.Result, error)
	LoadConditionRow(ctx context.Context, sheet string, row int) (syncengine.ConditionRow, error)
	ApplyConditionRow(ctx context.Context, row syncengine.ConditionRow) (*calendar.Event, error)
}

// Directory provides subscription snapshots.
type Directory interface {
	Snapshot(ctx context.Context) (*directory.Snapshot, error)
	RefreshNames(ctx context.Context, index int) error
}

// NotificationConfig configures a NotificationHandler.
type NotificationConfig struct {
	Syncer          Syncer
	Directory       Directory
	Dispatcher      *Dispatcher
	UsersSheet      string
	PropertiesSheet string
	// Secret, when set, must be presented as a bearer token on directory
	// notifications.
	Secret  string
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// NotificationHandler turns calendar and spreadsheet edit notifications into
// dispatcher jobs.
type NotificationHandler struct {
	cfg    NotificationConfig
	logger *slog.Logger
}

// DirectoryEdit is the body of a directory notification: the edited cell of
// the directory spreadsheet, 1-based.
type DirectoryEdit struct {
	Sheet  string `json:"sheet"`
	Row    int    `json:"row"`
	Column int    `json:"column"`
}

type notificationResponse struct {
	Status string `json:"status"`
	Job    string `json:"job,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(cfg NotificationConfig) *NotificationHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{cfg: cfg, logger: logger.With(logging.Operation("notify"))}
}

// Register mounts the notification endpoints on mux.
func (h *NotificationHandler) Register(mux *http.ServeMux) {
	mux.Handle("POST /notifications/calendar", h.CalendarHandler())
	mux.Handle("POST /notifications/directory", h.DirectoryHandler())
}

// CalendarHandler handles Google Calendar push notifications. The channel
// token carries the write calendar id.
func (h *NotificationHandler) CalendarHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		calendarID := r.Header.Get(headerChannelToken)
		if calendarID == "" {
			h.respond(ctx, w, KindCalendar, http.StatusBadRequest, notificationResponse{Status: statusInvalid, Error: "missing channel token"})
			return
		}
		if r.Header.Get(headerResourceState) == resourceStateSync {
			h.respond(ctx, w, KindCalendar, http.StatusOK, notificationResponse{Status: statusIgnored})
			return
		}

		h.submit(ctx, w, KindCalendar, Job{
			Key:  "calendar:" + calendarID,
			Kind: "sync",
			Run: func(ctx context.Context) error {
				_, err := h.cfg.Syncer.RunSync(ctx, calendarID, false)
				return err
			},
		})
	})
}

// DirectoryHandler handles spreadsheet edit notifications.
func (h *NotificationHandler) DirectoryHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !h.authorized(r) {
			h.respond(ctx, w, KindDirectory, http.StatusUnauthorized, notificationResponse{Status: statusRejected, Error: "unauthorized"})
			return
		}

		var edit DirectoryEdit
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNotificationBody))
		if err := dec.Decode(&edit); err != nil {
			h.respond(ctx, w, KindDirectory, http.StatusBadRequest, notificationResponse{Status: statusInvalid, Error: "invalid body"})
			return
		}
		if edit.Sheet == "" || edit.Row < 1 || edit.Column < 1 {
			h.respond(ctx, w, KindDirectory, http.StatusBadRequest, notificationResponse{Status: statusInvalid, Error: "sheet, row and column are required"})
			return
		}

		job, ok := h.route(edit)
		if !ok {
			h.respond(ctx, w, KindDirectory, http.StatusOK, notificationResponse{Status: statusIgnored})
			return
		}
		h.submit(ctx, w, KindDirectory, job)
	})
}

// route maps an edited cell to the job it triggers. Header rows and the
// properties sheet need nothing: every pass rebuilds the directory snapshot.
func (h *NotificationHandler) route(edit DirectoryEdit) (Job, bool) {
	if edit.Row < 2 || edit.Sheet == h.cfg.PropertiesSheet {
		return Job{}, false
	}
	index := edit.Row - 2

	if edit.Sheet == h.cfg.UsersSheet {
		switch {
		case edit.Column >= directory.FirstEquipmentColumn:
			return Job{
				Key:  fmt.Sprintf("repair:%d", index),
				Kind: "repair",
				Run: func(ctx context.Context) error {
					_, err := h.cfg.Syncer.OnSubscriptionChange(ctx, "", index)
					return err
				},
			}, true
		case edit.Column == directory.FullNameColumn:
			return Job{
				Key:  fmt.Sprintf("rename:%d", index),
				Kind: "sync",
				Run:  func(ctx context.Context) error { return h.resync(ctx, index) },
			}, true
		}
		return Job{}, false
	}

	return Job{
		Key:  fmt.Sprintf("condition:%s:%d", edit.Sheet, edit.Row),
		Kind: "apply-condition",
		Run:  func(ctx context.Context) error { return h.applyCondition(ctx, edit.Sheet, edit.Row) },
	}, true
}

// resync rederives the user names after a full name change and retitles
// every event of the user at index.
func (h *NotificationHandler) resync(ctx context.Context, index int) error {
	if err := h.cfg.Directory.RefreshNames(ctx, index); err != nil {
		return fmt.Errorf("failed to refresh user names: %w", err)
	}
	snap, err := h.cfg.Directory.Snapshot(ctx)
	if err != nil {
		return err
	}
	sub, err := snap.At(index)
	if err != nil {
		return err
	}
	if sub.IsAllEvents() {
		return nil
	}
	_, err = h.cfg.Syncer.RunSync(ctx, sub.WriteCalendarID, true)
	return err
}

func (h *NotificationHandler) applyCondition(ctx context.Context, sheet string, row int) error {
	cond, err := h.cfg.Syncer.LoadConditionRow(ctx, sheet, row)
	if err != nil {
		return err
	}
	ev, err := h.cfg.Syncer.ApplyConditionRow(ctx, cond)
	switch {
	case errors.Is(err, syncengine.ErrUnknownEquipment), errors.Is(err, syncengine.ErrIncompleteRow):
		h.logger.Debug("condition edit ignored", logging.Sheet(sheet), slog.Int("row", row), logging.Err(err))
		return nil
	case err != nil:
		return err
	}
	h.logger.Info("condition row applied", logging.Sheet(sheet), slog.Int("row", row), logging.Event(ev.ID))
	return nil
}

func (h *NotificationHandler) submit(ctx context.Context, w http.ResponseWriter, kind string, job Job) {
	coalesced, err := h.cfg.Dispatcher.Submit(job)
	switch {
	case err != nil:
		h.logger.Warn("notification rejected", slog.String("job", job.Key), logging.Err(err))
		h.respond(ctx, w, kind, http.StatusServiceUnavailable, notificationResponse{Status: statusRejected, Job: job.Key, Error: err.Error()})
	case coalesced:
		h.respond(ctx, w, kind, http.StatusAccepted, notificationResponse{Status: statusCoalesced, Job: job.Key})
	default:
		h.logger.Debug("notification queued", slog.String("job", job.Key))
		h.respond(ctx, w, kind, http.StatusAccepted, notificationResponse{Status: statusQueued, Job: job.Key})
	}
}

func (h *NotificationHandler) authorized(r *http.Request) bool {
	if h.cfg.Secret == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.Secret)) == 1
}

func (h *NotificationHandler) respond(ctx context.Context, w http.ResponseWriter, kind string, code int, resp notificationResponse) {
	h.cfg.Metrics.RecordNotification(ctx, kind, resp.Status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
