package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/BoronSpoon/equipment-reservation/internal/instrumentation"
)

// Config configures a Client.
type Config struct {
	// HTTPClient carries authentication. Required.
	HTTPClient *http.Client
	// Endpoint overrides the API base URL, used against fake servers.
	Endpoint string
	// Location is the zone for all-day dates and inserted events (default UTC).
	Location *time.Location
	Metrics  *instrumentation.Metrics
}

// Client wraps the Google Calendar service
type Client struct {
	svc     *calendar.Service
	loc     *time.Location
	metrics *instrumentation.Metrics
}

// NewClient creates a Calendar client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("http client is required")
	}

	opts := []option.ClientOption{option.WithHTTPClient(cfg.HTTPClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Client{svc: svc, loc: loc, metrics: cfg.Metrics}, nil
}

func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, op)
	err := c.metrics.ObserveGoogleAPI(ctx, instrumentation.ServiceCalendar, op, func() error {
		return fn(ctx)
	})
	instrumentation.EndSpan(span, err)
	return err
}

// ListEvents fetches one page of events. A rejected sync token yields
// ErrSyncTokenInvalid.
func (c *Client) ListEvents(ctx context.Context, calendarID string, opts ListOptions) (*EventPage, error) {
	var res *calendar.Events
	err := c.call(ctx, "list", func(ctx context.Context) error {
		call := c.svc.Events.List(calendarID).Context(ctx).ShowDeleted(opts.ShowDeleted)
		if opts.MaxResults > 0 {
			call = call.MaxResults(opts.MaxResults)
		}
		if opts.SyncToken != "" {
			call = call.SyncToken(opts.SyncToken)
		} else {
			if !opts.TimeMin.IsZero() {
				call = call.TimeMin(opts.TimeMin.Format(time.RFC3339))
			}
			if !opts.TimeMax.IsZero() {
				call = call.TimeMax(opts.TimeMax.Format(time.RFC3339))
			}
		}
		if opts.PageToken != "" {
			call = call.PageToken(opts.PageToken)
		}

		var err error
		res, err = call.Do()
		return err
	})
	if err != nil {
		return nil, classify("list events", err)
	}

	page := &EventPage{
		Items:         make([]Event, 0, len(res.Items)),
		NextPageToken: res.NextPageToken,
		NextSyncToken: res.NextSyncToken,
	}
	for _, item := range res.Items {
		page.Items = append(page.Items, toEvent(item, c.loc))
	}
	return page, nil
}

// GetEvent fetches a single event, including cancelled ones.
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*Event, error) {
	var res *calendar.Event
	err := c.call(ctx, "get", func(ctx context.Context) error {
		var err error
		res, err = c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, classify("get event", err)
	}

	ev := toEvent(res, c.loc)
	return &ev, nil
}

// UpdateEvent patches an event without notifying guests.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, u EventUpdate) (*Event, error) {
	patch := &calendar.Event{}
	if u.Summary != nil {
		patch.Summary = *u.Summary
		patch.ForceSendFields = append(patch.ForceSendFields, "Summary")
	}
	if u.Description != nil {
		patch.Description = *u.Description
		patch.ForceSendFields = append(patch.ForceSendFields, "Description")
	}
	if u.Start != nil {
		patch.Start = toEventDateTime(*u.Start, u.AllDay, c.loc)
	}
	if u.End != nil {
		patch.End = toEventDateTime(*u.End, u.AllDay, c.loc)
	}
	if u.SetGuests {
		// An empty list must still be sent to clear the guests.
		patch.Attendees = toAttendees(append(append([]string(nil), u.Pinned...), u.Guests...))
		patch.ForceSendFields = append(patch.ForceSendFields, "Attendees")
	}

	var res *calendar.Event
	err := c.call(ctx, "patch", func(ctx context.Context) error {
		var err error
		res, err = c.svc.Events.Patch(calendarID, eventID, patch).
			SendUpdates("none").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, classify("update event", err)
	}

	ev := toEvent(res, c.loc)
	return &ev, nil
}

// InsertEvent creates an event from ev's summary, description, times and guests.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, ev Event) (*Event, error) {
	in := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       toEventDateTime(ev.Start, ev.AllDay, c.loc),
		End:         toEventDateTime(ev.End, ev.AllDay, c.loc),
	}
	if len(ev.Guests) > 0 {
		in.Attendees = toAttendees(ev.Guests)
	}

	var res *calendar.Event
	err := c.call(ctx, "insert", func(ctx context.Context) error {
		var err error
		res, err = c.svc.Events.Insert(calendarID, in).SendUpdates("none").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, classify("insert event", err)
	}

	created := toEvent(res, c.loc)
	return &created, nil
}
