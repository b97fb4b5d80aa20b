package sheets

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/BoronSpoon/equipment-reservation/internal/instrumentation"
)

// Config configures a Client.
type Config struct {
	HTTPClient *http.Client
	Endpoint   string
	Metrics    *instrumentation.Metrics
}

// Client wraps the Google Sheets service
type Client struct {
	svc     *sheets.Service
	metrics *instrumentation.Metrics
}

// NewClient creates a Sheets client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("http client is required")
	}

	opts := []option.ClientOption{option.WithHTTPClient(cfg.HTTPClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}
	return &Client{svc: svc, metrics: cfg.Metrics}, nil
}

func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceSheets, op)
	err := c.metrics.ObserveGoogleAPI(ctx, instrumentation.ServiceSheets, op, func() error {
		return fn(ctx)
	})
	instrumentation.EndSpan(span, err)
	return err
}

// Spreadsheet binds the client to one spreadsheet.
func (c *Client) Spreadsheet(id string) *Spreadsheet {
	return &Spreadsheet{client: c, id: id}
}

// CreateSpreadsheet creates a spreadsheet with a single sheet holding values
// and returns its id.
func (c *Client) CreateSpreadsheet(ctx context.Context, title, sheetTitle string, values [][]any) (string, error) {
	var created *sheets.Spreadsheet
	err := c.call(ctx, "create", func(ctx context.Context) error {
		var err error
		created, err = c.svc.Spreadsheets.Create(&sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{Title: title},
			Sheets: []*sheets.Sheet{
				{Properties: &sheets.SheetProperties{Title: sheetTitle}},
			},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create spreadsheet %q: %w", title, err)
	}

	if len(values) > 0 {
		rng := Range(sheetTitle, 1, 1, maxWidth(values), len(values))
		if err := c.Spreadsheet(created.SpreadsheetId).WriteRange(ctx, rng, values); err != nil {
			return created.SpreadsheetId, err
		}
	}
	return created.SpreadsheetId, nil
}

// Spreadsheet is a Client bound to one spreadsheet id.
type Spreadsheet struct {
	client *Client
	id     string
}

// ID returns the spreadsheet id.
func (s *Spreadsheet) ID() string {
	return s.id
}

// Values reads a range as formatted strings. Rows and trailing cells that
// are empty may be missing.
func (s *Spreadsheet) Values(ctx context.Context, rng string) ([][]string, error) {
	var res *sheets.ValueRange
	err := s.client.call(ctx, "values.get", func(ctx context.Context) error {
		var err error
		res, err = s.client.svc.Spreadsheets.Values.Get(s.id, rng).
			ValueRenderOption("FORMATTED_VALUE").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rng, err)
	}

	out := make([][]string, len(res.Values))
	for i, row := range res.Values {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				out[i][j] = fmt.Sprint(cell)
			}
		}
	}
	return out, nil
}

// WriteRange overwrites a range, parsing values as if typed by a user.
func (s *Spreadsheet) WriteRange(ctx context.Context, rng string, values [][]any) error {
	err := s.client.call(ctx, "values.update", func(ctx context.Context) error {
		_, err := s.client.svc.Spreadsheets.Values.Update(s.id, rng, &sheets.ValueRange{Values: values}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", rng, err)
	}
	return nil
}

// CountNonEmpty returns the number of non-empty cells in one column of a sheet.
func (s *Spreadsheet) CountNonEmpty(ctx context.Context, sheet string, col int) (int, error) {
	rows, err := s.Values(ctx, Range(sheet, col, 0, col, 0))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, row := range rows {
		if len(row) > 0 && row[0] != "" {
			n++
		}
	}
	return n, nil
}

// SheetTitles maps sheet ids to titles.
func (s *Spreadsheet) SheetTitles(ctx context.Context) (map[int64]string, error) {
	var res *sheets.Spreadsheet
	err := s.client.call(ctx, "get", func(ctx context.Context) error {
		var err error
		res, err = s.client.svc.Spreadsheets.Get(s.id).
			Fields(googleapi.Field("sheets.properties(sheetId,title)")).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet metadata: %w", err)
	}

	titles := make(map[int64]string, len(res.Sheets))
	for _, sh := range res.Sheets {
		if sh.Properties != nil {
			titles[sh.Properties.SheetId] = sh.Properties.Title
		}
	}
	return titles, nil
}

// DeleteRows removes count rows starting at the 1-based row start, shifting
// the rows below up.
func (s *Spreadsheet) DeleteRows(ctx context.Context, sheet string, start, count int) error {
	if count <= 0 {
		return nil
	}

	titles, err := s.SheetTitles(ctx)
	if err != nil {
		return err
	}
	sheetID, ok := int64(-1), false
	for id, title := range titles {
		if title == sheet {
			sheetID, ok = id, true
			break
		}
	}
	if !ok {
		return fmt.Errorf("sheet %q not found", sheet)
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(start - 1),
					EndIndex:        int64(start - 1 + count),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}

	err = s.client.call(ctx, "batchUpdate", func(ctx context.Context) error {
		_, err := s.client.svc.Spreadsheets.BatchUpdate(s.id, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete rows %d-%d of %s: %w", start, start+count-1, sheet, err)
	}
	return nil
}

func maxWidth(values [][]any) int {
	w := 1
	for _, row := range values {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}
