package drive

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/BoronSpoon/equipment-reservation/internal/instrumentation"
)

const (
	// FolderMimeType is the MIME type for Google Drive folders
	FolderMimeType = "application/vnd.google-apps.folder"
)

// Config configures a Client.
type Config struct {
	HTTPClient *http.Client
	Endpoint   string
	Metrics    *instrumentation.Metrics
}

// Client wraps the Google Drive API service
type Client struct {
	service *drive.Service
	metrics *instrumentation.Metrics
}

// NewClient creates a new Google Drive client
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("http client is required")
	}

	opts := []option.ClientOption{option.WithHTTPClient(cfg.HTTPClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	return &Client{service: driveService, metrics: cfg.Metrics}, nil
}

func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceDrive, op)
	err := c.metrics.ObserveGoogleAPI(ctx, instrumentation.ServiceDrive, op, func() error {
		return fn(ctx)
	})
	instrumentation.EndSpan(span, err)
	return err
}

// MoveToFolder moves a file into folderID, detaching it from all current parents.
func (c *Client) MoveToFolder(ctx context.Context, fileID, folderID string) error {
	if fileID == "" || folderID == "" {
		return fmt.Errorf("file ID and folder ID are required")
	}

	var file *drive.File
	err := c.call(ctx, "files.get", func(ctx context.Context) error {
		var err error
		file, err = c.service.Files.Get(fileID).
			Fields("id, parents").
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to get file %s: %w", fileID, err)
	}

	var remove []string
	for _, p := range file.Parents {
		if p != folderID {
			remove = append(remove, p)
		}
	}
	if len(remove) == 0 && len(file.Parents) > 0 {
		return nil
	}

	err = c.call(ctx, "files.update", func(ctx context.Context) error {
		call := c.service.Files.Update(fileID, &drive.File{}).
			AddParents(folderID).
			SupportsAllDrives(true).
			Fields("id, parents")
		if len(remove) > 0 {
			call = call.RemoveParents(strings.Join(remove, ","))
		}
		_, err := call.Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to move file %s to folder %s: %w", fileID, folderID, err)
	}
	return nil
}
