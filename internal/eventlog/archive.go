package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BoronSpoon/equipment-reservation/internal/logging"
	"github.com/BoronSpoon/equipment-reservation/internal/sheets"
)

// archiveWidth is the rightmost column copied into an archive (ZZ).
const archiveWidth = 702

// SpreadsheetCreator creates standalone spreadsheets.
type SpreadsheetCreator interface {
	CreateSpreadsheet(ctx context.Context, title, sheetTitle string, values [][]any) (string, error)
}

// FolderMover files a spreadsheet into a Drive folder.
type FolderMover interface {
	MoveToFolder(ctx context.Context, fileID, folderID string) error
}

// Archiver copies overflowing log rows into backup spreadsheets.
type Archiver struct {
	creator  SpreadsheetCreator
	mover    FolderMover
	folderID string
	now      func() time.Time
	logger   *slog.Logger
}

// NewArchiver creates an Archiver. mover may be nil, in which case backups
// stay wherever the creator puts them.
func NewArchiver(creator SpreadsheetCreator, mover FolderMover, folderID string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		creator:  creator,
		mover:    mover,
		folderID: folderID,
		now:      time.Now,
		logger:   logger,
	}
}

// Archive copies the header and the oldest n data rows of sheet into a new
// spreadsheet, then deletes those rows from the sheet. It returns the id of
// the backup spreadsheet.
func (a *Archiver) Archive(ctx context.Context, book Book, sheet string, n int) (string, error) {
	if n <= 0 {
		return "", nil
	}

	rows, err := book.Values(ctx, sheets.Range(sheet, 1, 1, archiveWidth, n+1))
	if err != nil {
		return "", fmt.Errorf("failed to read rows to archive: %w", err)
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = make([]any, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}

	title := fmt.Sprintf("backup-%s-%s", sheet, a.now().UTC().Format("20060102T150405Z"))
	id, err := a.creator.CreateSpreadsheet(ctx, title, sheet, values)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	if a.mover != nil && a.folderID != "" {
		if err := a.mover.MoveToFolder(ctx, id, a.folderID); err != nil {
			// Rows are already copied; delete them anyway.
			a.logger.Warn("failed to move archive into folder",
				logging.Sheet(sheet),
				slog.String("archive_id", id),
				logging.Err(err))
		}
	}

	if err := book.DeleteRows(ctx, sheet, 2, n); err != nil {
		return id, fmt.Errorf("failed to delete archived rows: %w", err)
	}

	a.logger.Info("archived log rows",
		logging.Sheet(sheet),
		slog.String("archive_id", id),
		slog.String("archive_title", title),
		slog.Int("rows", n))
	return id, nil
}
