package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeCSV  = "text/csv"
)

type fileStore interface {
	ListFiles(ctx context.Context, folderID string) ([]*File, error)
	DownloadFile(ctx context.Context, fileID string, w io.Writer) error
}

// rowParser turns a sheet into events; seasonal.ParseEventRows in production.
type rowParser func(rows [][]string) ([]domain.SeasonalEvent, []error)

// Calendar reads seasonal events from every CSV and XLSX sheet of a Drive
// folder.
type Calendar struct {
	files    fileStore
	folderID string
	parse    rowParser
}

func NewCalendar(service *Service, folderID string, parse func([][]string) ([]domain.SeasonalEvent, []error)) *Calendar {
	return &Calendar{files: service, folderID: folderID, parse: parse}
}

func sheetKind(f *File) string {
	ext := strings.ToLower(filepath.Ext(f.Name))
	switch {
	case f.MimeType == mimeXLSX || ext == ".xlsx":
		return "xlsx"
	case f.MimeType == mimeCSV || ext == ".csv":
		return "csv"
	}
	return ""
}

// Events downloads every sheet and merges their events. Bad rows are logged
// and skipped; a sheet that cannot be read fails the call.
func (c *Calendar) Events(ctx context.Context) ([]domain.SeasonalEvent, error) {
	files, err := c.files.ListFiles(ctx, c.folderID)
	if err != nil {
		return nil, err
	}

	var events []domain.SeasonalEvent
	for _, f := range files {
		kind := sheetKind(f)
		if kind == "" {
			continue
		}

		var buf bytes.Buffer
		if err := c.files.DownloadFile(ctx, f.ID, &buf); err != nil {
			return nil, fmt.Errorf("download %s: %w", f.Name, err)
		}

		var rows [][]string
		if kind == "xlsx" {
			rows, err = readXLSXRows(&buf)
		} else {
			rows, err = readCSVRows(&buf)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}

		parsed, rowErrs := c.parse(rows)
		if len(rowErrs) > 0 {
			log.Warn().Str("file", f.Name).Err(errors.Join(rowErrs...)).Msg("skipped invalid calendar rows")
		}
		events = append(events, parsed...)
	}

	return events, nil
}
