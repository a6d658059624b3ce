package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/bdougie/jobtrace/internal/models"
)

// ErrSheetsConfig is returned when the spreadsheet id or credentials are missing.
var ErrSheetsConfig = errors.New("Google Sheets env variables not set")

// SheetHeaders is the header row written to an empty spreadsheet.
var SheetHeaders = []interface{}{
	"Timestamp",
	"Company Name",
	"Role",
	"Recruiter Name",
	"Action Type",
	"Channel",
	"Source Confidence",
	"Notes",
}

type sheetValues interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
	Update(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error
	Append(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error
}

// SheetsSink appends actions as rows of a Google spreadsheet.
type SheetsSink struct {
	values  sheetValues
	sheetID string
	logger  *slog.Logger
}

// NewSheetsSink authenticates with a service account file and makes sure the
// header row exists.
func NewSheetsSink(ctx context.Context, sheetID, credentialsFile string, logger *slog.Logger) (*SheetsSink, error) {
	if strings.TrimSpace(sheetID) == "" || strings.TrimSpace(credentialsFile) == "" {
		return nil, ErrSheetsConfig
	}
	srv, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("init sheets client: %w", err)
	}
	return newSheetsSink(ctx, &sheetsAPI{srv: srv}, sheetID, logger)
}

func newSheetsSink(ctx context.Context, values sheetValues, sheetID string, logger *slog.Logger) (*SheetsSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SheetsSink{values: values, sheetID: sheetID, logger: logger.With("component", "sheets_sink")}
	if err := s.ensureHeaders(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("Google Sheets client initialized")
	return s, nil
}

func (s *SheetsSink) ensureHeaders(ctx context.Context) error {
	existing, err := s.values.Get(ctx, s.sheetID, "A1:I1")
	if err != nil {
		return fmt.Errorf("read header row: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Info("headers already exist")
		return nil
	}
	s.logger.Info("headers not found, creating header row")
	if err := s.values.Update(ctx, s.sheetID, "A1:I1", [][]interface{}{SheetHeaders}); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	return nil
}

func (s *SheetsSink) AppendActions(ctx context.Context, actions []models.JobAction) error {
	if len(actions) == 0 {
		s.logger.Info("no valid job actions to write")
		return nil
	}
	if err := s.values.Append(ctx, s.sheetID, "A:H", SheetRows(actions)); err != nil {
		return fmt.Errorf("%w: %v", ErrSink, err)
	}
	s.logger.Info("wrote job actions to Google Sheets", "count", len(actions))
	return nil
}

func (s *SheetsSink) Close() error { return nil }

// SheetRows renders actions in header order. A missing confidence is an
// empty cell.
func SheetRows(actions []models.JobAction) [][]interface{} {
	rows := make([][]interface{}, 0, len(actions))
	for _, a := range actions {
		var confidence interface{} = ""
		if a.Confidence != nil {
			confidence = *a.Confidence
		}
		rows = append(rows, []interface{}{
			a.Timestamp.Format("2006-01-02T15:04:05.000000Z07:00"),
			a.CompanyName,
			a.Role,
			a.RecruiterName,
			a.ActionType,
			a.Channel,
			confidence,
			a.Notes,
		})
	}
	return rows
}

type sheetsAPI struct {
	srv *sheets.Service
}

func (a *sheetsAPI) Get(ctx context.Context, id, rng string) ([][]interface{}, error) {
	resp, err := a.srv.Spreadsheets.Values.Get(id, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (a *sheetsAPI) Update(ctx context.Context, id, rng string, rows [][]interface{}) error {
	_, err := a.srv.Spreadsheets.Values.Update(id, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (a *sheetsAPI) Append(ctx context.Context, id, rng string, rows [][]interface{}) error {
	_, err := a.srv.Spreadsheets.Values.Append(id, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}
