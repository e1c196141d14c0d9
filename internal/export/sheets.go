// Package export appends recorded stock takes to a Google Sheets spreadsheet.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/erazemk/stocktaker/internal/model"
)

// SheetsConfig selects the target spreadsheet and the service account used to
// write to it. CredentialsJSON takes precedence over CredentialsFile.
type SheetsConfig struct {
	SpreadsheetID   string
	Range           string
	CredentialsJSON string
	CredentialsFile string
}

// Exporter receives stock takes after they are stored.
type Exporter interface {
	ExportStockTake(ctx context.Context, take *model.StockTake, products map[int64]model.Product, user string) error
}

// Nop discards exports.
type Nop struct{}

func (Nop) ExportStockTake(context.Context, *model.StockTake, map[int64]model.Product, string) error {
	return nil
}

// Sheets appends one row per counted product.
type Sheets struct {
	service       *sheets.Service
	spreadsheetID string
	writeRange    string
}

// NewSheets authenticates with the configured service account.
func NewSheets(ctx context.Context, cfg SheetsConfig) (*Sheets, error) {
	credentialsJSON := []byte(cfg.CredentialsJSON)
	if len(credentialsJSON) == 0 {
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading google credentials: %w", err)
		}
		credentialsJSON = b
	}

	credentials, err := google.CredentialsFromJSON(ctx, credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("loading google credentials: %w", err)
	}

	client := oauth2.NewClient(ctx, credentials.TokenSource)
	service, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}

	return NewSheetsWithService(service, cfg.SpreadsheetID, cfg.Range), nil
}

// NewSheetsWithService wraps an existing Sheets service.
func NewSheetsWithService(service *sheets.Service, spreadsheetID, writeRange string) *Sheets {
	if writeRange == "" {
		writeRange = "Stock!A1"
	}
	return &Sheets{service: service, spreadsheetID: spreadsheetID, writeRange: writeRange}
}

func (s *Sheets) ExportStockTake(ctx context.Context, take *model.StockTake, products map[int64]model.Product, user string) error {
	rows := Rows(take, products, user)
	if len(rows) == 0 {
		return nil
	}

	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, s.writeRange, &sheets.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("appending stock take %d: %w", take.ID, err)
	}

	slog.Info("stock take exported", "stocktake", take.ID, "rows", len(rows))
	return nil
}

// Rows builds the spreadsheet rows for a stock take, ordered by product id:
// date, category, product id, product name, sage code, count, user.
func Rows(take *model.StockTake, products map[int64]model.Product, user string) [][]any {
	ids := make([]int64, 0, len(take.Take))
	for id := range take.Take {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	date := take.Date.Format("2006-01-02")
	rows := make([][]any, 0, len(ids))
	for _, id := range ids {
		p := products[id]
		rows = append(rows, []any{
			date,
			take.ProductCategory,
			id,
			p.Name,
			p.SageCode,
			take.Take[id].String(),
			user,
		})
	}
	return rows
}
