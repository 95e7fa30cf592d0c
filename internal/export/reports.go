package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gout/internal/domain"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// ReportService renders bookings and the transaction ledger as xlsx
// workbooks for the back office.
type ReportService struct {
	store  domain.Store
	path   string
	logger *zerolog.Logger
}

func NewReportService(store domain.Store, path string, logger *zerolog.Logger) *ReportService {
	return &ReportService{store: store, path: path, logger: logger}
}

// BookingsReport writes the bookings for a period and returns the file path.
func (s *ReportService) BookingsReport(ctx context.Context, from, to time.Time) (string, error) {
	bookings, err := s.store.ListBookings(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Bookings"
	if err := s.prepareSheet(f, sheet, from, to,
		[]string{"ID", "User", "Tour", "Status", "Idempotency Key", "Created", "Updated"}); err != nil {
		return "", err
	}

	row := 4
	for _, b := range bookings {
		values := []any{b.ID, b.UserID, b.TourID, b.Status, b.IdempotentKey,
			b.CreatedAt.Format(time.RFC3339), b.UpdatedAt.Format(time.RFC3339)}
		if err := setRow(f, sheet, row, values); err != nil {
			return "", err
		}
		row++
	}

	return s.save(f, fmt.Sprintf("bookings_%s_to_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02")))
}

// TransactionsReport writes the ledger for a period and returns the file path.
func (s *ReportService) TransactionsReport(ctx context.Context, from, to time.Time) (string, error) {
	transactions, err := s.store.ListTransactions(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("error getting transactions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Transactions"
	if err := s.prepareSheet(f, sheet, from, to,
		[]string{"ID", "Type", "From Wallet", "To Wallet", "Booking", "Amount (cents)", "Idempotency Key", "Created"}); err != nil {
		return "", err
	}

	row := 4
	var total int64
	for _, t := range transactions {
		values := []any{t.ID, t.Type, t.FromWalletID, t.ToWalletID, t.BookingID,
			t.AmountCents, t.IdempotentKey, t.CreatedAt.Format(time.RFC3339)}
		if err := setRow(f, sheet, row, values); err != nil {
			return "", err
		}
		total += t.AmountCents
		row++
	}

	totalCell, _ := excelize.CoordinatesToCellName(6, row+1)
	labelCell, _ := excelize.CoordinatesToCellName(5, row+1)
	_ = f.SetCellValue(sheet, labelCell, "Total")
	_ = f.SetCellValue(sheet, totalCell, total)

	return s.save(f, fmt.Sprintf("transactions_%s_to_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02")))
}

func (s *ReportService) prepareSheet(f *excelize.File, sheet string, from, to time.Time, headers []string) error {
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("Period: %s - %s",
		from.Format("02.01.2006"), to.Format("02.01.2006")))

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		_ = f.SetCellValue(sheet, cell, h)
		_ = f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	lastCol, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.MergeCell(sheet, "A1", lastCol)
	_ = f.SetColWidth(sheet, "A", "H", 22)

	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReportService) save(f *excelize.File, fileName string) (string, error) {
	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	filePath := filepath.Join(s.path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	s.logger.Info().Str("file_path", filePath).Msg("report created")
	return filePath, nil
}
