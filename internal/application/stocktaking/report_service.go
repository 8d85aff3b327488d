package stocktaking

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
	"github.com/wms/stocktaking/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DiscrepancyRow is one pallet whose count differs from the system
type DiscrepancyRow struct {
	AreaCode     string
	LocationCode string
	PalletCode   string
	GoodsCode    string
	GoodsName    string
	BatchNumber  string
	Expected     *int
	Actual       *int
	Difference   int
	// DiffRatio is Difference relative to Expected; zero when nothing was expected
	DiffRatio decimal.Decimal
	Status    string
	Note      string
}

// DiscrepancyReport lists every discrepancy of a sheet
type DiscrepancyReport struct {
	SheetCode   string
	SheetStatus string
	GeneratedAt time.Time
	Locations   int
	Counted     int
	Rows        []DiscrepancyRow
}

// ReportWriter renders a discrepancy report into a document
type ReportWriter interface {
	ContentType() string
	Extension() string
	Write(w io.Writer, report *DiscrepancyReport) error
}

// ObjectStorage keeps exported reports for later download
type ObjectStorage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	GenerateDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// ExportedReport is a rendered report, optionally uploaded
type ExportedReport struct {
	FileName    string
	ContentType string
	Content     []byte
	StorageKey  string
	DownloadURL string
}

// ReportService builds discrepancy reports of a sheet
type ReportService struct {
	sheets    stocktaking.SheetRepository
	locations stocktaking.LocationRepository
	writer    ReportWriter
	storage   ObjectStorage
	urlExpiry time.Duration
	logger    *zap.Logger
}

// NewReportService creates a new ReportService. storage may be nil, in which
// case reports are only returned inline.
func NewReportService(
	sheets stocktaking.SheetRepository,
	locations stocktaking.LocationRepository,
	writer ReportWriter,
	storage ObjectStorage,
	urlExpiry time.Duration,
	logger *zap.Logger,
) *ReportService {
	if urlExpiry <= 0 {
		urlExpiry = 15 * time.Minute
	}
	return &ReportService{
		sheets:    sheets,
		locations: locations,
		writer:    writer,
		storage:   storage,
		urlExpiry: urlExpiry,
		logger:    nopIfNil(logger).Named("report_service"),
	}
}

// BuildDiscrepancies collects every pallet that is missing, surplus or
// counted with a different quantity
func (s *ReportService) BuildDiscrepancies(ctx context.Context, sheetID uuid.UUID) (*DiscrepancyReport, error) {
	sheet, err := s.sheets.FindByID(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	locations, err := s.locations.FindBySheet(ctx, sheetID, nil)
	if err != nil {
		return nil, err
	}

	report := &DiscrepancyReport{
		SheetCode:   sheet.Code,
		SheetStatus: sheet.Status.String(),
		GeneratedAt: time.Now(),
		Locations:   len(locations),
		Rows:        make([]DiscrepancyRow, 0),
	}
	for i := range locations {
		loc := &locations[i]
		if loc.Status == stocktaking.LocationStatusCounted {
			report.Counted++
		}
		for j := range loc.Pallets {
			if row, ok := discrepancyOf(loc, &loc.Pallets[j]); ok {
				report.Rows = append(report.Rows, row)
			}
		}
	}
	sort.SliceStable(report.Rows, func(i, j int) bool {
		a, b := report.Rows[i], report.Rows[j]
		if a.AreaCode != b.AreaCode {
			return a.AreaCode < b.AreaCode
		}
		if a.LocationCode != b.LocationCode {
			return a.LocationCode < b.LocationCode
		}
		return a.PalletCode < b.PalletCode
	})
	return report, nil
}

func discrepancyOf(loc *stocktaking.Location, p *stocktaking.Pallet) (DiscrepancyRow, bool) {
	switch p.Status {
	case stocktaking.PalletStatusMissing, stocktaking.PalletStatusSurplus:
	case stocktaking.PalletStatusMatched:
		if p.Difference() == 0 {
			return DiscrepancyRow{}, false
		}
	default:
		return DiscrepancyRow{}, false
	}

	diff := p.Difference()
	ratio := decimal.Zero
	if p.ExpectedPackageQuantity != nil && *p.ExpectedPackageQuantity > 0 {
		ratio = decimal.NewFromInt(int64(diff)).
			Div(decimal.NewFromInt(int64(*p.ExpectedPackageQuantity))).
			Round(4)
	}
	return DiscrepancyRow{
		AreaCode:     loc.AreaCode,
		LocationCode: loc.LocationCode,
		PalletCode:   p.PalletCode,
		GoodsCode:    p.GoodsCode,
		GoodsName:    p.GoodsName,
		BatchNumber:  p.BatchNumber,
		Expected:     p.ExpectedPackageQuantity,
		Actual:       p.ActualPackageQuantity,
		Difference:   diff,
		DiffRatio:    ratio,
		Status:       p.Status.String(),
		Note:         p.Note,
	}, true
}

// Export renders the discrepancy report. When object storage is configured
// the document is uploaded and a presigned download URL is returned too.
func (s *ReportService) Export(ctx context.Context, sheetID uuid.UUID) (*ExportedReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stocktaking_report", "export",
		"sheet_id", sheetID.String(),
		"uploaded", s.storage != nil,
	)
	defer span.End()

	exported, err := s.export(ctx, sheetID)
	telemetry.RecordError(span, err)
	return exported, err
}

func (s *ReportService) export(ctx context.Context, sheetID uuid.UUID) (*ExportedReport, error) {
	report, err := s.BuildDiscrepancies(ctx, sheetID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := s.writer.Write(&buf, report); err != nil {
		return nil, fmt.Errorf("render discrepancy report: %w", err)
	}

	fileName := fmt.Sprintf("%s-discrepancies%s", report.SheetCode, s.writer.Extension())
	exported := &ExportedReport{
		FileName:    fileName,
		ContentType: s.writer.ContentType(),
		Content:     buf.Bytes(),
	}
	if s.storage == nil {
		return exported, nil
	}

	key := fmt.Sprintf("stocktaking/%s/%d-%s", sheetID, report.GeneratedAt.Unix(), fileName)
	if err := s.storage.Upload(ctx, key, exported.ContentType, bytes.NewReader(exported.Content), int64(len(exported.Content))); err != nil {
		return nil, err
	}
	url, err := s.storage.GenerateDownloadURL(ctx, key, s.urlExpiry)
	if err != nil {
		return nil, err
	}
	exported.StorageKey = key
	exported.DownloadURL = url

	s.logger.Info("discrepancy report uploaded",
		zap.String("sheet_id", sheetID.String()),
		zap.String("key", key),
		zap.Int("rows", len(report.Rows)),
	)
	return exported, nil
}
