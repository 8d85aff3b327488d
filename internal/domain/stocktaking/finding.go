package stocktaking

import (
	"fmt"
	"strings"
)

// FindingSeverity classifies a machine-detected discrepancy
type FindingSeverity int

const (
	FindingWarning FindingSeverity = 1
	FindingError   FindingSeverity = 2
)

// Prefixes operators see on findings and seeded reject reasons
const (
	WarningPrefix = "[Cảnh báo]"
	ErrorPrefix   = "[Lỗi]"
)

// Finding is one discrepancy detected when a location is confirmed
type Finding struct {
	Severity   FindingSeverity `json:"severity"`
	PalletCode string          `json:"pallet_code"`
	Message    string          `json:"message"`
}

// String renders the finding with its severity prefix
func (f Finding) String() string {
	prefix := WarningPrefix
	if f.Severity == FindingError {
		prefix = ErrorPrefix
	}
	return prefix + " " + f.Message
}

// detectFindings compares expected and actual state of every pallet
func detectFindings(pallets []Pallet) []Finding {
	findings := make([]Finding, 0)
	for _, p := range pallets {
		switch p.Status {
		case PalletStatusMatched:
			if p.ExpectedPackageQuantity != nil && p.ActualPackageQuantity != nil &&
				*p.ActualPackageQuantity != *p.ExpectedPackageQuantity {
				findings = append(findings, Finding{
					Severity:   FindingWarning,
					PalletCode: p.PalletCode,
					Message: fmt.Sprintf("Pallet %s: thực tế %d khác hệ thống %d",
						p.PalletCode, *p.ActualPackageQuantity, *p.ExpectedPackageQuantity),
				})
			}
		case PalletStatusSurplus:
			qty := 0
			if p.ActualPackageQuantity != nil {
				qty = *p.ActualPackageQuantity
			}
			findings = append(findings, Finding{
				Severity:   FindingWarning,
				PalletCode: p.PalletCode,
				Message:    fmt.Sprintf("Pallet %s: dư thừa %d kiện", p.PalletCode, qty),
			})
		case PalletStatusMissing:
			findings = append(findings, Finding{
				Severity:   FindingError,
				PalletCode: p.PalletCode,
				Message:    fmt.Sprintf("Pallet %s: không tìm thấy", p.PalletCode),
			})
		}
	}
	return findings
}

// JoinFindings renders findings one per line, warnings first
func JoinFindings(findings []Finding) string {
	lines := make([]string, 0, len(findings))
	for _, f := range findings {
		if f.Severity == FindingWarning {
			lines = append(lines, f.String())
		}
	}
	for _, f := range findings {
		if f.Severity == FindingError {
			lines = append(lines, f.String())
		}
	}
	return strings.Join(lines, "\n")
}
