package stocktaking

// SheetStatus represents the lifecycle status of a stocktaking sheet.
// Numeric values are part of the external contract and must not be renumbered.
type SheetStatus int

const (
	SheetStatusDraft           SheetStatus = 1
	SheetStatusAssigned        SheetStatus = 2
	SheetStatusCancelled       SheetStatus = 3
	SheetStatusInProgress      SheetStatus = 4
	SheetStatusPendingApproval SheetStatus = 5
	SheetStatusApproved        SheetStatus = 6
	SheetStatusCompleted       SheetStatus = 7
)

// IsValid checks if the status is a valid SheetStatus
func (s SheetStatus) IsValid() bool {
	return s >= SheetStatusDraft && s <= SheetStatusCompleted
}

// String returns the string representation of SheetStatus
func (s SheetStatus) String() string {
	switch s {
	case SheetStatusDraft:
		return "DRAFT"
	case SheetStatusAssigned:
		return "ASSIGNED"
	case SheetStatusCancelled:
		return "CANCELLED"
	case SheetStatusInProgress:
		return "IN_PROGRESS"
	case SheetStatusPendingApproval:
		return "PENDING_APPROVAL"
	case SheetStatusApproved:
		return "APPROVED"
	case SheetStatusCompleted:
		return "COMPLETED"
	}
	return "UNKNOWN"
}

// IsTerminal reports whether no transition leaves this status
func (s SheetStatus) IsTerminal() bool {
	return s == SheetStatusCancelled || s == SheetStatusCompleted
}

// CanTransitionTo checks if the status can transition to the target status.
// PendingApproval -> InProgress is the recount path opened by rejecting locations.
func (s SheetStatus) CanTransitionTo(target SheetStatus) bool {
	switch s {
	case SheetStatusDraft:
		return target == SheetStatusAssigned
	case SheetStatusAssigned:
		return target == SheetStatusInProgress || target == SheetStatusCancelled
	case SheetStatusInProgress:
		return target == SheetStatusPendingApproval || target == SheetStatusCancelled
	case SheetStatusPendingApproval:
		return target == SheetStatusApproved || target == SheetStatusCancelled || target == SheetStatusInProgress
	case SheetStatusApproved:
		return target == SheetStatusCompleted
	case SheetStatusCancelled, SheetStatusCompleted:
		return false
	}
	return false
}

// ParseSheetStatus converts a name like "IN_PROGRESS" back into a SheetStatus
func ParseSheetStatus(name string) (SheetStatus, bool) {
	for s := SheetStatusDraft; s <= SheetStatusCompleted; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// AreaStatus mirrors the subset of sheet states an area can be in
type AreaStatus int

const (
	AreaStatusUnassigned AreaStatus = 1
	AreaStatusAssigned   AreaStatus = 2
	AreaStatusCancelled  AreaStatus = 3
	AreaStatusInProgress AreaStatus = 4
	AreaStatusCompleted  AreaStatus = 7
)

// String returns the string representation of AreaStatus
func (s AreaStatus) String() string {
	switch s {
	case AreaStatusUnassigned:
		return "UNASSIGNED"
	case AreaStatusAssigned:
		return "ASSIGNED"
	case AreaStatusCancelled:
		return "CANCELLED"
	case AreaStatusInProgress:
		return "IN_PROGRESS"
	case AreaStatusCompleted:
		return "COMPLETED"
	}
	return "UNKNOWN"
}

// LocationStatus is the counting status of one location
type LocationStatus int

const (
	LocationStatusPending LocationStatus = 1
	LocationStatusCounted LocationStatus = 2
)

// String returns the string representation of LocationStatus
func (s LocationStatus) String() string {
	switch s {
	case LocationStatusPending:
		return "PENDING"
	case LocationStatusCounted:
		return "COUNTED"
	}
	return "UNKNOWN"
}

// PalletStatus is the reconciliation status of one pallet record
type PalletStatus int

const (
	PalletStatusUnscanned PalletStatus = 1
	PalletStatusMatched   PalletStatus = 2
	PalletStatusMissing   PalletStatus = 3
	PalletStatusSurplus   PalletStatus = 4
)

// String returns the string representation of PalletStatus
func (s PalletStatus) String() string {
	switch s {
	case PalletStatusUnscanned:
		return "UNSCANNED"
	case PalletStatusMatched:
		return "MATCHED"
	case PalletStatusMissing:
		return "MISSING"
	case PalletStatusSurplus:
		return "SURPLUS"
	}
	return "UNKNOWN"
}

// IsResolved reports whether an expected pallet has reached a closing status
func (s PalletStatus) IsResolved() bool {
	return s == PalletStatusMatched || s == PalletStatusMissing
}
