package constants

// ItemStatus is the canonical status for one record inside a batch run.
type ItemStatus string

// Stable values (these exact strings appear in API payloads and exports).
const (
	ItemStatusPending    ItemStatus = "PENDING"    // queued, no worker started
	ItemStatusSearching  ItemStatus = "SEARCHING"  // gathering PDF / web content
	ItemStatusExtracting ItemStatus = "EXTRACTING" // AI extraction call in flight
	ItemStatusCompleted  ItemStatus = "COMPLETED"  // terminal success
	ItemStatusFailed     ItemStatus = "FAILED"     // terminal failure
	ItemStatusStopped    ItemStatus = "STOPPED"    // terminal, run cancelled
)

// Terminal reports whether s is one of the three terminal states.
func (s ItemStatus) Terminal() bool {
	switch s {
	case ItemStatusCompleted, ItemStatusFailed, ItemStatusStopped:
		return true
	}
	return false
}
