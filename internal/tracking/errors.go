// Package tracking holds the core computations of the dashboard: grouping
// the flat location set into per-device summaries, selecting a device's
// route for one calendar day, and coordinating display-name renames.
package tracking

import "fmt"

// ValidationError means a required input was empty or missing. It is
// raised before the store is contacted.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NothingToRenameError means the selected device has zero location records
// at write time. It is distinct from success; no write is performed.
type NothingToRenameError struct {
	DeviceID string
}

func (e *NothingToRenameError) Error() string {
	return fmt.Sprintf("no locations recorded for device %q; nothing to rename", e.DeviceID)
}
