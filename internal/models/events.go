package models

// EditSource identifies the origin of a sheet edit. Edits produced by the
// system's own writes carry EditSourceSystem so the override handler can
// ignore them; ambiguous events are treated as non-user.
type EditSource string

const (
	EditSourceUser    EditSource = "USER"
	EditSourceSystem  EditSource = "SYSTEM"
	EditSourceUnknown EditSource = ""
)

// EditEvent is a platform-independent user-edit notification. The
// spreadsheet transport converts its native events into this value type.
type EditEvent struct {
	Source   EditSource
	Column   string
	RowStart int
	RowEnd   int
	OldValue string
	NewValue string
}

// IsUserEdit reports whether the event originated from the user rather
// than the system's own write-back.
func (e EditEvent) IsUserEdit() bool {
	return e.Source == EditSourceUser
}
