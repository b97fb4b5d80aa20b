package eventlog

// Column is one of the fixed log columns, in sheet order.
type Column int

const (
	ColStartTime Column = iota
	ColEndTime
	ColName
	ColEquipmentName
	ColState
	ColDescription
	ColAllDay
	ColRecurring
	ColAction
	ColExecutionTime
	ColID

	// NumColumns is the number of fixed columns.
	NumColumns int = iota
)

// ConditionColumn is the 1-based column where condition headers start (M).
const ConditionColumn = 13

// Actions written into ColAction.
const (
	ActionAdd    = "add"
	ActionCancel = "cancel"
)

var columnNames = [...]string{
	"startTime",
	"endTime",
	"name",
	"equipmentName",
	"state",
	"description",
	"isAllDayEvent",
	"isRecurringEvent",
	"action",
	"executionTime",
	"id",
}

// String returns the header name of the column.
func (c Column) String() string {
	if c < 0 || int(c) >= NumColumns {
		return "unknown"
	}
	return columnNames[c]
}

// Headers returns the header row of a log sheet.
func Headers() []string {
	return append([]string(nil), columnNames[:]...)
}

// Fields is a partial log record.
type Fields map[Column]any
