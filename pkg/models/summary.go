package models

// SummaryFields lists the free-text session summary columns in document order.
// Each non-empty one becomes its own vector document.
var SummaryFields = []string{
	"request",
	"investigated",
	"learned",
	"completed",
	"next_steps",
	"notes",
}
