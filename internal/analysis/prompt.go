package analysis

import (
	"fmt"
	"strings"

	"github.com/finledger/backend/internal/models"
)

// RecordPrompt renders a single record to the textual form used in
// analysis prompts.
func RecordPrompt(record models.TransactionRecord) string {
	return fmt.Sprintf(
		"%s %s %s: %s",
		record.Date.Format("2006-01-02"),
		record.Type,
		record.Amount.StringFixed(2),
		record.Description,
	)
}

// WindowPrompt renders the recent-window records to the context text
// passed to the analyser, one record per line.
func WindowPrompt(records []models.TransactionRecord) string {
	if len(records) == 0 {
		return "No transaction records in the recent window."
	}

	lines := make([]string, 0, len(records))
	for _, record := range records {
		lines = append(lines, RecordPrompt(record))
	}

	return strings.Join(lines, "\n")
}
