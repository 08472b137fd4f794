package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/albumvault/albumsheets/internal/models"
)

var (
	_ list.Item = runItem{}
	_ list.Item = mismatchItem{}
)

// runItem wraps [models.Run] to implement [list.Item].
type runItem struct {
	run *models.Run
}

func (i runItem) FilterValue() string { return i.run.ID() }
func (i runItem) Title() string {
	verdict := "✗"
	if i.run.Verified() {
		verdict = "✓"
	}
	return fmt.Sprintf("%s #%d %s → %s", verdict, i.run.Sequence(), i.run.Source(), i.run.Destination())
}
func (i runItem) Description() string {
	desc := fmt.Sprintf("%s • %d/%d rows", i.run.FinalState(), i.run.ActualPrimary(), i.run.ExpectedPrimary())
	if started := i.run.StartedAt(); started != nil {
		desc = fmt.Sprintf("%s • %s", started.Format("2006-01-02 15:04"), desc)
	}
	if i.run.ErrorMessage() != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.run.ErrorMessage())
	}
	return desc
}

// mismatchItem wraps [models.Mismatch] to implement [list.Item].
type mismatchItem struct {
	mismatch models.Mismatch
}

func (i mismatchItem) FilterValue() string { return i.mismatch.ExpectedID }
func (i mismatchItem) Title() string {
	return fmt.Sprintf("Row %d: %s", i.mismatch.RowIndex, i.mismatch.ExpectedTitle)
}
func (i mismatchItem) Description() string {
	return fmt.Sprintf("expected id %q, found id %q titled %q",
		i.mismatch.ExpectedID, i.mismatch.ActualID, i.mismatch.ActualTitle)
}
