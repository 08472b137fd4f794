// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI drives a single migration run:
//  1. [ConfirmView] : Show the source, destination and tables before starting
//  2. [TransferView] : Monitor state transitions, page progress and counters
//  3. [ResultView] : Display the verdict, counters and any sample mismatches
//  4. [HistoryView] : Browse previously recorded runs
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the [tasks.Engine], providing non-blocking status reporting during runs.
// Cancelling from the transfer view stops the engine between pages; the chunk in flight and reconciliation still finish.
//
// Keyboard navigation uses vim-style bindings (j/k, esc, y/n, c, h, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
