package shared

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// execStart starts a command without waiting for it. Swapped out in tests.
var execStart = func(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// SpreadsheetURL returns the browser URL of a Google spreadsheet.
func SpreadsheetURL(spreadsheetID string) string {
	return "https://docs.google.com/spreadsheets/d/" + url.PathEscape(spreadsheetID) + "/edit"
}

// OpenBrowser opens the default system browser to the specified URL.
//
// Supports macOS, Linux, and Windows platforms.
func OpenBrowser(target string) error {
	var name string
	var args []string

	switch rt := getRuntime(); rt {
	case "darwin":
		name, args = "open", []string{target}
	case "linux":
		name, args = "xdg-open", []string{target}
	case "windows":
		name, args = "cmd", []string{"/c", "start", target}
	default:
		return fmt.Errorf("unsupported platform: %s", rt)
	}

	if err := execStart(name, args...); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
