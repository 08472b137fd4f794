package tasks

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	tu "github.com/albumvault/albumsheets/internal/testing"
)

func TestWriteMetrics(t *testing.T) {
	result := &Result{
		State:           Succeeded,
		Verified:        true,
		ExpectedPrimary: 1234,
		ExpectedAux:     12,
		Counters:        CounterSnapshot{Fetched: 1246, Written: 1246, Truncated: 7},
		Duration:        90 * time.Second,
	}

	t.Run("registry", func(t *testing.T) {
		reg := NewMetricsRegistry(result)
		n, err := testutil.GatherAndCount(reg)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n != 10 {
			t.Errorf("expected 10 series, got %d", n)
		}
	})

	t.Run("textfile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "albumsheets.prom")
		if err := WriteMetrics(path, result); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, path)
		content := tu.MustReadFile(t, path)
		for _, want := range []string{
			`albumsheets_records{outcome="written"} 1246`,
			`albumsheets_records{outcome="truncated"} 7`,
			`albumsheets_expected_rows{table="primary"} 1234`,
			"albumsheets_run_verified 1",
			"albumsheets_run_duration_seconds 90",
		} {
			if !strings.Contains(content, want) {
				t.Errorf("expected %q in metrics:\n%s", want, content)
			}
		}
	})

	t.Run("unwritable path", func(t *testing.T) {
		if err := WriteMetrics(filepath.Join(t.TempDir(), "missing", "x.prom"), result); err == nil {
			t.Error("expected error")
		}
	})
}
