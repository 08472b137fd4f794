// package testing contains shared testing utilities
package testing

import (
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/albumvault/albumsheets/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// Albums generates n album records with ids 1..n. Every seventh album carries a long tracklist.
func Albums(n int) []models.Record {
	records := make([]models.Record, n)
	for i := range records {
		id := i + 1
		tracks := 8
		if id%7 == 0 {
			tracks = 40
		}

		tracklist := make([]models.Value, tracks)
		for j := range tracklist {
			tracklist[j] = models.Map(
				models.E("position", models.String(fmt.Sprintf("A%d", j+1))),
				models.E("title", models.String(fmt.Sprintf("Track %d", j+1))),
				models.E("duration", models.String("4:05")),
			)
		}

		records[i] = models.NewRecord(
			models.E("id", models.Int(int64(id))),
			models.E("title", models.String(fmt.Sprintf("Album %04d", id))),
			models.E("year", models.Int(int64(1950+id%70))),
			models.E("artist", models.String(fmt.Sprintf("Artist %d", id%50))),
			models.E("role", models.String("Main")),
			models.E("type", models.String("master")),
			models.E("genres", models.List(models.String("Jazz"), models.String("Funk / Soul"))),
			models.E("styles", models.List(models.String("Hard Bop"))),
			models.E("formats", models.List(models.Map(
				models.E("name", models.String("Vinyl")),
				models.E("qty", models.String("1")),
			))),
			models.E("images", models.Null()),
			models.E("tracklist", models.List(tracklist...)),
			models.E("track_count", models.Int(int64(tracks))),
			models.E("credits", models.List()),
			models.E("cover_image", models.String(fmt.Sprintf("https://img.example.com/%d.jpg", id))),
			models.E("formatted_year", models.String(fmt.Sprint(1950+id%70))),
			models.E("created_at", models.String("2024-03-01T10:00:00Z")),
			models.E("updated_at", models.String("2024-03-02T10:00:00Z")),
		)
	}
	return records
}

// History generates n scrape history records with ids 1..n in the full schema.
func History(n int) []models.Record {
	records := make([]models.Record, n)
	for i := range records {
		id := i + 1
		records[i] = models.NewRecord(
			models.E("id", models.Int(int64(id))),
			models.E("artist_name", models.String(fmt.Sprintf("Artist %d", id))),
			models.E("discogs_id", models.Int(int64(1000+id))),
			models.E("search_query", models.String(fmt.Sprintf("artist %d", id))),
			models.E("scraped_at", models.String("2024-03-01T09:00:00Z")),
			models.E("albums_found", models.Int(int64(id*3))),
			models.E("albums_added", models.Int(int64(id*2))),
			models.E("success", models.Bool(true)),
			models.E("notes", models.Null()),
			models.E("created_at", models.String("2024-03-01T09:00:00Z")),
			models.E("updated_at", models.String("2024-03-01T09:00:00Z")),
		)
	}
	return records
}
