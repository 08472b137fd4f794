package main

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v3"

	"github.com/albumvault/albumsheets/internal/shared"
)

const checkSampleSize = 3

// Check verifies configuration, credentials and access to both stores without writing anything.
//
// Every step runs even when an earlier one fails; the returned error aggregates all failures.
func (r *Runner) Check(ctx context.Context, cmd *cli.Command) error {
	var result *multierror.Error

	r.writePlainHeader("Readiness Check")

	fail := func(step string, err error) {
		r.writePlain("✗ %s: %v\n", step, err)
		result = multierror.Append(result, fmt.Errorf("%s: %w", step, err))
	}

	if err := r.config.Validate(); err != nil {
		fail("configuration", err)
	} else {
		r.writePlain("✓ configuration is valid\n")
	}

	credentialsOK := true
	if r.config.Destination.Kind == shared.DestinationSheets && r.destination == nil {
		key, err := shared.ReadServiceAccountKey(r.config.Destination.CredentialsFile)
		if err != nil {
			fail("credentials", err)
			credentialsOK = false
		} else {
			r.writePlain("✓ service account %s (project %s)\n", key.ClientEmail, key.ProjectID)
		}
	}

	if !credentialsOK {
		r.writePlain("- destination: skipped without credentials\n")
	} else if dest, err := r.openDestination(ctx); err != nil {
		fail("destination", err)
	} else if title, err := dest.Title(ctx); err != nil {
		fail("destination", err)
	} else {
		r.writePlain("✓ destination %s reachable: %q\n", dest.Name(), title)
	}

	src, closeSrc, err := r.openSource()
	if err != nil {
		fail("source", err)
		r.writePlain("\n")
		return result.ErrorOrNil()
	}
	defer closeSrc()

	if err := src.Ping(ctx); err != nil {
		fail("source", err)
	} else if count, err := src.Count(ctx); err != nil {
		fail("source count", err)
	} else {
		r.writePlain("✓ source %s reachable: %d records\n", src.Name(), count)

		records, err := src.FetchRange(ctx, 0, checkSampleSize, r.config.Source.OrderKey)
		if err != nil {
			fail("source sample", err)
		}
		for _, rec := range records {
			title := "(untitled)"
			if v, ok := rec.Get("title"); ok && !v.IsNull() {
				title = v.Text()
			}
			r.writePlain("    %s  %s\n", rec.Key().Text(), title)
		}
	}

	if result.ErrorOrNil() == nil {
		r.writePlainln("✓ Ready to migrate")
	} else {
		r.writePlainln("✗ %d problem(s) found", result.Len())
	}
	return result.ErrorOrNil()
}
