// Package services defines the [Source] and [Destination] interfaces the migration engine talks to,
// and implements them for PostgREST, Postgres, Google Sheets and plain CSV directories.
//
// # Sources
//
// A [Source] serves the album catalog in a stable order by key. Pages are fetched by offset and
// limit; an offset past the end yields an empty page rather than an error.
//
//   - [PostgRESTSource] talks to a PostgREST (Supabase) endpoint with an API key, paging with
//     Range headers and counting through Content-Range.
//   - [PostgresSource] reads the same tables directly through the pgx driver.
//
// # Destinations
//
// A [Destination] is a set of named tables addressed by 1-based row numbers, row 1 being the header.
// Writes are positional: writing rows 2..301 twice leaves the same content as writing them once.
//
//   - [SheetsDestination] maps tables to worksheets of one spreadsheet, authenticated with a
//     service-account key. The grid is grown before writes that would exceed it.
//   - [CSVDestination] maps tables to files in a directory, for dry runs and offline exports.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrAPIRequest] : remote call failed or returned a non-2xx status
//   - [shared.ErrTableNotFound] : FindTable found no table of that name
//   - [shared.ErrInvalidCredentials] : the service-account key was rejected
//   - [shared.ErrInvalidArgument] : a row range does not match the rows given
//
// Whether an error is fatal is decided by the caller, not here.
package services
