package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Migration errors
	ErrConnection        = fmt.Errorf("connection failed")
	ErrSchemaPreparation = fmt.Errorf("destination schema preparation failed")
	ErrPageFetch         = fmt.Errorf("page fetch failed")
	ErrChunkWrite        = fmt.Errorf("chunk write failed")
	ErrReconciliation    = fmt.Errorf("reconciliation failed")

	// API and store errors
	ErrAPIRequest    = fmt.Errorf("API request failed")
	ErrTableNotFound = fmt.Errorf("table not found")
	ErrRunNotFound   = fmt.Errorf("run not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
