package shared

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// requiredKeyFields are the fields a Google service-account key must carry.
var requiredKeyFields = []string{"type", "project_id", "private_key_id", "private_key", "client_email"}

// ServiceAccountKey is the subset of a service-account JSON key the readiness check reports on.
type ServiceAccountKey struct {
	Type        string
	ProjectID   string
	ClientEmail string
	Raw         []byte
}

// ReadServiceAccountKey loads a service-account key file and checks that every required field is
// present and non-empty.
func ReadServiceAccountKey(path string) (*ServiceAccountKey, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no credentials file configured", ErrMissingCredentials)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s not found", ErrMissingCredentials, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return ParseServiceAccountKey(data)
}

// ParseServiceAccountKey validates raw key JSON.
func ParseServiceAccountKey(data []byte) (*ServiceAccountKey, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: key is not valid JSON: %v", ErrInvalidCredentials, err)
	}

	var missing []string
	for _, name := range requiredKeyFields {
		if s, ok := fields[name].(string); !ok || s == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing fields %s", ErrInvalidCredentials, strings.Join(missing, ", "))
	}

	key := &ServiceAccountKey{
		Type:        fields["type"].(string),
		ProjectID:   fields["project_id"].(string),
		ClientEmail: fields["client_email"].(string),
		Raw:         data,
	}
	if key.Type != "service_account" {
		return nil, fmt.Errorf("%w: key type is %q, want service_account", ErrInvalidCredentials, key.Type)
	}
	return key, nil
}
