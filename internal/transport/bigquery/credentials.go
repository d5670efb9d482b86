package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	bq "google.golang.org/api/bigquery/v2"
)

// requiredKeys are the service-account fields needed to mint tokens and address the project.
var requiredKeys = []string{"type", "project_id", "private_key", "client_email", "token_uri"}

// ServiceAccount is the subset of a Google service-account key the executor relies on.
type ServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	TokenURI    string `json:"token_uri"`
}

// ParseServiceAccount validates a service-account JSON key and reports every missing field at once.
func ParseServiceAccount(data []byte) (ServiceAccount, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return ServiceAccount{}, fmt.Errorf("service account key is not valid JSON: %w", err)
	}

	var missing []string
	for _, k := range requiredKeys {
		if s, _ := raw[k].(string); strings.TrimSpace(s) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return ServiceAccount{}, fmt.Errorf("service account key missing required fields: %s",
			strings.Join(missing, ", "))
	}

	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return ServiceAccount{}, fmt.Errorf("decode service account key: %w", err)
	}
	if sa.Type != "service_account" {
		return ServiceAccount{}, fmt.Errorf("credentials type is %q, want service_account", sa.Type)
	}
	return sa, nil
}

// tokenSource builds a JWT token source scoped to BigQuery from a validated key.
func tokenSource(ctx context.Context, data []byte) (oauth2.TokenSource, error) {
	cfg, err := google.JWTConfigFromJSON(data, bq.BigqueryScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	return cfg.TokenSource(ctx), nil
}
