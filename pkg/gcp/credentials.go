// Package gcp resolves the credentials shared by the Google Cloud clients.
package gcp

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/angelmondragon/benefits-logistics/pkg/config"
)

// ClientOptions prefers inline credentials JSON over a credentials file.
// With neither set the clients fall back to application default
// credentials.
func ClientOptions(cfg config.GCPConfig, extra ...option.ClientOption) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(strings.TrimSpace(cfg.CredentialsJSON))))
	case strings.TrimSpace(cfg.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(strings.TrimSpace(cfg.ApplicationCredentials)))
	}
	return append(opts, extra...)
}
