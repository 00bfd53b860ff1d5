package engine

import (
	"fmt"
	"strings"
)

// S3Config holds object storage options in the shape DuckDB's httpfs
// extension expects.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Endpoint is host[:port] without a scheme, e.g. "localhost:4566".
	Endpoint string
	Region   string
	UseSSL   bool
	// URLStyle is "path" or "vhost".
	URLStyle string
}

// Enabled reports whether any S3 option is set.
func (c S3Config) Enabled() bool {
	return c.AccessKeyID != "" || c.SecretAccessKey != "" || c.Endpoint != "" || c.Region != ""
}

// Statements renders the SET statements that apply c to a DuckDB connection.
// Empty options are omitted; use_ssl is always emitted when c is enabled.
func (c S3Config) Statements() []string {
	if !c.Enabled() {
		return nil
	}
	var out []string
	set := func(name, value string) {
		if value != "" {
			out = append(out, fmt.Sprintf("SET %s = '%s'", name, strings.ReplaceAll(value, "'", "''")))
		}
	}
	set("s3_access_key_id", c.AccessKeyID)
	set("s3_secret_access_key", c.SecretAccessKey)
	set("s3_session_token", c.SessionToken)
	set("s3_endpoint", c.Endpoint)
	set("s3_region", c.Region)
	set("s3_url_style", c.URLStyle)
	out = append(out, fmt.Sprintf("SET s3_use_ssl = %t", c.UseSSL))
	return out
}
