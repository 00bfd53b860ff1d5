// Package datasource abstracts where flow inputs come from: a local path or an
// http(s) URL, opened as a byte stream.
package datasource

import (
	"context"
	"io"
	"strings"

	"duckpond/internal/datasource/file"
	"duckpond/internal/datasource/httpds"
)

// Source opens a single input for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ForURL picks a Source for loc. http:// and https:// locations are fetched
// with client (a default client is created when nil); anything else,
// including file:// URLs, is read from local disk.
func ForURL(loc string, client *httpds.Client) Source {
	lower := strings.ToLower(loc)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		if client == nil {
			client = httpds.NewClient(httpds.Config{})
		}
		return httpds.Source{Client: client, URL: loc}
	}
	return file.NewLocal(loc)
}

// ReadAll opens src and returns its whole content.
func ReadAll(ctx context.Context, src Source) ([]byte, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
