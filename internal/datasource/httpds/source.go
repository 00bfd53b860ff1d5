package httpds

import (
	"context"
	"io"
)

// Source is a datasource.Source reading one URL through a Client.
type Source struct {
	Client *Client
	URL    string
}

// Open implements datasource.Source.
func (s Source) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.Client.Open(ctx, s.URL)
}
