// Package pond hands query results off to storage. An output is addressed by
// (bucket, environment prefix, table name); where and how the bytes land is
// decided by a Sink.
package pond

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Location addresses one handed-off table.
type Location struct {
	Bucket string
	Prefix string
	Table  string
}

// NewLocation validates and returns a Location.
func NewLocation(bucket, prefix, table string) (Location, error) {
	l := Location{Bucket: bucket, Prefix: strings.Trim(prefix, "/"), Table: table}
	if err := l.Validate(); err != nil {
		return Location{}, err
	}
	return l, nil
}

// Validate checks that the location cannot escape its bucket.
func (l Location) Validate() error {
	switch {
	case strings.TrimSpace(l.Bucket) == "":
		return errors.New("pond: bucket must not be empty")
	case strings.ContainsAny(l.Bucket, "/'"):
		return fmt.Errorf("pond: invalid bucket %q", l.Bucket)
	case strings.TrimSpace(l.Table) == "":
		return errors.New("pond: table name must not be empty")
	case strings.ContainsAny(l.Table, "/\\'"):
		return fmt.Errorf("pond: invalid table name %q", l.Table)
	case strings.Contains(l.Prefix, "..") || strings.HasPrefix(l.Prefix, "/") || strings.Contains(l.Prefix, "'"):
		return fmt.Errorf("pond: invalid prefix %q", l.Prefix)
	}
	return nil
}

// Key is the object key: <prefix>/<table>.parquet.
func (l Location) Key() string {
	return path.Join(l.Prefix, l.Table+".parquet")
}

// URL is the s3:// URL of the object.
func (l Location) URL() string {
	return "s3://" + l.Bucket + "/" + l.Key()
}

// TableName is the relational name used by the warehouse sink:
// <prefix>_<table>, restricted to [A-Za-z0-9_].
func (l Location) TableName() string {
	name := l.Table
	if l.Prefix != "" {
		name = l.Prefix + "_" + l.Table
	}
	b := []byte(name)
	for i, c := range b {
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			b[i] = '_'
		}
	}
	return string(b)
}

func (l Location) String() string { return l.URL() }
