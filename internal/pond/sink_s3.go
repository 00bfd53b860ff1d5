package pond

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	log "github.com/sirupsen/logrus"

	"duckpond/internal/engine"
	"duckpond/internal/sqlbind"
)

// S3Sink encodes outputs in-process and uploads them with the AWS SDK. Reads
// go through the engine's read_parquet, which needs httpfs configured with
// the same credentials.
type S3Sink struct {
	DB       Querier
	client   *s3.S3
	uploader *s3manager.Uploader
	tempDir  string
}

// NewS3Sink opens an AWS session for cfg. An empty Endpoint uses AWS itself.
func NewS3Sink(db Querier, cfg engine.S3Config) (*S3Sink, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.URLStyle != "vhost"),
		DisableSSL:       aws.Bool(!cfg.UseSSL),
	}
	if cfg.Endpoint != "" {
		scheme := "http://"
		if cfg.UseSSL {
			scheme = "https://"
		}
		awsCfg.Endpoint = aws.String(scheme + cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3 sink: session: %w", err)
	}
	return &S3Sink{
		DB:       db,
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		tempDir:  os.TempDir(),
	}, nil
}

func (s *S3Sink) Name() string { return "s3" }

func (s *S3Sink) Write(ctx context.Context, loc Location, sel *sqlbind.SQL) (int64, error) {
	f, err := s.DB.Query(ctx, sel)
	if err != nil {
		return 0, err
	}
	dir, err := os.MkdirTemp(s.tempDir, "duckpond-*")
	if err != nil {
		return 0, fmt.Errorf("s3 sink: %w", err)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, loc.Table+".parquet")
	if err := WriteParquet(local, f); err != nil {
		return 0, err
	}
	file, err := os.Open(local)
	if err != nil {
		return 0, fmt.Errorf("s3 sink: %w", err)
	}
	defer file.Close()

	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key()),
		Body:   file,
		Metadata: map[string]*string{
			"record-count": aws.String(strconv.Itoa(f.Len())),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("s3 sink: upload %s: %w", loc, err)
	}
	log.WithFields(log.Fields{"location": out.Location, "rows": f.Len()}).Debug("s3 sink: uploaded")
	return int64(f.Len()), nil
}

func (s *S3Sink) Exists(ctx context.Context, loc Location) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key()),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("s3 sink: head %s: %w", loc, err)
}

func (s *S3Sink) Input(_ context.Context, loc Location) (*sqlbind.SQL, error) {
	return readStatement(loc), nil
}

func isNotFound(err error) bool {
	var rf awserr.RequestFailure
	if errors.As(err, &rf) && rf.StatusCode() == http.StatusNotFound {
		return true
	}
	var ae awserr.Error
	if errors.As(err, &ae) {
		switch ae.Code() {
		case "NotFound", s3.ErrCodeNoSuchKey:
			return true
		}
	}
	return false
}
