package importer

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
)

// BucketKeyStorage downloads the service-account key blob from a GCS bucket
// to local scratch space. The storage client itself authenticates with
// application default credentials - the key it fetches authorises the Drive,
// Sheets and BigQuery clients.
type BucketKeyStorage struct {
	bucket string
	object string
}

func NewBucketKeyStorage(bucket, object string) *BucketKeyStorage {
	return &BucketKeyStorage{
		bucket: bucket,
		object: object,
	}
}

func (s *BucketKeyStorage) Fetch(ctx context.Context, path string) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("unable to create GCS client (%v)", err)
	}
	defer client.Close()

	reader, err := client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("unable to read gs://%s/%s (%v)", s.bucket, s.object, err)
	}
	defer reader.Close()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
