package flakeanalyticslib

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

const maxConcurrentUploads = 4

// GCSUploader copies exported files into a bucket.
type GCSUploader interface {
	// Upload stores every file under prefix, named by its base name. All
	// files are attempted; failures are returned together.
	Upload(ctx context.Context, fs afero.Fs, prefix string, files ...string) error
}

type objectWriterFunc func(ctx context.Context, object string) io.WriteCloser

type gcsUploader struct {
	bucket    string
	newWriter objectWriterFunc
}

func NewGCSUploader(client *storage.Client, bucket string) GCSUploader {
	return &gcsUploader{
		bucket: bucket,
		newWriter: func(ctx context.Context, object string) io.WriteCloser {
			return client.Bucket(bucket).Object(object).NewWriter(ctx)
		},
	}
}

func (u *gcsUploader) Upload(ctx context.Context, fs afero.Fs, prefix string, files ...string) error {
	var lock sync.Mutex
	var errs []error
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)
	for _, file := range files {
		file := file
		g.Go(func() error {
			object := path.Join(prefix, filepath.Base(file))
			if err := u.uploadOne(ctx, fs, file, object); err != nil {
				lock.Lock()
				errs = append(errs, fmt.Errorf("failed to upload %s to gs://%s/%s: %w", file, u.bucket, object, err))
				lock.Unlock()
				return nil
			}
			logrus.WithField("object", object).Debug("Uploaded export.")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	return utilerrors.NewAggregate(errs)
}

func (u *gcsUploader) uploadOne(ctx context.Context, fs afero.Fs, file, object string) error {
	in, err := fs.Open(file)
	if err != nil {
		return err
	}
	defer in.Close()

	out := u.newWriter(ctx, object)
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
