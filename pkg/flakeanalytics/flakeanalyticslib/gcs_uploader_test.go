package flakeanalyticslib

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

type memoryObject struct {
	bytes.Buffer
	name    string
	objects *memoryBucket
}

func (o *memoryObject) Close() error {
	o.objects.lock.Lock()
	defer o.objects.lock.Unlock()
	o.objects.contents[o.name] = o.String()
	return nil
}

type memoryBucket struct {
	lock     sync.Mutex
	contents map[string]string
}

func (b *memoryBucket) writer(_ context.Context, object string) io.WriteCloser {
	return &memoryObject{name: object, objects: b}
}

func TestGCSUploader(t *testing.T) {
	fs := afero.NewMemMapFs()
	for name, content := range map[string]string{
		"/out/per_test_flake_metrics.json": "[]",
		"/out/failure_groups.csv":          "platform,team\n",
	} {
		if err := afero.WriteFile(fs, name, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	bucket := &memoryBucket{contents: map[string]string{}}
	uploader := &gcsUploader{bucket: "flakes", newWriter: bucket.writer}
	err := uploader.Upload(context.Background(), fs, "exports/2024-01-10", "/out/per_test_flake_metrics.json", "/out/failure_groups.csv", "/out/missing.json")
	if err == nil || !strings.Contains(err.Error(), "failed to upload /out/missing.json to gs://flakes/exports/2024-01-10/missing.json") {
		t.Errorf("expected the missing file to be reported, got %v", err)
	}

	expected := map[string]string{
		"exports/2024-01-10/per_test_flake_metrics.json": "[]",
		"exports/2024-01-10/failure_groups.csv":          "platform,team\n",
	}
	if diff := cmp.Diff(expected, bucket.contents); diff != "" {
		t.Errorf("unexpected bucket contents: %s", diff)
	}
}
