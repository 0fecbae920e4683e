package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"protected-docs/internal/shared/storage/object"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "docs/file.pdf", want: "docs/file.pdf"},
		{name: "simple prefix", prefix: "root", key: "docs/file.pdf", want: "root/docs/file.pdf"},
		{name: "prefix trailing slash", prefix: "root/", key: "docs/file.pdf", want: "root/docs/file.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/docs/file.pdf", want: "root/docs/file.pdf"},
		{name: "nested prefix", prefix: "root/sub", key: "docs/file.pdf", want: "root/sub/docs/file.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	pab     *s3types.PublicAccessBlockConfiguration
	puts    int
	writes  int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func notFound(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: "not found"}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, notFound("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, notFound("NotFound")
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data))), LastModified: aws.Time(time.Unix(0, 0))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(f.objects[k])))})
	}
	return out, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) GetPublicAccessBlock(context.Context, *s3.GetPublicAccessBlockInput, ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pab == nil {
		return nil, notFound("NoSuchPublicAccessBlockConfiguration")
	}
	return &s3.GetPublicAccessBlockOutput{PublicAccessBlockConfiguration: f.pab}, nil
}

func (f *fakeS3) PutPublicAccessBlock(_ context.Context, in *s3.PutPublicAccessBlockInput, _ ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pab = in.PublicAccessBlockConfiguration
	f.puts++
	return &s3.PutPublicAccessBlockOutput{}, nil
}

func TestSaveOpenStatDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := NewWithClient(fake, "bucket", "/docs/", "")

	key, size, _, err := store.Save(ctx, "minutes.pdf", strings.NewReader("%PDF-1.4 body"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if size != int64(len("%PDF-1.4 body")) {
		t.Fatalf("unexpected size %d", size)
	}
	if _, ok := fake.objects["docs/"+key]; !ok {
		t.Fatalf("expected object under prefix, have %v", fake.objects)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "%PDF-1.4 body" {
		t.Fatalf("unexpected body %q", body)
	}

	info, err := store.Stat(ctx, key)
	if err != nil || info.SizeBytes != size {
		t.Fatalf("Stat = %+v, %v", info, err)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Open(ctx, key); !errors.Is(err, object.ErrNotExist) {
		t.Fatalf("expected ErrNotExist after delete, got %v", err)
	}
	if err := store.Delete(ctx, key); !errors.Is(err, object.ErrNotExist) {
		t.Fatalf("expected ErrNotExist deleting twice, got %v", err)
	}
}

func TestListStripsPrefix(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.objects["docs/a.pdf"] = []byte("a")
	fake.objects["docs/2024/b.pdf"] = []byte("bb")
	fake.objects["other/c.pdf"] = []byte("c")
	store := NewWithClient(fake, "bucket", "docs", "")

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 || items[0].Key != "2024/b.pdf" || items[1].Key != "a.pdf" {
		t.Fatalf("unexpected listing %+v", items)
	}
}

func TestEnsureProtectionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := NewWithClient(fake, "bucket", "", "")

	st, err := store.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.FolderExists || st.ProtectionActive || !st.Writable {
		t.Fatalf("unexpected status before provisioning %+v", st)
	}

	for i := 0; i < 2; i++ {
		if err := store.EnsureProtection(ctx); err != nil {
			t.Fatalf("EnsureProtection: %v", err)
		}
	}
	if fake.puts != 1 {
		t.Fatalf("expected a single PutPublicAccessBlock, got %d", fake.puts)
	}

	st, err = store.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.ProtectionActive {
		t.Fatalf("expected protection active")
	}
	if len(fake.objects) != 0 {
		t.Fatalf("expected probe object to be cleaned up, have %v", fake.objects)
	}
}

func TestInspectDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := NewWithClient(fake, "bucket", "docs", "")
	if err := store.EnsureProtection(ctx); err != nil {
		t.Fatalf("EnsureProtection: %v", err)
	}
	fake.writes = 0

	st, err := store.Inspect(ctx)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !st.FolderExists || !st.ProtectionActive || st.Writable {
		t.Fatalf("unexpected inspect status %+v", st)
	}
	if fake.writes != 0 {
		t.Fatalf("expected no object writes, got %d", fake.writes)
	}

	if _, err := store.Status(ctx); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if fake.writes != 1 {
		t.Fatalf("expected one probe write from Status, got %d", fake.writes)
	}
}
