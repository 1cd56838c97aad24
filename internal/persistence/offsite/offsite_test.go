package offsite

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestClientPutFileSigned(t *testing.T) {
	var (
		gotPath, gotAuth, gotDate, gotHash string
		gotBody                            []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method=%s", r.Method)
		}
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotDate = r.Header.Get("x-amz-date")
		gotHash = r.Header.Get("x-amz-content-sha256")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{Endpoint: srv.URL, Bucket: "bkt", AccessKeyID: "AK", SecretAccessKey: "SK"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }

	local := filepath.Join(t.TempDir(), "a b.cfg.zst")
	if err := os.WriteFile(local, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.PutFile(context.Background(), "/backups//a b.cfg.zst", local); err != nil {
		t.Fatalf("PutFile: %v", err)
	}
	if gotPath != "/bkt/backups/a%20b.cfg.zst" {
		t.Fatalf("path=%q", gotPath)
	}
	if string(gotBody) != "payload" {
		t.Fatalf("body=%q", gotBody)
	}
	if gotDate != "20261017T120000Z" {
		t.Fatalf("x-amz-date=%q", gotDate)
	}
	// sha256("payload")
	if gotHash != "239f59ed55e737c77147cf55ad0c1b030b6d7ee748a7426952f9b852d5a935e5" {
		t.Fatalf("hash=%q", gotHash)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AK/20261017/auto/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature=") {
		t.Fatalf("auth=%q", gotAuth)
	}
}

func TestClientPutFileStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()
	c, err := NewClient(ClientConfig{Endpoint: srv.URL, Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"})
	if err != nil {
		t.Fatal(err)
	}
	local := filepath.Join(t.TempDir(), "x")
	_ = os.WriteFile(local, []byte("x"), 0o644)
	if err := c.PutFile(context.Background(), "x", local); err == nil || !strings.Contains(err.Error(), "status=403") {
		t.Fatalf("err=%v", err)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(ClientConfig{Endpoint: "r2.example", Bucket: "b"}); err == nil {
		t.Fatalf("expected error")
	}
}

type fakeUploader struct {
	mu    sync.Mutex
	keys  []string
	fails int
}

func (f *fakeUploader) PutFile(_ context.Context, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("transient")
	}
	f.keys = append(f.keys, key)
	return nil
}

func TestMirrorUploadsWithPrefixAndRetry(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "backups", "1.cfg.zst")
	_ = os.MkdirAll(filepath.Dir(p), 0o755)
	_ = os.WriteFile(p, []byte("x"), 0o644)

	up := &fakeUploader{fails: 1}
	m := NewMirror(up, MirrorOptions{DataDir: dir, Prefix: "/srv1/", RetryBase: time.Millisecond})
	m.Enqueue(p)
	m.Enqueue(filepath.Join(dir, "missing"))
	m.Close()
	m.Close()

	if len(up.keys) != 1 || up.keys[0] != "srv1/backups/1.cfg.zst" {
		t.Fatalf("keys=%v", up.keys)
	}
	st := m.Stats()
	if st.EnqueuedTotal != 2 || st.UploadSuccessTotal != 1 || st.UploadFailTotal != 1 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestMirrorObjectKeyOutsideDataDir(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(t.TempDir(), "f")
	_ = os.WriteFile(other, []byte("x"), 0o644)
	m := NewMirror(&fakeUploader{}, MirrorOptions{DataDir: dir})
	defer m.Close()
	if _, err := m.ObjectKey(other); err == nil {
		t.Fatalf("expected outside error")
	}
}

func TestNilMirror(t *testing.T) {
	var m *Mirror
	m.Enqueue("x")
	m.Close()
	if m.Stats() != (Stats{}) {
		t.Fatalf("nil stats")
	}
}
