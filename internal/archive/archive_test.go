package archive

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/competitive-cli/judge/internal/config"
)

func testArchive(t *testing.T, archive Archive) {
	ctx := context.Background()
	entry, err := archive.Save(ctx, "/home/alice/100.cpp", []byte("int main() {}"))
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(entry.Digest) != 64 {
		t.Fatalf("Unexpected digest: %q", entry.Digest)
	}
	if entry.Size != 13 {
		t.Fatalf("Unexpected size: %d", entry.Size)
	}
	if !strings.HasSuffix(entry.Key, "/100.cpp") {
		t.Fatalf("Unexpected key: %q", entry.Key)
	}
	again, err := archive.Save(ctx, "100.cpp", []byte("int main() {}"))
	if err != nil {
		t.Fatal("Error:", err)
	}
	if again != entry {
		t.Fatalf("Expected %v, got %v", entry, again)
	}
	content, err := archive.Load(ctx, entry.Key)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if string(content) != "int main() {}" {
		t.Fatalf("Unexpected content: %q", content)
	}
	if _, err := archive.Load(ctx, "ab/missing/100.cpp"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected not found, got %v", err)
	}
	if _, err := archive.Load(ctx, "../passwd"); err == nil {
		t.Fatal("Expected error")
	}
}

func TestLocalArchive(t *testing.T) {
	archive, err := NewArchive(config.Storage{
		Options: config.LocalStorageOptions{SourcesDir: t.TempDir()},
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	testArchive(t, archive)
}

const noSuchKeyResponse = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

func newFakeS3(tb testing.TB, bucket string) *httptest.Server {
	var mutex sync.Mutex
	objects := map[string][]byte{}
	e := echo.New()
	e.HideBanner = true
	e.PUT("/:bucket/*", func(c echo.Context) error {
		if c.Param("bucket") != bucket {
			return c.NoContent(http.StatusNotFound)
		}
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		mutex.Lock()
		defer mutex.Unlock()
		objects[c.Param("*")] = body
		return c.NoContent(http.StatusOK)
	})
	e.GET("/:bucket/*", func(c echo.Context) error {
		mutex.Lock()
		defer mutex.Unlock()
		body, ok := objects[c.Param("*")]
		if !ok || c.Param("bucket") != bucket {
			return c.Blob(http.StatusNotFound, "application/xml", []byte(noSuchKeyResponse))
		}
		return c.Blob(http.StatusOK, "application/octet-stream", body)
	})
	server := httptest.NewServer(e)
	tb.Cleanup(server.Close)
	return server
}

func TestS3Archive(t *testing.T) {
	server := newFakeS3(t, "sources")
	archive, err := NewArchive(config.Storage{
		Options: config.S3StorageOptions{
			Endpoint:        server.URL,
			Bucket:          "sources",
			PathPrefix:      "judge/",
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			UsePathStyle:    true,
		},
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	testArchive(t, archive)
}

func TestS3ArchiveMissingSecret(t *testing.T) {
	if _, err := NewArchive(config.Storage{
		Options: config.S3StorageOptions{
			Bucket:          "sources",
			SecretAccessKey: "env:JUDGE_TEST_MISSING_SECRET",
		},
	}); err == nil {
		t.Fatal("Expected error")
	}
}
