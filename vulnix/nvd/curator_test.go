package nvd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/wagoodman/go-progress"

	"github.com/flyingcircus/vulnix/internal"
	"github.com/flyingcircus/vulnix/vulnix/version"
)

type testGetter struct {
	file     map[string][]byte
	calls    internal.Set
	attempts map[string]int
	fs       afero.Fs
}

func newTestGetter(fs afero.Fs, file map[string][]byte) *testGetter {
	return &testGetter{
		file:     file,
		calls:    internal.NewStringSet(),
		attempts: make(map[string]int),
		fs:       fs,
	}
}

// GetFile downloads the give URL into the given path. The URL must reference a single file.
func (g *testGetter) GetFile(dst, src string, _ ...*progress.Manual) error {
	g.calls.Add(src)
	g.attempts[src]++
	payload, ok := g.file[src]
	if !ok {
		return fmt.Errorf("blerg, no file!")
	}
	return afero.WriteFile(g.fs, dst, payload, 0644)
}

func newTestCurator(fs afero.Fs, getter *testGetter, cfg Config) Curator {
	return Curator{
		fs:         fs,
		downloader: getter,
		config:     cfg,
	}
}

func shaOf(payload string) string {
	digest := sha256.Sum256([]byte(payload))
	return strings.ToUpper(hex.EncodeToString(digest[:]))
}

func metaFor(payload string) Metadata {
	return Metadata{
		LastModified: time.Date(2022, 3, 20, 3, 0, 1, 0, time.UTC),
		Size:         int64(len(payload)),
		SHA256:       shaOf(payload),
	}
}

const mirror = "https://mirror.example.com/feed"

func TestSyncSegmentFreshDownload(t *testing.T) {
	fs := afero.NewMemMapFs()
	remote := metaFor(feedFixture)
	getter := newTestGetter(fs, map[string][]byte{
		mirror + "/nvdcve-1.1-2014.meta":    []byte(remote.String()),
		mirror + "/nvdcve-1.1-2014.json.gz": gzipBytes(t, feedFixture),
	})
	c := newTestCurator(fs, getter, Config{
		CacheDir:  "/cache",
		MirrorURL: mirror,
	})

	updated, err := c.syncSegment("2014")
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if !updated {
		t.Error("expected segment to be reported as updated")
	}

	for _, name := range []string{"nvdcve-1.1-2014.json.gz", "nvdcve-1.1-2014.meta"} {
		if exists, _ := afero.Exists(fs, path.Join("/cache", name)); !exists {
			t.Errorf("expected %s in cache", name)
		}
	}

	cached, err := NewMetadataFromFile(fs, "/cache/nvdcve-1.1-2014.meta")
	if err != nil || cached == nil {
		t.Fatalf("unable to read cached metadata: %+v", err)
	}
	if cached.SHA256 != remote.SHA256 {
		t.Errorf("cached metadata does not match remote: %q vs %q", cached.SHA256, remote.SHA256)
	}
}

func TestSyncSegmentFreshnessWindowSkipsMirror(t *testing.T) {
	fs := afero.NewMemMapFs()
	remote := metaFor(feedFixture)
	seedSegment(t, fs, "2014", remote)

	getter := newTestGetter(fs, nil)
	c := newTestCurator(fs, getter, Config{
		CacheDir:       "/cache",
		MirrorURL:      mirror,
		UpdateInterval: time.Hour,
	})

	updated, err := c.syncSegment("2014")
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if updated {
		t.Error("expected no update for a fresh cache")
	}
	if len(getter.calls) != 0 {
		t.Errorf("expected no mirror traffic, got calls: %+v", getter.calls)
	}
}

func TestSyncSegmentUnchangedContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	remote := metaFor(feedFixture)
	seedSegment(t, fs, "2014", remote)

	getter := newTestGetter(fs, map[string][]byte{
		mirror + "/nvdcve-1.1-2014.meta": []byte(remote.String()),
	})
	c := newTestCurator(fs, getter, Config{
		CacheDir:  "/cache",
		MirrorURL: mirror,
	})

	updated, err := c.syncSegment("2014")
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if updated {
		t.Error("expected no update for unchanged content")
	}
	if getter.calls.Contains(mirror + "/nvdcve-1.1-2014.json.gz") {
		t.Error("archive must not be downloaded when the content hash is unchanged")
	}
}

func TestSyncSegmentStaleFallback(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSegment(t, fs, "2014", metaFor(feedFixture))

	// the mirror is unreachable for everything
	getter := newTestGetter(fs, nil)
	c := newTestCurator(fs, getter, Config{
		CacheDir:  "/cache",
		MirrorURL: mirror,
	})

	updated, err := c.syncSegment("2014")
	if err != nil {
		t.Fatalf("a cached segment must absorb mirror failures, got: %+v", err)
	}
	if updated {
		t.Error("expected no update")
	}

	// the cached records must still be usable
	if err := c.buildIndex([]string{"2014"}, &progress.Manual{}); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	records, err := c.GetByProduct("openssl")
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 cached record, got %d", len(records))
	}
}

func TestSyncSegmentMirrorDownNoCache(t *testing.T) {
	fs := afero.NewMemMapFs()
	getter := newTestGetter(fs, nil)
	c := newTestCurator(fs, getter, Config{
		CacheDir:  "/cache",
		MirrorURL: mirror,
	})

	if _, err := c.syncSegment("2014"); err == nil {
		t.Fatal("expected an error for an uncached segment with no mirror")
	}
}

func TestSyncSegmentChecksumMismatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	remote := metaFor(feedFixture)
	remote.SHA256 = strings.Repeat("F", 64)

	getter := newTestGetter(fs, map[string][]byte{
		mirror + "/nvdcve-1.1-2014.meta":    []byte(remote.String()),
		mirror + "/nvdcve-1.1-2014.json.gz": gzipBytes(t, feedFixture),
	})
	c := newTestCurator(fs, getter, Config{
		CacheDir:  "/cache",
		MirrorURL: mirror,
	})

	if _, err := c.syncSegment("2014"); err == nil {
		t.Fatal("expected a checksum error")
	}
	if exists, _ := afero.Exists(fs, "/cache/nvdcve-1.1-2014.json.gz"); exists {
		t.Error("a failed download must not land in the cache")
	}
}

func TestFetchRemoteMetadataRetries(t *testing.T) {
	fs := afero.NewMemMapFs()
	getter := newTestGetter(fs, nil)
	c := newTestCurator(fs, getter, Config{
		CacheDir:          "/cache",
		MirrorURL:         mirror,
		RequestRetryCount: 1,
	})

	if _, err := c.fetchRemoteMetadata("2014"); err == nil {
		t.Fatal("expected an error")
	}
	url := mirror + "/nvdcve-1.1-2014.meta"
	if getter.attempts[url] != 2 {
		t.Errorf("expected 2 attempts, got %d", getter.attempts[url])
	}
}

func TestBuildIndexAndLookup(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSegment(t, fs, "2014", metaFor(feedFixture))
	// the modified segment repeats the same records, which must not duplicate claims
	seedSegment(t, fs, "modified", metaFor(feedFixture))

	c := newTestCurator(fs, newTestGetter(fs, nil), Config{
		CacheDir:  "/cache",
		MirrorURL: mirror,
	})

	if err := c.buildIndex([]string{"2014", "modified"}, &progress.Manual{}); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}

	records, err := c.GetByProduct("OpenSSL")
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record (lookup is case insensitive, claims deduplicated), got %d", len(records))
	}

	v, err := version.NewVersion("1.0.1a", version.NixFormat)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	satisfied, err := records[0].Constraint.Satisfied(v)
	if err != nil {
		t.Fatalf("unexpected constraint error: %+v", err)
	}
	if !satisfied {
		t.Errorf("expected openssl 1.0.1a to be affected by %q", records[0].Constraint)
	}

	metadata, err := c.GetMetadata("CVE-2014-0160")
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if metadata.Severity != "HIGH" {
		t.Errorf("unexpected severity: %q", metadata.Severity)
	}

	if _, err := c.GetMetadata("CVE-0000-0000"); err == nil {
		t.Error("expected an error for an unknown vulnerability ID")
	}
}

func TestLookupBeforeLoad(t *testing.T) {
	c := newTestCurator(afero.NewMemMapFs(), newTestGetter(afero.NewMemMapFs(), nil), Config{CacheDir: "/cache"})
	if _, err := c.GetByProduct("openssl"); err == nil {
		t.Error("expected an error before the index is built")
	}
}

func TestImportFrom(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/downloads/nvdcve-1.1-2021.json.gz", gzipBytes(t, feedFixture), 0644); err != nil {
		t.Fatalf("unable to write fixture: %+v", err)
	}

	c := newTestCurator(fs, newTestGetter(fs, nil), Config{
		CacheDir:  "/cache",
		MirrorURL: mirror,
	})

	if err := c.ImportFrom("/downloads/nvdcve-1.1-2021.json.gz"); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}

	metadata, err := NewMetadataFromFile(fs, "/cache/nvdcve-1.1-2021.meta")
	if err != nil || metadata == nil {
		t.Fatalf("expected a generated descriptor: %+v", err)
	}
	if metadata.SHA256 != shaOf(feedFixture) {
		t.Errorf("descriptor digest does not cover the decompressed payload: %q", metadata.SHA256)
	}
	if metadata.Size != int64(len(feedFixture)) {
		t.Errorf("unexpected decompressed size: %d", metadata.Size)
	}

	if err := c.Validate(); err != nil {
		t.Errorf("imported segment must validate: %+v", err)
	}

	if err := c.ImportFrom("/downloads/not-a-feed.tar.gz"); err == nil {
		t.Error("expected an error for a non-feed file name")
	}
}

func TestValidateDetectsCorruption(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSegment(t, fs, "2014", metaFor(feedFixture))

	c := newTestCurator(fs, newTestGetter(fs, nil), Config{
		CacheDir:  "/cache",
		MirrorURL: mirror,
	})
	if err := c.Validate(); err != nil {
		t.Fatalf("seeded cache must validate: %+v", err)
	}

	// flip the payload without touching the descriptor
	if err := afero.WriteFile(fs, "/cache/nvdcve-1.1-2014.json.gz", gzipBytes(t, `{"CVE_Items": []}`), 0644); err != nil {
		t.Fatalf("unable to corrupt fixture: %+v", err)
	}
	if err := c.Validate(); err == nil {
		t.Error("expected a checksum error for the corrupted segment")
	}
}

func TestCuratorStatus(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSegment(t, fs, "2014", metaFor(feedFixture))

	c := newTestCurator(fs, newTestGetter(fs, nil), Config{
		CacheDir:  "/cache",
		MirrorURL: mirror,
	})

	status := c.Status()
	if status.Err != nil {
		t.Fatalf("unexpected status error: %+v", status.Err)
	}
	if status.Segments != 1 {
		t.Errorf("expected 1 segment, got %d", status.Segments)
	}
	if status.Location != "/cache" {
		t.Errorf("unexpected location: %q", status.Location)
	}
	if status.LastModified.IsZero() {
		t.Error("expected a last modified timestamp")
	}

	empty := newTestCurator(fs, newTestGetter(fs, nil), Config{CacheDir: "/nowhere"})
	if empty.Status().Err == nil {
		t.Error("expected an error for an empty cache")
	}
}

func seedSegment(t *testing.T, fs afero.Fs, segment string, metadata Metadata) {
	t.Helper()
	if err := afero.WriteFile(fs, path.Join("/cache", archiveName(segment)), gzipBytes(t, feedFixture), 0644); err != nil {
		t.Fatalf("unable to seed archive: %+v", err)
	}
	if err := afero.WriteFile(fs, path.Join("/cache", metaName(segment)), []byte(metadata.String()), 0644); err != nil {
		t.Fatalf("unable to seed metadata: %+v", err)
	}
}
