package nvd

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/wagoodman/go-partybus"
	"github.com/wagoodman/go-progress"

	"github.com/flyingcircus/vulnix/internal/bus"
	"github.com/flyingcircus/vulnix/internal/file"
	"github.com/flyingcircus/vulnix/internal/log"
	"github.com/flyingcircus/vulnix/vulnix/event"
	"github.com/flyingcircus/vulnix/vulnix/vulnerability"
)

const retryBaseDelay = 500 * time.Millisecond

var (
	_ vulnerability.Provider         = (*Curator)(nil)
	_ vulnerability.MetadataProvider = (*Curator)(nil)
)

// Curator owns the on-disk feed cache and the in-memory product index built from it. All
// mirror traffic goes through here; everything downstream only sees lookups.
type Curator struct {
	fs         afero.Fs
	downloader file.Getter
	config     Config
	store      *store
}

func NewCurator(cfg Config) (Curator, error) {
	downloader, err := newDownloader(cfg)
	if err != nil {
		return Curator{}, err
	}
	return Curator{
		fs:         afero.NewOsFs(),
		downloader: downloader,
		config:     cfg,
	}, nil
}

// Update synchronizes all feed segments against the mirror and rebuilds the product index
// from the cache. Segments are fetched concurrently; a segment that cannot be refreshed
// falls back to its cached copy or, failing that, is skipped with a warning. Returns true
// if any segment's content changed.
func (c *Curator) Update() (bool, error) {
	segments := defaultSegments(time.Now())

	stage := &progress.Stage{
		Current: "checking for updates",
	}
	downloadProgress := &progress.Manual{
		Total: int64(len(segments)),
	}
	indexProgress := &progress.Manual{
		Total: int64(len(segments)),
	}

	bus.Publish(partybus.Event{
		Type: event.UpdateVulnerabilityFeed,
		Value: progress.StagedProgressable(&struct {
			progress.Stager
			progress.Progressable
		}{
			Stager:       progress.Stager(stage),
			Progressable: progress.NewAggregator(progress.DefaultStrategy, downloadProgress, indexProgress),
		}),
	})

	defer downloadProgress.SetCompleted()
	defer indexProgress.SetCompleted()

	updated, err := c.syncAll(segments, stage, downloadProgress)
	if err != nil {
		return false, err
	}

	stage.Current = "indexing"
	if err := c.buildIndex(segments, indexProgress); err != nil {
		return false, err
	}

	log.Infof("feed cache synced (%d segments refreshed, %d advisories indexed)", updated, c.store.size())
	return updated > 0, nil
}

// Load builds the product index from whatever the cache currently holds, without any mirror
// traffic. Used when automatic updates are disabled.
func (c *Curator) Load() error {
	if c.config.ValidateByHashOnStart {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("feed cache is corrupt (run feed update to correct): %w", err)
		}
	}
	return c.buildIndex(defaultSegments(time.Now()), &progress.Manual{})
}

func (c *Curator) GetByProduct(product string) ([]vulnerability.Vulnerability, error) {
	if c.store == nil {
		return nil, fmt.Errorf("feed index not loaded")
	}
	return c.store.GetByProduct(product)
}

func (c *Curator) GetMetadata(id string) (*vulnerability.Metadata, error) {
	if c.store == nil {
		return nil, fmt.Errorf("feed index not loaded")
	}
	return c.store.GetMetadata(id)
}

// Delete removes the cached feed entirely.
func (c *Curator) Delete() error {
	return c.fs.RemoveAll(c.config.CacheDir)
}

// Validate re-checks every cached archive against the digest in its descriptor.
func (c *Curator) Validate() error {
	segments, err := c.cachedSegments()
	if err != nil {
		return err
	}

	var errs error
	for _, segment := range segments {
		metadata, err := NewMetadataFromFile(c.fs, path.Join(c.config.CacheDir, metaName(segment)))
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if metadata == nil {
			errs = multierror.Append(errs, fmt.Errorf("feed segment %q has no metadata descriptor", segment))
			continue
		}
		if err := validateArchive(c.fs, path.Join(c.config.CacheDir, archiveName(segment)), metadata.SHA256); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

// SegmentStates reports the cached segments individually, pairing each archive with the
// modification date and size recorded in its descriptor. Segments whose descriptor is
// missing or whose archive does not match it carry a non-nil Err.
func (c *Curator) SegmentStates() ([]SegmentState, error) {
	segments, err := c.cachedSegments()
	if err != nil {
		return nil, err
	}

	states := make([]SegmentState, 0, len(segments))
	for _, segment := range segments {
		state := SegmentState{Segment: segment}
		metadata, err := NewMetadataFromFile(c.fs, path.Join(c.config.CacheDir, metaName(segment)))
		switch {
		case err != nil:
			state.Err = err
		case metadata == nil:
			state.Err = fmt.Errorf("no metadata descriptor")
		default:
			state.LastModified = metadata.LastModified
			state.Size = metadata.Size
			if info, err := c.fs.Stat(path.Join(c.config.CacheDir, archiveName(segment))); err != nil {
				state.Err = err
			} else if info.Size() != metadata.GzSize {
				state.Err = fmt.Errorf("archive size does not match descriptor (%d != %d bytes)", info.Size(), metadata.GzSize)
			}
		}
		states = append(states, state)
	}
	return states, nil
}

// ImportFrom installs a feed archive obtained out of band (e.g. carried onto an air-gapped
// host) into the cache, deriving the segment from the file name and regenerating the
// descriptor from the archive content.
func (c *Curator) ImportFrom(archivePath string) error {
	segment, err := segmentFromArchiveName(path.Base(archivePath))
	if err != nil {
		return err
	}

	info, err := c.fs.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("unable to stat archive (%s): %w", archivePath, err)
	}

	f, err := c.fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("unable to open archive (%s): %w", archivePath, err)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("unable to decompress archive (%s): %w", archivePath, err)
	}

	hasher := sha256.New()
	size, err := io.Copy(hasher, gz)
	gz.Close()
	f.Close()
	if err != nil {
		return fmt.Errorf("unable to hash archive (%s): %w", archivePath, err)
	}

	metadata := Metadata{
		LastModified: info.ModTime(),
		Size:         size,
		GzSize:       info.Size(),
		SHA256:       strings.ToUpper(hex.EncodeToString(hasher.Sum(nil))),
	}

	src, err := c.fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("unable to open archive (%s): %w", archivePath, err)
	}
	defer log.CloseAndLogError(src, archivePath)

	if err := file.ReplaceFileWithReader(c.fs, path.Join(c.config.CacheDir, archiveName(segment)), src); err != nil {
		return fmt.Errorf("unable to store feed archive: %w", err)
	}
	return file.ReplaceFileWithBytes(c.fs, path.Join(c.config.CacheDir, metaName(segment)), []byte(metadata.String()))
}

type segmentResult struct {
	segment string
	updated bool
	err     error
}

func (c *Curator) syncAll(segments []string, stage *progress.Stage, monitor *progress.Manual) (int, error) {
	if err := c.fs.MkdirAll(c.config.CacheDir, 0755); err != nil {
		return 0, fmt.Errorf("unable to create feed cache dir (%s): %w", c.config.CacheDir, err)
	}

	workers := c.config.MaxWorkers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	results := make(chan segmentResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for segment := range jobs {
				updated, err := c.syncSegment(segment)
				results <- segmentResult{segment: segment, updated: updated, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, segment := range segments {
			jobs <- segment
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var updated, failed int
	for result := range results {
		monitor.N++
		stage.Current = fmt.Sprintf("synced %d of %d segments", monitor.N, len(segments))
		if result.err != nil {
			log.Warnf("failed to sync feed segment %q: %+v", result.segment, result.err)
			failed++
			continue
		}
		if result.updated {
			updated++
		}
	}

	if failed > 0 {
		log.Warnf("%d of %d feed segments could not be synced, continuing with cached copies where available", failed, len(segments))
	}
	return updated, nil
}

// syncSegment brings one segment's cached archive up to date. A descriptor refreshed within
// the update interval skips the mirror round trip entirely; otherwise the remote descriptor
// is consulted and the archive only downloaded when its content hash changed.
func (c *Curator) syncSegment(segment string) (bool, error) {
	archivePath := path.Join(c.config.CacheDir, archiveName(segment))
	metaPath := path.Join(c.config.CacheDir, metaName(segment))

	cached, err := afero.Exists(c.fs, archivePath)
	if err != nil {
		return false, err
	}

	local, err := NewMetadataFromFile(c.fs, metaPath)
	if err != nil {
		log.Warnf("unreadable metadata for feed segment %q, forcing refresh: %+v", segment, err)
		local = nil
	}

	if cached && local != nil && c.metadataFresh(segment, metaPath) {
		return false, nil
	}

	remote, err := c.fetchRemoteMetadata(segment)
	if err != nil {
		if cached {
			log.Warnf("cannot reach mirror for feed segment %q, using cached copy: %+v", segment, err)
			return false, nil
		}
		return false, fmt.Errorf("unable to fetch metadata: %w", err)
	}

	if cached && !local.IsSupersededBy(remote) {
		// rewrite the descriptor so the freshness window restarts from this check
		if err := file.ReplaceFileWithBytes(c.fs, metaPath, []byte(local.String())); err != nil {
			log.Warnf("unable to refresh metadata for feed segment %q: %+v", segment, err)
		}
		return false, nil
	}

	if err := c.downloadArchive(segment, remote, archivePath, metaPath); err != nil {
		if cached {
			log.Warnf("failed to refresh feed segment %q, using cached copy: %+v", segment, err)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// metadataFresh reports whether the cached descriptor was written within the segment's
// refresh window, in which case even the remote descriptor is not consulted. Year segments
// barely change once published, so they get a much wider window than the modified segment.
func (c *Curator) metadataFresh(segment, metaPath string) bool {
	window := c.config.UpdateInterval
	if window <= 0 {
		return false
	}
	if segment != modifiedSegment {
		window *= yearSegmentRefreshFactor
	}
	info, err := c.fs.Stat(metaPath)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < window
}

func (c *Curator) fetchRemoteMetadata(segment string) (*Metadata, error) {
	tempFile, err := afero.TempFile(c.fs, "", "vulnix-meta")
	if err != nil {
		return nil, fmt.Errorf("unable to create metadata temp file: %w", err)
	}
	tempFile.Close()
	defer func() {
		if err := c.fs.Remove(tempFile.Name()); err != nil {
			log.Errorf("unable to clean up metadata temp file (%s): %+v", tempFile.Name(), err)
		}
	}()

	var metadata *Metadata
	err = c.withRetry(fmt.Sprintf("metadata for feed segment %q", segment), func() error {
		if err := c.downloader.GetFile(tempFile.Name(), c.mirrorURL(metaName(segment))); err != nil {
			return err
		}
		m, err := NewMetadataFromFile(c.fs, tempFile.Name())
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("mirror returned no metadata")
		}
		metadata = m
		return nil
	})
	return metadata, err
}

func (c *Curator) downloadArchive(segment string, remote *Metadata, archivePath, metaPath string) error {
	tempDir, err := afero.TempDir(c.fs, "", "vulnix-feed")
	if err != nil {
		return fmt.Errorf("unable to create feed temp dir: %w", err)
	}
	defer func() {
		if err := c.fs.RemoveAll(tempDir); err != nil {
			log.Errorf("unable to clean up feed temp dir (%s): %+v", tempDir, err)
		}
	}()

	tempPath := path.Join(tempDir, archiveName(segment))

	err = c.withRetry(fmt.Sprintf("archive for feed segment %q", segment), func() error {
		if err := c.downloader.GetFile(tempPath, c.mirrorURL(archiveName(segment))); err != nil {
			return err
		}
		return validateArchive(c.fs, tempPath, remote.SHA256)
	})
	if err != nil {
		return err
	}

	f, err := c.fs.Open(tempPath)
	if err != nil {
		return fmt.Errorf("unable to open downloaded archive (%s): %w", tempPath, err)
	}
	defer log.CloseAndLogError(f, tempPath)

	if err := file.ReplaceFileWithReader(c.fs, archivePath, f); err != nil {
		return fmt.Errorf("unable to store feed archive: %w", err)
	}
	// the descriptor lands after its payload, a crash in between only causes a redownload
	if err := file.ReplaceFileWithBytes(c.fs, metaPath, []byte(remote.String())); err != nil {
		return fmt.Errorf("unable to store feed metadata: %w", err)
	}
	return nil
}

// withRetry runs fn up to RequestRetryCount+1 times, doubling the pause between attempts.
func (c *Curator) withRetry(desc string, fn func() error) error {
	var errs error
	delay := retryBaseDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		errs = multierror.Append(errs, err)
		if attempt >= c.config.RequestRetryCount {
			return errs
		}
		log.Debugf("retrying %s in %v: %+v", desc, delay, err)
		time.Sleep(delay)
		delay *= 2
	}
}

// buildIndex parses every cached segment into a fresh product index. Merging is
// deliberately single threaded: the index map is not safe for concurrent writes, and the
// modified segment must land last so its copy of a record wins.
func (c *Curator) buildIndex(segments []string, monitor *progress.Manual) error {
	s := newStore()
	var indexed int

	for _, segment := range segments {
		monitor.N++

		archivePath := path.Join(c.config.CacheDir, archiveName(segment))
		exists, err := afero.Exists(c.fs, archivePath)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}

		feed, err := loadSegment(c.fs, archivePath)
		if err != nil {
			log.Warnf("skipping unreadable feed segment %q: %+v", segment, err)
			continue
		}

		records, metadata := recordsFromFeed(feed)
		s.add(records, metadata)
		indexed++
	}

	if indexed == 0 {
		log.Errorf("no usable feed data in cache (%s), all lookups will come up empty", c.config.CacheDir)
	}

	c.store = s
	return nil
}

func (c *Curator) cachedSegments() ([]string, error) {
	infos, err := afero.ReadDir(c.fs, c.config.CacheDir)
	if err != nil {
		if exists, existsErr := afero.DirExists(c.fs, c.config.CacheDir); existsErr == nil && !exists {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to read feed cache dir (%s): %w", c.config.CacheDir, err)
	}

	var segments []string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		if segment, err := segmentFromArchiveName(info.Name()); err == nil {
			segments = append(segments, segment)
		}
	}
	sort.Strings(segments)
	return segments, nil
}

func (c *Curator) mirrorURL(name string) string {
	return strings.TrimSuffix(c.config.MirrorURL, "/") + "/" + name
}

// validateArchive gunzips the archive and compares the digest of the decompressed payload
// against the descriptor's sha256, which is how the upstream feed publishes its checksums.
func validateArchive(fs afero.Fs, archivePath, expectedSHA256 string) error {
	f, err := fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("unable to open archive (%s): %w", archivePath, err)
	}
	defer log.CloseAndLogError(f, archivePath)

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("unable to decompress archive (%s): %w", archivePath, err)
	}
	defer log.CloseAndLogError(gz, archivePath)

	hasher := sha256.New()
	if _, err := io.Copy(hasher, gz); err != nil {
		return fmt.Errorf("unable to hash archive (%s): %w", archivePath, err)
	}

	actual := hex.EncodeToString(hasher.Sum(nil))
	if !strings.EqualFold(actual, expectedSHA256) {
		return fmt.Errorf("bad archive checksum (%s): %q vs %q", archivePath, expectedSHA256, actual)
	}
	return nil
}
