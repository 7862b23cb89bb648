package nvd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/flyingcircus/vulnix/internal/log"
)

// Metadata mirrors the small ".meta" descriptor published next to every feed archive. The
// size and sha256 fields describe the decompressed JSON payload, not the archive itself.
type Metadata struct {
	LastModified time.Time
	Size         int64
	ZipSize      int64
	GzSize       int64
	SHA256       string
}

// NewMetadataFromFile loads a cached segment descriptor. A missing file yields a nil
// metadata (no error), meaning the segment has never been synced.
func NewMetadataFromFile(fs afero.Fs, path string) (*Metadata, error) {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to open metadata (%s): %w", path, err)
	}
	defer log.CloseAndLogError(f, path)

	metadata, err := NewMetadataFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("unable to parse metadata (%s): %w", path, err)
	}
	return metadata, nil
}

func NewMetadataFromReader(reader io.Reader) (*Metadata, error) {
	var m Metadata

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed metadata line: %q", line)
		}
		key, value := fields[0], strings.TrimSpace(fields[1])

		var err error
		switch key {
		case "lastModifiedDate":
			m.LastModified, err = time.Parse(time.RFC3339, value)
		case "size":
			m.Size, err = strconv.ParseInt(value, 10, 64)
		case "zipSize":
			m.ZipSize, err = strconv.ParseInt(value, 10, 64)
		case "gzSize":
			m.GzSize, err = strconv.ParseInt(value, 10, 64)
		case "sha256":
			m.SHA256 = value
		default:
			// unknown keys are tolerated, the upstream format has grown fields before
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("malformed metadata field %q: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if m.SHA256 == "" {
		return nil, fmt.Errorf("metadata has no sha256 field")
	}

	return &m, nil
}

// IsSupersededBy indicates whether the remote copy described by other carries different
// content than this one. Nil receivers (nothing cached yet) are always superseded.
func (m *Metadata) IsSupersededBy(other *Metadata) bool {
	if m == nil {
		return true
	}
	if other == nil {
		return false
	}
	return !strings.EqualFold(m.SHA256, other.SHA256)
}

func (m Metadata) String() string {
	return strings.Join([]string{
		"lastModifiedDate:" + m.LastModified.Format(time.RFC3339),
		"size:" + strconv.FormatInt(m.Size, 10),
		"zipSize:" + strconv.FormatInt(m.ZipSize, 10),
		"gzSize:" + strconv.FormatInt(m.GzSize, 10),
		"sha256:" + m.SHA256,
	}, "\r\n") + "\r\n"
}
