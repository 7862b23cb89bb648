package nvd

import (
	"fmt"
	"path"
	"time"

	"github.com/hashicorp/go-multierror"
)

type Status struct {
	Location     string
	Segments     int
	LastModified time.Time
	Err          error
}

// SegmentState describes a single cached feed segment for status listings.
type SegmentState struct {
	Segment      string
	LastModified time.Time
	Size         int64
	Err          error
}

// Status summarizes what the cache currently holds. It checks descriptor/archive
// consistency but deliberately skips payload digests, which would mean decompressing the
// whole cache; use Validate for that.
func (c *Curator) Status() Status {
	status := Status{
		Location: c.config.CacheDir,
	}

	segments, err := c.cachedSegments()
	if err != nil {
		status.Err = err
		return status
	}
	status.Segments = len(segments)

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
		if metadata.LastModified.After(status.LastModified) {
			status.LastModified = metadata.LastModified
		}
	}

	if status.Segments == 0 && errs == nil {
		errs = fmt.Errorf("feed cache is empty (run feed update)")
	}
	status.Err = errs
	return status
}
