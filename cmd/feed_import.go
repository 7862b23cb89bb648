package cmd

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/flyingcircus/vulnix/internal/log"
	"github.com/flyingcircus/vulnix/vulnix/nvd"
)

var feedImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "import an advisory feed segment archive",
	Long: `import an advisory feed segment from a local FILE (e.g. carried onto an air-gapped host).
The file must be a nvdcve-1.1-<segment>.json or .json.gz as published by the feed mirror.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ret := runFeedImportCmd(cmd, args)
		if ret != 0 {
			fmt.Println("Unable to import advisory feed segment")
		}
		os.Exit(ret)
	},
}

func init() {
	feedCmd.AddCommand(feedImportCmd)
}

func runFeedImportCmd(_ *cobra.Command, args []string) int {
	curator, err := nvd.NewCurator(appConfig.Feed.ToCuratorConfig())
	if err != nil {
		log.Errorf("could not open feed cache: %+v", err)
		return 1
	}

	archivePath, cleanup, err := normalizeFeedArchive(args[0])
	if err != nil {
		log.Errorf("unable to import advisory feed segment: %+v", err)
		return 1
	}
	defer cleanup()

	if err := curator.ImportFrom(archivePath); err != nil {
		log.Errorf("unable to import advisory feed segment: %+v", err)
		return 1
	}

	fmt.Println("Advisory feed segment imported")

	return 0
}

// normalizeFeedArchive sniffs the given file and hands back a gzipped archive path the
// curator can take as-is. Plain JSON segments are compressed into a scratch directory;
// anything else than JSON or gzip is rejected.
func normalizeFeedArchive(sourcePath string) (string, func(), error) {
	nop := func() {}

	mime, err := mimetype.DetectFile(sourcePath)
	if err != nil {
		return "", nop, fmt.Errorf("unable to detect file type of %q: %w", sourcePath, err)
	}

	switch {
	case mime.Is("application/gzip"):
		return sourcePath, nop, nil
	case mime.Is("application/json"):
		tempDir, err := os.MkdirTemp("", "vulnix-feed-import")
		if err != nil {
			return "", nop, fmt.Errorf("unable to create scratch dir: %w", err)
		}
		cleanup := func() {
			if err := os.RemoveAll(tempDir); err != nil {
				log.Warnf("unable to clean up scratch dir %q: %+v", tempDir, err)
			}
		}

		archivePath := filepath.Join(tempDir, filepath.Base(sourcePath)+".gz")
		if err := gzipFile(sourcePath, archivePath); err != nil {
			cleanup()
			return "", nop, err
		}
		return archivePath, cleanup, nil
	default:
		return "", nop, fmt.Errorf("unsupported file type %q (want JSON or gzipped JSON)", mime.String())
	}
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer log.CloseAndLogError(in, src)

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		out.Close()
		return fmt.Errorf("unable to compress %q: %w", src, err)
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
