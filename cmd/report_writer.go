package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/flyingcircus/vulnix/internal/file"
)

func reportWriter() (io.Writer, func() error, error) {
	writer, closer, err := file.GetWriter(afero.NewOsFs(), os.Stdout, appConfig.File)
	if err != nil || appConfig.File == "" {
		return writer, closer, err
	}

	return writer, func() error {
		if !appConfig.Quiet {
			fmt.Printf("Report written to %q\n", appConfig.File)
		}
		return closer()
	}, nil
}
