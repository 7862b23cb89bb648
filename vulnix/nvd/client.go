package nvd

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/flyingcircus/vulnix/internal/file"
)

// newDownloader builds the mirror client: request timeout from the configuration and,
// when a CA certificate is given, a transport that trusts (only) that CA. Private mirrors
// are commonly fronted by internal CAs.
func newDownloader(cfg Config) (file.Getter, error) {
	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return file.NewGetter(httpClient), nil
}

func newHTTPClient(cfg Config) (*http.Client, error) {
	httpClient := cleanhttp.DefaultClient()
	httpClient.Timeout = cfg.RequestTimeout

	if cfg.CACert != "" {
		pem, err := ioutil.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("unable to read CA certificate (%s): %w", cfg.CACert, err)
		}
		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("unable to parse CA certificate (%s)", cfg.CACert)
		}

		transport := cleanhttp.DefaultTransport()
		transport.TLSClientConfig = &tls.Config{
			RootCAs: certPool,
		}
		httpClient.Transport = transport
	}

	return httpClient, nil
}
