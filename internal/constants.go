package internal

const (
	// ApplicationName is the non-capitalized name of the application (do not change this)
	ApplicationName = "vulnix"

	// FeedMirrorURL is the base URL serving the vulnerability feed segments and their metadata files
	FeedMirrorURL = "https://nvd.nist.gov/feeds/json/cve/1.1/"
)
