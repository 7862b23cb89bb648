package vulnixerr

var (
	// ErrVulnerabilitiesFound indicates that unwhitelisted vulnerabilities remain after filtering.
	ErrVulnerabilitiesFound = NewExpectedErr("vulnerabilities found")

	// ErrOnlyWhitelistedFound indicates that every finding was covered by an active whitelist rule.
	ErrOnlyWhitelistedFound = NewExpectedErr("only whitelisted vulnerabilities found")

	// ErrNoScanTargets indicates that no store path, system or gc-roots scan target was requested.
	ErrNoScanTargets = NewExpectedErr("no scan targets specified")
)
