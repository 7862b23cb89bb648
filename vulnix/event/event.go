package event

import "github.com/wagoodman/go-partybus"

const (
	AppUpdateAvailable            partybus.EventType = "vulnix-app-update-available"
	UpdateVulnerabilityFeed       partybus.EventType = "vulnix-update-vulnerability-feed"
	VulnerabilityScanningStarted  partybus.EventType = "vulnix-vulnerability-scanning-started"
	VulnerabilityScanningFinished partybus.EventType = "vulnix-vulnerability-scanning-finished"
	NonRootCommandFinished        partybus.EventType = "vulnix-non-root-command-finished"
)
