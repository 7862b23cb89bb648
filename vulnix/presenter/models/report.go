package models

import (
	"github.com/flyingcircus/vulnix/vulnix/match"
	"github.com/flyingcircus/vulnix/vulnix/whitelist"
)

// Report carries everything a presenter needs to render scan results.
type Report struct {
	Affected        match.Matches
	Masked          []whitelist.Masked
	ShowWhitelisted bool
}
