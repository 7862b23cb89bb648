package version

import (
	"strings"
)

const (
	UnknownFormat Format = iota
	SemanticFormat
	NixFormat
)

type Format int

var formatStr = []string{
	"UnknownFormat",
	"Semantic",
	"Nix",
}

var Formats = []Format{
	SemanticFormat,
	NixFormat,
}

func ParseFormat(userStr string) Format {
	switch strings.ToLower(userStr) {
	case strings.ToLower(SemanticFormat.String()), "semver":
		return SemanticFormat
	case strings.ToLower(NixFormat.String()), "store":
		return NixFormat
	}
	return UnknownFormat
}

func (f Format) String() string {
	if int(f) >= len(formatStr) || f < 0 {
		return formatStr[0]
	}

	return formatStr[f]
}
