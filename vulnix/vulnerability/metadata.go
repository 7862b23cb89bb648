package vulnerability

// Metadata is the descriptive portion of an advisory. It plays no role in matching and is
// only resolved for records that end up in a report.
type Metadata struct {
	ID          string
	Description string
	Severity    string
	CvssV2      *Cvss
	CvssV3      *Cvss
	URLs        []string
}

type Cvss struct {
	BaseScore float64
	Vector    string
}
