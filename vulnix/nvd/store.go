package nvd

import (
	"fmt"
	"strings"

	"github.com/flyingcircus/vulnix/vulnix/vulnerability"
)

// store is the in-memory feed index: product name (lowercased) to advisory claims, plus the
// descriptive metadata per advisory ID. It is built once per update and read-only afterwards.
type store struct {
	byProduct map[string][]vulnerability.Vulnerability
	metadata  map[string]*vulnerability.Metadata
}

func newStore() *store {
	return &store{
		byProduct: make(map[string][]vulnerability.Vulnerability),
		metadata:  make(map[string]*vulnerability.Metadata),
	}
}

// add merges one segment's worth of parsed records into the index. Claims that repeat an
// already indexed (id, product, constraint) combination are dropped, which makes re-adding
// the same segment a no-op; the "modified" segment replaces the descriptive metadata of
// records it repeats, since it carries the fresher copy.
func (s *store) add(records []vulnerability.Vulnerability, metadata []vulnerability.Metadata) {
	for _, record := range records {
		key := strings.ToLower(record.Product)
		if s.contains(key, record) {
			continue
		}
		s.byProduct[key] = append(s.byProduct[key], record)
	}
	for i := range metadata {
		m := metadata[i]
		s.metadata[m.ID] = &m
	}
}

func (s *store) contains(key string, record vulnerability.Vulnerability) bool {
	for _, existing := range s.byProduct[key] {
		if existing.ID == record.ID && existing.Constraint.String() == record.Constraint.String() {
			return true
		}
	}
	return false
}

func (s *store) GetByProduct(product string) ([]vulnerability.Vulnerability, error) {
	return s.byProduct[strings.ToLower(product)], nil
}

func (s *store) GetMetadata(id string) (*vulnerability.Metadata, error) {
	metadata, ok := s.metadata[id]
	if !ok {
		return nil, fmt.Errorf("no metadata for vulnerability %q", id)
	}
	return metadata, nil
}

func (s *store) size() int {
	return len(s.metadata)
}
