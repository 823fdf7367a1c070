package ingest

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"forma/pkg/models"
)

// Candidate is a normalized record plus where it came from. Order is the
// record's position in the run's input stream and drives tie-breaks.
type Candidate struct {
	Record models.CanonicalFoodRecord
	Order  int
	Source string
}

// DuplicateGroup holds every candidate judged to be the same food, in
// input order. A group with one candidate is not a duplicate.
type DuplicateGroup struct {
	Key        string
	Candidates []Candidate
}

// Session tracks identities seen across all files of one run. Create one
// per run; it is not safe for concurrent use.
type Session struct {
	groups  []*DuplicateGroup
	parent  []int
	byID    map[string]int
	byName  map[string]int
	invalid []Candidate
	seen    int
	fold    cases.Caser
}

func NewSession() *Session {
	return &Session{
		byID:   make(map[string]int),
		byName: make(map[string]int),
		fold:   cases.Fold(),
	}
}

// Add registers records from one source in order. A record whose id key
// and name key point at different groups merges those groups.
func (s *Session) Add(source string, records []models.CanonicalFoodRecord) {
	for _, rec := range records {
		c := Candidate{Record: rec, Order: s.seen, Source: source}
		s.seen++

		if isInvalid(rec) {
			s.invalid = append(s.invalid, c)
			continue
		}

		idKey := s.key(rec.ExternalID)
		nameKey := s.nameKey(rec)

		idGroup, byID := s.byID[idKey]
		nameGroup, byName := s.byName[nameKey]

		var gi int
		switch {
		case byID && byName:
			gi = s.union(s.find(idGroup), s.find(nameGroup))
		case byID:
			gi = s.find(idGroup)
		case byName:
			gi = s.find(nameGroup)
		default:
			gi = len(s.groups)
			s.groups = append(s.groups, &DuplicateGroup{Key: nameKey})
			s.parent = append(s.parent, gi)
		}
		s.groups[gi].Candidates = append(s.groups[gi].Candidates, c)

		if !byID {
			s.byID[idKey] = gi
		}
		if !byName {
			s.byName[nameKey] = gi
		}
	}
}

// find returns the live group that group i was merged into.
func (s *Session) find(i int) int {
	for s.parent[i] != i {
		s.parent[i] = s.parent[s.parent[i]]
		i = s.parent[i]
	}
	return i
}

// union folds the later of two groups into the earlier one and returns the
// surviving index. Candidates stay in input order.
func (s *Session) union(a, b int) int {
	if a == b {
		return a
	}
	if b < a {
		a, b = b, a
	}
	merged := append(s.groups[a].Candidates, s.groups[b].Candidates...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Order < merged[j].Order })
	s.groups[a].Candidates = merged
	s.groups[b] = nil
	s.parent[b] = a
	return a
}

// Seen returns how many records have been added, invalid ones included.
func (s *Session) Seen() int { return s.seen }

// Accepted returns the first-seen record of every identity.
func (s *Session) Accepted() []models.CanonicalFoodRecord {
	out := make([]models.CanonicalFoodRecord, 0, len(s.groups))
	for _, g := range s.live() {
		out = append(out, g.Candidates[0].Record)
	}
	return out
}

// Groups returns every identity group in first-seen order, singletons
// included.
func (s *Session) Groups() []DuplicateGroup {
	live := s.live()
	out := make([]DuplicateGroup, 0, len(live))
	for _, g := range live {
		out = append(out, *g)
	}
	return out
}

// Duplicates returns the groups with more than one candidate.
func (s *Session) Duplicates() []DuplicateGroup {
	var out []DuplicateGroup
	for _, g := range s.live() {
		if len(g.Candidates) > 1 {
			out = append(out, *g)
		}
	}
	return out
}

func (s *Session) Invalid() []Candidate {
	return s.invalid
}

// DuplicatesSkipped counts the candidates that lost to another member of
// their group.
func (s *Session) DuplicatesSkipped() int {
	n := 0
	for _, g := range s.live() {
		n += len(g.Candidates) - 1
	}
	return n
}

// Survivors resolves every group and returns one winner per identity, in
// the order identities were first seen.
func (s *Session) Survivors() []models.CanonicalFoodRecord {
	out := make([]models.CanonicalFoodRecord, 0, len(s.groups))
	for _, g := range s.live() {
		winner, _ := ResolveGroup(g.Candidates)
		out = append(out, winner.Record)
	}
	return out
}

// live returns the groups that were not merged away, in first-seen order.
func (s *Session) live() []*DuplicateGroup {
	out := make([]*DuplicateGroup, 0, len(s.groups))
	for _, g := range s.groups {
		if g != nil {
			out = append(out, g)
		}
	}
	return out
}

func (s *Session) key(v string) string {
	return s.fold.String(strings.TrimSpace(v))
}

func (s *Session) nameKey(rec models.CanonicalFoodRecord) string {
	return s.key(rec.NameEn) + "\x00" + s.key(rec.Brand())
}

func isInvalid(rec models.CanonicalFoodRecord) bool {
	name := strings.TrimSpace(rec.NameEn)
	return name == "" || name == PlaceholderName
}

// IdentityResult is the single-pass view of GroupByIdentity.
type IdentityResult struct {
	Accepted   []models.CanonicalFoodRecord
	Duplicates []DuplicateGroup
	Invalid    []models.CanonicalFoodRecord
}

// GroupByIdentity runs one fresh session over records.
func GroupByIdentity(records []models.CanonicalFoodRecord) IdentityResult {
	s := NewSession()
	s.Add("", records)

	res := IdentityResult{
		Accepted:   s.Accepted(),
		Duplicates: s.Duplicates(),
	}
	for _, c := range s.Invalid() {
		res.Invalid = append(res.Invalid, c.Record)
	}
	return res
}
