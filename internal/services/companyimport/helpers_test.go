package companyimport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"company-directory-backend/internal/models"
	"company-directory-backend/internal/progress"

	"github.com/google/uuid"
)

func testCIN(i int) string {
	return fmt.Sprintf("U%05dKA2010PTC%06d", i%100000, i)
}

func companyRow(i int) []string {
	return []string{
		testCIN(i),
		fmt.Sprintf("Company %d Private Limited", i),
		"Company limited by Shares",
		"Non-govt company",
		"Private",
		"100000",
		"50000",
		"2012-01-15",
		"12 MG Road, Bengaluru",
		"Active",
		"KA",
		"72200",
	}
}

func buildCSV(rows ...[]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(TemplateHeader, ",") + "\n")
	for _, r := range rows {
		quoted := make([]string, len(r))
		for i, v := range r {
			if strings.ContainsAny(v, ",\"") {
				v = `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
			}
			quoted[i] = v
		}
		b.WriteString(strings.Join(quoted, ",") + "\n")
	}
	return b.String()
}

func companyRows(n int) [][]string {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = companyRow(i + 1)
	}
	return rows
}

// fakeStore is an in-memory Store whose batch calls can be made to fail.
type fakeStore struct {
	mu        sync.Mutex
	keys      map[string]struct{}
	companies []models.Company
	calls     int
	failCalls map[int]error
	lookups   int
	slugBases [][]string
	slugErr   error
}

func newFakeStore(existing ...string) *fakeStore {
	s := &fakeStore{keys: make(map[string]struct{}), failCalls: make(map[int]error)}
	for _, k := range existing {
		s.keys[k] = struct{}{}
	}
	return s
}

func (s *fakeStore) ExistingKeys(_ context.Context, keys []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	found := make(map[string]struct{})
	for _, k := range keys {
		if _, ok := s.keys[k]; ok {
			found[k] = struct{}{}
		}
	}
	return found, nil
}

func (s *fakeStore) InsertBatch(_ context.Context, batch []models.Company) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err, ok := s.failCalls[s.calls]; ok {
		return 0, err
	}
	n := 0
	for _, c := range batch {
		if _, ok := s.keys[c.CIN]; ok {
			continue
		}
		s.keys[c.CIN] = struct{}{}
		s.companies = append(s.companies, c)
		n++
	}
	return n, nil
}

func (s *fakeStore) TakenSlugs(_ context.Context, bases []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slugBases = append(s.slugBases, bases)
	if s.slugErr != nil {
		return nil, s.slugErr
	}
	taken := make(map[string]struct{})
	for _, c := range s.companies {
		for _, b := range bases {
			if c.Slug == b || strings.HasPrefix(c.Slug, b+"-") {
				taken[c.Slug] = struct{}{}
			}
		}
	}
	return taken, nil
}

type recordingEmitter struct {
	frames  []progress.Frame
	failAt  int
	emitted int
}

func (e *recordingEmitter) Emit(f progress.Frame) error {
	e.emitted++
	if e.failAt > 0 && e.emitted >= e.failAt {
		return fmt.Errorf("client went away")
	}
	e.frames = append(e.frames, f)
	return nil
}

func (e *recordingEmitter) stage(s progress.Stage) []progress.Frame {
	var out []progress.Frame
	for _, f := range e.frames {
		if f.Stage == s {
			out = append(out, f)
		}
	}
	return out
}

type fakeRuns struct {
	started  []string
	finished map[uuid.UUID]RunSummary
}

func (r *fakeRuns) StartRun(_ context.Context, filename string) (uuid.UUID, error) {
	r.started = append(r.started, filename)
	return uuid.New(), nil
}

func (r *fakeRuns) FinishRun(_ context.Context, id uuid.UUID, summary RunSummary) error {
	if r.finished == nil {
		r.finished = make(map[uuid.UUID]RunSummary)
	}
	r.finished[id] = summary
	return nil
}
