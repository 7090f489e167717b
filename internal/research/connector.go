// Package research manages connector research projects: a JSON-backed
// connector registry, an agent that generates multi-section research
// documents, and a job manager that runs generations as cancellable
// background tasks.
package research

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"docpipe/internal/vecstore"
)

// Status is the lifecycle state of a connector research project.
// Cancelled is terminal and distinct from Failed.
type Status string

const (
	StatusNotStarted  Status = "not_started"
	StatusResearching Status = "researching"
	StatusComplete    Status = "complete"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Progress tracks section-level research generation state.
type Progress struct {
	CurrentSection     int    `json:"current_section"`
	TotalSections      int    `json:"total_sections"`
	CurrentPhase       int    `json:"current_phase"`
	SectionsCompleted  []int  `json:"sections_completed"`
	SectionsFailed     []int  `json:"sections_failed"`
	CurrentSectionName string `json:"current_section_name"`
}

// Percentage reports completion as 0-100.
func (p Progress) Percentage() float64 {
	if p.TotalSections == 0 {
		return 0
	}
	return float64(len(p.SectionsCompleted)) / float64(p.TotalSections) * 100
}

// Connector is one research project. IndexName is the vector index the
// connector's documentation is indexed into.
type Connector struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"connector_type"`
	Status      Status     `json:"status"`
	Description string     `json:"description"`
	VectorCount int        `json:"vector_count"`
	Progress    Progress   `json:"progress"`
	IndexName   string     `json:"index_name"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Slug derives a URL-safe connector ID from a display name.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	slug := b.String()
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}

type registryFile struct {
	Connectors map[string]*Connector `json:"connectors"`
	Metadata   registryMeta          `json:"metadata"`
}

type registryMeta struct {
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the JSON-file-backed connector registry. Safe for concurrent
// use. Research documents live next to the registry, one directory per
// connector.
type Store struct {
	baseDir string
	now     func() time.Time

	mu         sync.Mutex
	connectors map[string]*Connector
}

// NewStore opens or creates the registry under baseDir. A corrupt
// registry file resets to empty rather than failing open.
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("research: base directory is empty")
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "_agent"), 0o755); err != nil {
		return nil, fmt.Errorf("creating connector directory: %w", err)
	}
	s := &Store{
		baseDir:    baseDir,
		now:        time.Now,
		connectors: make(map[string]*Connector),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) registryPath() string {
	return filepath.Join(s.baseDir, "_agent", "connectors_registry.json")
}

func (s *Store) researchPath(id string) string {
	return filepath.Join(s.baseDir, id, id+"-research.md")
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.registryPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading connector registry: %w", err)
	}
	var reg registryFile
	if err := json.Unmarshal(data, &reg); err != nil {
		// A damaged registry should not brick the whole service.
		s.connectors = make(map[string]*Connector)
		return nil
	}
	if reg.Connectors != nil {
		s.connectors = reg.Connectors
	}
	return nil
}

// save writes the registry atomically. Caller holds the lock.
func (s *Store) save() error {
	reg := registryFile{
		Connectors: s.connectors,
		Metadata:   registryMeta{Version: "1.0.0", UpdatedAt: s.now().UTC()},
	}
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding connector registry: %w", err)
	}
	tmp := s.registryPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing connector registry: %w", err)
	}
	if err := os.Rename(tmp, s.registryPath()); err != nil {
		return fmt.Errorf("replacing connector registry: %w", err)
	}
	return nil
}

// Create registers a new connector project and seeds its research
// document. The ID is the slug of the name; an existing ID is an error.
func (s *Store) Create(name, connectorType, description string) (*Connector, error) {
	id := Slug(name)
	if id == "" {
		return nil, fmt.Errorf("research: connector name %q produces an empty id", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.connectors[id]; exists {
		return nil, fmt.Errorf("research: connector %q already exists", id)
	}

	now := s.now().UTC()
	c := &Connector{
		ID:          id,
		Name:        name,
		Type:        connectorType,
		Status:      StatusNotStarted,
		Description: description,
		Progress:    Progress{TotalSections: len(Sections)},
		IndexName:   vecstore.ConnectorIndexName(id),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := os.MkdirAll(filepath.Join(s.baseDir, id, "sources"), 0o755); err != nil {
		return nil, fmt.Errorf("creating connector directory: %w", err)
	}
	if err := s.seedResearchDocument(c); err != nil {
		return nil, err
	}

	s.connectors[id] = c
	if err := s.save(); err != nil {
		delete(s.connectors, id)
		return nil, err
	}
	return copyConnector(c), nil
}

func (s *Store) seedResearchDocument(c *Connector) error {
	date := s.now().UTC().Format("2006-01-02")
	content := fmt.Sprintf(`# Connector Research: %s

**Subject:** %s Connector - Full Production Research
**Status:** In Progress
**Started:** %s
**Last Updated:** %s

---

## Research Overview

**Goal:** Produce exhaustive, production-grade research on how to build a data connector for %s.

**Connector Type:** %s

---

<!-- RESEARCH SECTIONS WILL BE APPENDED BELOW -->
`, c.Name, c.Name, date, date, c.Name, c.Type)
	if err := os.WriteFile(s.researchPath(c.ID), []byte(content), 0o644); err != nil {
		return fmt.Errorf("seeding research document: %w", err)
	}
	return nil
}

// Get returns a copy of the connector, or false if unknown.
func (s *Store) Get(id string) (*Connector, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connectors[id]
	if !ok {
		return nil, false
	}
	return copyConnector(c), true
}

// List returns all connectors ordered by ID.
func (s *Store) List() []*Connector {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Connector, 0, len(s.connectors))
	for _, c := range s.connectors {
		out = append(out, copyConnector(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Update applies fn to the connector under the lock, stamps UpdatedAt
// and persists. Returns the updated copy.
func (s *Store) Update(id string, fn func(*Connector)) (*Connector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connectors[id]
	if !ok {
		return nil, fmt.Errorf("research: connector %q not found", id)
	}
	fn(c)
	c.UpdatedAt = s.now().UTC()
	if err := s.save(); err != nil {
		return nil, err
	}
	return copyConnector(c), nil
}

// Delete removes the connector from the registry. The research files on
// disk are kept so finished work is never destroyed by an API call.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connectors[id]; !ok {
		return false, nil
	}
	delete(s.connectors, id)
	if err := s.save(); err != nil {
		return false, err
	}
	return true, nil
}

// AppendResearch appends a block to the connector's research document.
func (s *Store) AppendResearch(id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connectors[id]; !ok {
		return fmt.Errorf("research: connector %q not found", id)
	}
	f, err := os.OpenFile(s.researchPath(id), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening research document: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString("\n\n" + content); err != nil {
		return fmt.Errorf("appending research document: %w", err)
	}
	return nil
}

// ResearchDocument returns the connector's research document content.
func (s *Store) ResearchDocument(id string) (string, error) {
	s.mu.Lock()
	_, ok := s.connectors[id]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("research: connector %q not found", id)
	}
	data, err := os.ReadFile(s.researchPath(id))
	if err != nil {
		return "", fmt.Errorf("reading research document: %w", err)
	}
	return string(data), nil
}

func copyConnector(c *Connector) *Connector {
	dup := *c
	dup.Progress.SectionsCompleted = append([]int(nil), c.Progress.SectionsCompleted...)
	dup.Progress.SectionsFailed = append([]int(nil), c.Progress.SectionsFailed...)
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		dup.CompletedAt = &t
	}
	return &dup
}
