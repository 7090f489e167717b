package document

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docpipe/internal/log"
)

// researchCategories maps research directory names to categories.
var researchCategories = map[string]string{
	"01_objects":     "OBJECTS",
	"02_relations":   "RELATIONS",
	"03_permissions": "PERMISSIONS",
	"04_replication": "REPLICATION",
	"05_api_limits":  "GOVERNANCE",
	"06_operations":  "OPERATIONS",
	"07_summary":     "SUMMARY",
	"08_technical":   "TECHNICAL",
}

// excludedResearchFiles are never treated as research content.
var excludedResearchFiles = map[string]bool{
	"package.json":      true,
	"package-lock.json": true,
	"readme.md":         true,
}

// minResearchLen filters out stub files.
const minResearchLen = 50

// Research normalizes analysis output (JSON and Markdown files) into
// documents. JSON is rendered to indented prose so embeddings capture the
// content rather than the syntax.
type Research struct {
	log log.Logger
}

func NewResearch(logger log.Logger) *Research {
	return &Research{log: logger}
}

// Normalize walks the research tree at path. Files that fail to parse are
// logged and skipped.
func (n *Research) Normalize(ctx context.Context, path string) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if excludedResearchFiles[strings.ToLower(d.Name())] {
			return nil
		}

		var doc Document
		var ferr error
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".json":
			doc, ferr = n.jsonFile(path, p)
		case ".md":
			doc, ferr = n.markdownFile(path, p)
		default:
			return nil
		}
		if ferr != nil {
			n.log.Warn("skipping research file", "file", p, "error", ferr)
			return nil
		}
		if doc.Text != "" {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return docs, fmt.Errorf("walk %s: %w", path, err)
	}
	return docs, nil
}

func (n *Research) jsonFile(root, path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return Document{}, fmt.Errorf("parse json: %w", err)
	}

	rel := relPath(root, path)
	filename := filepath.Base(path)
	category := researchCategory(rel)
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	var b strings.Builder
	fmt.Fprintf(&b, "# Research Document: %s\n", stem)
	fmt.Fprintf(&b, "Category: %s\n", category)
	fmt.Fprintf(&b, "File: %s\n\n## Content\n\n", filename)
	b.WriteString(jsonToText(data, 0))

	return Document{
		SourceID: rel,
		Filename: filename,
		Text:     b.String(),
		Kind:     KindResearch,
		Metadata: map[string]string{
			"doc_category": category,
			"doc_type":     "json",
		},
	}, nil
}

func (n *Research) markdownFile(root, path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	content := strings.TrimSpace(string(raw))
	if len(content) < minResearchLen {
		return Document{}, nil
	}

	rel := relPath(root, path)
	filename := filepath.Base(path)
	category := researchCategory(rel)
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	var b strings.Builder
	fmt.Fprintf(&b, "Research Document: %s\n", stem)
	fmt.Fprintf(&b, "Category: %s\n\n", category)
	b.WriteString(content)

	return Document{
		SourceID: rel,
		Filename: filename,
		Text:     b.String(),
		Kind:     KindResearch,
		Metadata: map[string]string{
			"doc_category": category,
			"doc_type":     "markdown",
		},
	}, nil
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// researchCategory matches a known directory name anywhere in the
// relative path, falling back to the generic RESEARCH category.
func researchCategory(rel string) string {
	for dir, cat := range researchCategories {
		if strings.Contains(rel, dir) {
			return cat
		}
	}
	return "RESEARCH"
}

// listTruncate bounds how many list elements are rendered; long tails add
// noise without improving retrieval.
const (
	stringListLimit = 20
	objectListLimit = 10
)

// jsonToText renders parsed JSON as indented prose. Map keys are sorted
// so output is deterministic, and key names are humanized
// (total_objects -> Total Objects).
func jsonToText(data any, depth int) string {
	indent := strings.Repeat("  ", depth)
	var lines []string

	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			label := humanizeKey(k)
			switch val := v[k].(type) {
			case map[string]any:
				lines = append(lines, indent+label+":")
				lines = append(lines, jsonToText(val, depth+1))
			case []any:
				lines = append(lines, renderList(label, val, depth)...)
			default:
				lines = append(lines, fmt.Sprintf("%s%s: %v", indent, label, scalar(val)))
			}
		}
	case []any:
		for i, item := range v {
			if i >= objectListLimit {
				lines = append(lines, fmt.Sprintf("%s... and %d more items", indent, len(v)-objectListLimit))
				break
			}
			lines = append(lines, jsonToText(item, depth))
		}
	default:
		lines = append(lines, indent+fmt.Sprint(scalar(v)))
	}
	return strings.Join(lines, "\n")
}

func renderList(label string, items []any, depth int) []string {
	indent := strings.Repeat("  ", depth)
	if len(items) == 0 {
		return []string{indent + label + ": (empty)"}
	}

	allStrings := true
	for _, it := range items {
		if _, ok := it.(string); !ok {
			allStrings = false
			break
		}
	}
	if allStrings {
		shown := items
		suffix := ""
		if len(items) > stringListLimit {
			shown = items[:stringListLimit]
			suffix = fmt.Sprintf(" ... (+%d more)", len(items)-stringListLimit)
		}
		parts := make([]string, len(shown))
		for i, it := range shown {
			parts[i] = it.(string)
		}
		return []string{fmt.Sprintf("%s%s: %s%s", indent, label, strings.Join(parts, ", "), suffix)}
	}

	lines := []string{fmt.Sprintf("%s%s (%d items):", indent, label, len(items))}
	for i, it := range items {
		if i >= objectListLimit {
			lines = append(lines, fmt.Sprintf("%s  ... and %d more items", indent, len(items)-objectListLimit))
			break
		}
		lines = append(lines, jsonToText(it, depth+1))
	}
	return lines
}

// scalar prints whole JSON numbers as integers; encoding/json decodes
// every number to float64, which would otherwise render 5 as 5e+00 in
// edge cases.
func scalar(v any) any {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return v
}

func humanizeKey(k string) string {
	words := strings.FieldsFunc(k, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
