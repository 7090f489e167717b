package document

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"docpipe/internal/log"
)

// codeLanguages maps recognized source file extensions to language names.
var codeLanguages = map[string]string{
	".java": "java",
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".cs":   "csharp",
	".sql":  "sql",
}

// skipDirs are directory names never descended into during a code walk.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"build":        true,
	"dist":         true,
}

// Code normalizes a source tree into one Document per recognized source
// file. Each document gets a summary header (filename, language,
// component) prepended so short queries match on structure, not just on
// identifiers buried in the body.
type Code struct {
	log log.Logger
}

func NewCode(logger log.Logger) *Code {
	return &Code{log: logger}
}

// Normalize walks the source tree at path. Unreadable files are logged
// and skipped.
func (n *Code) Normalize(ctx context.Context, path string) ([]Document, error) {
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
		lang, ok := codeLanguages[strings.ToLower(filepath.Ext(d.Name()))]
		if !ok {
			return nil
		}
		doc, err := n.file(path, p, lang)
		if err != nil {
			n.log.Warn("skipping source file", "file", p, "error", err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return docs, fmt.Errorf("walk %s: %w", path, err)
	}
	return docs, nil
}

func (n *Code) file(root, path, lang string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	filename := filepath.Base(path)
	component := classifyComponent(rel)
	_, objectType := Classify(filename, "")

	header := fmt.Sprintf("Source file: %s\nLanguage: %s\nComponent: %s\n", rel, lang, component)
	if objectType != objectTypeGeneral {
		header += fmt.Sprintf("Object Type: %s\n", objectType)
	}

	return Document{
		SourceID: rel,
		Filename: filename,
		Text:     header + "\n" + CleanText(string(raw)),
		Kind:     KindCode,
		Metadata: map[string]string{
			"doc_category": "CODE",
			"object_type":  objectType,
			"language":     lang,
			"component":    component,
		},
	}, nil
}

// classifyComponent buckets a source file by the role its relative path
// suggests. Directory names count: src/util/Dates.java is a utility even
// though the filename alone says nothing.
func classifyComponent(relPath string) string {
	name := strings.ToLower(relPath)
	switch {
	case strings.Contains(name, "search"):
		return "search"
	case strings.Contains(name, "record") || strings.Contains(name, "type"):
		return "record_type"
	case strings.Contains(name, "auth") || strings.Contains(name, "credential"):
		return "authentication"
	case strings.Contains(name, "config"):
		return "configuration"
	case strings.Contains(name, "util") || strings.Contains(name, "helper"):
		return "utility"
	default:
		return "core"
	}
}
