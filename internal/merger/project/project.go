// Package project resolves how each documentation project is served: locally
// under the hub's own path space, or hosted externally. It also reads the
// optional per-project descriptor for curated quick-links.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docshub/docsearch/internal/snapshot"
	"github.com/docshub/docsearch/pkg/logger"
)

const (
	// EntryPage is the rendered page whose presence marks a project as
	// locally served.
	EntryPage = "index.html"
	// DescriptorFile is the optional per-project descriptor.
	DescriptorFile = "project-info.json"
)

// Descriptor is the optional per-project descriptor file. All fields are
// optional.
type Descriptor struct {
	ExternalBaseURL  string          `json:"externalBaseUrl"`
	ExternalDocsPath string          `json:"externalDocsPath"`
	SuggestedLinks   []SuggestedLink `json:"suggestedLinks"`
}

// SuggestedLink is a curated link relative to the project's base path.
type SuggestedLink struct {
	Title    string `json:"title"`
	Path     string `json:"path"`
	Subtitle string `json:"subtitle"`
}

// Resolution is the outcome of base-path resolution for one project.
type Resolution struct {
	// BasePath is the canonical URL prefix for the project's pages.
	BasePath string
	// DocsPath is the prefix used when generating document links. It equals
	// BasePath unless an external docs sub-path applies.
	DocsPath string
	// External marks projects whose pages are hosted elsewhere.
	External bool
	// QuickLinks are curated links resolved to absolute URLs. Empty when no
	// descriptor provides any; the caller substitutes a default link.
	QuickLinks []snapshot.QuickLink
}

// Resolve decides whether the project at dir is served locally or externally
// and derives its URL prefixes and quick-links. A project with neither a
// local entry page nor an external base URL falls back to the local path
// convention with a warning; the output will likely 404 but one
// misconfigured project must not abort the merge.
func Resolve(dir, projectID string) Resolution {
	log := logger.WithComponent("project-resolver")
	desc := readDescriptor(dir)

	res := Resolution{}
	switch {
	case fileExists(filepath.Join(dir, EntryPage)):
		res.BasePath = "/" + projectID
		res.DocsPath = res.BasePath
	case desc != nil && desc.ExternalBaseURL != "":
		res.External = true
		res.BasePath = strings.TrimSuffix(desc.ExternalBaseURL, "/")
		res.DocsPath = res.BasePath
		if desc.ExternalDocsPath != "" {
			res.DocsPath = res.BasePath + "/" + strings.Trim(desc.ExternalDocsPath, "/")
		}
	default:
		log.Warn("project has no rendered entry page and no external base URL, falling back to local path",
			"project", projectID, "dir", dir)
		res.BasePath = "/" + projectID
		res.DocsPath = res.BasePath
	}

	if desc != nil {
		for _, link := range desc.SuggestedLinks {
			res.QuickLinks = append(res.QuickLinks, snapshot.QuickLink{
				Title:    link.Title,
				URL:      joinPath(res.BasePath, link.Path),
				Subtitle: link.Subtitle,
			})
		}
	}
	return res
}

// DefaultQuickLinks returns the single "Documentation" link callers use when
// a project's descriptor provides none.
func DefaultQuickLinks(basePath string) []snapshot.QuickLink {
	return []snapshot.QuickLink{{
		Title: "Documentation",
		URL:   joinPath(basePath, "/"),
	}}
}

// DocumentURL resolves a document filename to its absolute URL under the
// project's docs path.
func (r Resolution) DocumentURL(filename string) string {
	return joinPath(r.DocsPath, filename)
}

func readDescriptor(dir string) *Descriptor {
	path := filepath.Join(dir, DescriptorFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		logger.WithComponent("project-resolver").Warn("ignoring unparseable project descriptor",
			"path", path, "error", fmt.Sprint(err))
		return nil
	}
	return &desc
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func joinPath(base, rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return base + "/"
	}
	return base + "/" + rel
}
