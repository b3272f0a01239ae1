package handler

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"fredserve/internal/common"
	"fredserve/internal/output"
)

var validProjectName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Subdirectories created for every new project, one per data domain.
var projectSubdirectories = []string{"series", "maps", "releases", "categories", "sources", "tags"}

var validSortFields = map[string]bool{"name": true, "size": true, "modified": true}

type ProjectHandler struct {
	resolver *output.PathResolver
}

func NewProjectHandler(resolver *output.PathResolver) *ProjectHandler {
	return &ProjectHandler{resolver: resolver}
}

func (h *ProjectHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{project}/files", h.files)
}

type projectMetadata struct {
	Project        string `json:"project"`
	Path           string `json:"path"`
	FileCount      int    `json:"file_count"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	LatestModified string `json:"latest_modified,omitempty"`
}

func (h *ProjectHandler) list(w http.ResponseWriter, r *http.Request) {
	root := h.resolver.Root()
	entries, err := os.ReadDir(root)
	if err != nil {
		common.RespondWithError(w, common.NewAPIErrorf(common.CodeStorageNotAvailable, "the configured storage directory is not accessible").
			WithDetail("directory", root))
		return
	}

	projects := []projectMetadata{}
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, gatherProjectMetadata(filepath.Join(root, entry.Name())))
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Project < projects[j].Project })

	common.RespondWithJSON(w, http.StatusOK, map[string]any{
		"count":    len(projects),
		"projects": projects,
	})
}

func (h *ProjectHandler) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Project string `json:"project"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.RespondWithError(w, common.NewAPIError(common.CodeInvalidParameter, "request body must be JSON"))
		return
	}
	if body.Project == "" || !validProjectName.MatchString(body.Project) {
		common.RespondWithError(w, common.NewAPIError(common.CodeInvalidProjectName,
			"project names must use letters, numbers, hyphens, or underscores only").
			WithDetail("project", body.Project))
		return
	}

	projectDir := filepath.Join(h.resolver.Root(), body.Project)
	if _, err := os.Stat(projectDir); err == nil {
		common.RespondWithError(w, common.NewAPIErrorf(common.CodeProjectExists, "project '%s' already exists", body.Project).
			WithDetail("project", body.Project))
		return
	}

	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		common.RespondWithError(w, common.NewAPIErrorf(common.CodeWritePermissionDenied, "cannot create project directory: %v", err))
		return
	}
	for _, subdir := range projectSubdirectories {
		if err := os.MkdirAll(filepath.Join(projectDir, subdir), 0o755); err != nil {
			common.RespondWithError(w, common.NewAPIErrorf(common.CodeWritePermissionDenied, "cannot create subdirectory: %v", err))
			return
		}
	}

	metadataPath := filepath.Join(projectDir, ".project.json")
	metadata, _ := json.MarshalIndent(map[string]any{
		"project":        body.Project,
		"created_at":     time.Now().UTC().Format(time.RFC3339),
		"subdirectories": projectSubdirectories,
	}, "", "  ")
	if err := os.WriteFile(metadataPath, append(metadata, '\n'), 0o644); err != nil {
		common.RespondWithError(w, common.NewAPIErrorf(common.CodeWritePermissionDenied, "cannot write project metadata: %v", err))
		return
	}

	common.RespondWithJSON(w, http.StatusCreated, map[string]any{
		"project":       body.Project,
		"path":          projectDir,
		"metadata_file": metadataPath,
	})
}

type fileEntry struct {
	Name         string `json:"name"`
	RelativePath string `json:"relative_path"`
	SizeBytes    int64  `json:"size_bytes"`
	ModifiedAt   string `json:"modified_at"`
	Path         string `json:"path"`

	modified time.Time
}

func (h *ProjectHandler) files(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	if project == "" || !validProjectName.MatchString(project) {
		common.RespondWithError(w, common.NewAPIError(common.CodeInvalidProjectName,
			"project names must use letters, numbers, hyphens, or underscores only").
			WithDetail("project", project))
		return
	}

	projectDir := filepath.Join(h.resolver.Root(), project)
	if info, err := os.Stat(projectDir); err != nil || !info.IsDir() {
		common.RespondWithError(w, common.NewAPIErrorf(common.CodeProjectNotFound, "project '%s' does not exist", project).
			WithDetail("project", project))
		return
	}

	targetDir := projectDir
	if subdir := r.URL.Query().Get("subdir"); subdir != "" {
		valid := false
		for _, known := range projectSubdirectories {
			if subdir == known {
				valid = true
				break
			}
		}
		if !valid {
			common.RespondWithError(w, common.NewAPIErrorf(common.CodeInvalidSubdirectory, "subdirectory '%s' is not supported", subdir).
				WithDetail("allowed", projectSubdirectories))
			return
		}
		targetDir = filepath.Join(projectDir, subdir)
	}

	sortField := r.URL.Query().Get("sort")
	if sortField == "" {
		sortField = "name"
	}
	if !validSortFields[sortField] {
		common.RespondWithError(w, common.NewAPIErrorf(common.CodeInvalidParameter, "sort field '%s' is not supported", sortField).
			WithDetail("allowed", []string{"name", "size", "modified"}))
		return
	}
	order := r.URL.Query().Get("order")
	if order == "" {
		order = "asc"
	}
	if order != "asc" && order != "desc" {
		common.RespondWithError(w, common.NewAPIErrorf(common.CodeInvalidParameter, "sort order '%s' is not supported", order).
			WithDetail("allowed", []string{"asc", "desc"}))
		return
	}

	files := gatherFiles(projectDir, targetDir)
	sortFiles(files, sortField, order == "desc")

	offset := parseNonNegative(r.URL.Query().Get("offset"), 0)
	limit := parseNonNegative(r.URL.Query().Get("limit"), -1)
	total := len(files)
	if offset > total {
		offset = total
	}
	end := total
	if limit >= 0 && offset+limit < total {
		end = offset + limit
	}

	common.RespondWithJSON(w, http.StatusOK, map[string]any{
		"project": project,
		"count":   total,
		"offset":  offset,
		"limit":   limit,
		"files":   files[offset:end],
	})
}

func gatherProjectMetadata(projectDir string) projectMetadata {
	meta := projectMetadata{
		Project: filepath.Base(projectDir),
		Path:    projectDir,
	}
	var latest time.Time
	filepath.Walk(projectDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		meta.FileCount++
		meta.TotalSizeBytes += info.Size()
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if !latest.IsZero() {
		meta.LatestModified = latest.UTC().Format(time.RFC3339)
	}
	return meta
}

func gatherFiles(projectDir, targetDir string) []fileEntry {
	files := []fileEntry{}
	filepath.Walk(targetDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(projectDir, path)
		if relErr != nil {
			rel = info.Name()
		}
		files = append(files, fileEntry{
			Name:         info.Name(),
			RelativePath: rel,
			SizeBytes:    info.Size(),
			ModifiedAt:   info.ModTime().UTC().Format(time.RFC3339),
			Path:         path,
			modified:     info.ModTime(),
		})
		return nil
	})
	return files
}

func sortFiles(files []fileEntry, field string, desc bool) {
	less := func(i, j int) bool { return files[i].RelativePath < files[j].RelativePath }
	switch field {
	case "size":
		less = func(i, j int) bool { return files[i].SizeBytes < files[j].SizeBytes }
	case "modified":
		less = func(i, j int) bool { return files[i].modified.Before(files[j].modified) }
	}
	if desc {
		orig := less
		less = func(i, j int) bool { return orig(j, i) }
	}
	sort.Slice(files, less)
}
