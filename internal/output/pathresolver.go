package output

import (
	"os"
	"path/filepath"
	"strings"

	"fredserve/internal/common"
)

// PathResolver turns a (project, subdirectory, filename) triple into a safe,
// writable location under one storage root. Path-security failures are
// deterministic and never retried.
type PathResolver struct {
	root string
}

func NewPathResolver(root string) *PathResolver {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	return &PathResolver{root: abs}
}

func (r *PathResolver) Root() string {
	return r.root
}

// Resolve validates every component, creates missing intermediate
// directories, probes the parent for writability, and returns an absolute
// path guaranteed to live inside the storage root. Validation happens before
// any directory is created.
func (r *PathResolver) Resolve(project, filename, subdir string) (string, error) {
	if err := validateComponent("project", project); err != nil {
		return "", err
	}
	if err := validateComponent("filename", filename); err != nil {
		return "", err
	}
	parts := []string{r.root, project}
	if subdir != "" {
		if err := validateComponent("subdirectory", subdir); err != nil {
			return "", err
		}
		parts = append(parts, subdir)
	}
	parts = append(parts, filename)

	resolved := filepath.Join(parts...)
	if !strings.HasPrefix(resolved, r.root+string(filepath.Separator)) {
		return "", common.NewAPIError(common.CodePathSecurityViolation, "resolved path escapes the storage root").
			WithDetail("path", resolved)
	}

	parent := filepath.Dir(resolved)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", common.NewAPIErrorf(common.CodeWritePermissionDenied, "cannot create directory %s: %v", parent, err)
	}
	if err := probeWritable(parent); err != nil {
		return "", err
	}
	return resolved, nil
}

func validateComponent(name, value string) error {
	switch {
	case value == "" || value == "." || value == "..":
		return securityError(name, value, "must be a non-empty path component")
	case strings.Contains(value, ".."):
		return securityError(name, value, "must not contain traversal sequences")
	case strings.ContainsAny(value, `/\`):
		return securityError(name, value, "must not contain path separators")
	case len(value) > 255:
		return securityError(name, value, "exceeds the maximum component length")
	}
	return nil
}

func securityError(name, value, reason string) error {
	return common.NewAPIErrorf(common.CodePathSecurityViolation, "invalid %s: %s", name, reason).
		WithDetail(name, value)
}

// probeWritable checks the directory with a create/remove round-trip rather
// than trusting permission bits, which lie on some mounts.
func probeWritable(dir string) error {
	probe := filepath.Join(dir, ".write-probe")
	file, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return common.NewAPIErrorf(common.CodeWritePermissionDenied, "directory %s is not writable: %v", dir, err)
	}
	file.Close()
	os.Remove(probe)
	return nil
}
