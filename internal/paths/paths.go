// Package paths resolves the per-user directory layout under the configured
// base directory. The resolver is pure; EnsureUser is the only function that
// touches the filesystem.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/oriondocs/orion/internal/errs"
)

// Directory names under each user's namespace.
const (
	RawUploadsDir       = "raw_uploads"
	ProcessedTextDir    = "processed_text"
	RawChunksDir        = "raw_chunks"
	ProcessedVectorsDir = "processed_vectors"
)

// userIDPattern accepts a basic email shape: non-empty local and domain parts
// separated by @, with at least one dot in the domain.
var userIDPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateUserID checks the user id against the accepted identifier pattern.
func ValidateUserID(userID string) error {
	if !userIDPattern.MatchString(userID) {
		return fmt.Errorf("%w: %q", errs.ErrInvalidUser, userID)
	}
	return nil
}

// Resolver maps (base directory, user id) to per-user storage locations.
type Resolver struct {
	base string
}

// NewResolver creates a resolver rooted at the given base directory.
func NewResolver(base string) *Resolver {
	return &Resolver{base: base}
}

// Base returns the configured base directory.
func (r *Resolver) Base() string {
	return r.base
}

// UserBase returns the root directory for a user's namespace.
func (r *Resolver) UserBase(userID string) string {
	return filepath.Join(r.base, userID)
}

// RawUploads returns the directory holding original uploaded files.
func (r *Resolver) RawUploads(userID string) string {
	return filepath.Join(r.base, userID, RawUploadsDir)
}

// ProcessedText returns the directory holding converted text files.
func (r *Resolver) ProcessedText(userID string) string {
	return filepath.Join(r.base, userID, ProcessedTextDir)
}

// RawChunks returns the directory holding chunk text files.
func (r *Resolver) RawChunks(userID string) string {
	return filepath.Join(r.base, userID, RawChunksDir)
}

// ProcessedVectors returns the directory holding persisted embedding sets.
func (r *Resolver) ProcessedVectors(userID string) string {
	return filepath.Join(r.base, userID, ProcessedVectorsDir)
}

// EnsureUser creates all four per-user directories if missing. Creation is
// idempotent; concurrent callers are serialized by the filesystem.
func (r *Resolver) EnsureUser(userID string) error {
	dirs := []string{
		r.RawUploads(userID),
		r.ProcessedText(userID),
		r.RawChunks(userID),
		r.ProcessedVectors(userID),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create user directory %q; %w", dir, err)
		}
	}
	return nil
}
