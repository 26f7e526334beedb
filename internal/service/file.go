package service

import (
	"context"
	"strings"
	"time"

	"github.com/snipforge/snipforge/internal/apperr"
	"github.com/snipforge/snipforge/internal/database"
	"github.com/snipforge/snipforge/internal/models"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
	maxFilePathLen       = 255
)

// FileService manages file pointers: named references from a branch into the
// paste store. Adding a file counts as a commit on its branch.
type FileService struct {
	db       database.DB
	branches *BranchService
}

func NewFileService(db database.DB, branches *BranchService) *FileService {
	return &FileService{db: db, branches: branches}
}

type AddFileInput struct {
	PasteID int64  `json:"paste_id"`
	Path    string `json:"path"`
	Name    string `json:"name"`
}

// Add records paste content as a file on the branch. Re-adding the same
// (path, name) replaces the pointer in place; either way the branch's commit
// counter advances and its last-commit timestamp is stamped.
func (s *FileService) Add(ctx context.Context, actorID, projectID, branchID int64, in AddFileInput) (*models.FilePointer, error) {
	branch, err := s.branches.Get(ctx, actorID, projectID, branchID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validationf("file name is required")
	}
	path := normalizeFilePath(in.Path)
	if len(path)+len(name) > maxFilePathLen {
		return nil, apperr.Validationf("file path exceeds %d characters", maxFilePathLen)
	}
	if in.PasteID <= 0 {
		return nil, apperr.Validationf("paste_id is required")
	}
	if _, err := s.db.GetPasteByID(ctx, in.PasteID); err != nil {
		return nil, storeErr(err, "paste")
	}

	fp := &models.FilePointer{
		ProjectID: branch.ProjectID,
		BranchID:  branch.ID,
		PasteID:   in.PasteID,
		Path:      path,
		Name:      name,
		IsReadme:  isReadme(name),
	}
	if err := s.db.AddFilePointer(ctx, fp, time.Now().UTC()); err != nil {
		return nil, storeErr(err, "file")
	}
	return fp, nil
}

func (s *FileService) List(ctx context.Context, actorID, projectID, branchID int64) ([]models.FilePointer, error) {
	if _, err := s.branches.Get(ctx, actorID, projectID, branchID); err != nil {
		return nil, err
	}
	files, err := s.db.ListFilePointers(ctx, branchID)
	if err != nil {
		return nil, storeErr(err, "files")
	}
	return files, nil
}

// RecentActivity lists the latest file pointers across every branch of the
// project, newest first.
func (s *FileService) RecentActivity(ctx context.Context, actorID, projectID int64, limit int) ([]models.FileActivity, error) {
	if _, err := s.branches.projects.Get(ctx, actorID, projectID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	activity, err := s.db.ListRecentFileActivity(ctx, projectID, limit)
	if err != nil {
		return nil, storeErr(err, "file activity")
	}
	return activity, nil
}

// normalizeFilePath strips leading and trailing slashes so "/docs/" and
// "docs" address the same directory.
func normalizeFilePath(p string) string {
	return strings.Trim(strings.TrimSpace(p), "/")
}

func isReadme(name string) bool {
	base := strings.ToLower(name)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base == "readme"
}
