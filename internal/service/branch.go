package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/snipforge/snipforge/internal/apperr"
	"github.com/snipforge/snipforge/internal/database"
	"github.com/snipforge/snipforge/internal/models"
)

const maxBranchNameLen = 80

// BranchService manages branches and their fork lineage. Divergence is
// derived from commit counters at read time; nothing about it is stored.
type BranchService struct {
	db       database.DB
	projects *ProjectService
}

func NewBranchService(db database.DB, projects *ProjectService) *BranchService {
	return &BranchService{db: db, projects: projects}
}

type CreateBranchInput struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	SourceBranch string `json:"source_branch"` // empty means an unrooted branch
}

// Create adds a branch to the project. When SourceBranch names an existing
// branch the new one is forked from it: the source's file pointers are copied
// and its commit count is snapshotted as the fork base, all in one store
// transaction.
func (s *BranchService) Create(ctx context.Context, actorID, projectID int64, in CreateBranchInput) (*models.Branch, error) {
	project, err := s.projects.Get(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validationf("branch name is required")
	}
	if len(name) > maxBranchNameLen {
		return nil, apperr.Validationf("branch name exceeds %d characters", maxBranchNameLen)
	}

	branch := &models.Branch{
		ProjectID:   project.ID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
	}

	if in.SourceBranch == "" {
		if err := s.db.CreateBranch(ctx, branch); err != nil {
			return nil, storeErr(err, "branch")
		}
		return branch, nil
	}

	source, err := s.db.GetBranchByName(ctx, project.ID, in.SourceBranch)
	if err != nil {
		return nil, storeErr(err, "source branch")
	}
	branch.CreatedFrom = &source.ID
	branch.CommitCount = 0
	branch.BaseCommitCount = source.CommitCount

	if err := s.db.ForkBranch(ctx, branch, source.ID); err != nil {
		return nil, storeErr(err, "branch")
	}
	return branch, nil
}

func (s *BranchService) Get(ctx context.Context, actorID, projectID, branchID int64) (*models.Branch, error) {
	if _, err := s.projects.Get(ctx, actorID, projectID); err != nil {
		return nil, err
	}
	branch, err := s.db.GetBranch(ctx, branchID)
	if err != nil {
		return nil, storeErr(err, "branch")
	}
	if branch.ProjectID != projectID {
		return nil, apperr.NotFoundf("branch not found")
	}
	return branch, nil
}

// Resolve maps a branch name to a branch, falling back when the name is empty
// or unknown: requested name, then the project's default branch, then the
// oldest branch of the project.
func (s *BranchService) Resolve(ctx context.Context, actorID, projectID int64, name string) (*models.Branch, error) {
	project, err := s.projects.Get(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}

	if name != "" {
		branch, err := s.db.GetBranchByName(ctx, project.ID, name)
		if err == nil {
			return branch, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, storeErr(err, "branch")
		}
	}

	branch, err := s.db.GetBranchByName(ctx, project.ID, project.DefaultBranch)
	if err == nil {
		return branch, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, storeErr(err, "branch")
	}

	branches, err := s.db.ListBranches(ctx, project.ID)
	if err != nil {
		return nil, storeErr(err, "branches")
	}
	if len(branches) == 0 {
		return nil, apperr.NotFoundf("branch not found")
	}
	return &branches[0], nil
}

func (s *BranchService) List(ctx context.Context, actorID, projectID int64) ([]models.Branch, error) {
	if _, err := s.projects.Get(ctx, actorID, projectID); err != nil {
		return nil, err
	}
	branches, err := s.db.ListBranches(ctx, projectID)
	if err != nil {
		return nil, storeErr(err, "branches")
	}
	return branches, nil
}

// Divergence computes the ahead/behind pair of a branch against its fork
// parent. Ahead is the branch's own commit count since the fork. Behind is
// how far the parent moved past the snapshotted fork base, clamped at zero.
// A branch without a parent, or whose parent has since been deleted, reads
// as behind zero.
func (s *BranchService) Divergence(ctx context.Context, actorID, projectID, branchID int64) (*models.Divergence, error) {
	branch, err := s.Get(ctx, actorID, projectID, branchID)
	if err != nil {
		return nil, err
	}

	div := &models.Divergence{Ahead: branch.CommitCount}
	if branch.CreatedFrom == nil {
		return div, nil
	}

	parent, err := s.db.GetBranch(ctx, *branch.CreatedFrom)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return div, nil
		}
		return nil, storeErr(err, "parent branch")
	}
	if behind := parent.CommitCount - branch.BaseCommitCount; behind > 0 {
		div.Behind = behind
	}
	return div, nil
}
