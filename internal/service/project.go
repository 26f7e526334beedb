package service

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/snipforge/snipforge/internal/apperr"
	"github.com/snipforge/snipforge/internal/database"
	"github.com/snipforge/snipforge/internal/models"
)

const maxProjectNameLen = 100

// ProjectService owns project lifecycle. Every project is created with its
// default branch in the same transaction, so a project without at least one
// branch is unrepresentable.
type ProjectService struct {
	db            database.DB
	defaultBranch string
}

func NewProjectService(db database.DB, defaultBranch string) *ProjectService {
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	return &ProjectService{db: db, defaultBranch: defaultBranch}
}

type CreateProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	License     string `json:"license"`
	IsPublic    *bool  `json:"is_public"`
}

func (s *ProjectService) Create(ctx context.Context, ownerID int64, in CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validationf("project name is required")
	}
	if len(name) > maxProjectNameLen {
		return nil, apperr.Validationf("project name exceeds %d characters", maxProjectNameLen)
	}

	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}
	project := &models.Project{
		OwnerID:       ownerID,
		Name:          name,
		Description:   strings.TrimSpace(in.Description),
		License:       strings.TrimSpace(in.License),
		IsPublic:      isPublic,
		DefaultBranch: s.defaultBranch,
	}
	branch := &models.Branch{Name: s.defaultBranch}

	if err := s.db.CreateProject(ctx, project, branch); err != nil {
		return nil, storeErr(err, "project")
	}
	return project, nil
}

// Get enforces visibility: private projects read as not-found for anyone but
// the owner, so probing cannot distinguish hidden from absent.
func (s *ProjectService) Get(ctx context.Context, actorID, id int64) (*models.Project, error) {
	project, err := s.db.GetProject(ctx, id)
	if err != nil {
		return nil, storeErr(err, "project")
	}
	if !project.IsPublic && project.OwnerID != actorID {
		return nil, apperr.NotFoundf("project not found")
	}
	return project, nil
}

// Summary returns the project with branch/file/contributor counts attached.
func (s *ProjectService) Summary(ctx context.Context, actorID, id int64) (*models.ProjectSummary, error) {
	project, err := s.Get(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	branches, files, contributors, err := s.db.ProjectCounts(ctx, id)
	if err != nil {
		return nil, storeErr(err, "project counts")
	}
	return &models.ProjectSummary{
		Project:          *project,
		BranchCount:      branches,
		FileCount:        files,
		ContributorCount: contributors,
	}, nil
}

// List returns the owner's projects with derived counts. The count queries
// for each project run concurrently.
func (s *ProjectService) List(ctx context.Context, actorID, ownerID int64) ([]models.ProjectSummary, error) {
	projects, err := s.db.ListOwnerProjects(ctx, ownerID)
	if err != nil {
		return nil, storeErr(err, "projects")
	}

	summaries := make([]models.ProjectSummary, 0, len(projects))
	for _, p := range projects {
		if !p.IsPublic && p.OwnerID != actorID {
			continue
		}
		summaries = append(summaries, models.ProjectSummary{Project: p})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range summaries {
		g.Go(func() error {
			branches, files, contributors, err := s.db.ProjectCounts(gctx, summaries[i].ID)
			if err != nil {
				return err
			}
			summaries[i].BranchCount = branches
			summaries[i].FileCount = files
			summaries[i].ContributorCount = contributors
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, storeErr(err, "project counts")
	}
	return summaries, nil
}

type UpdateProjectInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (s *ProjectService) Update(ctx context.Context, actorID, id int64, in UpdateProjectInput) (*models.Project, error) {
	project, err := s.Get(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != actorID {
		return nil, apperr.Permissionf("only the project owner can update it")
	}

	name := project.Name
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validationf("project name is required")
		}
		if len(name) > maxProjectNameLen {
			return nil, apperr.Validationf("project name exceeds %d characters", maxProjectNameLen)
		}
	}
	description := project.Description
	if in.Description != nil {
		description = strings.TrimSpace(*in.Description)
	}

	if err := s.db.UpdateProjectMeta(ctx, id, name, description); err != nil {
		return nil, storeErr(err, "project")
	}
	return s.db.GetProject(ctx, id)
}

// Delete removes the project and every dependent record. Once the store call
// returns, no branch, file pointer, issue, milestone or comment of the
// project survives.
func (s *ProjectService) Delete(ctx context.Context, actorID, id int64) error {
	project, err := s.Get(ctx, actorID, id)
	if err != nil {
		return err
	}
	if project.OwnerID != actorID {
		return apperr.Permissionf("only the project owner can delete it")
	}
	if err := s.db.DeleteProject(ctx, id); err != nil {
		return storeErr(err, "project")
	}
	return nil
}
