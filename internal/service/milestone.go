package service

import (
	"context"
	"strings"
	"time"

	"github.com/snipforge/snipforge/internal/apperr"
	"github.com/snipforge/snipforge/internal/database"
	"github.com/snipforge/snipforge/internal/models"
)

const maxMilestoneTitleLen = 150

// MilestoneService manages milestones and their issue links. An issue links
// to at most one milestone; relinking replaces the old link.
type MilestoneService struct {
	db       database.DB
	projects *ProjectService
}

func NewMilestoneService(db database.DB, projects *ProjectService) *MilestoneService {
	return &MilestoneService{db: db, projects: projects}
}

type CreateMilestoneInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

func (s *MilestoneService) Create(ctx context.Context, actorID, projectID int64, in CreateMilestoneInput) (*models.Milestone, error) {
	project, err := s.projects.Get(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != actorID {
		return nil, apperr.Permissionf("only the project owner can create milestones")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validationf("milestone title is required")
	}
	if len(title) > maxMilestoneTitleLen {
		return nil, apperr.Validationf("milestone title exceeds %d characters", maxMilestoneTitleLen)
	}

	m := &models.Milestone{
		ProjectID:   project.ID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		DueDate:     in.DueDate,
	}
	if err := s.db.CreateMilestone(ctx, m); err != nil {
		return nil, storeErr(err, "milestone")
	}
	return m, nil
}

func (s *MilestoneService) Get(ctx context.Context, actorID, projectID, id int64) (*models.Milestone, error) {
	if _, err := s.projects.Get(ctx, actorID, projectID); err != nil {
		return nil, err
	}
	m, err := s.db.GetMilestone(ctx, id)
	if err != nil {
		return nil, storeErr(err, "milestone")
	}
	if m.ProjectID != projectID {
		return nil, apperr.NotFoundf("milestone not found")
	}
	return m, nil
}

func (s *MilestoneService) List(ctx context.Context, actorID, projectID int64) ([]models.Milestone, error) {
	if _, err := s.projects.Get(ctx, actorID, projectID); err != nil {
		return nil, err
	}
	milestones, err := s.db.ListMilestones(ctx, projectID)
	if err != nil {
		return nil, storeErr(err, "milestones")
	}
	return milestones, nil
}

// Progress counts the milestone's linked issues and how many are closed.
func (s *MilestoneService) Progress(ctx context.Context, actorID, projectID, id int64) (*models.MilestoneProgress, error) {
	if _, err := s.Get(ctx, actorID, projectID, id); err != nil {
		return nil, err
	}
	progress, err := s.db.MilestoneProgress(ctx, id)
	if err != nil {
		return nil, storeErr(err, "milestone progress")
	}
	return progress, nil
}

// SetCompleted marks the milestone done or reopens it.
func (s *MilestoneService) SetCompleted(ctx context.Context, actorID, projectID, id int64, completed bool) (*models.Milestone, error) {
	project, err := s.projects.Get(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != actorID {
		return nil, apperr.Permissionf("only the project owner can complete milestones")
	}
	m, err := s.Get(ctx, actorID, projectID, id)
	if err != nil {
		return nil, err
	}

	var completedAt *time.Time
	if completed {
		if m.CompletedAt != nil {
			return m, nil
		}
		now := time.Now().UTC()
		completedAt = &now
	} else if m.CompletedAt == nil {
		return m, nil
	}

	if err := s.db.SetMilestoneCompleted(ctx, id, completedAt); err != nil {
		return nil, storeErr(err, "milestone")
	}
	m.CompletedAt = completedAt
	return m, nil
}
