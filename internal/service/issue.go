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
	maxIssueTitleLen = 200
	issuePageSize    = 25
	maxIssuePageSize = 100
)

// IssueService manages issues. Issues are numbered per project starting at 1;
// the number is assigned in-store so concurrent creates never collide.
type IssueService struct {
	db       database.DB
	projects *ProjectService
}

func NewIssueService(db database.DB, projects *ProjectService) *IssueService {
	return &IssueService{db: db, projects: projects}
}

type CreateIssueInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Label       string `json:"label"`
	MilestoneID *int64 `json:"milestone_id"`
}

func (s *IssueService) Create(ctx context.Context, actorID, projectID int64, in CreateIssueInput) (*models.Issue, error) {
	project, err := s.projects.Get(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validationf("issue title is required")
	}
	if len(title) > maxIssueTitleLen {
		return nil, apperr.Validationf("issue title exceeds %d characters", maxIssueTitleLen)
	}
	priority := in.Priority
	if priority == "" {
		priority = "medium"
	}
	if !models.ValidIssuePriority(priority) {
		return nil, apperr.Validationf("invalid priority %q", priority)
	}
	if in.MilestoneID != nil {
		if err := s.checkMilestone(ctx, project.ID, *in.MilestoneID); err != nil {
			return nil, err
		}
	}

	issue := &models.Issue{
		ProjectID:   project.ID,
		Title:       title,
		Description: in.Description,
		Status:      "open",
		Priority:    priority,
		Label:       strings.TrimSpace(in.Label),
		AuthorID:    actorID,
	}
	if err := s.db.CreateIssue(ctx, issue, in.MilestoneID); err != nil {
		return nil, storeErr(err, "issue")
	}
	return issue, nil
}

// Get looks an issue up by its per-project number.
func (s *IssueService) Get(ctx context.Context, actorID, projectID int64, number int) (*models.Issue, error) {
	if _, err := s.projects.Get(ctx, actorID, projectID); err != nil {
		return nil, err
	}
	issue, err := s.db.GetIssue(ctx, projectID, number)
	if err != nil {
		return nil, storeErr(err, "issue")
	}
	return issue, nil
}

// List pages through a project's issues, optionally filtered by status.
func (s *IssueService) List(ctx context.Context, actorID, projectID int64, status string, page, perPage int) ([]models.Issue, error) {
	if _, err := s.projects.Get(ctx, actorID, projectID); err != nil {
		return nil, err
	}
	if status != "" && !models.ValidIssueStatus(status) {
		return nil, apperr.Validationf("invalid status %q", status)
	}
	limit, offset := normalizePage(page, perPage, issuePageSize, maxIssuePageSize)
	issues, err := s.db.ListIssuesPage(ctx, projectID, status, limit, offset)
	if err != nil {
		return nil, storeErr(err, "issues")
	}
	return issues, nil
}

type EditIssueInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Label       *string `json:"label"`
	// MilestoneID replaces the milestone link; SetMilestone distinguishes
	// "leave alone" from "clear".
	MilestoneID  *int64 `json:"milestone_id"`
	SetMilestone bool   `json:"set_milestone"`
}

func (s *IssueService) Edit(ctx context.Context, actorID, projectID int64, number int, in EditIssueInput) (*models.Issue, error) {
	project, err := s.projects.Get(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}
	issue, err := s.db.GetIssue(ctx, projectID, number)
	if err != nil {
		return nil, storeErr(err, "issue")
	}
	if !canManageIssue(project, issue, actorID) {
		return nil, apperr.Permissionf("only the issue author or project owner can edit it")
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperr.Validationf("issue title is required")
		}
		if len(title) > maxIssueTitleLen {
			return nil, apperr.Validationf("issue title exceeds %d characters", maxIssueTitleLen)
		}
		issue.Title = title
	}
	if in.Description != nil {
		issue.Description = *in.Description
	}
	if in.Priority != nil {
		if !models.ValidIssuePriority(*in.Priority) {
			return nil, apperr.Validationf("invalid priority %q", *in.Priority)
		}
		issue.Priority = *in.Priority
	}
	if in.Label != nil {
		issue.Label = strings.TrimSpace(*in.Label)
	}

	milestoneID := issue.MilestoneID
	if in.SetMilestone {
		milestoneID = in.MilestoneID
		if milestoneID != nil {
			if err := s.checkMilestone(ctx, project.ID, *milestoneID); err != nil {
				return nil, err
			}
		}
	}

	if err := s.db.UpdateIssue(ctx, issue, milestoneID); err != nil {
		return nil, storeErr(err, "issue")
	}
	return s.db.GetIssue(ctx, projectID, number)
}

// SetStatus opens or closes the issue. Setting the current status again is a
// no-op; closing stamps closed_at, reopening clears it.
func (s *IssueService) SetStatus(ctx context.Context, actorID, projectID int64, number int, status string) (*models.Issue, error) {
	if !models.ValidIssueStatus(status) {
		return nil, apperr.Validationf("invalid status %q", status)
	}
	project, err := s.projects.Get(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}
	issue, err := s.db.GetIssue(ctx, projectID, number)
	if err != nil {
		return nil, storeErr(err, "issue")
	}
	if !canManageIssue(project, issue, actorID) {
		return nil, apperr.Permissionf("only the issue author or project owner can change its status")
	}
	if issue.Status == status {
		return issue, nil
	}

	issue.Status = status
	if status == "closed" {
		now := time.Now().UTC()
		issue.ClosedAt = &now
	} else {
		issue.ClosedAt = nil
	}
	if err := s.db.UpdateIssueStatus(ctx, issue); err != nil {
		return nil, storeErr(err, "issue")
	}
	return issue, nil
}

func (s *IssueService) Delete(ctx context.Context, actorID, projectID int64, number int) error {
	project, err := s.projects.Get(ctx, actorID, projectID)
	if err != nil {
		return err
	}
	issue, err := s.db.GetIssue(ctx, projectID, number)
	if err != nil {
		return storeErr(err, "issue")
	}
	if !canManageIssue(project, issue, actorID) {
		return apperr.Permissionf("only the issue author or project owner can delete it")
	}
	if err := s.db.DeleteIssue(ctx, issue.ID); err != nil {
		return storeErr(err, "issue")
	}
	return nil
}

// checkMilestone verifies the milestone exists and belongs to the project.
func (s *IssueService) checkMilestone(ctx context.Context, projectID, milestoneID int64) error {
	m, err := s.db.GetMilestone(ctx, milestoneID)
	if err != nil {
		return storeErr(err, "milestone")
	}
	if m.ProjectID != projectID {
		return apperr.Validationf("milestone belongs to a different project")
	}
	return nil
}

func canManageIssue(project *models.Project, issue *models.Issue, actorID int64) bool {
	return actorID == project.OwnerID || actorID == issue.AuthorID
}
