package service

import (
	"context"
	"testing"
	"time"

	"github.com/snipforge/snipforge/internal/apperr"
	"github.com/snipforge/snipforge/internal/database"
	"github.com/snipforge/snipforge/internal/models"
)

func setupMilestoneFixture(t *testing.T) (context.Context, *database.SQLiteDB, *MilestoneService, *IssueService, *models.User, *models.Project) {
	t.Helper()
	db := newTestDB(t)
	owner := newTestUser(t, db, "alice")
	projects := NewProjectService(db, "main")

	ctx := context.Background()
	project, err := projects.Create(ctx, owner.ID, CreateProjectInput{Name: "widget"})
	if err != nil {
		t.Fatal(err)
	}
	return ctx, db, NewMilestoneService(db, projects), NewIssueService(db, projects), owner, project
}

func TestMilestoneProgress(t *testing.T) {
	ctx, _, milestones, issues, owner, project := setupMilestoneFixture(t)

	m, err := milestones.Create(ctx, owner.ID, project.ID, CreateMilestoneInput{Title: "v1"})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if _, err := issues.Create(ctx, owner.ID, project.ID, CreateIssueInput{Title: "t", MilestoneID: &m.ID}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := issues.SetStatus(ctx, owner.ID, project.ID, 1, "closed"); err != nil {
		t.Fatal(err)
	}

	progress, err := milestones.Progress(ctx, owner.ID, project.ID, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if progress.LinkedIssues != 2 || progress.CompletedIssues != 1 {
		t.Fatalf("progress = %d/%d, want 2 linked 1 completed", progress.LinkedIssues, progress.CompletedIssues)
	}
}

func TestMilestoneSetCompleted(t *testing.T) {
	ctx, db, milestones, _, owner, project := setupMilestoneFixture(t)
	stranger := newTestUser(t, db, "bob")

	m, err := milestones.Create(ctx, owner.ID, project.ID, CreateMilestoneInput{Title: "v1"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := milestones.SetCompleted(ctx, stranger.ID, project.ID, m.ID, true); !apperr.IsKind(err, apperr.Permission) {
		t.Fatalf("stranger complete err = %v, want Permission", err)
	}

	done, err := milestones.SetCompleted(ctx, owner.ID, project.ID, m.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completed_at set")
	}
	// Completing twice keeps the original stamp.
	again, err := milestones.SetCompleted(ctx, owner.ID, project.ID, m.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if again.CompletedAt == nil || !again.CompletedAt.Equal(*done.CompletedAt) {
		t.Fatalf("repeat complete changed stamp: %v -> %v", done.CompletedAt, again.CompletedAt)
	}

	reopened, err := milestones.SetCompleted(ctx, owner.ID, project.ID, m.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.CompletedAt != nil {
		t.Fatal("expected completed_at cleared")
	}
}

func TestMilestoneOverdue(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	m := &models.Milestone{DueDate: &past}
	if !m.IsOverdue(now) {
		t.Fatal("past due date without completion should be overdue")
	}
	m.CompletedAt = &now
	if m.IsOverdue(now) {
		t.Fatal("completed milestone is never overdue")
	}
	m = &models.Milestone{DueDate: &future}
	if m.IsOverdue(now) {
		t.Fatal("future due date is not overdue")
	}
	m = &models.Milestone{}
	if m.IsOverdue(now) {
		t.Fatal("milestone without due date is never overdue")
	}
}

func TestMilestoneCrossProjectHidden(t *testing.T) {
	ctx, db, milestones, _, owner, project := setupMilestoneFixture(t)

	otherProjects := NewProjectService(db, "main")
	other, err := otherProjects.Create(ctx, owner.ID, CreateProjectInput{Name: "gadget"})
	if err != nil {
		t.Fatal(err)
	}
	m, err := milestones.Create(ctx, owner.ID, other.ID, CreateMilestoneInput{Title: "v1"})
	if err != nil {
		t.Fatal(err)
	}

	// Addressing a milestone through the wrong project reads as not-found.
	if _, err := milestones.Get(ctx, owner.ID, project.ID, m.ID); !apperr.IsKind(err, apperr.NotFound) {
		t.Fatalf("cross-project get err = %v, want NotFound", err)
	}
}
