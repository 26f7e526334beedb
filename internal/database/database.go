package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/snipforge/snipforge/internal/models"
)

// ErrDuplicate is returned when a store-level uniqueness constraint rejects a
// write (duplicate branch name, duplicate username, ...).
var ErrDuplicate = errors.New("duplicate record")

// DB defines the data access interface. Implemented by SQLite and PostgreSQL
// backends. Methods that perform composite writes (project + default branch,
// branch fork + file copy, issue + milestone link, cascading deletes) run
// inside a single transaction: either every row lands or none do.
type DB interface {
	Close() error
	Migrate(ctx context.Context) error

	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// Pastes (content blobs)
	CreatePaste(ctx context.Context, paste *models.Paste) error
	GetPasteByID(ctx context.Context, id int64) (*models.Paste, error)
	GetPasteBySlug(ctx context.Context, slug string) (*models.Paste, error)

	// Projects
	// CreateProject inserts the project and its default branch together.
	CreateProject(ctx context.Context, project *models.Project, defaultBranch *models.Branch) error
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	UpdateProjectMeta(ctx context.Context, id int64, name, description string) error
	ListOwnerProjects(ctx context.Context, ownerID int64) ([]models.Project, error)
	// ProjectCounts derives branch/file/contributor counts; nothing is stored.
	ProjectCounts(ctx context.Context, projectID int64) (branches, files, contributors int, err error)
	// DeleteProject removes the project and every child row (branches, file
	// pointers, issues, milestone links, milestones, comments) in one
	// ordered transaction.
	DeleteProject(ctx context.Context, id int64) error

	// Branches
	CreateBranch(ctx context.Context, branch *models.Branch) error
	// ForkBranch inserts the branch with base_commit_count snapshotted from
	// the source, copies the source's file pointers, and touches the project.
	ForkBranch(ctx context.Context, branch *models.Branch, sourceBranchID int64) error
	GetBranch(ctx context.Context, id int64) (*models.Branch, error)
	GetBranchByName(ctx context.Context, projectID int64, name string) (*models.Branch, error)
	ListBranches(ctx context.Context, projectID int64) ([]models.Branch, error)

	// File pointers
	// AddFilePointer upserts the pointer on (branch_id, path, name),
	// increments the branch commit counter in-store, stamps last_commit_at
	// and touches the project, all in one transaction.
	AddFilePointer(ctx context.Context, fp *models.FilePointer, now time.Time) error
	ListFilePointers(ctx context.Context, branchID int64) ([]models.FilePointer, error)
	ListRecentFileActivity(ctx context.Context, projectID int64, limit int) ([]models.FileActivity, error)

	// Issues
	CreateIssue(ctx context.Context, issue *models.Issue, milestoneID *int64) error
	GetIssue(ctx context.Context, projectID int64, number int) (*models.Issue, error)
	GetIssueByID(ctx context.Context, id int64) (*models.Issue, error)
	ListIssuesPage(ctx context.Context, projectID int64, status string, limit, offset int) ([]models.Issue, error)
	// UpdateIssue replaces issue fields and the milestone link set.
	UpdateIssue(ctx context.Context, issue *models.Issue, milestoneID *int64) error
	UpdateIssueStatus(ctx context.Context, issue *models.Issue) error
	// DeleteIssue removes comments, milestone links and the issue row in one
	// transaction.
	DeleteIssue(ctx context.Context, id int64) error

	// Milestones
	CreateMilestone(ctx context.Context, m *models.Milestone) error
	GetMilestone(ctx context.Context, id int64) (*models.Milestone, error)
	ListMilestones(ctx context.Context, projectID int64) ([]models.Milestone, error)
	MilestoneProgress(ctx context.Context, milestoneID int64) (*models.MilestoneProgress, error)
	SetMilestoneCompleted(ctx context.Context, id int64, completedAt *time.Time) error

	// Issue comments
	// CreateIssueComment inserts the comment and touches the issue's
	// updated_at in one transaction.
	CreateIssueComment(ctx context.Context, c *models.IssueComment) error
	GetIssueComment(ctx context.Context, id int64) (*models.IssueComment, error)
	ListTopLevelComments(ctx context.Context, issueID int64) ([]models.IssueComment, error)
	ListReplies(ctx context.Context, parentID int64) ([]models.IssueComment, error)
	SoftDeleteIssueComment(ctx context.Context, id int64) error

	// Notifications
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotificationsPage(ctx context.Context, userID int64, limit, offset int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID int64, readAt time.Time) error
}

// isUniqueViolation matches constraint errors across both backends: SQLite
// reports "UNIQUE constraint failed", PostgreSQL "duplicate key value
// violates unique constraint".
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
