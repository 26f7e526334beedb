package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// PasteEncoding describes how a paste body is stored.
type PasteEncoding string

const (
	PasteEncodingPlain    PasteEncoding = "plain"
	PasteEncodingZstd     PasteEncoding = "zstd"
	PasteEncodingExternal PasteEncoding = "external" // body lives in the storage backend
)

// Paste is an opaque content blob. The versioning core only ever references
// paste IDs; it never looks inside.
type Paste struct {
	ID         int64         `json:"id"`
	Slug       string        `json:"slug"`
	OwnerID    int64         `json:"owner_id"`
	OwnerName  string        `json:"owner_name,omitempty"` // populated by service layer
	Title      string        `json:"title"`
	Language   string        `json:"language"`
	Body       string        `json:"body,omitempty"`
	RawBody    []byte        `json:"-"`
	Encoding   PasteEncoding `json:"-"`
	StorageKey string        `json:"-"`
	SizeBytes  int64         `json:"size_bytes"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type Project struct {
	ID            int64     `json:"id"`
	OwnerID       int64     `json:"owner_id"`
	OwnerName     string    `json:"owner_name,omitempty"` // populated by service layer
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	License       string    `json:"license"`
	IsPublic      bool      `json:"is_public"`
	DefaultBranch string    `json:"default_branch"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProjectSummary is a Project plus counts derived at read time.
type ProjectSummary struct {
	Project
	BranchCount      int `json:"branch_count"`
	FileCount        int `json:"file_count"`
	ContributorCount int `json:"contributor_count"`
}

type Branch struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// CreatedFrom is a weak reference: the parent branch may no longer exist.
	CreatedFrom     *int64     `json:"created_from,omitempty"`
	CommitCount     int64      `json:"commit_count"`
	BaseCommitCount int64      `json:"base_commit_count"`
	LastCommitAt    *time.Time `json:"last_commit_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Divergence is the ahead/behind pair for a branch relative to its parent.
// It is an approximation built from commit counters, not history: it is
// invalidated if the parent branch is later deleted or reset.
type Divergence struct {
	Ahead  int64 `json:"ahead"`
	Behind int64 `json:"behind"`
}

type FilePointer struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	BranchID  int64     `json:"branch_id"`
	PasteID   int64     `json:"paste_id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	IsReadme  bool      `json:"is_readme"`
	CreatedAt time.Time `json:"created_at"`
}

// FileActivity is a file pointer joined with metadata of its paste, used by
// the branch-agnostic activity feed.
type FileActivity struct {
	FilePointer
	BranchName     string    `json:"branch_name"`
	PasteSlug      string    `json:"paste_slug"`
	PasteTitle     string    `json:"paste_title"`
	Language       string    `json:"language"`
	ContentUpdated time.Time `json:"content_updated_at"`
}

type Issue struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`   // "open", "closed"
	Priority    string     `json:"priority"` // "low", "medium", "high", "critical"
	Label       string     `json:"label"`
	AuthorID    int64      `json:"author_id"`
	AuthorName  string     `json:"author_name,omitempty"`
	MilestoneID *int64     `json:"milestone_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

type Milestone struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// MilestoneProgress is derived by counting linked issues; it is never stored.
type MilestoneProgress struct {
	LinkedIssues    int `json:"linked_issues"`
	CompletedIssues int `json:"completed_issues"`
}

type IssueComment struct {
	ID         int64     `json:"id"`
	IssueID    int64     `json:"issue_id"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Body       string    `json:"body"`
	ParentID   *int64    `json:"parent_id,omitempty"`
	ReplyCount int       `json:"reply_count,omitempty"` // populated for top-level listings
	IsDeleted  bool      `json:"is_deleted"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Notification struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	ActorID      int64      `json:"actor_id"`
	Type         string     `json:"type"`
	Title        string     `json:"title"`
	Body         string     `json:"body,omitempty"`
	ResourcePath string     `json:"resource_path,omitempty"`
	ProjectID    *int64     `json:"project_id,omitempty"`
	IssueID      *int64     `json:"issue_id,omitempty"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsOverdue reports whether the milestone's due date has passed without the
// milestone being completed.
func (m *Milestone) IsOverdue(now time.Time) bool {
	return m.DueDate != nil && m.DueDate.Before(now) && m.CompletedAt == nil
}

// ValidIssueStatus reports whether s is a recognized issue status.
func ValidIssueStatus(s string) bool {
	return s == "open" || s == "closed"
}

// ValidIssuePriority reports whether p is a recognized issue priority.
func ValidIssuePriority(p string) bool {
	switch p {
	case "low", "medium", "high", "critical":
		return true
	}
	return false
}
