package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/snipforge/snipforge/internal/models"
)

func openTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	return db
}

func seedUser(t *testing.T, db *SQLiteDB, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", PasswordHash: "x"}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func seedProject(t *testing.T, db *SQLiteDB, ownerID int64, name string) (*models.Project, *models.Branch) {
	t.Helper()
	project := &models.Project{OwnerID: ownerID, Name: name, IsPublic: true, DefaultBranch: "main"}
	branch := &models.Branch{Name: "main"}
	if err := db.CreateProject(context.Background(), project, branch); err != nil {
		t.Fatal(err)
	}
	return project, branch
}

func seedPaste(t *testing.T, db *SQLiteDB, ownerID int64, slug string) *models.Paste {
	t.Helper()
	p := &models.Paste{Slug: slug, OwnerID: ownerID, Title: slug, RawBody: []byte("body"), Encoding: models.PasteEncodingPlain, SizeBytes: 4}
	if err := db.CreatePaste(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCreateProjectCreatesDefaultBranch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice")

	project, branch := seedProject(t, db, user.ID, "widget")
	if project.ID == 0 || branch.ID == 0 {
		t.Fatalf("expected ids assigned, got project=%d branch=%d", project.ID, branch.ID)
	}
	if branch.ProjectID != project.ID {
		t.Fatalf("branch project id = %d, want %d", branch.ProjectID, project.ID)
	}

	got, err := db.GetBranchByName(ctx, project.ID, "main")
	if err != nil {
		t.Fatalf("default branch lookup: %v", err)
	}
	if got.CommitCount != 0 || got.BaseCommitCount != 0 {
		t.Fatalf("fresh branch counters = %d/%d, want 0/0", got.CommitCount, got.BaseCommitCount)
	}
}

func TestCreateBranchDuplicateName(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice")
	project, _ := seedProject(t, db, user.ID, "widget")

	b := &models.Branch{ProjectID: project.ID, Name: "dev"}
	if err := db.CreateBranch(ctx, b); err != nil {
		t.Fatal(err)
	}
	dup := &models.Branch{ProjectID: project.ID, Name: "dev"}
	if err := db.CreateBranch(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate branch err = %v, want ErrDuplicate", err)
	}
}

func TestAddFilePointerIncrementsCommitCount(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice")
	project, branch := seedProject(t, db, user.ID, "widget")
	paste := seedPaste(t, db, user.ID, "p1")

	now := time.Now().UTC()
	fp := &models.FilePointer{ProjectID: project.ID, BranchID: branch.ID, PasteID: paste.ID, Path: "docs", Name: "readme.md", IsReadme: true}
	if err := db.AddFilePointer(ctx, fp, now); err != nil {
		t.Fatal(err)
	}
	if fp.ID == 0 {
		t.Fatal("expected pointer id assigned")
	}

	got, err := db.GetBranch(ctx, branch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CommitCount != 1 {
		t.Fatalf("commit count = %d, want 1", got.CommitCount)
	}
	if got.LastCommitAt == nil {
		t.Fatal("expected last_commit_at stamped")
	}
}

func TestAddFilePointerReplacesOnSamePathName(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice")
	project, branch := seedProject(t, db, user.ID, "widget")
	first := seedPaste(t, db, user.ID, "p1")
	second := seedPaste(t, db, user.ID, "p2")

	now := time.Now().UTC()
	fp := &models.FilePointer{ProjectID: project.ID, BranchID: branch.ID, PasteID: first.ID, Path: "src", Name: "main.go"}
	if err := db.AddFilePointer(ctx, fp, now); err != nil {
		t.Fatal(err)
	}
	replacement := &models.FilePointer{ProjectID: project.ID, BranchID: branch.ID, PasteID: second.ID, Path: "src", Name: "main.go"}
	if err := db.AddFilePointer(ctx, replacement, now.Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	files, err := db.ListFilePointers(ctx, branch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("file count = %d, want 1 after replace", len(files))
	}
	if files[0].PasteID != second.ID {
		t.Fatalf("paste id = %d, want %d", files[0].PasteID, second.ID)
	}

	// The replace still counts as a commit.
	got, err := db.GetBranch(ctx, branch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CommitCount != 2 {
		t.Fatalf("commit count = %d, want 2", got.CommitCount)
	}
}

func TestAddFilePointerRejectsForeignBranch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice")
	project, _ := seedProject(t, db, user.ID, "widget")
	other, otherBranch := seedProject(t, db, user.ID, "gadget")
	_ = other
	paste := seedPaste(t, db, user.ID, "p1")

	fp := &models.FilePointer{ProjectID: project.ID, BranchID: otherBranch.ID, PasteID: paste.ID, Name: "main.go"}
	if err := db.AddFilePointer(ctx, fp, time.Now().UTC()); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("cross-project add err = %v, want sql.ErrNoRows", err)
	}
}

func TestForkBranchCopiesFilesAndSnapshotsBase(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice")
	project, main := seedProject(t, db, user.ID, "widget")

	for i, slug := range []string{"a", "b", "c"} {
		paste := seedPaste(t, db, user.ID, slug)
		fp := &models.FilePointer{ProjectID: project.ID, BranchID: main.ID, PasteID: paste.ID, Name: slug + ".go"}
		if err := db.AddFilePointer(ctx, fp, time.Now().UTC().Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatal(err)
		}
	}

	fork := &models.Branch{ProjectID: project.ID, Name: "feature"}
	if err := db.ForkBranch(ctx, fork, main.ID); err != nil {
		t.Fatal(err)
	}
	if fork.BaseCommitCount != 3 {
		t.Fatalf("base commit count = %d, want 3", fork.BaseCommitCount)
	}
	if fork.CreatedFrom == nil || *fork.CreatedFrom != main.ID {
		t.Fatalf("created_from = %v, want %d", fork.CreatedFrom, main.ID)
	}

	sourceFiles, err := db.ListFilePointers(ctx, main.ID)
	if err != nil {
		t.Fatal(err)
	}
	forkFiles, err := db.ListFilePointers(ctx, fork.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(forkFiles) != len(sourceFiles) {
		t.Fatalf("fork file count = %d, want %d", len(forkFiles), len(sourceFiles))
	}
	for i := range forkFiles {
		if forkFiles[i].PasteID != sourceFiles[i].PasteID || forkFiles[i].Name != sourceFiles[i].Name {
			t.Fatalf("fork file %d = %+v, want copy of %+v", i, forkFiles[i], sourceFiles[i])
		}
		if forkFiles[i].ID == sourceFiles[i].ID {
			t.Fatal("fork must create new pointer rows, not share them")
		}
	}

	// Diverge the fork; the source stays untouched.
	paste := seedPaste(t, db, user.ID, "d")
	fp := &models.FilePointer{ProjectID: project.ID, BranchID: fork.ID, PasteID: paste.ID, Name: "d.go"}
	if err := db.AddFilePointer(ctx, fp, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	sourceAfter, err := db.ListFilePointers(ctx, main.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sourceAfter) != 3 {
		t.Fatalf("source file count = %d after fork commit, want 3", len(sourceAfter))
	}
}

func TestCreateIssueAssignsSequentialNumbers(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice")
	project, _ := seedProject(t, db, user.ID, "widget")
	other, _ := seedProject(t, db, user.ID, "gadget")

	for want := 1; want <= 3; want++ {
		issue := &models.Issue{ProjectID: project.ID, Title: "t", Status: "open", Priority: "medium", AuthorID: user.ID}
		if err := db.CreateIssue(ctx, issue, nil); err != nil {
			t.Fatal(err)
		}
		if issue.Number != want {
			t.Fatalf("issue number = %d, want %d", issue.Number, want)
		}
	}

	// Numbering is per project.
	issue := &models.Issue{ProjectID: other.ID, Title: "t", Status: "open", Priority: "medium", AuthorID: user.ID}
	if err := db.CreateIssue(ctx, issue, nil); err != nil {
		t.Fatal(err)
	}
	if issue.Number != 1 {
		t.Fatalf("other project issue number = %d, want 1", issue.Number)
	}
}

func TestIssueMilestoneLinkReplace(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice")
	project, _ := seedProject(t, db, user.ID, "widget")

	m1 := &models.Milestone{ProjectID: project.ID, Title: "v1"}
	m2 := &models.Milestone{ProjectID: project.ID, Title: "v2"}
	for _, m := range []*models.Milestone{m1, m2} {
		if err := db.CreateMilestone(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	issue := &models.Issue{ProjectID: project.ID, Title: "t", Status: "open", Priority: "medium", AuthorID: user.ID}
	if err := db.CreateIssue(ctx, issue, &m1.ID); err != nil {
		t.Fatal(err)
	}
	if issue.MilestoneID == nil || *issue.MilestoneID != m1.ID {
		t.Fatalf("milestone id = %v, want %d", issue.MilestoneID, m1.ID)
	}

	if err := db.UpdateIssue(ctx, issue, &m2.ID); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetIssue(ctx, project.ID, issue.Number)
	if err != nil {
		t.Fatal(err)
	}
	if got.MilestoneID == nil || *got.MilestoneID != m2.ID {
		t.Fatalf("milestone id after relink = %v, want %d", got.MilestoneID, m2.ID)
	}

	p1, err := db.MilestoneProgress(ctx, m1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p1.LinkedIssues != 0 {
		t.Fatalf("old milestone linked issues = %d, want 0", p1.LinkedIssues)
	}
	p2, err := db.MilestoneProgress(ctx, m2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p2.LinkedIssues != 1 {
		t.Fatalf("new milestone linked issues = %d, want 1", p2.LinkedIssues)
	}
}

func TestCreateIssueRejectsCrossProjectMilestone(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice")
	project, _ := seedProject(t, db, user.ID, "widget")
	other, _ := seedProject(t, db, user.ID, "gadget")

	m := &models.Milestone{ProjectID: other.ID, Title: "v1"}
	if err := db.CreateMilestone(ctx, m); err != nil {
		t.Fatal(err)
	}

	issue := &models.Issue{ProjectID: project.ID, Title: "t", Status: "open", Priority: "medium", AuthorID: user.ID}
	if err := db.CreateIssue(ctx, issue, &m.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("cross-project link err = %v, want sql.ErrNoRows", err)
	}

	// The failed link must not leave a numbered issue behind.
	if _, err := db.GetIssue(ctx, project.ID, 1); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected no issue after rollback, got err = %v", err)
	}
}

func TestMilestoneProgressCountsClosedIssues(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice")
	project, _ := seedProject(t, db, user.ID, "widget")

	m := &models.Milestone{ProjectID: project.ID, Title: "v1"}
	if err := db.CreateMilestone(ctx, m); err != nil {
		t.Fatal(err)
	}

	var issues []*models.Issue
	for i := 0; i < 3; i++ {
		issue := &models.Issue{ProjectID: project.ID, Title: "t", Status: "open", Priority: "medium", AuthorID: user.ID}
		if err := db.CreateIssue(ctx, issue, &m.ID); err != nil {
			t.Fatal(err)
		}
		issues = append(issues, issue)
	}
	now := time.Now().UTC()
	issues[0].Status = "closed"
	issues[0].ClosedAt = &now
	if err := db.UpdateIssueStatus(ctx, issues[0]); err != nil {
		t.Fatal(err)
	}

	progress, err := db.MilestoneProgress(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if progress.LinkedIssues != 3 || progress.CompletedIssues != 1 {
		t.Fatalf("progress = %d/%d, want 3 linked 1 completed", progress.LinkedIssues, progress.CompletedIssues)
	}
}

func TestTopLevelCommentsCarryReplyCounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice")
	project, _ := seedProject(t, db, user.ID, "widget")

	issue := &models.Issue{ProjectID: project.ID, Title: "t", Status: "open", Priority: "medium", AuthorID: user.ID}
	if err := db.CreateIssue(ctx, issue, nil); err != nil {
		t.Fatal(err)
	}

	top := &models.IssueComment{IssueID: issue.ID, AuthorID: user.ID, Body: "c1"}
	if err := db.CreateIssueComment(ctx, top); err != nil {
		t.Fatal(err)
	}
	for _, body := range []string{"r1", "r2"} {
		reply := &models.IssueComment{IssueID: issue.ID, AuthorID: user.ID, Body: body, ParentID: &top.ID}
		if err := db.CreateIssueComment(ctx, reply); err != nil {
			t.Fatal(err)
		}
	}

	comments, err := db.ListTopLevelComments(ctx, issue.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 {
		t.Fatalf("top-level count = %d, want 1", len(comments))
	}
	if comments[0].ReplyCount != 2 {
		t.Fatalf("reply count = %d, want 2", comments[0].ReplyCount)
	}

	replies, err := db.ListReplies(ctx, top.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(replies) != 2 {
		t.Fatalf("replies = %d, want 2", len(replies))
	}
}

func TestSoftDeleteCommentHidesFromListings(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice")
	project, _ := seedProject(t, db, user.ID, "widget")

	issue := &models.Issue{ProjectID: project.ID, Title: "t", Status: "open", Priority: "medium", AuthorID: user.ID}
	if err := db.CreateIssue(ctx, issue, nil); err != nil {
		t.Fatal(err)
	}
	c := &models.IssueComment{IssueID: issue.ID, AuthorID: user.ID, Body: "c1"}
	if err := db.CreateIssueComment(ctx, c); err != nil {
		t.Fatal(err)
	}

	if err := db.SoftDeleteIssueComment(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	comments, err := db.ListTopLevelComments(ctx, issue.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 0 {
		t.Fatalf("top-level count after delete = %d, want 0", len(comments))
	}

	// The row survives for reply anchoring.
	got, err := db.GetIssueComment(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsDeleted {
		t.Fatal("expected is_deleted set")
	}
	// Deleting again is a no-op failure.
	if err := db.SoftDeleteIssueComment(ctx, c.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("double delete err = %v, want sql.ErrNoRows", err)
	}
}

func TestDeleteProjectLeavesNoOrphans(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "alice")
	project, main := seedProject(t, db, user.ID, "widget")

	paste := seedPaste(t, db, user.ID, "p1")
	fp := &models.FilePointer{ProjectID: project.ID, BranchID: main.ID, PasteID: paste.ID, Name: "a.go"}
	if err := db.AddFilePointer(ctx, fp, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	fork := &models.Branch{ProjectID: project.ID, Name: "feature"}
	if err := db.ForkBranch(ctx, fork, main.ID); err != nil {
		t.Fatal(err)
	}
	m := &models.Milestone{ProjectID: project.ID, Title: "v1"}
	if err := db.CreateMilestone(ctx, m); err != nil {
		t.Fatal(err)
	}
	issue := &models.Issue{ProjectID: project.ID, Title: "t", Status: "open", Priority: "medium", AuthorID: user.ID}
	if err := db.CreateIssue(ctx, issue, &m.ID); err != nil {
		t.Fatal(err)
	}
	comment := &models.IssueComment{IssueID: issue.ID, AuthorID: user.ID, Body: "c1"}
	if err := db.CreateIssueComment(ctx, comment); err != nil {
		t.Fatal(err)
	}
	n := &models.Notification{UserID: user.ID, ActorID: user.ID, Type: "issue_opened", Title: "t", ProjectID: &project.ID, IssueID: &issue.ID}
	if err := db.CreateNotification(ctx, n); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteProject(ctx, project.ID); err != nil {
		t.Fatal(err)
	}

	for _, q := range []struct {
		table string
		query string
	}{
		{"branches", `SELECT COUNT(*) FROM branches WHERE project_id = ?`},
		{"file_pointers", `SELECT COUNT(*) FROM file_pointers WHERE project_id = ?`},
		{"issues", `SELECT COUNT(*) FROM issues WHERE project_id = ?`},
		{"milestones", `SELECT COUNT(*) FROM milestones WHERE project_id = ?`},
		{"notifications", `SELECT COUNT(*) FROM notifications WHERE project_id = ?`},
	} {
		var count int
		if err := db.db.QueryRowContext(ctx, q.query, project.ID).Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Fatalf("%s rows after delete = %d, want 0", q.table, count)
		}
	}
	var comments int
	if err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM issue_comments`).Scan(&comments); err != nil {
		t.Fatal(err)
	}
	if comments != 0 {
		t.Fatalf("issue_comments rows after delete = %d, want 0", comments)
	}

	// Pastes are shared content and survive project deletion.
	if _, err := db.GetPasteByID(ctx, paste.ID); err != nil {
		t.Fatalf("paste should survive project delete: %v", err)
	}

	if err := db.DeleteProject(ctx, project.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("second delete err = %v, want sql.ErrNoRows", err)
	}
}

func TestMarkNotificationReadScopedToRecipient(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	n := &models.Notification{UserID: alice.ID, ActorID: bob.ID, Type: "issue_opened", Title: "t"}
	if err := db.CreateNotification(ctx, n); err != nil {
		t.Fatal(err)
	}

	if err := db.MarkNotificationRead(ctx, n.ID, bob.ID, time.Now().UTC()); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("foreign mark-read err = %v, want sql.ErrNoRows", err)
	}
	if err := db.MarkNotificationRead(ctx, n.ID, alice.ID, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	list, err := db.ListNotificationsPage(ctx, alice.ID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ReadAt == nil {
		t.Fatalf("expected one read notification, got %+v", list)
	}
}
