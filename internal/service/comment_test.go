package service

import (
	"context"
	"testing"

	"github.com/snipforge/snipforge/internal/apperr"
	"github.com/snipforge/snipforge/internal/database"
	"github.com/snipforge/snipforge/internal/models"
)

func setupCommentFixture(t *testing.T) (context.Context, *database.SQLiteDB, *CommentService, *models.User, *models.Project, *models.Issue) {
	t.Helper()
	db := newTestDB(t)
	owner := newTestUser(t, db, "alice")
	projects := NewProjectService(db, "main")
	comments := NewCommentService(db, projects)

	ctx := context.Background()
	project, err := projects.Create(ctx, owner.ID, CreateProjectInput{Name: "widget"})
	if err != nil {
		t.Fatal(err)
	}
	issue, err := NewIssueService(db, projects).Create(ctx, owner.ID, project.ID, CreateIssueInput{Title: "t"})
	if err != nil {
		t.Fatal(err)
	}
	return ctx, db, comments, owner, project, issue
}

func TestCommentThreadSingleLevelNesting(t *testing.T) {
	ctx, _, comments, owner, project, issue := setupCommentFixture(t)

	top, err := comments.Add(ctx, owner.ID, project.ID, issue.Number, AddCommentInput{Body: "first"})
	if err != nil {
		t.Fatal(err)
	}
	r1, err := comments.Add(ctx, owner.ID, project.ID, issue.Number, AddCommentInput{Body: "reply one", ParentID: &top.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := comments.Add(ctx, owner.ID, project.ID, issue.Number, AddCommentInput{Body: "reply two", ParentID: &top.ID}); err != nil {
		t.Fatal(err)
	}

	// Replying to a reply is rejected.
	if _, err := comments.Add(ctx, owner.ID, project.ID, issue.Number, AddCommentInput{Body: "too deep", ParentID: &r1.ID}); !apperr.IsKind(err, apperr.Validation) {
		t.Fatalf("nested reply err = %v, want Validation", err)
	}

	topLevel, err := comments.ListTopLevel(ctx, owner.ID, project.ID, issue.Number)
	if err != nil {
		t.Fatal(err)
	}
	if len(topLevel) != 1 {
		t.Fatalf("top-level count = %d, want 1", len(topLevel))
	}
	if topLevel[0].ReplyCount != 2 {
		t.Fatalf("reply count = %d, want 2", topLevel[0].ReplyCount)
	}

	replies, err := comments.ListReplies(ctx, owner.ID, project.ID, issue.Number, top.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(replies) != 2 || replies[0].Body != "reply one" || replies[1].Body != "reply two" {
		t.Fatalf("replies = %+v, want reply one then reply two", replies)
	}
}

func TestCommentParentMustBelongToIssue(t *testing.T) {
	ctx, db, comments, owner, project, issue := setupCommentFixture(t)

	otherIssue, err := NewIssueService(db, NewProjectService(db, "main")).Create(ctx, owner.ID, project.ID, CreateIssueInput{Title: "other"})
	if err != nil {
		t.Fatal(err)
	}
	foreign, err := comments.Add(ctx, owner.ID, project.ID, otherIssue.Number, AddCommentInput{Body: "elsewhere"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := comments.Add(ctx, owner.ID, project.ID, issue.Number, AddCommentInput{Body: "r", ParentID: &foreign.ID}); !apperr.IsKind(err, apperr.Validation) {
		t.Fatalf("cross-issue parent err = %v, want Validation", err)
	}
}

func TestCommentDeletePermissionsAndSoftDelete(t *testing.T) {
	ctx, db, comments, owner, project, issue := setupCommentFixture(t)
	commenter := newTestUser(t, db, "bob")
	stranger := newTestUser(t, db, "carol")

	c, err := comments.Add(ctx, commenter.ID, project.ID, issue.Number, AddCommentInput{Body: "mine"})
	if err != nil {
		t.Fatal(err)
	}

	if err := comments.Delete(ctx, stranger.ID, project.ID, issue.Number, c.ID); !apperr.IsKind(err, apperr.Permission) {
		t.Fatalf("stranger delete err = %v, want Permission", err)
	}
	if err := comments.Delete(ctx, commenter.ID, project.ID, issue.Number, c.ID); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	// Deleting again stays quiet.
	if err := comments.Delete(ctx, commenter.ID, project.ID, issue.Number, c.ID); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}

	// A deleted comment cannot anchor new replies.
	if _, err := comments.Add(ctx, owner.ID, project.ID, issue.Number, AddCommentInput{Body: "r", ParentID: &c.ID}); !apperr.IsKind(err, apperr.Validation) {
		t.Fatalf("reply to deleted err = %v, want Validation", err)
	}

	// Project owner may delete others' comments.
	c2, err := comments.Add(ctx, commenter.ID, project.ID, issue.Number, AddCommentInput{Body: "again"})
	if err != nil {
		t.Fatal(err)
	}
	if err := comments.Delete(ctx, owner.ID, project.ID, issue.Number, c2.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestCommentBodyValidation(t *testing.T) {
	ctx, _, comments, owner, project, issue := setupCommentFixture(t)

	if _, err := comments.Add(ctx, owner.ID, project.ID, issue.Number, AddCommentInput{Body: "   "}); !apperr.IsKind(err, apperr.Validation) {
		t.Fatalf("blank body err = %v, want Validation", err)
	}
}
