package service

import (
	"context"
	"strings"

	"github.com/snipforge/snipforge/internal/apperr"
	"github.com/snipforge/snipforge/internal/database"
	"github.com/snipforge/snipforge/internal/models"
)

const maxCommentLen = 10_000

// CommentService manages issue discussion threads. Nesting is exactly one
// level deep: a comment either sits at the top level or replies to a
// top-level comment, never to another reply.
type CommentService struct {
	db       database.DB
	projects *ProjectService
}

func NewCommentService(db database.DB, projects *ProjectService) *CommentService {
	return &CommentService{db: db, projects: projects}
}

type AddCommentInput struct {
	Body     string `json:"body"`
	ParentID *int64 `json:"parent_id"`
}

func (s *CommentService) Add(ctx context.Context, actorID, projectID int64, issueNumber int, in AddCommentInput) (*models.IssueComment, error) {
	if _, err := s.projects.Get(ctx, actorID, projectID); err != nil {
		return nil, err
	}
	issue, err := s.db.GetIssue(ctx, projectID, issueNumber)
	if err != nil {
		return nil, storeErr(err, "issue")
	}

	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, apperr.Validationf("comment body is required")
	}
	if len(body) > maxCommentLen {
		return nil, apperr.Validationf("comment body exceeds %d characters", maxCommentLen)
	}

	if in.ParentID != nil {
		parent, err := s.db.GetIssueComment(ctx, *in.ParentID)
		if err != nil {
			return nil, storeErr(err, "parent comment")
		}
		if parent.IssueID != issue.ID {
			return nil, apperr.Validationf("parent comment belongs to a different issue")
		}
		if parent.ParentID != nil {
			return nil, apperr.Validationf("replies to replies are not allowed")
		}
		if parent.IsDeleted {
			return nil, apperr.Validationf("cannot reply to a deleted comment")
		}
	}

	c := &models.IssueComment{
		IssueID:  issue.ID,
		AuthorID: actorID,
		Body:     body,
		ParentID: in.ParentID,
	}
	if err := s.db.CreateIssueComment(ctx, c); err != nil {
		return nil, storeErr(err, "comment")
	}
	return c, nil
}

// ListTopLevel returns the issue's top-level comments oldest first, each with
// its reply count.
func (s *CommentService) ListTopLevel(ctx context.Context, actorID, projectID int64, issueNumber int) ([]models.IssueComment, error) {
	if _, err := s.projects.Get(ctx, actorID, projectID); err != nil {
		return nil, err
	}
	issue, err := s.db.GetIssue(ctx, projectID, issueNumber)
	if err != nil {
		return nil, storeErr(err, "issue")
	}
	comments, err := s.db.ListTopLevelComments(ctx, issue.ID)
	if err != nil {
		return nil, storeErr(err, "comments")
	}
	return comments, nil
}

func (s *CommentService) ListReplies(ctx context.Context, actorID, projectID int64, issueNumber int, parentID int64) ([]models.IssueComment, error) {
	if _, err := s.projects.Get(ctx, actorID, projectID); err != nil {
		return nil, err
	}
	issue, err := s.db.GetIssue(ctx, projectID, issueNumber)
	if err != nil {
		return nil, storeErr(err, "issue")
	}
	parent, err := s.db.GetIssueComment(ctx, parentID)
	if err != nil {
		return nil, storeErr(err, "comment")
	}
	if parent.IssueID != issue.ID {
		return nil, apperr.NotFoundf("comment not found")
	}
	replies, err := s.db.ListReplies(ctx, parentID)
	if err != nil {
		return nil, storeErr(err, "replies")
	}
	return replies, nil
}

// Delete soft-deletes a comment: the row stays so replies keep their anchor,
// but the body is no longer served.
func (s *CommentService) Delete(ctx context.Context, actorID, projectID int64, issueNumber int, commentID int64) error {
	project, err := s.projects.Get(ctx, actorID, projectID)
	if err != nil {
		return err
	}
	issue, err := s.db.GetIssue(ctx, projectID, issueNumber)
	if err != nil {
		return storeErr(err, "issue")
	}
	c, err := s.db.GetIssueComment(ctx, commentID)
	if err != nil {
		return storeErr(err, "comment")
	}
	if c.IssueID != issue.ID {
		return apperr.NotFoundf("comment not found")
	}
	if actorID != c.AuthorID && actorID != project.OwnerID {
		return apperr.Permissionf("only the comment author or project owner can delete it")
	}
	if c.IsDeleted {
		return nil
	}
	if err := s.db.SoftDeleteIssueComment(ctx, commentID); err != nil {
		return storeErr(err, "comment")
	}
	return nil
}
