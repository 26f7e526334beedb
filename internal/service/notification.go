package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/snipforge/snipforge/internal/database"
	"github.com/snipforge/snipforge/internal/models"
)

const (
	notificationPageSize    = 30
	maxNotificationPageSize = 100
)

// NotificationService fans events out to interested users. Delivery is
// best-effort: a failed insert is logged and never fails the triggering
// request.
type NotificationService struct {
	db     database.DB
	logger *slog.Logger
}

func NewNotificationService(db database.DB, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{db: db, logger: logger}
}

// NotifyIssueOpened tells the project owner a new issue was filed.
func (s *NotificationService) NotifyIssueOpened(ctx context.Context, project *models.Project, issue *models.Issue) {
	s.deliver(ctx, []int64{project.OwnerID}, issue.AuthorID, &models.Notification{
		Type:         "issue_opened",
		Title:        fmt.Sprintf("New issue #%d in %s", issue.Number, project.Name),
		Body:         clipText(issue.Title, 140),
		ResourcePath: fmt.Sprintf("/projects/%d/issues/%d", project.ID, issue.Number),
		ProjectID:    &project.ID,
		IssueID:      &issue.ID,
	})
}

// NotifyIssueComment tells the project owner, the issue author and (for
// replies) the parent comment's author about a new comment. The commenter
// never notifies themselves and no recipient is notified twice.
func (s *NotificationService) NotifyIssueComment(ctx context.Context, project *models.Project, issue *models.Issue, comment *models.IssueComment) {
	recipients := []int64{project.OwnerID, issue.AuthorID}
	if comment.ParentID != nil {
		if parent, err := s.db.GetIssueComment(ctx, *comment.ParentID); err == nil {
			recipients = append(recipients, parent.AuthorID)
		}
	}
	s.deliver(ctx, recipients, comment.AuthorID, &models.Notification{
		Type:         "issue_comment",
		Title:        fmt.Sprintf("New comment on issue #%d in %s", issue.Number, project.Name),
		Body:         clipText(comment.Body, 140),
		ResourcePath: fmt.Sprintf("/projects/%d/issues/%d", project.ID, issue.Number),
		ProjectID:    &project.ID,
		IssueID:      &issue.ID,
	})
}

func (s *NotificationService) deliver(ctx context.Context, recipients []int64, actorID int64, template *models.Notification) {
	seen := map[int64]bool{actorID: true}
	for _, userID := range recipients {
		if seen[userID] {
			continue
		}
		seen[userID] = true

		n := *template
		n.UserID = userID
		n.ActorID = actorID
		if err := s.db.CreateNotification(ctx, &n); err != nil {
			s.logger.Error("notification delivery failed",
				"type", n.Type, "user_id", userID, "error", err)
		}
	}
}

func (s *NotificationService) List(ctx context.Context, userID int64, page, perPage int) ([]models.Notification, error) {
	limit, offset := normalizePage(page, perPage, notificationPageSize, maxNotificationPageSize)
	notifications, err := s.db.ListNotificationsPage(ctx, userID, limit, offset)
	if err != nil {
		return nil, storeErr(err, "notifications")
	}
	return notifications, nil
}

// MarkRead stamps the notification read. Only the recipient can mark their
// own notifications; anything else reads as not-found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) error {
	if err := s.db.MarkNotificationRead(ctx, id, userID, time.Now().UTC()); err != nil {
		return storeErr(err, "notification")
	}
	return nil
}
