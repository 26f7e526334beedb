package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/snipforge/snipforge/internal/models"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Enable WAL mode and foreign keys
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %s: %w", pragma, err)
		}
	}
	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) Close() error { return s.db.Close() }

func (s *SQLiteDB) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pastes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL UNIQUE,
	owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	body BLOB NOT NULL DEFAULT '',
	encoding TEXT NOT NULL DEFAULT 'plain',
	storage_key TEXT NOT NULL DEFAULT '',
	size_bytes INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	license TEXT NOT NULL DEFAULT '',
	is_public BOOLEAN NOT NULL DEFAULT TRUE,
	default_branch TEXT NOT NULL DEFAULT 'main',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS branches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_from INTEGER REFERENCES branches(id) ON DELETE SET NULL,
	commit_count INTEGER NOT NULL DEFAULT 0,
	base_commit_count INTEGER NOT NULL DEFAULT 0,
	last_commit_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(project_id, name)
);

CREATE TABLE IF NOT EXISTS file_pointers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	branch_id INTEGER NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
	paste_id INTEGER NOT NULL REFERENCES pastes(id),
	path TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	is_readme BOOLEAN NOT NULL DEFAULT FALSE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(branch_id, path, name)
);

CREATE TABLE IF NOT EXISTS issues (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	number INTEGER NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'open',
	priority TEXT NOT NULL DEFAULT 'medium',
	label TEXT NOT NULL DEFAULT '',
	author_id INTEGER NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	closed_at DATETIME,
	UNIQUE(project_id, number)
);

CREATE TABLE IF NOT EXISTS milestones (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	due_date DATETIME,
	completed_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS issue_milestones (
	issue_id INTEGER NOT NULL UNIQUE REFERENCES issues(id) ON DELETE CASCADE,
	milestone_id INTEGER NOT NULL REFERENCES milestones(id) ON DELETE CASCADE,
	PRIMARY KEY (issue_id, milestone_id)
);

CREATE TABLE IF NOT EXISTS issue_comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	issue_id INTEGER NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	author_id INTEGER NOT NULL REFERENCES users(id),
	body TEXT NOT NULL,
	parent_comment_id INTEGER REFERENCES issue_comments(id) ON DELETE CASCADE,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	actor_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	resource_path TEXT NOT NULL DEFAULT '',
	project_id INTEGER REFERENCES projects(id) ON DELETE CASCADE,
	issue_id INTEGER REFERENCES issues(id) ON DELETE CASCADE,
	read_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_file_pointers_project ON file_pointers(project_id);
CREATE INDEX IF NOT EXISTS idx_issues_project_status ON issues(project_id, status);
CREATE INDEX IF NOT EXISTS idx_issue_comments_issue ON issue_comments(issue_id);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, read_at);
`

// --- Users ---

func (s *SQLiteDB) CreateUser(ctx context.Context, u *models.User) error {
	u.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	u.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteDB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (s *SQLiteDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?`, username))
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// --- Pastes ---

func (s *SQLiteDB) CreatePaste(ctx context.Context, p *models.Paste) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pastes (slug, owner_id, title, language, body, encoding, storage_key, size_bytes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Slug, p.OwnerID, p.Title, p.Language, p.RawBody, string(p.Encoding), p.StorageKey, p.SizeBytes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

const pasteColumns = `p.id, p.slug, p.owner_id, u.username, p.title, p.language, p.body, p.encoding, p.storage_key, p.size_bytes, p.created_at, p.updated_at`

func (s *SQLiteDB) GetPasteByID(ctx context.Context, id int64) (*models.Paste, error) {
	return scanPaste(s.db.QueryRowContext(ctx,
		`SELECT `+pasteColumns+` FROM pastes p JOIN users u ON u.id = p.owner_id WHERE p.id = ?`, id))
}

func (s *SQLiteDB) GetPasteBySlug(ctx context.Context, slug string) (*models.Paste, error) {
	return scanPaste(s.db.QueryRowContext(ctx,
		`SELECT `+pasteColumns+` FROM pastes p JOIN users u ON u.id = p.owner_id WHERE p.slug = ?`, slug))
}

func scanPaste(row *sql.Row) (*models.Paste, error) {
	p := &models.Paste{}
	var encoding string
	if err := row.Scan(&p.ID, &p.Slug, &p.OwnerID, &p.OwnerName, &p.Title, &p.Language,
		&p.RawBody, &encoding, &p.StorageKey, &p.SizeBytes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Encoding = models.PasteEncoding(encoding)
	return p, nil
}

// --- Projects ---

func (s *SQLiteDB) CreateProject(ctx context.Context, project *models.Project, defaultBranch *models.Branch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now
	res, err := tx.ExecContext(ctx,
		`INSERT INTO projects (owner_id, name, description, license, is_public, default_branch, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		project.OwnerID, project.Name, project.Description, project.License,
		project.IsPublic, project.DefaultBranch, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return err
	}
	project.ID, _ = res.LastInsertId()

	defaultBranch.ProjectID = project.ID
	defaultBranch.CreatedAt = now
	res, err = tx.ExecContext(ctx,
		`INSERT INTO branches (project_id, name, description, commit_count, base_commit_count, created_at)
		 VALUES (?, ?, ?, 0, 0, ?)`,
		defaultBranch.ProjectID, defaultBranch.Name, defaultBranch.Description, defaultBranch.CreatedAt)
	if err != nil {
		return err
	}
	defaultBranch.ID, _ = res.LastInsertId()

	return tx.Commit()
}

const projectColumns = `pr.id, pr.owner_id, u.username, pr.name, pr.description, pr.license, pr.is_public, pr.default_branch, pr.created_at, pr.updated_at`

func (s *SQLiteDB) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects pr JOIN users u ON u.id = pr.owner_id WHERE pr.id = ?`, id))
}

func scanProject(row *sql.Row) (*models.Project, error) {
	p := &models.Project{}
	if err := row.Scan(&p.ID, &p.OwnerID, &p.OwnerName, &p.Name, &p.Description,
		&p.License, &p.IsPublic, &p.DefaultBranch, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteDB) UpdateProjectMeta(ctx context.Context, id int64, name, description string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		name, description, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteDB) ListOwnerProjects(ctx context.Context, ownerID int64) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects pr JOIN users u ON u.id = pr.owner_id
		 WHERE pr.owner_id = ? ORDER BY pr.updated_at DESC, pr.id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.OwnerName, &p.Name, &p.Description,
			&p.License, &p.IsPublic, &p.DefaultBranch, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) ProjectCounts(ctx context.Context, projectID int64) (branches, files, contributors int, err error) {
	if err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM branches WHERE project_id = ?`, projectID).Scan(&branches); err != nil {
		return 0, 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM file_pointers WHERE project_id = ?`, projectID).Scan(&files); err != nil {
		return 0, 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT p.owner_id) FROM file_pointers fp JOIN pastes p ON p.id = fp.paste_id
		 WHERE fp.project_id = ?`, projectID).Scan(&contributors); err != nil {
		return 0, 0, 0, err
	}
	return branches, files, contributors, nil
}

func (s *SQLiteDB) DeleteProject(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Explicit ordered cascade, leaf tables first. The schema's FK cascades
	// back this up, but the order here is load-bearing for stores without
	// cascading constraints enabled.
	steps := []string{
		`DELETE FROM issue_comments WHERE issue_id IN (SELECT id FROM issues WHERE project_id = ?)`,
		`DELETE FROM issue_milestones WHERE issue_id IN (SELECT id FROM issues WHERE project_id = ?)`,
		`DELETE FROM notifications WHERE project_id = ?`,
		`DELETE FROM issues WHERE project_id = ?`,
		`DELETE FROM milestones WHERE project_id = ?`,
		`DELETE FROM file_pointers WHERE project_id = ?`,
		`DELETE FROM branches WHERE project_id = ?`,
	}
	for _, q := range steps {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// --- Branches ---

func (s *SQLiteDB) CreateBranch(ctx context.Context, b *models.Branch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	b.CreatedAt = now
	res, err := tx.ExecContext(ctx,
		`INSERT INTO branches (project_id, name, description, commit_count, base_commit_count, created_at)
		 VALUES (?, ?, ?, 0, 0, ?)`,
		b.ProjectID, b.Name, b.Description, b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	b.ID, _ = res.LastInsertId()

	if _, err := tx.ExecContext(ctx, `UPDATE projects SET updated_at = ? WHERE id = ?`, now, b.ProjectID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteDB) ForkBranch(ctx context.Context, b *models.Branch, sourceBranchID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var sourceCommits int64
	err = tx.QueryRowContext(ctx,
		`SELECT commit_count FROM branches WHERE id = ? AND project_id = ?`,
		sourceBranchID, b.ProjectID).Scan(&sourceCommits)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	b.CreatedAt = now
	b.CreatedFrom = &sourceBranchID
	b.BaseCommitCount = sourceCommits
	res, err := tx.ExecContext(ctx,
		`INSERT INTO branches (project_id, name, description, created_from, commit_count, base_commit_count, created_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		b.ProjectID, b.Name, b.Description, sourceBranchID, sourceCommits, b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	b.ID, _ = res.LastInsertId()

	// Copy the source branch's working file set: new pointer rows, same
	// paste references.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO file_pointers (project_id, branch_id, paste_id, path, name, is_readme, created_at)
		 SELECT project_id, ?, paste_id, path, name, is_readme, ? FROM file_pointers WHERE branch_id = ?`,
		b.ID, now, sourceBranchID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE projects SET updated_at = ? WHERE id = ?`, now, b.ProjectID); err != nil {
		return err
	}
	return tx.Commit()
}

const branchColumns = `id, project_id, name, description, created_from, commit_count, base_commit_count, last_commit_at, created_at`

func (s *SQLiteDB) GetBranch(ctx context.Context, id int64) (*models.Branch, error) {
	return scanBranch(s.db.QueryRowContext(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE id = ?`, id))
}

func (s *SQLiteDB) GetBranchByName(ctx context.Context, projectID int64, name string) (*models.Branch, error) {
	return scanBranch(s.db.QueryRowContext(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE project_id = ? AND name = ?`, projectID, name))
}

func scanBranch(row *sql.Row) (*models.Branch, error) {
	b := &models.Branch{}
	if err := row.Scan(&b.ID, &b.ProjectID, &b.Name, &b.Description, &b.CreatedFrom,
		&b.CommitCount, &b.BaseCommitCount, &b.LastCommitAt, &b.CreatedAt); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SQLiteDB) ListBranches(ctx context.Context, projectID int64) ([]models.Branch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE project_id = ? ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Branch
	for rows.Next() {
		var b models.Branch
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &b.Description, &b.CreatedFrom,
			&b.CommitCount, &b.BaseCommitCount, &b.LastCommitAt, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- File pointers ---

func (s *SQLiteDB) AddFilePointer(ctx context.Context, fp *models.FilePointer, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Single in-store increment: no read-modify-write, so concurrent adds
	// cannot lose updates on the counter. Also verifies the branch belongs
	// to the project before any pointer row exists.
	res, err := tx.ExecContext(ctx,
		`UPDATE branches SET commit_count = commit_count + 1, last_commit_at = ? WHERE id = ? AND project_id = ?`,
		now, fp.BranchID, fp.ProjectID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return sql.ErrNoRows
	}

	fp.CreatedAt = now
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO file_pointers (project_id, branch_id, paste_id, path, name, is_readme, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(branch_id, path, name) DO UPDATE SET paste_id = excluded.paste_id, is_readme = excluded.is_readme`,
		fp.ProjectID, fp.BranchID, fp.PasteID, fp.Path, fp.Name, fp.IsReadme, fp.CreatedAt); err != nil {
		return err
	}
	// LastInsertId is unreliable through the upsert path; read the row back.
	if err := tx.QueryRowContext(ctx,
		`SELECT id, created_at FROM file_pointers WHERE branch_id = ? AND path = ? AND name = ?`,
		fp.BranchID, fp.Path, fp.Name).Scan(&fp.ID, &fp.CreatedAt); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE projects SET updated_at = ? WHERE id = ?`, now, fp.ProjectID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteDB) ListFilePointers(ctx context.Context, branchID int64) ([]models.FilePointer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, branch_id, paste_id, path, name, is_readme, created_at
		 FROM file_pointers WHERE branch_id = ? ORDER BY path ASC, name ASC`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FilePointer
	for rows.Next() {
		var fp models.FilePointer
		if err := rows.Scan(&fp.ID, &fp.ProjectID, &fp.BranchID, &fp.PasteID,
			&fp.Path, &fp.Name, &fp.IsReadme, &fp.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) ListRecentFileActivity(ctx context.Context, projectID int64, limit int) ([]models.FileActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fp.id, fp.project_id, fp.branch_id, fp.paste_id, fp.path, fp.name, fp.is_readme, fp.created_at,
		        b.name, p.slug, p.title, p.language, p.updated_at
		 FROM file_pointers fp
		 JOIN branches b ON b.id = fp.branch_id
		 JOIN pastes p ON p.id = fp.paste_id
		 WHERE fp.project_id = ?
		 ORDER BY p.updated_at DESC, fp.id DESC
		 LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FileActivity
	for rows.Next() {
		var a models.FileActivity
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.BranchID, &a.PasteID, &a.Path, &a.Name, &a.IsReadme, &a.CreatedAt,
			&a.BranchName, &a.PasteSlug, &a.PasteTitle, &a.Language, &a.ContentUpdated); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Issues ---

func (s *SQLiteDB) CreateIssue(ctx context.Context, issue *models.Issue, milestoneID *int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM issues WHERE project_id = ?`,
		issue.ProjectID).Scan(&issue.Number); err != nil {
		return err
	}

	now := time.Now().UTC()
	issue.CreatedAt = now
	issue.UpdatedAt = now
	res, err := tx.ExecContext(ctx,
		`INSERT INTO issues (project_id, number, title, description, status, priority, label, author_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ProjectID, issue.Number, issue.Title, issue.Description, issue.Status,
		issue.Priority, issue.Label, issue.AuthorID, issue.CreatedAt, issue.UpdatedAt)
	if err != nil {
		return err
	}
	issue.ID, _ = res.LastInsertId()

	if milestoneID != nil {
		if err := linkIssueMilestone(ctx, tx, issue, *milestoneID); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE projects SET updated_at = ? WHERE id = ?`, now, issue.ProjectID); err != nil {
		return err
	}
	return tx.Commit()
}

// linkIssueMilestone inserts the link only when the milestone belongs to the
// issue's project; a cross-project milestone id reads as not found.
func linkIssueMilestone(ctx context.Context, tx *sql.Tx, issue *models.Issue, milestoneID int64) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO issue_milestones (issue_id, milestone_id)
		 SELECT ?, id FROM milestones WHERE id = ? AND project_id = ?`,
		issue.ID, milestoneID, issue.ProjectID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return sql.ErrNoRows
	}
	issue.MilestoneID = &milestoneID
	return nil
}

const issueColumns = `i.id, i.project_id, i.number, i.title, i.description, i.status, i.priority, i.label,
	i.author_id, u.username, im.milestone_id, i.created_at, i.updated_at, i.closed_at`

const issueJoins = ` FROM issues i
	JOIN users u ON u.id = i.author_id
	LEFT JOIN issue_milestones im ON im.issue_id = i.id`

func (s *SQLiteDB) GetIssue(ctx context.Context, projectID int64, number int) (*models.Issue, error) {
	return scanIssue(s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+issueJoins+` WHERE i.project_id = ? AND i.number = ?`, projectID, number))
}

func (s *SQLiteDB) GetIssueByID(ctx context.Context, id int64) (*models.Issue, error) {
	return scanIssue(s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+issueJoins+` WHERE i.id = ?`, id))
}

func scanIssue(row *sql.Row) (*models.Issue, error) {
	i := &models.Issue{}
	if err := row.Scan(&i.ID, &i.ProjectID, &i.Number, &i.Title, &i.Description, &i.Status,
		&i.Priority, &i.Label, &i.AuthorID, &i.AuthorName, &i.MilestoneID,
		&i.CreatedAt, &i.UpdatedAt, &i.ClosedAt); err != nil {
		return nil, err
	}
	return i, nil
}

func (s *SQLiteDB) ListIssuesPage(ctx context.Context, projectID int64, status string, limit, offset int) ([]models.Issue, error) {
	query := `SELECT ` + issueColumns + issueJoins + ` WHERE i.project_id = ?`
	args := []any{projectID}
	if status != "" {
		query += ` AND i.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY i.number DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Issue
	for rows.Next() {
		var i models.Issue
		if err := rows.Scan(&i.ID, &i.ProjectID, &i.Number, &i.Title, &i.Description, &i.Status,
			&i.Priority, &i.Label, &i.AuthorID, &i.AuthorName, &i.MilestoneID,
			&i.CreatedAt, &i.UpdatedAt, &i.ClosedAt); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) UpdateIssue(ctx context.Context, issue *models.Issue, milestoneID *int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	issue.UpdatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE issues SET title = ?, description = ?, priority = ?, label = ?, updated_at = ? WHERE id = ?`,
		issue.Title, issue.Description, issue.Priority, issue.Label, issue.UpdatedAt, issue.ID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return sql.ErrNoRows
	}

	// Replace the milestone link set: drop the old link, insert the new one.
	if _, err := tx.ExecContext(ctx, `DELETE FROM issue_milestones WHERE issue_id = ?`, issue.ID); err != nil {
		return err
	}
	issue.MilestoneID = nil
	if milestoneID != nil {
		if err := linkIssueMilestone(ctx, tx, issue, *milestoneID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteDB) UpdateIssueStatus(ctx context.Context, issue *models.Issue) error {
	issue.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE issues SET status = ?, closed_at = ?, updated_at = ? WHERE id = ?`,
		issue.Status, issue.ClosedAt, issue.UpdatedAt, issue.ID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteDB) DeleteIssue(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Comments cascade before the issue row goes away.
	if _, err := tx.ExecContext(ctx, `DELETE FROM issue_comments WHERE issue_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM issue_milestones WHERE issue_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE issue_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// --- Milestones ---

func (s *SQLiteDB) CreateMilestone(ctx context.Context, m *models.Milestone) error {
	m.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO milestones (project_id, title, description, due_date, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ProjectID, m.Title, m.Description, m.DueDate, m.CreatedAt)
	if err != nil {
		return err
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

const milestoneColumns = `id, project_id, title, description, due_date, completed_at, created_at`

func (s *SQLiteDB) GetMilestone(ctx context.Context, id int64) (*models.Milestone, error) {
	m := &models.Milestone{}
	err := s.db.QueryRowContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = ?`, id).
		Scan(&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.DueDate, &m.CompletedAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SQLiteDB) ListMilestones(ctx context.Context, projectID int64) ([]models.Milestone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE project_id = ? ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Milestone
	for rows.Next() {
		var m models.Milestone
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.DueDate, &m.CompletedAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) MilestoneProgress(ctx context.Context, milestoneID int64) (*models.MilestoneProgress, error) {
	p := &models.MilestoneProgress{}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN i.status = 'closed' THEN 1 ELSE 0 END), 0)
		 FROM issue_milestones im JOIN issues i ON i.id = im.issue_id
		 WHERE im.milestone_id = ?`, milestoneID).
		Scan(&p.LinkedIssues, &p.CompletedIssues)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteDB) SetMilestoneCompleted(ctx context.Context, id int64, completedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE milestones SET completed_at = ? WHERE id = ?`, completedAt, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return sql.ErrNoRows
	}
	return nil
}

// --- Issue comments ---

func (s *SQLiteDB) CreateIssueComment(ctx context.Context, c *models.IssueComment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	res, err := tx.ExecContext(ctx,
		`INSERT INTO issue_comments (issue_id, author_id, body, parent_comment_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.IssueID, c.AuthorID, c.Body, c.ParentID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	c.ID, _ = res.LastInsertId()

	if _, err := tx.ExecContext(ctx, `UPDATE issues SET updated_at = ? WHERE id = ?`, now, c.IssueID); err != nil {
		return err
	}
	return tx.Commit()
}

const commentColumns = `c.id, c.issue_id, c.author_id, u.username, c.body, c.parent_comment_id, c.is_deleted, c.created_at, c.updated_at`

func (s *SQLiteDB) GetIssueComment(ctx context.Context, id int64) (*models.IssueComment, error) {
	c := &models.IssueComment{}
	err := s.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM issue_comments c JOIN users u ON u.id = c.author_id WHERE c.id = ?`, id).
		Scan(&c.ID, &c.IssueID, &c.AuthorID, &c.AuthorName, &c.Body, &c.ParentID, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLiteDB) ListTopLevelComments(ctx context.Context, issueID int64) ([]models.IssueComment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+commentColumns+`,
		        (SELECT COUNT(*) FROM issue_comments r WHERE r.parent_comment_id = c.id AND r.is_deleted = FALSE)
		 FROM issue_comments c JOIN users u ON u.id = c.author_id
		 WHERE c.issue_id = ? AND c.parent_comment_id IS NULL AND c.is_deleted = FALSE
		 ORDER BY c.created_at ASC, c.id ASC`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.IssueComment
	for rows.Next() {
		var c models.IssueComment
		if err := rows.Scan(&c.ID, &c.IssueID, &c.AuthorID, &c.AuthorName, &c.Body, &c.ParentID,
			&c.IsDeleted, &c.CreatedAt, &c.UpdatedAt, &c.ReplyCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) ListReplies(ctx context.Context, parentID int64) ([]models.IssueComment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM issue_comments c JOIN users u ON u.id = c.author_id
		 WHERE c.parent_comment_id = ? AND c.is_deleted = FALSE
		 ORDER BY c.created_at ASC, c.id ASC`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.IssueComment
	for rows.Next() {
		var c models.IssueComment
		if err := rows.Scan(&c.ID, &c.IssueID, &c.AuthorID, &c.AuthorName, &c.Body, &c.ParentID,
			&c.IsDeleted, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) SoftDeleteIssueComment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE issue_comments SET is_deleted = TRUE, updated_at = ? WHERE id = ? AND is_deleted = FALSE`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return sql.ErrNoRows
	}
	return nil
}

// --- Notifications ---

func (s *SQLiteDB) CreateNotification(ctx context.Context, n *models.Notification) error {
	n.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, actor_id, type, title, body, resource_path, project_id, issue_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.ActorID, n.Type, n.Title, n.Body, n.ResourcePath, n.ProjectID, n.IssueID, n.CreatedAt)
	if err != nil {
		return err
	}
	n.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteDB) ListNotificationsPage(ctx context.Context, userID int64, limit, offset int) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, actor_id, type, title, body, resource_path, project_id, issue_id, read_at, created_at
		 FROM notifications WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.ActorID, &n.Type, &n.Title, &n.Body,
			&n.ResourcePath, &n.ProjectID, &n.IssueID, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) MarkNotificationRead(ctx context.Context, id, userID int64, readAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = ? WHERE id = ? AND user_id = ? AND read_at IS NULL`,
		readAt, id, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return sql.ErrNoRows
	}
	return nil
}
