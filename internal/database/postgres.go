package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/snipforge/snipforge/internal/models"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresDB struct {
	db *sql.DB
}

func OpenPostgres(dsn string) (*PostgresDB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &PostgresDB{db: db}, nil
}

func (p *PostgresDB) Close() error { return p.db.Close() }

func (p *PostgresDB) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, pgSchema)
	return err
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS pastes (
	id BIGSERIAL PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	body BYTEA NOT NULL DEFAULT ''::bytea,
	encoding TEXT NOT NULL DEFAULT 'plain',
	storage_key TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS projects (
	id BIGSERIAL PRIMARY KEY,
	owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	license TEXT NOT NULL DEFAULT '',
	is_public BOOLEAN NOT NULL DEFAULT TRUE,
	default_branch TEXT NOT NULL DEFAULT 'main',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS branches (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_from BIGINT REFERENCES branches(id) ON DELETE SET NULL,
	commit_count BIGINT NOT NULL DEFAULT 0,
	base_commit_count BIGINT NOT NULL DEFAULT 0,
	last_commit_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE(project_id, name)
);

CREATE TABLE IF NOT EXISTS file_pointers (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	branch_id BIGINT NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
	paste_id BIGINT NOT NULL REFERENCES pastes(id),
	path TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	is_readme BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE(branch_id, path, name)
);

CREATE TABLE IF NOT EXISTS issues (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	number INTEGER NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'open',
	priority TEXT NOT NULL DEFAULT 'medium',
	label TEXT NOT NULL DEFAULT '',
	author_id BIGINT NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	closed_at TIMESTAMPTZ,
	UNIQUE(project_id, number)
);

CREATE TABLE IF NOT EXISTS milestones (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	due_date TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS issue_milestones (
	issue_id BIGINT NOT NULL UNIQUE REFERENCES issues(id) ON DELETE CASCADE,
	milestone_id BIGINT NOT NULL REFERENCES milestones(id) ON DELETE CASCADE,
	PRIMARY KEY (issue_id, milestone_id)
);

CREATE TABLE IF NOT EXISTS issue_comments (
	id BIGSERIAL PRIMARY KEY,
	issue_id BIGINT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	author_id BIGINT NOT NULL REFERENCES users(id),
	body TEXT NOT NULL,
	parent_comment_id BIGINT REFERENCES issue_comments(id) ON DELETE CASCADE,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS notifications (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	actor_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	resource_path TEXT NOT NULL DEFAULT '',
	project_id BIGINT REFERENCES projects(id) ON DELETE CASCADE,
	issue_id BIGINT REFERENCES issues(id) ON DELETE CASCADE,
	read_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_file_pointers_project ON file_pointers(project_id);
CREATE INDEX IF NOT EXISTS idx_issues_project_status ON issues(project_id, status);
CREATE INDEX IF NOT EXISTS idx_issue_comments_issue ON issue_comments(issue_id);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, read_at);
`

// --- Users ---

func (p *PostgresDB) CreateUser(ctx context.Context, u *models.User) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3) RETURNING id, created_at`,
		u.Username, u.Email, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *PostgresDB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(p.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = $1`, id))
}

func (p *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(p.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = $1`, username))
}

// --- Pastes ---

func (p *PostgresDB) CreatePaste(ctx context.Context, paste *models.Paste) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO pastes (slug, owner_id, title, language, body, encoding, storage_key, size_bytes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at, updated_at`,
		paste.Slug, paste.OwnerID, paste.Title, paste.Language, paste.RawBody,
		string(paste.Encoding), paste.StorageKey, paste.SizeBytes).
		Scan(&paste.ID, &paste.CreatedAt, &paste.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *PostgresDB) GetPasteByID(ctx context.Context, id int64) (*models.Paste, error) {
	return scanPaste(p.db.QueryRowContext(ctx,
		`SELECT `+pasteColumns+` FROM pastes p JOIN users u ON u.id = p.owner_id WHERE p.id = $1`, id))
}

func (p *PostgresDB) GetPasteBySlug(ctx context.Context, slug string) (*models.Paste, error) {
	return scanPaste(p.db.QueryRowContext(ctx,
		`SELECT `+pasteColumns+` FROM pastes p JOIN users u ON u.id = p.owner_id WHERE p.slug = $1`, slug))
}

// --- Projects ---

func (p *PostgresDB) CreateProject(ctx context.Context, project *models.Project, defaultBranch *models.Branch) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO projects (owner_id, name, description, license, is_public, default_branch)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`,
		project.OwnerID, project.Name, project.Description, project.License,
		project.IsPublic, project.DefaultBranch).
		Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return err
	}

	defaultBranch.ProjectID = project.ID
	err = tx.QueryRowContext(ctx,
		`INSERT INTO branches (project_id, name, description, commit_count, base_commit_count)
		 VALUES ($1, $2, $3, 0, 0) RETURNING id, created_at`,
		defaultBranch.ProjectID, defaultBranch.Name, defaultBranch.Description).
		Scan(&defaultBranch.ID, &defaultBranch.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresDB) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	return scanProject(p.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects pr JOIN users u ON u.id = pr.owner_id WHERE pr.id = $1`, id))
}

func (p *PostgresDB) UpdateProjectMeta(ctx context.Context, id int64, name, description string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE projects SET name = $1, description = $2, updated_at = NOW() WHERE id = $3`,
		name, description, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return sql.ErrNoRows
	}
	return nil
}

func (p *PostgresDB) ListOwnerProjects(ctx context.Context, ownerID int64) ([]models.Project, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects pr JOIN users u ON u.id = pr.owner_id
		 WHERE pr.owner_id = $1 ORDER BY pr.updated_at DESC, pr.id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		var pr models.Project
		if err := rows.Scan(&pr.ID, &pr.OwnerID, &pr.OwnerName, &pr.Name, &pr.Description,
			&pr.License, &pr.IsPublic, &pr.DefaultBranch, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *PostgresDB) ProjectCounts(ctx context.Context, projectID int64) (branches, files, contributors int, err error) {
	if err = p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM branches WHERE project_id = $1`, projectID).Scan(&branches); err != nil {
		return 0, 0, 0, err
	}
	if err = p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM file_pointers WHERE project_id = $1`, projectID).Scan(&files); err != nil {
		return 0, 0, 0, err
	}
	if err = p.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT pa.owner_id) FROM file_pointers fp JOIN pastes pa ON pa.id = fp.paste_id
		 WHERE fp.project_id = $1`, projectID).Scan(&contributors); err != nil {
		return 0, 0, 0, err
	}
	return branches, files, contributors, nil
}

func (p *PostgresDB) DeleteProject(ctx context.Context, id int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	steps := []string{
		`DELETE FROM issue_comments WHERE issue_id IN (SELECT id FROM issues WHERE project_id = $1)`,
		`DELETE FROM issue_milestones WHERE issue_id IN (SELECT id FROM issues WHERE project_id = $1)`,
		`DELETE FROM notifications WHERE project_id = $1`,
		`DELETE FROM issues WHERE project_id = $1`,
		`DELETE FROM milestones WHERE project_id = $1`,
		`DELETE FROM file_pointers WHERE project_id = $1`,
		`DELETE FROM branches WHERE project_id = $1`,
	}
	for _, q := range steps {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
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

func (p *PostgresDB) CreateBranch(ctx context.Context, b *models.Branch) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO branches (project_id, name, description, commit_count, base_commit_count)
		 VALUES ($1, $2, $3, 0, 0) RETURNING id, created_at`,
		b.ProjectID, b.Name, b.Description).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET updated_at = NOW() WHERE id = $1`, b.ProjectID); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresDB) ForkBranch(ctx context.Context, b *models.Branch, sourceBranchID int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var sourceCommits int64
	err = tx.QueryRowContext(ctx,
		`SELECT commit_count FROM branches WHERE id = $1 AND project_id = $2`,
		sourceBranchID, b.ProjectID).Scan(&sourceCommits)
	if err != nil {
		return err
	}

	b.CreatedFrom = &sourceBranchID
	b.BaseCommitCount = sourceCommits
	err = tx.QueryRowContext(ctx,
		`INSERT INTO branches (project_id, name, description, created_from, commit_count, base_commit_count)
		 VALUES ($1, $2, $3, $4, 0, $5) RETURNING id, created_at`,
		b.ProjectID, b.Name, b.Description, sourceBranchID, sourceCommits).
		Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO file_pointers (project_id, branch_id, paste_id, path, name, is_readme)
		 SELECT project_id, $1, paste_id, path, name, is_readme FROM file_pointers WHERE branch_id = $2`,
		b.ID, sourceBranchID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE projects SET updated_at = NOW() WHERE id = $1`, b.ProjectID); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresDB) GetBranch(ctx context.Context, id int64) (*models.Branch, error) {
	return scanBranch(p.db.QueryRowContext(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE id = $1`, id))
}

func (p *PostgresDB) GetBranchByName(ctx context.Context, projectID int64, name string) (*models.Branch, error) {
	return scanBranch(p.db.QueryRowContext(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE project_id = $1 AND name = $2`, projectID, name))
}

func (p *PostgresDB) ListBranches(ctx context.Context, projectID int64) ([]models.Branch, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE project_id = $1 ORDER BY created_at ASC, id ASC`, projectID)
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

func (p *PostgresDB) AddFilePointer(ctx context.Context, fp *models.FilePointer, now time.Time) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE branches SET commit_count = commit_count + 1, last_commit_at = $1 WHERE id = $2 AND project_id = $3`,
		now, fp.BranchID, fp.ProjectID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return sql.ErrNoRows
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO file_pointers (project_id, branch_id, paste_id, path, name, is_readme, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (branch_id, path, name) DO UPDATE SET paste_id = EXCLUDED.paste_id, is_readme = EXCLUDED.is_readme
		 RETURNING id, created_at`,
		fp.ProjectID, fp.BranchID, fp.PasteID, fp.Path, fp.Name, fp.IsReadme, now).
		Scan(&fp.ID, &fp.CreatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE projects SET updated_at = $1 WHERE id = $2`, now, fp.ProjectID); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresDB) ListFilePointers(ctx context.Context, branchID int64) ([]models.FilePointer, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, project_id, branch_id, paste_id, path, name, is_readme, created_at
		 FROM file_pointers WHERE branch_id = $1 ORDER BY path ASC, name ASC`, branchID)
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

func (p *PostgresDB) ListRecentFileActivity(ctx context.Context, projectID int64, limit int) ([]models.FileActivity, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT fp.id, fp.project_id, fp.branch_id, fp.paste_id, fp.path, fp.name, fp.is_readme, fp.created_at,
		        b.name, pa.slug, pa.title, pa.language, pa.updated_at
		 FROM file_pointers fp
		 JOIN branches b ON b.id = fp.branch_id
		 JOIN pastes pa ON pa.id = fp.paste_id
		 WHERE fp.project_id = $1
		 ORDER BY pa.updated_at DESC, fp.id DESC
		 LIMIT $2`, projectID, limit)
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

func (p *PostgresDB) CreateIssue(ctx context.Context, issue *models.Issue, milestoneID *int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM issues WHERE project_id = $1`,
		issue.ProjectID).Scan(&issue.Number); err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO issues (project_id, number, title, description, status, priority, label, author_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at, updated_at`,
		issue.ProjectID, issue.Number, issue.Title, issue.Description, issue.Status,
		issue.Priority, issue.Label, issue.AuthorID).
		Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		return err
	}

	if milestoneID != nil {
		if err := pgLinkIssueMilestone(ctx, tx, issue, *milestoneID); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE projects SET updated_at = NOW() WHERE id = $1`, issue.ProjectID); err != nil {
		return err
	}
	return tx.Commit()
}

func pgLinkIssueMilestone(ctx context.Context, tx *sql.Tx, issue *models.Issue, milestoneID int64) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO issue_milestones (issue_id, milestone_id)
		 SELECT $1, id FROM milestones WHERE id = $2 AND project_id = $3`,
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

func (p *PostgresDB) GetIssue(ctx context.Context, projectID int64, number int) (*models.Issue, error) {
	return scanIssue(p.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+issueJoins+` WHERE i.project_id = $1 AND i.number = $2`, projectID, number))
}

func (p *PostgresDB) GetIssueByID(ctx context.Context, id int64) (*models.Issue, error) {
	return scanIssue(p.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+issueJoins+` WHERE i.id = $1`, id))
}

func (p *PostgresDB) ListIssuesPage(ctx context.Context, projectID int64, status string, limit, offset int) ([]models.Issue, error) {
	query := `SELECT ` + issueColumns + issueJoins + ` WHERE i.project_id = $1`
	args := []any{projectID}
	if status != "" {
		query += ` AND i.status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY i.number DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := p.db.QueryContext(ctx, query, args...)
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

func (p *PostgresDB) UpdateIssue(ctx context.Context, issue *models.Issue, milestoneID *int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	issue.UpdatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE issues SET title = $1, description = $2, priority = $3, label = $4, updated_at = $5 WHERE id = $6`,
		issue.Title, issue.Description, issue.Priority, issue.Label, issue.UpdatedAt, issue.ID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM issue_milestones WHERE issue_id = $1`, issue.ID); err != nil {
		return err
	}
	issue.MilestoneID = nil
	if milestoneID != nil {
		if err := pgLinkIssueMilestone(ctx, tx, issue, *milestoneID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgresDB) UpdateIssueStatus(ctx context.Context, issue *models.Issue) error {
	issue.UpdatedAt = time.Now().UTC()
	res, err := p.db.ExecContext(ctx,
		`UPDATE issues SET status = $1, closed_at = $2, updated_at = $3 WHERE id = $4`,
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

func (p *PostgresDB) DeleteIssue(ctx context.Context, id int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM issue_comments WHERE issue_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM issue_milestones WHERE issue_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE issue_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE id = $1`, id)
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

func (p *PostgresDB) CreateMilestone(ctx context.Context, m *models.Milestone) error {
	return p.db.QueryRowContext(ctx,
		`INSERT INTO milestones (project_id, title, description, due_date)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		m.ProjectID, m.Title, m.Description, m.DueDate).Scan(&m.ID, &m.CreatedAt)
}

func (p *PostgresDB) GetMilestone(ctx context.Context, id int64) (*models.Milestone, error) {
	m := &models.Milestone{}
	err := p.db.QueryRowContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, id).
		Scan(&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.DueDate, &m.CompletedAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (p *PostgresDB) ListMilestones(ctx context.Context, projectID int64) ([]models.Milestone, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE project_id = $1 ORDER BY created_at ASC, id ASC`, projectID)
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

func (p *PostgresDB) MilestoneProgress(ctx context.Context, milestoneID int64) (*models.MilestoneProgress, error) {
	mp := &models.MilestoneProgress{}
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN i.status = 'closed' THEN 1 ELSE 0 END), 0)
		 FROM issue_milestones im JOIN issues i ON i.id = im.issue_id
		 WHERE im.milestone_id = $1`, milestoneID).
		Scan(&mp.LinkedIssues, &mp.CompletedIssues)
	if err != nil {
		return nil, err
	}
	return mp, nil
}

func (p *PostgresDB) SetMilestoneCompleted(ctx context.Context, id int64, completedAt *time.Time) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE milestones SET completed_at = $1 WHERE id = $2`, completedAt, id)
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

func (p *PostgresDB) CreateIssueComment(ctx context.Context, c *models.IssueComment) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO issue_comments (issue_id, author_id, body, parent_comment_id)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		c.IssueID, c.AuthorID, c.Body, c.ParentID).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE issues SET updated_at = NOW() WHERE id = $1`, c.IssueID); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresDB) GetIssueComment(ctx context.Context, id int64) (*models.IssueComment, error) {
	c := &models.IssueComment{}
	err := p.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM issue_comments c JOIN users u ON u.id = c.author_id WHERE c.id = $1`, id).
		Scan(&c.ID, &c.IssueID, &c.AuthorID, &c.AuthorName, &c.Body, &c.ParentID, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *PostgresDB) ListTopLevelComments(ctx context.Context, issueID int64) ([]models.IssueComment, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+commentColumns+`,
		        (SELECT COUNT(*) FROM issue_comments r WHERE r.parent_comment_id = c.id AND r.is_deleted = FALSE)
		 FROM issue_comments c JOIN users u ON u.id = c.author_id
		 WHERE c.issue_id = $1 AND c.parent_comment_id IS NULL AND c.is_deleted = FALSE
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

func (p *PostgresDB) ListReplies(ctx context.Context, parentID int64) ([]models.IssueComment, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM issue_comments c JOIN users u ON u.id = c.author_id
		 WHERE c.parent_comment_id = $1 AND c.is_deleted = FALSE
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

func (p *PostgresDB) SoftDeleteIssueComment(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE issue_comments SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, id)
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

func (p *PostgresDB) CreateNotification(ctx context.Context, n *models.Notification) error {
	return p.db.QueryRowContext(ctx,
		`INSERT INTO notifications (user_id, actor_id, type, title, body, resource_path, project_id, issue_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`,
		n.UserID, n.ActorID, n.Type, n.Title, n.Body, n.ResourcePath, n.ProjectID, n.IssueID).
		Scan(&n.ID, &n.CreatedAt)
}

func (p *PostgresDB) ListNotificationsPage(ctx context.Context, userID int64, limit, offset int) ([]models.Notification, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, actor_id, type, title, body, resource_path, project_id, issue_id, read_at, created_at
		 FROM notifications WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
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

func (p *PostgresDB) MarkNotificationRead(ctx context.Context, id, userID int64, readAt time.Time) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = $1 WHERE id = $2 AND user_id = $3 AND read_at IS NULL`,
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
