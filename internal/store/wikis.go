package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/falconwiki/falcon/internal/apperrors"
)

// CreateWikiResult reports whether CreateWiki enrolled a new wiki or
// returned an already-completed one for the same (owner, repo, branch).
type CreateWikiResult struct {
	WikiID    string
	Reused    bool
	JobID     string
}

// CreateWiki enrolls a wiki row in status "queued" and a paired job
// row, unless a completed wiki already exists for this identity
// (grounded on wiki_service.py's create_wiki dedup check).
func (s *Store) CreateWiki(ctx context.Context, owner, repo, githubURL, branch, wikiID, jobID string) (CreateWikiResult, error) {
	var existingID, existingStatus string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status FROM wikis WHERE owner = ? AND repo = ? AND branch = ?`,
		owner, repo, branch,
	).Scan(&existingID, &existingStatus)
	switch {
	case err == nil:
		if WikiStatus(existingStatus) == WikiCompleted {
			return CreateWikiResult{WikiID: existingID, Reused: true}, nil
		}
	case !errors.Is(err, sql.ErrNoRows):
		return CreateWikiResult{}, fmt.Errorf("lookup existing wiki: %w", err)
	}

	storagePath := fmt.Sprintf("%s/%s/%s", owner, repo, wikiID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CreateWikiResult{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wikis (id, owner, repo, github_url, branch, status, storage_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		wikiID, owner, repo, githubURL, branch, string(WikiQueued), storagePath,
	); err != nil {
		return CreateWikiResult{}, fmt.Errorf("insert wiki: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO jobs (id, kind, wiki_id, status) VALUES (?, 'wiki_generation', ?, ?)`,
		jobID, wikiID, string(JobQueued),
	); err != nil {
		return CreateWikiResult{}, fmt.Errorf("insert job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return CreateWikiResult{}, err
	}
	return CreateWikiResult{WikiID: wikiID, JobID: jobID}, nil
}

// GetWiki loads a wiki row, or returns apperrors.NotFound.
func (s *Store) GetWiki(ctx context.Context, wikiID string) (*Wiki, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, owner, repo, github_url, branch, commit_sha,
		status, total_pages, completed_pages, storage_path, analysis_plan,
		repo_languages, repo_description, created_at, started_at, completed_at, error_message
		FROM wikis WHERE id = ?`, wikiID)
	return scanWiki(row)
}

func scanWiki(row *sql.Row) (*Wiki, error) {
	var w Wiki
	var status string
	err := row.Scan(&w.ID, &w.Owner, &w.Repo, &w.GithubURL, &w.Branch, &w.CommitSHA,
		&status, &w.TotalPages, &w.CompletedPages, &w.StoragePath, &w.AnalysisPlan,
		&w.RepoLanguages, &w.RepoDescription, &w.CreatedAt, &w.StartedAt, &w.CompletedAt, &w.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.NotFound, "wiki not found")
	}
	if err != nil {
		return nil, err
	}
	w.Status = WikiStatus(status)
	return &w, nil
}

// FindWikis lists wikis, most recently created first, optionally
// filtered by owner and/or repo.
func (s *Store) FindWikis(ctx context.Context, owner, repo string) ([]*Wiki, error) {
	query := `SELECT id, owner, repo, github_url, branch, commit_sha,
		status, total_pages, completed_pages, storage_path, analysis_plan,
		repo_languages, repo_description, created_at, started_at, completed_at, error_message
		FROM wikis WHERE 1=1`
	var args []any
	if owner != "" {
		query += " AND owner = ?"
		args = append(args, owner)
	}
	if repo != "" {
		query += " AND repo = ?"
		args = append(args, repo)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Wiki
	for rows.Next() {
		var w Wiki
		var status string
		if err := rows.Scan(&w.ID, &w.Owner, &w.Repo, &w.GithubURL, &w.Branch, &w.CommitSHA,
			&status, &w.TotalPages, &w.CompletedPages, &w.StoragePath, &w.AnalysisPlan,
			&w.RepoLanguages, &w.RepoDescription, &w.CreatedAt, &w.StartedAt, &w.CompletedAt, &w.ErrorMessage); err != nil {
			return nil, err
		}
		w.Status = WikiStatus(status)
		out = append(out, &w)
	}
	return out, rows.Err()
}

// UpdateWikiStatus transitions status and, on cloning/completed,
// stamps started_at/completed_at (spec §4.9).
func (s *Store) UpdateWikiStatus(ctx context.Context, wikiID string, status WikiStatus) error {
	switch status {
	case WikiCloning:
		_, err := s.db.ExecContext(ctx,
			`UPDATE wikis SET status = ?, started_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
			string(status), wikiID)
		return err
	case WikiCompleted, WikiFailed:
		_, err := s.db.ExecContext(ctx,
			`UPDATE wikis SET status = ?, completed_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
			string(status), wikiID)
		return err
	default:
		_, err := s.db.ExecContext(ctx, `UPDATE wikis SET status = ? WHERE id = ?`, string(status), wikiID)
		return err
	}
}

// UpdateWikiError marks a wiki failed with the given message.
func (s *Store) UpdateWikiError(ctx context.Context, wikiID, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE wikis SET status = ?, error_message = ?, completed_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
		string(WikiFailed), message, wikiID)
	return err
}

// UpdateWikiCommitInfo persists Phase 1's fetched metadata.
func (s *Store) UpdateWikiCommitInfo(ctx context.Context, wikiID, commitSHA, languagesJSON, description string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE wikis SET commit_sha = ?, repo_languages = ?, repo_description = ? WHERE id = ?`,
		commitSHA, languagesJSON, description, wikiID)
	return err
}

// SaveAnalysisPlan persists Phase 2's (opaque) analysis plan blob.
func (s *Store) SaveAnalysisPlan(ctx context.Context, wikiID, planJSON string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE wikis SET analysis_plan = ? WHERE id = ?`, planJSON, wikiID)
	return err
}

// UpdatePageCounts sets total/completed page counts, maintaining
// invariant completed_pages <= total_pages at the call site.
func (s *Store) UpdatePageCounts(ctx context.Context, wikiID string, total, completed int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE wikis SET total_pages = ?, completed_pages = ? WHERE id = ?`,
		total, completed, wikiID)
	return err
}

// DeleteWiki removes the wiki row; ON DELETE CASCADE removes its
// jobs, conversations, messages, and page-index rows. The caller is
// responsible for removing storage_path from disk first.
func (s *Store) DeleteWiki(ctx context.Context, wikiID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM wikis WHERE id = ?`, wikiID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.New(apperrors.NotFound, "wiki not found")
	}
	return nil
}

// ReplaceWikiPages atomically replaces the page index for a wiki
// (spec §4.9 Phase 5).
func (s *Store) ReplaceWikiPages(ctx context.Context, wikiID string, pages []WikiPage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM wiki_pages WHERE wiki_id = ?`, wikiID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO wiki_pages (wiki_id, slug, title, section, sort_order, summary, file_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range pages {
		if _, err := stmt.ExecContext(ctx, wikiID, p.Slug, p.Title, p.Section, p.SortOrder, p.Summary, p.FilePath); err != nil {
			return fmt.Errorf("insert page %s: %w", p.Slug, err)
		}
	}
	return tx.Commit()
}

// ListWikiPages returns the page index for wikiID ordered by sort_order.
func (s *Store) ListWikiPages(ctx context.Context, wikiID string) ([]WikiPage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT wiki_id, slug, title, section, sort_order, summary, file_path
		 FROM wiki_pages WHERE wiki_id = ? ORDER BY sort_order`, wikiID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WikiPage
	for rows.Next() {
		var p WikiPage
		if err := rows.Scan(&p.WikiID, &p.Slug, &p.Title, &p.Section, &p.SortOrder, &p.Summary, &p.FilePath); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetWikiPage looks up one page by slug.
func (s *Store) GetWikiPage(ctx context.Context, wikiID, slug string) (*WikiPage, error) {
	var p WikiPage
	err := s.db.QueryRowContext(ctx,
		`SELECT wiki_id, slug, title, section, sort_order, summary, file_path
		 FROM wiki_pages WHERE wiki_id = ? AND slug = ?`, wikiID, slug).
		Scan(&p.WikiID, &p.Slug, &p.Title, &p.Section, &p.SortOrder, &p.Summary, &p.FilePath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.NotFound, "page not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
