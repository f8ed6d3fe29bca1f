package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/falconwiki/falcon/internal/apperrors"
)

// CreateRepo enrolls a repo row in status "ingesting" (grounded on
// services/ingestion.py's ingest_repository).
func (s *Store) CreateRepo(ctx context.Context, id, url, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO repos (id, url, name, status) VALUES (?, ?, ?, 'ingesting')`, id, url, name)
	return err
}

// GetRepoByURL looks up a repo by its clone URL, for ingestion's
// dedup check; returns apperrors.NotFound if absent.
func (s *Store) GetRepoByURL(ctx context.Context, url string) (*Repo, error) {
	var r Repo
	err := s.db.QueryRowContext(ctx,
		`SELECT id, url, name, status, ingested_at FROM repos WHERE url = ?`, url).
		Scan(&r.ID, &r.URL, &r.Name, &r.Status, &r.IngestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.NotFound, "repo not found")
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRepo loads a repo by id.
func (s *Store) GetRepo(ctx context.Context, id string) (*Repo, error) {
	var r Repo
	err := s.db.QueryRowContext(ctx,
		`SELECT id, url, name, status, ingested_at FROM repos WHERE id = ?`, id).
		Scan(&r.ID, &r.URL, &r.Name, &r.Status, &r.IngestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.NotFound, "repo not found")
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateRepoStatus transitions a repo between ingesting/ready/error.
func (s *Store) UpdateRepoStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE repos SET status = ? WHERE id = ?`, status, id)
	return err
}

// DeleteRepo removes the repo row; ON DELETE CASCADE removes its files
// (and, via the files triggers, their FTS shadow rows).
func (s *Store) DeleteRepo(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM repos WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.New(apperrors.NotFound, "repo not found")
	}
	return nil
}

// InsertFiles batch-inserts the walked file/directory rows for a repo
// inside one transaction (grounded on services/ingestion.py's
// batched executemany insert).
func (s *Store) InsertFiles(ctx context.Context, rows []FileRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (repo_id, path, name, extension, parent_path, depth, is_directory, content)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range rows {
		isDir := 0
		if f.IsDirectory {
			isDir = 1
		}
		if _, err := stmt.ExecContext(ctx, f.RepoID, f.Path, f.Name, f.Extension, f.ParentPath, f.Depth, isDir, f.Content); err != nil {
			return fmt.Errorf("insert file %s: %w", f.Path, err)
		}
	}
	return tx.Commit()
}

// ListDirectory returns the immediate children of parentPath
// (directory-mode list_files; spec's virtual shell tools).
func (s *Store) ListDirectory(ctx context.Context, repoID, parentPath string) ([]FileRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, repo_id, path, name, extension, parent_path, depth, is_directory, content
		 FROM files WHERE repo_id = ? AND parent_path = ? ORDER BY is_directory DESC, name ASC`,
		repoID, parentPath)
	if err != nil {
		return nil, err
	}
	return scanFileRows(rows)
}

// ListAllPaths returns every path and is_directory flag for repoID,
// ordered by path — the full in-memory set list_files's glob mode
// filters client-side with a fnmatch-equivalent matcher (grounded on
// tools/shell.py's list_files, which fetches all ~3K paths rather
// than translate ** globs into SQL).
func (s *Store) ListAllPaths(ctx context.Context, repoID string) ([]FileRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, is_directory FROM files WHERE repo_id = ? ORDER BY path`, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRow
	for rows.Next() {
		var f FileRow
		var isDir int
		if err := rows.Scan(&f.Path, &isDir); err != nil {
			return nil, err
		}
		f.RepoID = repoID
		f.IsDirectory = isDir != 0
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListGlob returns files under repoID whose path matches a SQL LIKE
// pattern already translated from a shell glob (search_code's --glob
// filter when no literal pre-filter applies; glob-mode list_files
// matches paths in Go instead).
func (s *Store) ListGlob(ctx context.Context, repoID, likePattern string) ([]FileRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, repo_id, path, name, extension, parent_path, depth, is_directory, content
		 FROM files WHERE repo_id = ? AND is_directory = 0 AND path LIKE ? ESCAPE '\' ORDER BY path ASC`,
		repoID, likePattern)
	if err != nil {
		return nil, err
	}
	return scanFileRows(rows)
}

// GetFileByPath loads a single file row for read_file.
func (s *Store) GetFileByPath(ctx context.Context, repoID, path string) (*FileRow, error) {
	var f FileRow
	var isDir int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, repo_id, path, name, extension, parent_path, depth, is_directory, content
		 FROM files WHERE repo_id = ? AND path = ?`, repoID, path).
		Scan(&f.ID, &f.RepoID, &f.Path, &f.Name, &f.Extension, &f.ParentPath, &f.Depth, &isDir, &f.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.NotFound, "file not found")
	}
	if err != nil {
		return nil, err
	}
	f.IsDirectory = isDir != 0
	return &f, nil
}

// SearchContentCandidates prefilters files whose content contains the
// given literal substring using the trigram FTS index, narrowing the
// set search_code then scans line-by-line with the full regex (spec's
// literal-extraction prefilter, grounded on tools/shell.py's
// search_code).
func (s *Store) SearchContentCandidates(ctx context.Context, repoID, literal string, globLike string) ([]FileRow, error) {
	query := `SELECT f.id, f.repo_id, f.path, f.name, f.extension, f.parent_path, f.depth, f.is_directory, f.content
		 FROM files f JOIN files_content_fts fts ON fts.rowid = f.id
		 WHERE f.repo_id = ? AND f.is_directory = 0 AND files_content_fts MATCH ?`
	args := []any{repoID, ftsQuery(literal)}
	if globLike != "" {
		query += ` AND f.path LIKE ? ESCAPE '\'`
		args = append(args, globLike)
	}
	query += ` ORDER BY f.path ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanFileRows(rows)
}

// ftsQuery quotes a literal for use as an FTS5 MATCH argument, since
// trigram tokenization still treats the query string as FTS5 syntax
// that must be escaped if it contains quotes.
func ftsQuery(literal string) string {
	return `"` + strings.ReplaceAll(literal, `"`, `""`) + `"`
}

func scanFileRows(rows *sql.Rows) ([]FileRow, error) {
	defer rows.Close()
	var out []FileRow
	for rows.Next() {
		var f FileRow
		var isDir int
		if err := rows.Scan(&f.ID, &f.RepoID, &f.Path, &f.Name, &f.Extension, &f.ParentPath, &f.Depth, &isDir, &f.Content); err != nil {
			return nil, err
		}
		f.IsDirectory = isDir != 0
		out = append(out, f)
	}
	return out, rows.Err()
}
