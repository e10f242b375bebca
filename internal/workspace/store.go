package workspace

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"lesson-assistant/internal/storage"
)

// Store persists workspace files in sqlite, one row per teacher and path.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore runs the workspace migration against db.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := storage.Migrate(ctx, db,
		`CREATE TABLE IF NOT EXISTS workspace_files (
			teacher_id TEXT NOT NULL,
			path TEXT NOT NULL,
			content TEXT NOT NULL,
			updated_at_utc TEXT NOT NULL,
			PRIMARY KEY (teacher_id, path)
		);`,
		`CREATE TABLE IF NOT EXISTS workspace_seeds (
			teacher_id TEXT PRIMARY KEY,
			seeded_at_utc TEXT NOT NULL
		);`,
	); err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Seed inserts the default files the first time a teacher's workspace is touched.
// Files the teacher later deletes are not recreated.
func (s *Store) Seed(ctx context.Context, teacherID string) error {
	if teacherID == "" {
		return ErrEmptyTeacher
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := storage.Timestamp(s.now())
	res, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO workspace_seeds (teacher_id, seeded_at_utc) VALUES (?, ?)", teacherID, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	for _, f := range DefaultFiles {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO workspace_files (teacher_id, path, content, updated_at_utc) VALUES (?, ?, ?, ?)",
			teacherID, f.Path, f.Content, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReadFile returns a file's content.
func (s *Store) ReadFile(ctx context.Context, teacherID, p string) (string, error) {
	if err := s.Seed(ctx, teacherID); err != nil {
		return "", err
	}
	normalized, err := NormalizePath(p)
	if err != nil {
		return "", err
	}
	var content string
	err = s.db.QueryRowContext(ctx,
		"SELECT content FROM workspace_files WHERE teacher_id = ? AND path = ?", teacherID, normalized).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return content, err
}

// WriteFile creates or replaces a file.
func (s *Store) WriteFile(ctx context.Context, teacherID, p, content string) error {
	if err := s.Seed(ctx, teacherID); err != nil {
		return err
	}
	normalized, err := NormalizePath(p)
	if err != nil {
		return err
	}
	return upsert(ctx, s.db, teacherID, normalized, content, storage.Timestamp(s.now()))
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, teacherID, p, content, now string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO workspace_files (teacher_id, path, content, updated_at_utc)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (teacher_id, path) DO UPDATE SET content = excluded.content, updated_at_utc = excluded.updated_at_utc`,
		teacherID, p, content, now)
	return err
}

// DeleteFile removes a file. soul.md cannot be deleted.
func (s *Store) DeleteFile(ctx context.Context, teacherID, p string) error {
	normalized, err := NormalizePath(p)
	if err != nil {
		return err
	}
	if normalized == SoulPath {
		return ErrDeleteSoul
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM workspace_files WHERE teacher_id = ? AND path = ?", teacherID, normalized)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Paths lists every file path of a teacher, sorted.
func (s *Store) Paths(ctx context.Context, teacherID string) ([]string, error) {
	if err := s.Seed(ctx, teacherID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT path FROM workspace_files WHERE teacher_id = ? ORDER BY path ASC", teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Tree returns the teacher's workspace as a nested tree.
func (s *Store) Tree(ctx context.Context, teacherID string) ([]Node, error) {
	paths, err := s.Paths(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	return BuildTree(paths), nil
}

// RenameResult describes a completed rename.
type RenameResult struct {
	FromPath     string `json:"fromPath"`
	ToPath       string `json:"toPath"`
	RenamedCount int    `json:"renamedCount"`
}

// Rename moves a file, or every file under a folder prefix, in one transaction.
func (s *Store) Rename(ctx context.Context, teacherID, from, to string) (RenameResult, error) {
	if err := s.Seed(ctx, teacherID); err != nil {
		return RenameResult{}, err
	}
	fromPath, err := NormalizePath(from)
	if err != nil {
		return RenameResult{}, err
	}
	toPath, err := NormalizePath(to)
	if err != nil {
		return RenameResult{}, err
	}
	result := RenameResult{FromPath: fromPath, ToPath: toPath}
	if fromPath == toPath {
		return result, nil
	}
	if fromPath == SoulPath || toPath == SoulPath {
		return RenameResult{}, ErrRenameSoul
	}

	paths, err := s.Paths(ctx, teacherID)
	if err != nil {
		return RenameResult{}, err
	}
	plan, err := renamePlan(paths, fromPath, toPath)
	if err != nil {
		return RenameResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return RenameResult{}, err
	}
	defer tx.Rollback()

	// Read every source, delete them all, then write the targets, so targets
	// may reuse paths that are themselves moving.
	contents := make([]string, len(plan))
	for i, move := range plan {
		if err := tx.QueryRowContext(ctx,
			"SELECT content FROM workspace_files WHERE teacher_id = ? AND path = ?", teacherID, move[0]).Scan(&contents[i]); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return RenameResult{}, ErrPathNotFound
			}
			return RenameResult{}, err
		}
	}
	for _, move := range plan {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM workspace_files WHERE teacher_id = ? AND path = ?", teacherID, move[0]); err != nil {
			return RenameResult{}, err
		}
	}
	now := storage.Timestamp(s.now())
	for i, move := range plan {
		if err := upsert(ctx, tx, teacherID, move[1], contents[i], now); err != nil {
			return RenameResult{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return RenameResult{}, err
	}
	result.RenamedCount = len(plan)
	return result, nil
}

// renamePlan returns [old, new] pairs. A path that names an existing file is
// moved alone; otherwise it is treated as a folder prefix.
func renamePlan(paths []string, fromPath, toPath string) ([][2]string, error) {
	existing := make(map[string]bool, len(paths))
	for _, p := range paths {
		existing[p] = true
	}

	if existing[fromPath] {
		if existing[toPath] {
			return nil, ErrTargetExists
		}
		return [][2]string{{fromPath, toPath}}, nil
	}

	fromPrefix := dirPrefix(fromPath)
	toPrefix := dirPrefix(toPath)
	var moving []string
	for _, p := range paths {
		if strings.HasPrefix(p, fromPrefix) {
			moving = append(moving, p)
		}
	}
	if len(moving) == 0 {
		return nil, ErrPathNotFound
	}
	if strings.HasPrefix(toPrefix, fromPrefix) {
		return nil, ErrMoveIntoSelf
	}

	// Sources leave before targets land, so a target may only collide with
	// another path that is itself moving.
	movingSet := make(map[string]bool, len(moving))
	for _, p := range moving {
		movingSet[p] = true
	}
	plan := make([][2]string, 0, len(moving))
	for _, p := range moving {
		target := toPrefix + strings.TrimPrefix(p, fromPrefix)
		if existing[target] && !movingSet[target] {
			return nil, ErrTargetExists
		}
		plan = append(plan, [2]string{p, target})
	}
	return plan, nil
}

// ListClassRefs returns the upper-cased class references that have a CLASS.md profile.
func (s *Store) ListClassRefs(ctx context.Context, teacherID string) ([]string, error) {
	paths, err := s.Paths(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	refs := []string{}
	for _, p := range paths {
		m := classFilePattern.FindStringSubmatch(p)
		if m == nil {
			continue
		}
		ref := strings.ToUpper(m[1])
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)
	return refs, nil
}

// Save writes a file and reports how many lines changed against the previous version.
func (s *Store) Save(ctx context.Context, teacherID, p, content string) (DiffSummary, error) {
	before, err := s.ReadFile(ctx, teacherID, p)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return DiffSummary{}, err
	}
	if err := s.WriteFile(ctx, teacherID, p, content); err != nil {
		return DiffSummary{}, err
	}
	return SummarizeDiff(before, content), nil
}
