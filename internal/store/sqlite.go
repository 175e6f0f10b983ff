package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/ai-learning-tracker/tracker/internal/models"
)

// ErrUserNotFound is returned by operations that need an existing user.
var ErrUserNotFound = errors.New("user not found")

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// One writer keeps the follow-set replace transaction from hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS gurus (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        threads_handle TEXT NOT NULL,
        avatar_url TEXT,
        bio TEXT,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS guru_posts (
        id TEXT PRIMARY KEY, -- UUID
        guru_id TEXT NOT NULL,
        content TEXT NOT NULL,
        threads_url TEXT,
        posted_at DATETIME NOT NULL,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (guru_id) REFERENCES gurus (id)
    );
    CREATE INDEX IF NOT EXISTS idx_guru_posts_posted_at ON guru_posts (posted_at DESC);

    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        email TEXT NOT NULL,
        name TEXT,
        avatar_url TEXT,
        google_id TEXT UNIQUE NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS user_gurus (
        user_id TEXT NOT NULL,
        guru_id TEXT NOT NULL,
        PRIMARY KEY (user_id, guru_id),
        FOREIGN KEY (user_id) REFERENCES users (id),
        FOREIGN KEY (guru_id) REFERENCES gurus (id)
    );

    CREATE TABLE IF NOT EXISTS query_cache (
        query_hash TEXT PRIMARY KEY,
        query_text TEXT NOT NULL,
        response TEXT NOT NULL,
        sources_json TEXT, -- JSON array of sources
        hit_count INTEGER NOT NULL DEFAULT 0,
        expires_at DATETIME NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS documents (
        id TEXT PRIMARY KEY,
        title TEXT NOT NULL,
        type TEXT NOT NULL,
        url TEXT,
        content TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// Guru methods
const guruColumns = "g.id, g.name, g.threads_handle, g.avatar_url, g.bio, g.created_at"

func scanGuru(row rowScanner) (*models.Guru, error) {
	var g models.Guru
	var avatar, bio sql.NullString
	if err := row.Scan(&g.ID, &g.Name, &g.ThreadsHandle, &avatar, &bio, &g.CreatedAt); err != nil {
		return nil, err
	}
	g.AvatarURL = stringPtr(avatar)
	g.Bio = stringPtr(bio)
	return &g, nil
}

func (s *SQLiteStore) queryGurus(query string, args ...any) ([]models.Guru, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query gurus: %w", err)
	}
	defer rows.Close()

	gurus := []models.Guru{}
	for rows.Next() {
		g, err := scanGuru(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guru row: %w", err)
		}
		gurus = append(gurus, *g)
	}
	return gurus, rows.Err()
}

// ListGurus returns every guru ordered by name.
func (s *SQLiteStore) ListGurus() ([]models.Guru, error) {
	return s.queryGurus("SELECT " + guruColumns + " FROM gurus g ORDER BY g.name")
}

// UpsertGuru inserts g or overwrites the guru with the same id.
func (s *SQLiteStore) UpsertGuru(g models.Guru) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	_, err := s.db.Exec(`
        INSERT INTO gurus (id, name, threads_handle, avatar_url, bio, created_at) VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET name = excluded.name, threads_handle = excluded.threads_handle,
            avatar_url = excluded.avatar_url, bio = excluded.bio`,
		g.ID, g.Name, g.ThreadsHandle, nullString(g.AvatarURL), nullString(g.Bio), g.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert guru %s: %w", g.ID, err)
	}
	return nil
}

// Post methods
const postQuery = `
    SELECT p.id, p.guru_id, p.content, p.threads_url, p.posted_at, p.created_at, ` + guruColumns + `
    FROM guru_posts p LEFT JOIN gurus g ON g.id = p.guru_id`

func scanPost(row rowScanner) (*models.GuruPost, error) {
	var p models.GuruPost
	var threadsURL sql.NullString
	var gID, gName, gHandle, gAvatar, gBio sql.NullString
	var gCreated sql.NullTime
	err := row.Scan(&p.ID, &p.GuruID, &p.Content, &threadsURL, &p.PostedAt, &p.CreatedAt,
		&gID, &gName, &gHandle, &gAvatar, &gBio, &gCreated)
	if err != nil {
		return nil, err
	}
	p.ThreadsURL = stringPtr(threadsURL)
	if gID.Valid {
		p.Guru = &models.Guru{
			ID:            gID.String,
			Name:          gName.String,
			ThreadsHandle: gHandle.String,
			AvatarURL:     stringPtr(gAvatar),
			Bio:           stringPtr(gBio),
			CreatedAt:     gCreated.Time,
		}
	}
	return &p, nil
}

func (s *SQLiteStore) queryPosts(query string, args ...any) ([]models.GuruPost, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := []models.GuruPost{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// ListPosts returns one page of posts, newest first, plus the total number of
// matching posts. An empty guruIDs means no filter.
func (s *SQLiteStore) ListPosts(guruIDs []string, limit, offset int) ([]models.GuruPost, int, error) {
	where := ""
	args := []any{}
	if len(guruIDs) > 0 {
		where = " WHERE p.guru_id IN (" + placeholders(len(guruIDs)) + ")"
		args = stringArgs(guruIDs)
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM guru_posts p"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	posts, err := s.queryPosts(postQuery+where+" ORDER BY p.posted_at DESC LIMIT ? OFFSET ?", append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// ListGuruPosts returns one guru's posts, newest first.
func (s *SQLiteStore) ListGuruPosts(guruID string, limit, offset int) ([]models.GuruPost, error) {
	return s.queryPosts(postQuery+" WHERE p.guru_id = ? ORDER BY p.posted_at DESC LIMIT ? OFFSET ?", guruID, limit, offset)
}

// CreatePost stores p, assigning an id when it has none.
func (s *SQLiteStore) CreatePost(p *models.GuruPost) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	_, err := s.db.Exec(`
        INSERT INTO guru_posts (id, guru_id, content, threads_url, posted_at, created_at) VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO NOTHING`,
		p.ID, p.GuruID, p.Content, nullString(p.ThreadsURL), p.PostedAt.UTC(), p.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// User methods
const userColumns = "id, email, name, avatar_url, google_id, created_at"

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var name, avatar sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &name, &avatar, &u.GoogleID, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Name = stringPtr(name)
	u.AvatarURL = stringPtr(avatar)
	return &u, nil
}

func (s *SQLiteStore) getUser(where string, arg string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE "+where+" = ?", arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByID(id string) (*models.User, error) {
	return s.getUser("id", id)
}

func (s *SQLiteStore) GetUserByGoogleID(googleID string) (*models.User, error) {
	return s.getUser("google_id", googleID)
}

// SyncUser creates the user for req.GoogleID or refreshes its profile fields.
func (s *SQLiteStore) SyncUser(req models.SyncUserRequest) (*models.User, error) {
	_, err := s.db.Exec(`
        INSERT INTO users (id, email, name, avatar_url, google_id, created_at) VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(google_id) DO UPDATE SET email = excluded.email, name = excluded.name, avatar_url = excluded.avatar_url`,
		uuid.NewString(), req.Email, nullString(req.Name), nullString(req.AvatarURL), req.GoogleID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	user, err := s.GetUserByGoogleID(req.GoogleID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s missing after upsert", req.GoogleID)
	}
	return user, nil
}

// FollowedGuruIDs returns the ids a user follows; an unknown user follows nobody.
func (s *SQLiteStore) FollowedGuruIDs(userID string) ([]string, error) {
	rows, err := s.db.Query("SELECT guru_id FROM user_gurus WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query followed gurus: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan followed guru: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetUserGurus returns the gurus a user follows, ordered by name.
func (s *SQLiteStore) GetUserGurus(userID string) ([]models.Guru, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.queryGurus(`
        SELECT `+guruColumns+` FROM gurus g JOIN user_gurus ug ON ug.guru_id = g.id
        WHERE ug.user_id = ? ORDER BY g.name`, userID)
}

// ReplaceUserGurus makes guruIDs the user's whole follow-set. Ids that name
// no guru are dropped.
func (s *SQLiteStore) ReplaceUserGurus(userID string, guruIDs []string) ([]models.Guru, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(*) FROM users WHERE id = ?", userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if exists == 0 {
		return nil, ErrUserNotFound
	}

	if _, err := tx.Exec("DELETE FROM user_gurus WHERE user_id = ?", userID); err != nil {
		return nil, fmt.Errorf("failed to clear followed gurus: %w", err)
	}
	if len(guruIDs) > 0 {
		args := append([]any{userID}, stringArgs(guruIDs)...)
		_, err := tx.Exec(`
            INSERT OR IGNORE INTO user_gurus (user_id, guru_id)
            SELECT ?, id FROM gurus WHERE id IN (`+placeholders(len(guruIDs))+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to insert followed gurus: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit follow-set: %w", err)
	}
	return s.GetUserGurus(userID)
}

// Query cache methods

// GetCachedResponse returns the live entry for hash and counts the hit.
// A missing or expired entry yields (nil, nil).
func (s *SQLiteStore) GetCachedResponse(hash string) (*CacheEntry, error) {
	var e CacheEntry
	var sourcesJSON sql.NullString
	err := s.db.QueryRow(`
        SELECT query_hash, query_text, response, sources_json, hit_count, expires_at, created_at
        FROM query_cache WHERE query_hash = ?`, hash).
		Scan(&e.QueryHash, &e.QueryText, &e.Response, &sourcesJSON, &e.HitCount, &e.ExpiresAt, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	if e.Expired(s.now()) {
		return nil, nil
	}
	if sourcesJSON.Valid && sourcesJSON.String != "" {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &e.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached sources: %w", err)
		}
	}

	if _, err := s.db.Exec("UPDATE query_cache SET hit_count = hit_count + 1 WHERE query_hash = ?", hash); err != nil {
		return nil, fmt.Errorf("failed to count cache hit: %w", err)
	}
	e.HitCount++
	return &e, nil
}

// SaveCachedResponse stores e, replacing any entry with the same hash and
// resetting its hit count.
func (s *SQLiteStore) SaveCachedResponse(e CacheEntry) error {
	var sourcesJSON sql.NullString
	if len(e.Sources) > 0 {
		b, err := json.Marshal(e.Sources)
		if err != nil {
			return fmt.Errorf("failed to marshal sources: %w", err)
		}
		sourcesJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.Exec(`
        INSERT INTO query_cache (query_hash, query_text, response, sources_json, hit_count, expires_at, created_at)
        VALUES (?, ?, ?, ?, 0, ?, ?)
        ON CONFLICT(query_hash) DO UPDATE SET response = excluded.response, sources_json = excluded.sources_json,
            expires_at = excluded.expires_at, hit_count = 0`,
		e.QueryHash, e.QueryText, e.Response, sourcesJSON, e.ExpiresAt.UTC(), s.now())
	if err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

// InvalidateCache deletes the entry for hash and reports whether one existed.
func (s *SQLiteStore) InvalidateCache(hash string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM query_cache WHERE query_hash = ?", hash)
	if err != nil {
		return false, fmt.Errorf("failed to invalidate cache: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// Document methods

func (s *SQLiteStore) CountDocuments() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// UpsertDocument inserts d or replaces the document with the same id.
func (s *SQLiteStore) UpsertDocument(d Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}
	_, err := s.db.Exec(`
        INSERT INTO documents (id, title, type, url, content, created_at) VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET title = excluded.title, type = excluded.type, url = excluded.url, content = excluded.content`,
		d.ID, d.Title, string(d.Type), nullString(d.URL), d.Content, d.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", d.ID, err)
	}
	return nil
}

// ListDocuments returns up to limit documents, newest first.
func (s *SQLiteStore) ListDocuments(limit int) ([]Document, error) {
	rows, err := s.db.Query("SELECT id, title, type, url, content, created_at FROM documents ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var docType string
		var url sql.NullString
		if err := rows.Scan(&d.ID, &d.Title, &docType, &url, &d.Content, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		d.Type = models.SourceType(docType)
		d.URL = stringPtr(url)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
