package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Jamolkhon5/nexter/internal/models"
)

var ErrProjectNotFound = errors.New("project not found")

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		tags TEXT[] NOT NULL DEFAULT '{}',
		summary TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		achievements TEXT NOT NULL DEFAULT '',
		tools TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		start_date TIMESTAMP NULL,
		end_date TIMESTAMP NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS assistant_messages (
		id BIGSERIAL PRIMARY KEY,
		project_id BIGINT NOT NULL,
		role VARCHAR(16) NOT NULL,
		content TEXT NOT NULL,
		is_organizing BOOLEAN NOT NULL DEFAULT FALSE,
		action VARCHAR(64) NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS assistant_messages_project_idx ON assistant_messages (project_id, created_at)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '{}',
		summary TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		achievements TEXT NOT NULL DEFAULT '',
		tools TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		start_date TIMESTAMP NULL,
		end_date TIMESTAMP NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS assistant_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		is_organizing BOOLEAN NOT NULL DEFAULT 0,
		action TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS assistant_messages_project_idx ON assistant_messages (project_id, created_at)`,
}

// Repository stores project records and the archive of finished chat turns.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the tables for the connected driver.
func (r *Repository) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if r.db.DriverName() == "sqlite" {
		schema = sqliteSchema
	}
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type messageRow struct {
	ID           int64     `db:"id"`
	ProjectID    int64     `db:"project_id"`
	Role         string    `db:"role"`
	Content      string    `db:"content"`
	IsOrganizing bool      `db:"is_organizing"`
	Action       string    `db:"action"`
	CreatedAt    time.Time `db:"created_at"`
}

func (m messageRow) toModel() models.Message {
	return models.Message{
		ID:           strconv.FormatInt(m.ID, 10),
		ProjectID:    m.ProjectID,
		Role:         models.Role(m.Role),
		Content:      m.Content,
		IsOrganizing: m.IsOrganizing,
		Action:       m.Action,
		Timestamp:    m.CreatedAt,
	}
}

// SaveMessage archives a message and returns its durable id.
func (r *Repository) SaveMessage(ctx context.Context, m models.Message) (string, error) {
	created := m.Timestamp
	if created.IsZero() {
		created = time.Now()
	}

	query := r.db.Rebind(`
        INSERT INTO assistant_messages (project_id, role, content, is_organizing, action, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
        RETURNING id`)

	var id int64
	err := r.db.GetContext(ctx, &id, query,
		m.ProjectID, string(m.Role), m.Content, m.IsOrganizing, m.Action, created.UTC())
	if err != nil {
		return "", fmt.Errorf("save message: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// ListMessages returns the archived conversation of a project, oldest first.
func (r *Repository) ListMessages(ctx context.Context, projectID int64) ([]models.Message, error) {
	query := r.db.Rebind(`
        SELECT id, project_id, role, content, is_organizing, action, created_at
        FROM assistant_messages
        WHERE project_id = ?
        ORDER BY created_at ASC, id ASC`)

	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, projectID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// DeleteMessages clears the archive of a project.
func (r *Repository) DeleteMessages(ctx context.Context, projectID int64) error {
	query := r.db.Rebind(`DELETE FROM assistant_messages WHERE project_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, projectID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

type projectRow struct {
	ID           int64          `db:"id"`
	Title        string         `db:"title"`
	Category     string         `db:"category"`
	Tags         pq.StringArray `db:"tags"`
	Summary      string         `db:"summary"`
	Role         string         `db:"role"`
	Achievements string         `db:"achievements"`
	Tools        string         `db:"tools"`
	Description  string         `db:"description"`
	StartDate    sql.NullTime   `db:"start_date"`
	EndDate      sql.NullTime   `db:"end_date"`
}

func newProjectRow(p models.Project) projectRow {
	row := projectRow{
		ID:           p.ID,
		Title:        p.Title,
		Category:     p.Category,
		Tags:         pq.StringArray(p.Tags),
		Summary:      p.Summary,
		Role:         p.Role,
		Achievements: p.Achievements,
		Tools:        p.Tools,
		Description:  p.Description,
	}
	if row.Tags == nil {
		row.Tags = pq.StringArray{}
	}
	if p.StartDate != nil {
		row.StartDate = sql.NullTime{Time: p.StartDate.UTC(), Valid: true}
	}
	if p.EndDate != nil {
		row.EndDate = sql.NullTime{Time: p.EndDate.UTC(), Valid: true}
	}
	return row
}

func (row projectRow) toModel() models.Project {
	p := models.Project{
		ID:           row.ID,
		Title:        row.Title,
		Category:     row.Category,
		Tags:         []string(row.Tags),
		Summary:      row.Summary,
		Role:         row.Role,
		Achievements: row.Achievements,
		Tools:        row.Tools,
		Description:  row.Description,
	}
	if row.StartDate.Valid {
		t := row.StartDate.Time.UTC()
		p.StartDate = &t
	}
	if row.EndDate.Valid {
		t := row.EndDate.Time.UTC()
		p.EndDate = &t
	}
	return p
}

func (r *Repository) GetProject(ctx context.Context, id int64) (models.Project, error) {
	query := r.db.Rebind(`
        SELECT id, title, category, tags, summary, role, achievements, tools, description, start_date, end_date
        FROM projects
        WHERE id = ?`)

	var row projectRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Project{}, fmt.Errorf("project %d: %w", id, ErrProjectNotFound)
		}
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return row.toModel(), nil
}

// CreateProject inserts a project record and returns it with its id.
func (r *Repository) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	row := newProjectRow(p)
	query := r.db.Rebind(`
        INSERT INTO projects (title, category, tags, summary, role, achievements, tools, description, start_date, end_date)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        RETURNING id`)

	var id int64
	err := r.db.GetContext(ctx, &id, query,
		row.Title, row.Category, row.Tags, row.Summary, row.Role,
		row.Achievements, row.Tools, row.Description, row.StartDate, row.EndDate)
	if err != nil {
		return models.Project{}, fmt.Errorf("create project: %w", err)
	}
	p.ID = id
	return p, nil
}

// UpdateProject writes every assistant-owned field of the record.
func (r *Repository) UpdateProject(ctx context.Context, p models.Project) error {
	row := newProjectRow(p)
	query := r.db.Rebind(`
        UPDATE projects
        SET title = ?, category = ?, tags = ?, summary = ?, role = ?, achievements = ?,
            tools = ?, description = ?, start_date = ?, end_date = ?, updated_at = ?
        WHERE id = ?`)

	res, err := r.db.ExecContext(ctx, query,
		row.Title, row.Category, row.Tags, row.Summary, row.Role, row.Achievements,
		row.Tools, row.Description, row.StartDate, row.EndDate, time.Now().UTC(), row.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("project %d: %w", p.ID, ErrProjectNotFound)
	}
	return nil
}
