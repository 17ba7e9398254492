package server

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/juls0730/fluxops/deploy"
	"github.com/juls0730/fluxops/docker"
	"github.com/juls0730/fluxops/models"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

var ErrNotFound = errors.New("not found")

// Store keeps the servers and projects the daemon manages.
type Store struct {
	db *sql.DB
}

var (
	_ docker.Inventory = (*Store)(nil)
	_ deploy.Projects  = (*Store)(nil)
)

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const serverColumns = "id, name, host, port, username, private_key_path, password, status"

type scanner interface {
	Scan(dest ...any) error
}

func scanServer(row scanner) (models.Server, error) {
	var server models.Server
	var status string
	err := row.Scan(&server.ID, &server.Name, &server.Host, &server.Port, &server.Username, &server.PrivateKeyPath, &server.Password, &status)
	server.Status = models.ServerStatus(status)

	return server, err
}

func (s *Store) Server(ctx context.Context, id int64) (models.Server, error) {
	server, err := scanServer(s.db.QueryRowContext(ctx, "SELECT "+serverColumns+" FROM servers WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return server, fmt.Errorf("server %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return server, fmt.Errorf("failed to load server %d: %w", id, err)
	}

	return server, nil
}

func (s *Store) Servers(ctx context.Context) ([]models.Server, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+serverColumns+" FROM servers ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query servers: %w", err)
	}
	defer rows.Close()

	servers := []models.Server{}
	for rows.Next() {
		server, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		servers = append(servers, server)
	}

	return servers, rows.Err()
}

func (s *Store) CreateServer(ctx context.Context, server models.Server) (models.Server, error) {
	if server.Port == 0 {
		server.Port = models.DefaultSSHPort
	}
	if server.Status == "" {
		server.Status = models.ServerOnline
	}
	server.Username = server.User()

	row := s.db.QueryRowContext(ctx,
		"INSERT INTO servers (name, host, port, username, private_key_path, password, status) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id",
		server.Name, server.Host, server.Port, server.Username, server.PrivateKeyPath, server.Password, string(server.Status),
	)
	if err := row.Scan(&server.ID); err != nil {
		return server, fmt.Errorf("failed to insert server: %w", err)
	}

	return server, nil
}

const projectColumns = "id, slug, framework, environment, port, env, server_id, branch, runtime, created_at"

func scanProject(row scanner) (models.Project, error) {
	var project models.Project
	var port, serverID sql.NullInt64
	var env, runtime string

	if err := row.Scan(&project.ID, &project.Slug, &project.Framework, &project.Environment, &port, &env, &serverID, &project.Branch, &runtime, &project.CreatedAt); err != nil {
		return project, err
	}

	project.Port = int(port.Int64)
	project.ServerID = serverID.Int64
	project.Runtime = models.Runtime(runtime)

	if err := json.Unmarshal([]byte(env), &project.Env); err != nil {
		return project, fmt.Errorf("failed to decode env of project %d: %w", project.ID, err)
	}

	return project, nil
}

func (s *Store) Project(ctx context.Context, id int64) (models.Project, error) {
	project, err := scanProject(s.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return project, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return project, fmt.Errorf("failed to load project %d: %w", id, err)
	}

	return project, nil
}

func (s *Store) Projects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+projectColumns+" FROM projects ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// CreateProject stores a new project. The slug is sanitized first and must
// not be empty afterwards.
func (s *Store) CreateProject(ctx context.Context, project models.Project) (models.Project, error) {
	slug, err := project.ValidatedSlug()
	if err != nil {
		return project, err
	}
	project.Slug = slug
	project.Environment = project.AppEnv()
	project.Branch = project.GitBranch()
	project.Runtime = project.RuntimeOrDefault()
	if project.Env == nil {
		project.Env = map[string]string{}
	}

	env, err := json.Marshal(project.Env)
	if err != nil {
		return project, fmt.Errorf("failed to encode env: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		"INSERT INTO projects (slug, framework, environment, port, env, server_id, branch, runtime) VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id, created_at",
		project.Slug, project.Framework, project.Environment, nullable(int64(project.Port)), string(env), nullable(project.ServerID), project.Branch, string(project.Runtime),
	)
	if err := row.Scan(&project.ID, &project.CreatedAt); err != nil {
		return project, fmt.Errorf("failed to insert project: %w", err)
	}

	return project, nil
}

func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete project %d: %w", id, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}

	return nil
}

func (s *Store) RecordPort(ctx context.Context, projectID int64, port int) (bool, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE projects SET port = ? WHERE id = ? AND (port IS NULL OR port = 0)", port, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to record port for project %d: %w", projectID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func nullable(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
