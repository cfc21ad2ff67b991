package main

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"ecmdash/internal/cases"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

// caseStore is what the handlers need from persistence.
type caseStore interface {
	Ping(ctx context.Context) error
	ListCases(ctx context.Context) ([]cases.Summary, error)
	GetCase(ctx context.Context, id int64) (cases.Detail, error)
	CreateCase(ctx context.Context, d cases.Draft) (cases.Detail, error)
	UpdateCase(ctx context.Context, id int64, d cases.Detail) (cases.Detail, error)
	CreateUser(ctx context.Context, fullName, email, passwordHash, role string) (User, error)
	UserCreds(ctx context.Context, email string) (User, string, error)
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) ListCases(ctx context.Context) ([]cases.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `select id, name from cases order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []cases.Summary{}
	for rows.Next() {
		var c cases.Summary
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const caseColumns = `id, name, team_manager, description, start_date, end_date, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (cases.Detail, error) {
	var (
		d                cases.Detail
		start, end       time.Time
		status           string
		created, updated time.Time
	)
	if err := row.Scan(&d.ID, &d.Name, &d.TeamManager, &d.Description, &start, &end, &status, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cases.Detail{}, ErrNotFound
		}
		return cases.Detail{}, err
	}
	d.Start = cases.NewDate(start.Year(), start.Month(), start.Day())
	d.End = cases.NewDate(end.Year(), end.Month(), end.Day())
	d.Status = cases.Status(status)
	d.CreatedAt = created.UTC().Format(time.RFC3339)
	d.UpdatedAt = updated.UTC().Format(time.RFC3339)
	return d, nil
}

func (s *Store) GetCase(ctx context.Context, id int64) (cases.Detail, error) {
	return scanCase(s.db.QueryRowContext(ctx, `select `+caseColumns+` from cases where id=$1`, id))
}

func (s *Store) CreateCase(ctx context.Context, d cases.Draft) (cases.Detail, error) {
	return scanCase(s.db.QueryRowContext(ctx,
		`insert into cases(name, team_manager, description, start_date, end_date, status)
		values($1,$2,$3,$4::date,$5::date,$6) returning `+caseColumns,
		d.Name, d.TeamManager, d.Description, d.Start.String(), d.End.String(), string(d.Status)))
}

func (s *Store) UpdateCase(ctx context.Context, id int64, d cases.Detail) (cases.Detail, error) {
	return scanCase(s.db.QueryRowContext(ctx,
		`update cases set name=$1, team_manager=$2, description=$3, start_date=$4::date, end_date=$5::date,
		status=$6, updated_at=now() where id=$7 returning `+caseColumns,
		d.Name, d.TeamManager, d.Description, d.Start.String(), d.End.String(), string(d.Status), id))
}

func (s *Store) CreateUser(ctx context.Context, fullName, email, passwordHash, role string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `insert into users(full_name, email, password_hash, role) values($1,$2,$3,$4)
		returning id, full_name, email, role, created_at`, fullName, strings.ToLower(email), passwordHash, role).
		Scan(&u.ID, &u.FullName, &u.Email, &u.Role, &u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// UserCreds returns the user and password hash for email.
func (s *Store) UserCreds(ctx context.Context, email string) (User, string, error) {
	var u User
	var hash string
	err := s.db.QueryRowContext(ctx, `select id, full_name, email, role, created_at, password_hash from users where lower(email)=lower($1)`, email).
		Scan(&u.ID, &u.FullName, &u.Email, &u.Role, &u.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, "", ErrNotFound
	}
	return u, hash, err
}

const schema = `
create table if not exists users(
    id bigserial primary key,
    full_name text not null,
    email text not null,
    password_hash text not null,
    role text not null check (role in ('admin','user','moderator')),
    created_at timestamptz not null default now()
);
create unique index if not exists users_email_uidx on users(lower(email));
create table if not exists cases(
    id bigserial primary key,
    name text not null check (length(name) > 0),
    team_manager text not null,
    description text not null default '',
    start_date date not null,
    end_date date not null,
    status text not null default 'CREATED' check (status in ('CREATED','IN_PROGRESS','ON_HOLD','COMPLETED')),
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create index if not exists cases_status_idx on cases(status);
`
