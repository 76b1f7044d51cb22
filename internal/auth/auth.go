// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package auth owns users, login and the viewer resolution every read
query depends on. A viewer bundles the caller's library scope and age
rating policy; it is rebuilt per request from the user row so permission
changes apply without re-issuing tokens.
*/
package auth

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/nhatvu/inkwell/internal/platform/apperr"
	"github.com/nhatvu/inkwell/internal/platform/dberr"
	requestutil "github.com/nhatvu/inkwell/internal/platform/request"
	"github.com/nhatvu/inkwell/internal/platform/sec"
	"github.com/nhatvu/inkwell/internal/platform/sqlite"
	"github.com/nhatvu/inkwell/internal/policy"
)

// User is one account row.
type User struct {
	ID                     int64      `json:"id"`
	Username               string     `json:"username"`
	Email                  string     `json:"email"`
	IsActive               bool       `json:"is_active"`
	IsSuperuser            bool       `json:"is_superuser"`
	AvatarPath             *string    `json:"avatar_path"`
	MaxAgeRating           *string    `json:"max_age_rating"`
	AllowUnknownAgeRatings bool       `json:"allow_unknown_age_ratings"`
	LastLogin              *time.Time `json:"last_login"`
	CreatedAt              time.Time  `json:"created_at"`
}

// Service authenticates users and resolves viewers.
type Service struct {
	db     *sql.DB
	tokens *sec.TokenService
	logger *slog.Logger
}

func NewService(db *sql.DB, tokens *sec.TokenService, logger *slog.Logger) *Service {
	return &Service{db: db, tokens: tokens, logger: logger}
}

const userColumns = `id, username, email, is_active, is_superuser, avatar_path,
	max_age_rating, allow_unknown_age_ratings, last_login, created_at`

func scanUser(row *sql.Row) (*User, string, error) {
	user := &User{}
	var passwordHash string
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.IsActive, &user.IsSuperuser,
		&user.AvatarPath, &user.MaxAgeRating, &user.AllowUnknownAgeRatings,
		&user.LastLogin, &user.CreatedAt, &passwordHash)
	if err != nil {
		return nil, "", err
	}
	return user, passwordHash, nil
}

// LoginResult carries the token and the authenticated account.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user"`
}

// Login verifies credentials and issues an access token. Bad username
// and bad password are indistinguishable to the caller.
func (service *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	row := service.db.QueryRowContext(ctx,
		`SELECT `+userColumns+`, password_hash FROM users WHERE username = ?`, username)
	user, passwordHash, err := scanUser(row)
	if err == sql.ErrNoRows {
		// Burn a comparison anyway so the timing matches a real account.
		sec.CheckPasswordHash(password, "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5B0q0lXKo9mURiFkbCwW9eJ0IW/7a")
		return nil, apperr.Unauthorized("Invalid username or password")
	}
	if err != nil {
		return nil, dberr.Wrap(err, "login_lookup")
	}

	if !user.IsActive || !sec.CheckPasswordHash(password, passwordHash) {
		return nil, apperr.Unauthorized("Invalid username or password")
	}

	token, err := service.tokens.GenerateAccessToken(user.ID, user.Username, user.IsSuperuser)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	err = sqlite.WriteTx(ctx, service.db, func(tx *sqlite.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?`, user.ID)
		return err
	})
	if err != nil {
		service.logger.WarnContext(ctx, "last_login_write_failed",
			slog.Int64("user_id", user.ID), slog.Any("error", err))
	}

	service.logger.InfoContext(ctx, "user_logged_in", slog.String("username", user.Username))
	return &LoginResult{AccessToken: token, TokenType: "bearer", User: user}, nil
}

// GetUser loads one account.
func (service *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	row := service.db.QueryRowContext(ctx,
		`SELECT `+userColumns+`, password_hash FROM users WHERE id = ?`, id)
	user, _, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("User")
	}
	if err != nil {
		return nil, dberr.Wrap(err, "get_user")
	}
	return user, nil
}

// CreateUser registers an account with a bcrypt password hash.
func (service *Service) CreateUser(ctx context.Context, username, email, password string, isSuperuser bool) (*User, error) {
	if username == "" || password == "" {
		return nil, apperr.ValidationError("username and password are required")
	}
	passwordHash, err := sec.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	var id int64
	err = sqlite.WriteTx(ctx, service.db, func(tx *sqlite.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, email, password_hash, is_superuser) VALUES (?, ?, ?, ?)`,
			username, email, passwordHash, isSuperuser)
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return nil, apperr.Conflict("Username or email already exists")
		}
		return nil, dberr.Wrap(err, "create_user")
	}
	return service.GetUser(ctx, id)
}

// ViewerFor rebuilds the policy viewer for the authenticated request.
// Implements the viewer source the read handlers depend on.
func (service *Service) ViewerFor(request *http.Request) (policy.Viewer, error) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		return policy.Viewer{}, err
	}
	return service.ViewerForUser(request.Context(), claims.UserID)
}

// ViewerForUser loads the user's scope and rating policy.
func (service *Service) ViewerForUser(ctx context.Context, userID int64) (policy.Viewer, error) {
	viewer := policy.Viewer{UserID: userID}

	var isActive bool
	err := service.db.QueryRowContext(ctx, `
		SELECT is_active, is_superuser, max_age_rating, allow_unknown_age_ratings
		FROM users WHERE id = ?`, userID).
		Scan(&isActive, &viewer.IsSuperuser, &viewer.MaxAgeRating, &viewer.AllowUnknownRatings)
	if err == sql.ErrNoRows {
		return policy.Viewer{}, apperr.Unauthorized("Account no longer exists")
	}
	if err != nil {
		return policy.Viewer{}, dberr.Wrap(err, "load_viewer")
	}
	if !isActive {
		return policy.Viewer{}, apperr.Unauthorized("Account is disabled")
	}

	if viewer.IsSuperuser {
		return viewer, nil
	}

	rows, err := service.db.QueryContext(ctx,
		`SELECT library_id FROM user_libraries WHERE user_id = ? ORDER BY library_id`, userID)
	if err != nil {
		return policy.Viewer{}, dberr.Wrap(err, "load_viewer_libraries")
	}
	defer rows.Close()

	for rows.Next() {
		var libraryID int64
		if err := rows.Scan(&libraryID); err != nil {
			return policy.Viewer{}, dberr.Wrap(err, "scan_viewer_library")
		}
		viewer.AccessibleLibraries = append(viewer.AccessibleLibraries, libraryID)
	}
	return viewer, dberr.Wrap(rows.Err(), "load_viewer_libraries")
}

// GrantLibrary adds a library to a user's scope.
func (service *Service) GrantLibrary(ctx context.Context, userID, libraryID int64) error {
	err := sqlite.WriteTx(ctx, service.db, func(tx *sqlite.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_libraries (user_id, library_id) VALUES (?, ?)`,
			userID, libraryID)
		return err
	})
	return dberr.Wrap(err, "grant_library")
}
