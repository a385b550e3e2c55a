// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"

	"github.com/olegiv/deptdocs/internal/access"
	"github.com/olegiv/deptdocs/internal/auth"
	"github.com/olegiv/deptdocs/internal/blob"
	"github.com/olegiv/deptdocs/internal/markup"
	"github.com/olegiv/deptdocs/internal/membership"
	"github.com/olegiv/deptdocs/internal/metrics"
	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/store"
)

// Field limits for user forms.
const (
	maxUsername = 150
	maxName     = 150
	maxPosition = 100
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// UserInput is the admin user form. Username is only read on create.
// DepartmentID 0 means no department besides the common one; it is
// ignored for admins.
type UserInput struct {
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Position        string `json:"position"`
	Role            string `json:"role"`
	DepartmentID    int64  `json:"department_id"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// ProfileInput is the self-service profile form.
type ProfileInput struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Position        string `json:"position"`
	Role            string `json:"role"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// MemberDetail is a member with the department used to pre-fill the
// edit form.
type MemberDetail struct {
	model.Member
	PrimaryDepartment *model.Department `json:"primary_department"`
}

type personFields struct {
	firstName, lastName, email, position string
}

func cleanPerson(fe model.FieldErrors, firstName, lastName, email, position string) personFields {
	p := personFields{
		firstName: markup.PlainText(firstName),
		lastName:  markup.PlainText(lastName),
		email:     strings.TrimSpace(email),
		position:  markup.PlainText(position),
	}
	if len([]rune(p.firstName)) > maxName {
		fe.Add("first_name", fmt.Sprintf("must be at most %d characters", maxName))
	}
	if len([]rune(p.lastName)) > maxName {
		fe.Add("last_name", fmt.Sprintf("must be at most %d characters", maxName))
	}
	if len([]rune(p.position)) > maxPosition {
		fe.Add("position", fmt.Sprintf("must be at most %d characters", maxPosition))
	}
	if p.email != "" {
		if addr, err := mail.ParseAddress(p.email); err != nil || addr.Address != p.email {
			fe.Add("email", "is not a valid address")
		}
	}
	return p
}

// parseRoleField parses role, defaulting an empty value to def.
func parseRoleField(fe model.FieldErrors, s string, def model.Role) model.Role {
	if strings.TrimSpace(s) == "" {
		return def
	}
	role, err := membership.ParseRole(s)
	if err != nil {
		fe.Add("role", "must be user or admin")
		return def
	}
	return role
}

func checkPassword(fe model.FieldErrors, password, confirm string, required bool) bool {
	ok, err := auth.ValidatePasswordPair(password, confirm, required)
	if err != nil {
		fe.Add("password", err.Error())
	}
	return ok
}

// UserService manages users, their profiles and department memberships.
type UserService struct {
	db        *sql.DB
	queries   *store.Queries
	blobs     blob.Store
	events    *EventService
	dashboard *DashboardService
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(db *sql.DB, blobs blob.Store, events *EventService, dashboard *DashboardService, m *metrics.Metrics, logger *slog.Logger) *UserService {
	return &UserService{
		db:        db,
		queries:   store.New(db),
		blobs:     blobs,
		events:    events,
		dashboard: dashboard,
		metrics:   m,
		logger:    loggerOrDefault(logger),
	}
}

// List returns every member ordered by username.
func (s *UserService) List(ctx context.Context) ([]model.Member, error) {
	members, err := s.queries.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return members, nil
}

// Get returns a member by user ID.
func (s *UserService) Get(ctx context.Context, userID int64) (MemberDetail, error) {
	m, err := loadMember(ctx, s.queries, userID)
	if err != nil {
		return MemberDetail{}, err
	}
	return MemberDetail{Member: m, PrimaryDepartment: membership.PrimaryDepartment(m.Profile)}, nil
}

func loadMember(ctx context.Context, q *store.Queries, userID int64) (model.Member, error) {
	u, err := q.GetUserByID(ctx, userID)
	if err != nil {
		return model.Member{}, notFound(err, "user")
	}
	p, err := q.LoadProfile(ctx, userID)
	if err != nil {
		return model.Member{}, notFound(err, "user profile")
	}
	return model.Member{User: u, Profile: p}, nil
}

func (s *UserService) requireAdmin(actor model.Actor) error {
	return requireAdmin(s.metrics, actor)
}

// selectedDepartment resolves the department picked on the form. It is
// ignored for admins.
func selectedDepartment(ctx context.Context, q *store.Queries, fe model.FieldErrors, role model.Role, id int64) (*model.Department, error) {
	if role == model.RoleAdmin || id == 0 {
		return nil, nil
	}
	d, err := q.GetDepartmentByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		fe.Add("department_id", "does not exist")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading department: %w", err)
	}
	if err := membership.ValidateDepartmentForRole(role, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// assign rewrites the profile's memberships for role.
func assign(ctx context.Context, q *store.Queries, p *model.Profile, role model.Role, selected *model.Department) error {
	depts, err := q.LoadProtectedDepartments(ctx)
	if err != nil {
		return err
	}
	membership.AssignDepartments(p, role, selected, depts)
	if err := q.ReplaceProfileDepartments(ctx, p.ID, p.Departments); err != nil {
		return fmt.Errorf("replacing departments: %w", err)
	}
	return nil
}

// Create adds a user with a profile and memberships.
func (s *UserService) Create(ctx context.Context, actor model.Actor, in UserInput) (MemberDetail, error) {
	if err := s.requireAdmin(actor); err != nil {
		return MemberDetail{}, err
	}

	fe := model.FieldErrors{}
	username := requireText(fe, "username", in.Username, maxUsername)
	if username != "" && !usernamePattern.MatchString(username) {
		fe.Add("username", "may only contain letters, digits and @.+-_")
	}
	person := cleanPerson(fe, in.FirstName, in.LastName, in.Email, in.Position)
	role := parseRoleField(fe, in.Role, model.RoleUser)
	checkPassword(fe, in.Password, in.PasswordConfirm, true)
	if err := fe.Err(); err != nil {
		return MemberDetail{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return MemberDetail{}, fmt.Errorf("hashing password: %w", err)
	}

	var userID int64
	err = store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		selected, err := selectedDepartment(ctx, q, fe, role, in.DepartmentID)
		if err != nil {
			return err
		}
		if err := fe.Err(); err != nil {
			return err
		}

		u, err := q.CreateUser(ctx, store.CreateUserParams{
			Username:     username,
			FirstName:    person.firstName,
			LastName:     person.lastName,
			Email:        person.email,
			PasswordHash: hash,
		})
		if err != nil {
			return conflict(err, "username is already taken")
		}
		p, err := q.CreateProfile(ctx, store.CreateProfileParams{
			UserID:   u.ID,
			Position: person.position,
			IsAdmin:  role == model.RoleAdmin,
		})
		if err != nil {
			return fmt.Errorf("creating profile: %w", err)
		}
		userID = u.ID
		return assign(ctx, q, &p, role, selected)
	})
	if err != nil {
		return MemberDetail{}, err
	}

	s.events.Record(ctx, actor, model.EventCategoryUser, "User created", map[string]any{
		"target_user_id": userID,
		"username":       username,
		"role":           string(role),
	})
	s.dashboard.Invalidate(ctx)
	return s.Get(ctx, userID)
}

// Update edits a user on behalf of an admin. Other admins cannot be
// edited; an admin editing themselves cannot drop the last admin role.
func (s *UserService) Update(ctx context.Context, actor model.Actor, userID int64, in UserInput) (MemberDetail, error) {
	if err := s.requireAdmin(actor); err != nil {
		return MemberDetail{}, err
	}

	fe := model.FieldErrors{}
	person := cleanPerson(fe, in.FirstName, in.LastName, in.Email, in.Position)
	// An empty role keeps the current one; resolved once the target is loaded.
	role := parseRoleField(fe, in.Role, "")
	newPassword := checkPassword(fe, in.Password, in.PasswordConfirm, false)
	if err := fe.Err(); err != nil {
		return MemberDetail{}, err
	}

	var hash string
	if newPassword {
		var err error
		if hash, err = auth.HashPassword(in.Password); err != nil {
			return MemberDetail{}, fmt.Errorf("hashing password: %w", err)
		}
	}

	isSelf := actor.UserID == userID
	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		m, err := loadMember(ctx, q, userID)
		if err != nil {
			return err
		}
		if dec := access.CanEditUser(actor, m.Profile); !dec.Allowed {
			s.metrics.AccessDenied(string(dec.Reason))
			return dec.Err()
		}
		if role == "" {
			role = m.Profile.Role()
		}
		admins, err := q.CountAdmins(ctx)
		if err != nil {
			return fmt.Errorf("counting admins: %w", err)
		}
		if err := membership.ValidateRoleChange(m.Profile, isSelf, role, admins); err != nil {
			return err
		}
		selected, err := selectedDepartment(ctx, q, fe, role, in.DepartmentID)
		if err != nil {
			return err
		}
		if err := fe.Err(); err != nil {
			return err
		}

		if err := q.UpdateUser(ctx, store.UpdateUserParams{
			ID:        userID,
			FirstName: person.firstName,
			LastName:  person.lastName,
			Email:     person.email,
		}); err != nil {
			return fmt.Errorf("updating user: %w", err)
		}
		if err := q.UpdateProfile(ctx, store.UpdateProfileParams{
			ID:       m.Profile.ID,
			Position: person.position,
			IsAdmin:  role == model.RoleAdmin,
		}); err != nil {
			return fmt.Errorf("updating profile: %w", err)
		}
		if hash != "" {
			if err := q.UpdateUserPassword(ctx, userID, hash); err != nil {
				return fmt.Errorf("updating password: %w", err)
			}
		}
		return assign(ctx, q, &m.Profile, role, selected)
	})
	if err != nil {
		return MemberDetail{}, err
	}

	s.events.Record(ctx, actor, model.EventCategoryUser, "User updated", map[string]any{
		"target_user_id":   userID,
		"role":             string(role),
		"password_changed": newPassword,
	})
	s.dashboard.Invalidate(ctx)
	return s.Get(ctx, userID)
}

// UpdateSelf applies the profile form of the acting user. Users cannot
// promote themselves; the last admin cannot step down.
func (s *UserService) UpdateSelf(ctx context.Context, actor model.Actor, in ProfileInput) (MemberDetail, error) {
	fe := model.FieldErrors{}
	person := cleanPerson(fe, in.FirstName, in.LastName, in.Email, in.Position)
	current := model.RoleUser
	if actor.IsAdmin {
		current = model.RoleAdmin
	}
	role := parseRoleField(fe, in.Role, current)
	newPassword := checkPassword(fe, in.Password, in.PasswordConfirm, false)
	if err := fe.Err(); err != nil {
		return MemberDetail{}, err
	}

	var hash string
	if newPassword {
		var err error
		if hash, err = auth.HashPassword(in.Password); err != nil {
			return MemberDetail{}, fmt.Errorf("hashing password: %w", err)
		}
	}

	var demoted bool
	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		m, err := loadMember(ctx, q, actor.UserID)
		if err != nil {
			return err
		}
		if !m.Profile.IsAdmin && role == model.RoleAdmin {
			s.metrics.AccessDenied("self_promotion")
			return fmt.Errorf("%w: cannot grant yourself the administrator role", model.ErrPermissionDenied)
		}
		admins, err := q.CountAdmins(ctx)
		if err != nil {
			return fmt.Errorf("counting admins: %w", err)
		}
		if err := membership.ValidateRoleChange(m.Profile, true, role, admins); err != nil {
			return err
		}

		if err := q.UpdateUser(ctx, store.UpdateUserParams{
			ID:        actor.UserID,
			FirstName: person.firstName,
			LastName:  person.lastName,
			Email:     person.email,
		}); err != nil {
			return fmt.Errorf("updating user: %w", err)
		}
		if err := q.UpdateProfile(ctx, store.UpdateProfileParams{
			ID:       m.Profile.ID,
			Position: person.position,
			IsAdmin:  role == model.RoleAdmin,
		}); err != nil {
			return fmt.Errorf("updating profile: %w", err)
		}
		if hash != "" {
			if err := q.UpdateUserPassword(ctx, actor.UserID, hash); err != nil {
				return fmt.Errorf("updating password: %w", err)
			}
		}
		if m.Profile.IsAdmin && role == model.RoleUser {
			demoted = true
			return assign(ctx, q, &m.Profile, role, nil)
		}
		return nil
	})
	if err != nil {
		return MemberDetail{}, err
	}

	s.events.Record(ctx, actor, model.EventCategoryUser, "Profile updated", map[string]any{
		"role":             string(role),
		"demoted":          demoted,
		"password_changed": newPassword,
	})
	if demoted {
		s.dashboard.Invalidate(ctx)
	}
	return s.Get(ctx, actor.UserID)
}

// Delete removes a user. Their profile, memberships and uploaded
// documents go with them; the documents' files are removed afterwards.
func (s *UserService) Delete(ctx context.Context, actor model.Actor, userID int64) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}

	var (
		username string
		refs     []blob.Ref
	)
	err := store.RunInTx(ctx, s.db, func(q *store.Queries) error {
		m, err := loadMember(ctx, q, userID)
		if err != nil {
			return err
		}
		admins, err := q.CountAdmins(ctx)
		if err != nil {
			return fmt.Errorf("counting admins: %w", err)
		}
		if dec := access.CanDeleteUser(actor, m.Profile, admins); !dec.Allowed {
			s.metrics.AccessDenied(string(dec.Reason))
			return dec.Err()
		}

		docs, err := q.ListDocumentsByUploader(ctx, userID)
		if err != nil {
			return fmt.Errorf("listing documents: %w", err)
		}
		for _, d := range docs {
			refs = append(refs, blob.Ref(d.BlobRef))
		}
		username = m.User.Username
		if err := q.DeleteUser(ctx, userID); err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, ref := range refs {
		if err := s.blobs.Delete(ctx, ref); err != nil {
			s.logger.Warn("failed to delete document file", "ref", ref, "error", err)
		}
	}

	meta := map[string]any{
		"target_user_id":    userID,
		"username":          username,
		"documents_removed": len(refs),
	}
	if actor.UserID == userID {
		// The actor row is gone; events.user_id must not point at it.
		meta["actor_user_id"] = actor.UserID
		_ = s.events.LogEvent(ctx, model.EventLevelInfo, model.EventCategoryUser, "User deleted", nil, actor.IP, meta)
	} else {
		s.events.Record(ctx, actor, model.EventCategoryUser, "User deleted", meta)
	}
	s.dashboard.Invalidate(ctx)
	return nil
}
