package access

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/warp/watchcraft/generic"
)

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

type User struct {
	Username     string
	PasswordHash string
	Role         Role
	FullName     string
	Email        string
	Status       UserStatus
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// NewUser is the input for AddUser.
type NewUser struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=admin owner staff"`
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// UserUpdate is the input for UpdateUser. An empty Password keeps the
// current one.
type UserUpdate struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,oneof=admin owner staff"`
	Status   string `json:"status" validate:"required,oneof=active inactive"`
	Password string `json:"password" validate:"omitempty,min=6"`
}

// Repository persists users keyed by username. GetUser returns
// *generic.NotFoundError for unknown usernames.
type Repository interface {
	GetUser(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SaveUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, username string) error
}

// Directory manages user accounts.
type Directory struct {
	repo  Repository
	clock generic.Clock
	cost  int
}

func NewDirectory(repo Repository, clock generic.Clock) *Directory {
	return &Directory{repo: repo, clock: clock, cost: bcrypt.DefaultCost}
}

// WithHashCost sets the bcrypt cost for new hashes. Tests use bcrypt.MinCost.
func (d *Directory) WithHashCost(cost int) *Directory {
	d.cost = cost
	return d
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string, cost int) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// =============================================================================
// LOGIN
// =============================================================================

// Login checks credentials for an active user and records the login time.
// Every failure returns generic.ErrInvalidCredentials.
func (d *Directory) Login(ctx context.Context, username, password string) (User, error) {
	u, err := d.Authenticate(ctx, username, password)
	if err != nil {
		return User{}, err
	}
	now := d.clock.Now()
	u.LastLogin = &now
	if err := d.repo.SaveUser(ctx, u); err != nil {
		return User{}, fmt.Errorf("save user: %w", err)
	}
	return u, nil
}

// Authenticate is Login without recording the login.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := d.repo.GetUser(ctx, strings.TrimSpace(username))
	if err != nil {
		if generic.IsNotFound(err) {
			return User{}, generic.ErrInvalidCredentials
		}
		return User{}, err
	}
	if u.Status != UserActive {
		return User{}, generic.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return User{}, generic.ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("compare password: %w", err)
	}
	return u, nil
}

// =============================================================================
// USER MANAGEMENT
// =============================================================================

func (d *Directory) AddUser(ctx context.Context, in NewUser) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := generic.Validate(in); err != nil {
		return User{}, err
	}
	if _, err := d.repo.GetUser(ctx, in.Username); err == nil {
		return User{}, &generic.DuplicateError{Entity: "user", Field: "username", Value: in.Username}
	} else if !generic.IsNotFound(err) {
		return User{}, err
	}
	if err := d.checkEmailFree(ctx, in.Email, ""); err != nil {
		return User{}, err
	}
	hash, err := HashPassword(in.Password, d.cost)
	if err != nil {
		return User{}, err
	}
	u := User{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         Role(in.Role),
		FullName:     in.FullName,
		Email:        in.Email,
		Status:       UserActive,
		CreatedAt:    d.clock.Now(),
	}
	if err := d.repo.SaveUser(ctx, u); err != nil {
		return User{}, fmt.Errorf("save user: %w", err)
	}
	return u, nil
}

func (d *Directory) UpdateUser(ctx context.Context, username string, in UserUpdate) (User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := generic.Validate(in); err != nil {
		return User{}, err
	}
	u, err := d.repo.GetUser(ctx, username)
	if err != nil {
		return User{}, err
	}
	if err := d.checkEmailFree(ctx, in.Email, username); err != nil {
		return User{}, err
	}
	u.FullName = in.FullName
	u.Email = in.Email
	u.Role = Role(in.Role)
	u.Status = UserStatus(in.Status)
	if in.Password != "" {
		if u.PasswordHash, err = HashPassword(in.Password, d.cost); err != nil {
			return User{}, err
		}
	}
	if err := d.repo.SaveUser(ctx, u); err != nil {
		return User{}, fmt.Errorf("save user: %w", err)
	}
	return u, nil
}

// DeleteUser removes an account. Nobody can delete their own account or an
// admin account.
func (d *Directory) DeleteUser(ctx context.Context, actor, username string) (User, error) {
	if actor == username {
		return User{}, generic.Invalid("username", "cannot delete your own account")
	}
	u, err := d.repo.GetUser(ctx, username)
	if err != nil {
		return User{}, err
	}
	if u.Role == RoleAdmin {
		return User{}, generic.Invalid("username", "cannot delete an admin account")
	}
	if err := d.repo.DeleteUser(ctx, username); err != nil {
		return User{}, fmt.Errorf("delete user: %w", err)
	}
	return u, nil
}

func (d *Directory) Get(ctx context.Context, username string) (User, error) {
	return d.repo.GetUser(ctx, username)
}

// List returns users ordered by username.
func (d *Directory) List(ctx context.Context) ([]User, error) {
	all, err := d.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	return all, nil
}

func (d *Directory) checkEmailFree(ctx context.Context, email, selfUsername string) error {
	all, err := d.repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range all {
		if u.Username != selfUsername && strings.EqualFold(u.Email, email) {
			return &generic.DuplicateError{Entity: "user", Field: "email", Value: email}
		}
	}
	return nil
}
