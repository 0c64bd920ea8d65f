// Package accounts stores web interface users through the database backend,
// registered as the "accounts" extension. Passwords are kept as bcrypt
// hashes, computed by the Client before a job is queued, and travel through
// the job queue as database.Secret values.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"haul/internal/database"
)

// Operation names exposed by the extension.
const (
	OpAddUser       = "add_user"
	OpCheckAuth     = "check_auth"
	OpListUsers     = "list_users"
	OpSetPermission = "set_permission"
	OpRemoveUser    = "remove_user"
)

var (
	// ErrInvalidCredentials is returned when a name and password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when adding a name that is already taken.
	ErrUserExists = errors.New("user already exists")
)

// User is a stored account without its password hash.
type User struct {
	ID         int64
	Name       string
	Email      string
	Role       int
	Permission int
	Template   string
}

// Extension implements database.Extension.
type Extension struct{}

func (Extension) Name() string { return "accounts" }

func (Extension) Operations() map[string]database.Operation {
	return map[string]database.Operation{
		OpAddUser:       addUser,
		OpCheckAuth:     checkAuth,
		OpListUsers:     listUsers,
		OpSetPermission: setPermission,
		OpRemoveUser:    removeUser,
	}
}

func nameArg(args database.Args) (string, error) {
	name, err := database.Arg[string](args, 0)
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: user name is empty", database.ErrBadArgument)
	}
	return name, nil
}

// addUser stores an account. The password arrives already hashed.
func addUser(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	name, err := nameArg(args)
	if err != nil {
		return nil, err
	}
	hash, err := database.Arg[database.Secret](args, 1)
	if err != nil {
		return nil, err
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("%w: password hash: %v", database.ErrBadArgument, err)
	}
	email, err := database.NamedArg(args, "email", "")
	if err != nil {
		return nil, err
	}
	role, err := database.NamedArg(args, "role", 0)
	if err != nil {
		return nil, err
	}
	permission, err := database.NamedArg(args, "permission", 0)
	if err != nil {
		return nil, err
	}

	cur := tx.CreateCursor()
	var taken int
	if err := cur.QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE name = ?", name).Scan(&taken); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if taken > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUserExists, name)
	}

	if _, err := cur.Exec(ctx,
		"INSERT INTO users (name, email, password, role, permission) VALUES (?, ?, ?, ?, ?)",
		name, email, string(hash), role, permission); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return cur.LastInsertID(), nil
}

// checkAuth returns a nil *User when the name is unknown or the password
// does not match.
func checkAuth(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	name, err := nameArg(args)
	if err != nil {
		return nil, err
	}
	password, err := database.Arg[database.Secret](args, 1)
	if err != nil {
		return nil, err
	}

	var (
		user User
		hash string
	)
	err = tx.CreateCursor().QueryRow(ctx,
		"SELECT id, name, email, role, permission, template, password FROM users WHERE name = ?", name).
		Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.Permission, &user.Template, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return (*User)(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return (*User)(nil), nil
	}
	return &user, nil
}

func listUsers(ctx context.Context, tx *database.Tx, _ database.Args) (any, error) {
	rows, err := tx.CreateCursor().Query(ctx,
		"SELECT id, name, email, role, permission, template FROM users ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Permission, &u.Template); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func setPermission(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	name, err := nameArg(args)
	if err != nil {
		return nil, err
	}
	permission, err := database.Arg[int](args, 1)
	if err != nil {
		return nil, err
	}
	role, err := database.Arg[int](args, 2)
	if err != nil {
		return nil, err
	}
	cur := tx.CreateCursor()
	if _, err := cur.Exec(ctx, "UPDATE users SET permission = ?, role = ? WHERE name = ?", permission, role, name); err != nil {
		return nil, fmt.Errorf("set permission: %w", err)
	}
	return cur.RowsAffected() > 0, nil
}

func removeUser(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	name, err := nameArg(args)
	if err != nil {
		return nil, err
	}
	cur := tx.CreateCursor()
	if _, err := cur.Exec(ctx, "DELETE FROM users WHERE name = ?", name); err != nil {
		return nil, fmt.Errorf("remove user: %w", err)
	}
	return cur.RowsAffected() > 0, nil
}

// Client is a typed front end for the account operations.
type Client struct {
	backend *database.Backend
	cost    int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCost sets the bcrypt cost for new passwords.
func WithCost(cost int) ClientOption {
	return func(c *Client) {
		c.cost = cost
	}
}

// NewClient wraps backend. The extension must be registered on it.
func NewClient(backend *database.Backend, opts ...ClientOption) *Client {
	c := &Client{backend: backend, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewUser describes an account to create.
type NewUser struct {
	Name       string
	Password   string
	Email      string
	Role       int
	Permission int
}

// Add hashes the password on the caller's goroutine, then creates the
// account and returns its id.
func (c *Client) Add(ctx context.Context, u NewUser) (int64, error) {
	if u.Password == "" {
		return 0, fmt.Errorf("%w: password is empty", database.ErrBadArgument)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), c.cost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	args := database.NewArgs(u.Name, database.Secret(hash)).
		With("email", u.Email).
		With("role", u.Role).
		With("permission", u.Permission)
	return database.CallAs[int64](ctx, c.backend, OpAddUser, args)
}

// CheckAuth returns the user when name and password match, and
// ErrInvalidCredentials otherwise.
func (c *Client) CheckAuth(ctx context.Context, name, password string) (User, error) {
	user, err := database.CallAs[*User](ctx, c.backend, OpCheckAuth, database.NewArgs(name, database.Secret(password)))
	if err != nil {
		return User{}, err
	}
	if user == nil {
		return User{}, ErrInvalidCredentials
	}
	return *user, nil
}

// List returns every account ordered by name.
func (c *Client) List(ctx context.Context) ([]User, error) {
	return database.CallAs[[]User](ctx, c.backend, OpListUsers, database.Args{})
}

// SetPermission updates permission and role, reporting whether the user exists.
func (c *Client) SetPermission(ctx context.Context, name string, permission, role int) (bool, error) {
	return database.CallAs[bool](ctx, c.backend, OpSetPermission, database.NewArgs(name, permission, role))
}

// Remove deletes the account, reporting whether it existed.
func (c *Client) Remove(ctx context.Context, name string) (bool, error) {
	return database.CallAs[bool](ctx, c.backend, OpRemoveUser, database.NewArgs(name))
}
