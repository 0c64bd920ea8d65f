package accounts_test

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"haul/internal/accounts"
	"haul/internal/database"
	"haul/internal/testsupport"
)

func newBackend(t *testing.T) *database.Backend {
	t.Helper()
	backend := testsupport.MustOpenBackend(t, testsupport.NewConfig(t))
	if err := backend.RegisterExtension(accounts.Extension{}); err != nil {
		t.Fatalf("RegisterExtension: %v", err)
	}
	return backend
}

func newClient(t *testing.T) *accounts.Client {
	t.Helper()
	return accounts.NewClient(newBackend(t), accounts.WithCost(bcrypt.MinCost))
}

func TestAddAndAuthenticate(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	if _, err := client.Add(ctx, accounts.NewUser{Name: "ann", Password: "s3cret", Email: "ann@example.org", Permission: 3}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	user, err := client.CheckAuth(ctx, "ann", "s3cret")
	if err != nil {
		t.Fatalf("CheckAuth: %v", err)
	}
	if user.Email != "ann@example.org" || user.Permission != 3 || user.Template != "default" {
		t.Fatalf("user = %+v", user)
	}

	tests := []struct {
		name     string
		user     string
		password string
	}{
		{name: "wrong password", user: "ann", password: "nope"},
		{name: "unknown user", user: "bob", password: "s3cret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := client.CheckAuth(ctx, tt.user, tt.password); !errors.Is(err, accounts.ErrInvalidCredentials) {
				t.Fatalf("CheckAuth = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestAddDuplicateUser(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	if _, err := client.Add(ctx, accounts.NewUser{Name: "ann", Password: "a"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := client.Add(ctx, accounts.NewUser{Name: "ann", Password: "b"}); !errors.Is(err, accounts.ErrUserExists) {
		t.Fatalf("duplicate Add = %v, want ErrUserExists", err)
	}
	users, err := client.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("users = %+v", users)
	}
}

func TestPermissionAndRemoval(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	for _, name := range []string{"zed", "amy"} {
		if _, err := client.Add(ctx, accounts.NewUser{Name: name, Password: "pw"}); err != nil {
			t.Fatalf("Add %s: %v", name, err)
		}
	}
	if ok, err := client.SetPermission(ctx, "zed", 7, 1); err != nil || !ok {
		t.Fatalf("SetPermission = %v, %v", ok, err)
	}
	if ok, _ := client.SetPermission(ctx, "nobody", 1, 1); ok {
		t.Fatal("SetPermission on unknown user should report false")
	}

	users, err := client.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 || users[0].Name != "amy" || users[1].Permission != 7 || users[1].Role != 1 {
		t.Fatalf("users = %+v", users)
	}

	if ok, err := client.Remove(ctx, "amy"); err != nil || !ok {
		t.Fatalf("Remove = %v, %v", ok, err)
	}
	if _, err := client.CheckAuth(ctx, "amy", "pw"); !errors.Is(err, accounts.ErrInvalidCredentials) {
		t.Fatalf("removed user authenticated: %v", err)
	}
}

func TestRejectedLoginIsNotAJobFailure(t *testing.T) {
	backend := newBackend(t)
	client := accounts.NewClient(backend, accounts.WithCost(bcrypt.MinCost))
	ctx := context.Background()

	if _, err := client.Add(ctx, accounts.NewUser{Name: "ann", Password: "right"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	for _, password := range []string{"wrong", "also wrong"} {
		if _, err := client.CheckAuth(ctx, "ann", password); !errors.Is(err, accounts.ErrInvalidCredentials) {
			t.Fatalf("CheckAuth(%q) = %v, want ErrInvalidCredentials", password, err)
		}
	}
	if stats := backend.Stats(); stats.Failed != 0 {
		t.Fatalf("rejected logins counted as failed jobs: %+v", stats)
	}
}

func TestAddHashesBeforeQueueing(t *testing.T) {
	backend := newBackend(t)
	client := accounts.NewClient(backend, accounts.WithCost(bcrypt.MinCost))
	ctx := context.Background()

	if _, err := client.Add(ctx, accounts.NewUser{Name: "ann"}); !errors.Is(err, database.ErrBadArgument) {
		t.Fatalf("Add without password = %v, want ErrBadArgument", err)
	}
	if stats := backend.Stats(); stats.Submitted != 0 {
		t.Fatalf("empty password reached the queue: %+v", stats)
	}

	plain := database.NewArgs("bob", database.Secret("not-a-hash"))
	if _, err := backend.Call(ctx, accounts.OpAddUser, plain); !errors.Is(err, database.ErrBadArgument) {
		t.Fatalf("add_user with plaintext = %v, want ErrBadArgument", err)
	}

	if _, err := client.Add(ctx, accounts.NewUser{Name: "bob", Password: "pw"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := client.CheckAuth(ctx, "bob", "pw"); err != nil {
		t.Fatalf("CheckAuth: %v", err)
	}
}
