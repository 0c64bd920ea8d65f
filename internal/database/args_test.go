package database_test

import (
	"errors"
	"strings"
	"testing"

	"haul/internal/database"
)

func TestArgAccessors(t *testing.T) {
	args := database.NewArgs("pkg", int64(3)).With("email", "a@b.c")

	name, err := database.Arg[string](args, 0)
	if err != nil || name != "pkg" {
		t.Fatalf("Arg 0 = %q, %v", name, err)
	}
	if _, err := database.Arg[string](args, 1); !errors.Is(err, database.ErrBadArgument) {
		t.Fatalf("mistyped Arg = %v", err)
	}
	if _, err := database.Arg[string](args, 5); !errors.Is(err, database.ErrBadArgument) {
		t.Fatalf("missing Arg = %v", err)
	}

	role, err := database.OptionalArg(args, 4, 7)
	if err != nil || role != 7 {
		t.Fatalf("OptionalArg = %d, %v", role, err)
	}
	email, err := database.NamedArg(args, "email", "")
	if err != nil || email != "a@b.c" {
		t.Fatalf("NamedArg = %q, %v", email, err)
	}
	if _, err := database.NamedArg(args, "email", 0); !errors.Is(err, database.ErrBadArgument) {
		t.Fatalf("mistyped NamedArg = %v", err)
	}
}

func TestArgsStringRedactsSecrets(t *testing.T) {
	args := database.NewArgs("ann", database.Secret("hunter2"), nil).With("role", 1)

	got := args.String()
	if strings.Contains(got, "hunter2") {
		t.Fatalf("secret leaked into %q", got)
	}
	want := `("ann", [redacted], nil, role=1)`
	if got != want {
		t.Fatalf("String = %s, want %s", got, want)
	}
}

func TestArgsWithDoesNotMutateOriginal(t *testing.T) {
	base := database.NewArgs().With("a", 1)
	_ = base.With("b", 2)
	if _, ok := base.Named("b"); ok {
		t.Fatal("With must return a copy")
	}
}
