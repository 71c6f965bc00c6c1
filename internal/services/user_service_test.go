package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"despesas/internal/auth"
	"despesas/internal/core"
	"despesas/internal/storage/memory"
)

func newUserService(t *testing.T, registerPassword string) *UserService {
	t.Helper()
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return NewUserService(memory.New(), tokens, registerPassword)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(t, "convite")

	u, err := svc.Register(ctx, RegisterInput{
		Name:             "Ana",
		Email:            " Ana@Example.com ",
		Password:         "segredo1",
		RegisterPassword: "convite",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.ID == "" || u.Email != "ana@example.com" || u.Role != core.RoleUser || u.PasswordHash == "segredo1" {
		t.Fatalf("user = %+v", u)
	}

	session, err := svc.Login(ctx, "ANA@example.com", "segredo1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := svc.Authenticate(session.Token)
	if err != nil || claims.ID != u.ID {
		t.Fatalf("authenticate = %+v, %v", claims, err)
	}

	if ok, _ := svc.Exists(ctx, u.ID); !ok {
		t.Fatal("user should exist")
	}
	if ok, _ := svc.Exists(ctx, "ghost"); ok {
		t.Fatal("ghost should not exist")
	}
	if p, err := svc.Profile(ctx, u.ID); err != nil || p.Name != "Ana" {
		t.Fatalf("profile = %+v, %v", p, err)
	}
}

func TestRegisterRejects(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(t, "convite")
	valid := RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "segredo1", RegisterPassword: "convite"}
	if _, err := svc.Register(ctx, valid); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		want   error
	}{
		{"missing register password", func(in *RegisterInput) { in.RegisterPassword = "" }, core.ErrValidation},
		{"wrong register password", func(in *RegisterInput) { in.RegisterPassword = "x" }, core.ErrUnauthorized},
		{"duplicate email", func(in *RegisterInput) { in.Email = "ANA@example.com" }, core.ErrEmailTaken},
		{"short name", func(in *RegisterInput) { in.Name = "A"; in.Email = "b@example.com" }, core.ErrValidation},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, core.ErrValidation},
		{"short password", func(in *RegisterInput) { in.Email = "c@example.com"; in.Password = "123" }, core.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if _, err := svc.Register(ctx, in); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegisterDisabledWithoutPassword(t *testing.T) {
	svc := newUserService(t, "")
	_, err := svc.Register(context.Background(), RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "segredo1", RegisterPassword: "anything"})
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}

func TestLoginFailuresLookAlike(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(t, "convite")
	if _, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "segredo1", RegisterPassword: "convite"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "ana@example.com", "wrong-pass"); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "segredo1"); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("unknown email: got %v", err)
	}
}

func TestEnsureUserResetsPassword(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(t, "")

	first, err := svc.EnsureUser(ctx, "Demo", "demo@example.com", "primeira")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.EnsureUser(ctx, "Demo", "demo@example.com", "segunda")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatal("EnsureUser must reuse the account")
	}
	if _, err := svc.Login(ctx, "demo@example.com", "primeira"); err == nil {
		t.Fatal("old password should no longer work")
	}
	if _, err := svc.Login(ctx, "demo@example.com", "segunda"); err != nil {
		t.Fatalf("new password: %v", err)
	}
}
