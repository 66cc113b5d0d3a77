package auth

import (
	"context"
	"testing"

	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	"github.com/marquezdaniela/reciclaje-municipal/internal/testdb"
	pkgAuth "github.com/marquezdaniela/reciclaje-municipal/pkg/auth"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/security"
)

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Username:        "carla",
		FirstName:       "Carla",
		LastName:        "Soto",
		Email:           "Carla@Example.com",
		Password:        "clave-segura",
		PasswordConfirm: "clave-segura",
		Address:         "Los Aromos 123",
		Phone:           "+56933333333",
	}
}

func TestRegisterCreatesCitizenAndSession(t *testing.T) {
	conn, client := testdb.Open(t)
	resolver, err := policy.NewResolver(conn)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	sessions := newStubSessions()
	svc, err := NewRegisterService(RegisterServiceParams{
		DB:             client,
		PasswordConfig: testPasswords,
		SessionManager: sessions,
		Resolver:       resolver,
		JWTConfig:      testJWT,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	resp, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.Role != "citizen" || resp.Redirect != policy.RouteHome {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.User.Email != "carla@example.com" {
		t.Fatalf("expected normalized email, got %s", resp.User.Email)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if sessions.sessions[claims.ID] != resp.RefreshToken {
		t.Fatalf("expected session opened for new account")
	}

	var user models.User
	if err := conn.First(&user, "username = ?", "carla").Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	ok, err := security.VerifyPassword("clave-segura", user.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	var citizen models.Citizen
	if err := conn.First(&citizen, "user_id = ?", user.ID).Error; err != nil {
		t.Fatalf("load citizen: %v", err)
	}
	if citizen.Address != "Los Aromos 123" {
		t.Fatalf("unexpected address %q", citizen.Address)
	}

	_, err = svc.Register(context.Background(), validRegistration())
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict on duplicate, got %v", err)
	}
}

func TestRegisterRejectsPasswordMismatch(t *testing.T) {
	conn, client := testdb.Open(t)
	resolver, _ := policy.NewResolver(conn)
	svc, err := NewRegisterService(RegisterServiceParams{
		DB:             client,
		PasswordConfig: testPasswords,
		SessionManager: newStubSessions(),
		Resolver:       resolver,
		JWTConfig:      testJWT,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	req := validRegistration()
	req.PasswordConfirm = "otra-clave"
	_, err = svc.Register(context.Background(), req)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var count int64
	conn.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected nothing persisted, got %d users", count)
	}
}

func TestAdminRegisterCreatesStaff(t *testing.T) {
	conn, client := testdb.Open(t)
	svc, err := NewAdminRegisterService(AdminRegisterServiceParams{DB: client, PasswordConfig: testPasswords})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	user, err := svc.Register(context.Background(), AdminRegisterRequest{
		Username:  "admin",
		FirstName: "Ada",
		LastName:  "Admin",
		Email:     "admin@example.com",
		Password:  "clave-segura",
	})
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	if !user.IsStaff {
		t.Fatalf("expected staff account")
	}

	resolver, _ := policy.NewResolver(conn)
	actor, err := resolver.Resolve(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !actor.IsStaff() {
		t.Fatalf("expected staff actor, got %s", actor.Kind())
	}
}
