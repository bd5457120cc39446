package service

import (
	"context"
	"testing"

	"github.com/spec-kit/agency-queue/internal/auth"
	"github.com/spec-kit/agency-queue/internal/config"
	"github.com/spec-kit/agency-queue/internal/domain"
	apperrors "github.com/spec-kit/agency-queue/pkg/util"
)

func newAuthHarness(t *testing.T) (*AuthService, *fakeStaffRepo) {
	t.Helper()
	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            4,
		},
	}
	staff := newFakeStaffRepo()
	return NewAuthService(cfg, staff), staff
}

func addStaff(t *testing.T, repo *fakeStaffRepo, id, email, password string, active bool) {
	t.Helper()
	hash, err := auth.HashPassword(password, 4)
	if err != nil {
		t.Fatal(err)
	}
	agencyID := "ag1"
	repo.add(domain.StaffMember{
		ID:           id,
		Name:         "Fatou Ndiaye",
		Email:        email,
		PasswordHash: hash,
		Role:         domain.StaffRoleAgent,
		AgencyID:     &agencyID,
		Active:       active,
	})
}

func TestLoginStaff(t *testing.T) {
	svc, repo := newAuthHarness(t)
	addStaff(t, repo, "s1", "agent@energie.sn", "s3cretpass", true)
	ctx := context.Background()

	staff, token, exp, err := svc.LoginStaff(ctx, "agent@energie.sn", "s3cretpass")
	if err != nil {
		t.Fatal(err)
	}
	if staff.ID != "s1" {
		t.Errorf("staff id = %s, want s1", staff.ID)
	}
	if token == "" {
		t.Fatal("login must return a token")
	}
	if exp.IsZero() {
		t.Error("login must return the token expiry")
	}

	claims, err := svc.TokenManager().ParseToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.StaffID != "s1" {
		t.Errorf("token subject = %s, want s1", claims.StaffID)
	}
	if claims.Role != domain.StaffRoleAgent {
		t.Errorf("token role = %s, want AGENT", claims.Role)
	}
}

func TestLoginStaffRejections(t *testing.T) {
	svc, repo := newAuthHarness(t)
	addStaff(t, repo, "s1", "agent@energie.sn", "s3cretpass", true)
	addStaff(t, repo, "s2", "former@energie.sn", "s3cretpass", false)
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "agent@energie.sn", "wrong"},
		{"unknown email", "nobody@energie.sn", "s3cretpass"},
		{"disabled account", "former@energie.sn", "s3cretpass"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := svc.LoginStaff(ctx, tc.email, tc.password)
			if !apperrors.IsCode(err, "UNAUTHORIZED") {
				t.Errorf("got %v, want UNAUTHORIZED", err)
			}
		})
	}
}

func TestChangePassword(t *testing.T) {
	svc, repo := newAuthHarness(t)
	addStaff(t, repo, "s1", "agent@energie.sn", "oldpassword", true)
	ctx := context.Background()

	if err := svc.ChangePassword(ctx, "s1", "wrong", "newpassword"); !apperrors.IsCode(err, "UNAUTHORIZED") {
		t.Errorf("wrong current password: got %v, want UNAUTHORIZED", err)
	}

	if err := svc.ChangePassword(ctx, "s1", "oldpassword", "newpassword"); err != nil {
		t.Fatal(err)
	}

	if _, _, _, err := svc.LoginStaff(ctx, "agent@energie.sn", "oldpassword"); !apperrors.IsCode(err, "UNAUTHORIZED") {
		t.Error("old password must stop working after a change")
	}
	if _, _, _, err := svc.LoginStaff(ctx, "agent@energie.sn", "newpassword"); err != nil {
		t.Errorf("new password login failed: %v", err)
	}
}
