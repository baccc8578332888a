package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	types "github.com/teampulse/teampulse-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email, name string) *types.User {
	tb.Helper()
	u := &types.User{
		Email:  email,
		Name:   name,
		Role:   types.UserRoleMember,
		Active: true,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedTeam(tb testing.TB, ctx context.Context, tx *gorm.DB, id, installationID string) *types.Team {
	tb.Helper()
	team := &types.Team{
		ID:             id,
		Name:           "team-" + id,
		InstallationID: installationID,
	}
	if err := tx.WithContext(ctx).Create(team).Error; err != nil {
		tb.Fatalf("seed team: %v", err)
	}
	return team
}

func SeedTeamMember(tb testing.TB, ctx context.Context, tx *gorm.DB, teamID, email string) *types.TeamMember {
	tb.Helper()
	tm := &types.TeamMember{
		TeamID: teamID,
		Email:  email,
		Role:   "member",
	}
	if err := tx.WithContext(ctx).Create(tm).Error; err != nil {
		tb.Fatalf("seed team member: %v", err)
	}
	return tm
}

func SeedGitIdentity(tb testing.TB, ctx context.Context, tx *gorm.DB, userID int64, login, email string) *types.GitIdentity {
	tb.Helper()
	gi := &types.GitIdentity{
		UserID:   userID,
		GitLogin: login,
		GitEmail: email,
	}
	if err := tx.WithContext(ctx).Create(gi).Error; err != nil {
		tb.Fatalf("seed git identity: %v", err)
	}
	return gi
}
