package identity

import (
	"context"
	"fmt"
	"strings"

	identityrepo "github.com/teampulse/teampulse-backend/internal/data/repos/identity"
	types "github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
)

// Keyspace names one of the independent external-identity namespaces.
type Keyspace string

const (
	KeyspaceGitEmail Keyspace = "git_email"
	KeyspaceGitLogin Keyspace = "git_login"
	KeyspaceOrgEmail Keyspace = "org_email"
	KeyspaceOrgName  Keyspace = "org_name"
)

// Snapshot is an immutable view of the identity tables, built once per batch
// run before connector fan-out starts. A reload returns a new snapshot; the
// maps are never mutated after Load returns.
type Snapshot struct {
	gitEmail map[string]int64
	gitLogin map[string]int64
	orgEmail map[string]int64
	orgName  map[string]int64

	users   []*types.User
	teams   []*types.Team
	members map[string][]int64
}

// Load builds a snapshot from the authoritative tables. Any query failure
// fails the load: resolving against a stale or empty cache would silently
// misattribute activity, which is worse than stopping the run.
func Load(ctx context.Context, repo identityrepo.Repo, log *logger.Logger) (*Snapshot, error) {
	users, err := repo.AllUsers(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("identity load users: %w", err)
	}
	teams, err := repo.AllTeams(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("identity load teams: %w", err)
	}
	gitInfos, err := repo.AllGitIdentities(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("identity load git identities: %w", err)
	}
	memberships, err := repo.AllTeamMembers(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("identity load team members: %w", err)
	}

	s := &Snapshot{
		gitEmail: make(map[string]int64, len(gitInfos)),
		gitLogin: make(map[string]int64, len(gitInfos)),
		orgEmail: make(map[string]int64, len(users)),
		orgName:  make(map[string]int64, len(users)),
		members:  make(map[string][]int64, len(teams)),
		users:    users,
		teams:    teams,
	}
	// email keyspaces match case-insensitively
	for _, info := range gitInfos {
		if info.GitEmail != "" {
			s.gitEmail[strings.ToLower(info.GitEmail)] = info.UserID
		}
		if info.GitLogin != "" {
			s.gitLogin[info.GitLogin] = info.UserID
		}
	}
	for _, u := range users {
		if u.Email != "" {
			s.orgEmail[strings.ToLower(u.Email)] = u.ID
		}
		if u.Name != "" {
			s.orgName[u.Name] = u.ID
		}
	}
	// memberships reference users by email; unknown emails are dropped
	for _, m := range memberships {
		if m.Email == "" || m.TeamID == "" {
			continue
		}
		if id := s.orgEmail[strings.ToLower(m.Email)]; id != 0 {
			s.members[m.TeamID] = append(s.members[m.TeamID], id)
		}
	}

	if log != nil {
		log.Info("identity snapshot loaded",
			"users", len(users),
			"teams", len(teams),
			"team_members", len(memberships),
			"git_identities", len(gitInfos),
		)
	}
	return s, nil
}

// Resolve returns the internal user id for key in the given keyspace, or 0
// when the key is unknown.
func (s *Snapshot) Resolve(ks Keyspace, key string) int64 {
	if s == nil || key == "" {
		return 0
	}
	switch ks {
	case KeyspaceGitEmail:
		return s.gitEmail[strings.ToLower(key)]
	case KeyspaceGitLogin:
		return s.gitLogin[key]
	case KeyspaceOrgEmail:
		return s.orgEmail[strings.ToLower(key)]
	case KeyspaceOrgName:
		return s.orgName[key]
	default:
		return 0
	}
}

// ResolveChain tries each (keyspace, key) pair in order and returns the first
// hit. The raw value of the first non-empty key is preserved so a human can
// still see who nominally authored an entry when every keyspace misses.
func (s *Snapshot) ResolveChain(pairs ...Lookup) types.Author {
	raw := ""
	for _, p := range pairs {
		if p.Key == "" {
			continue
		}
		if raw == "" {
			raw = p.Key
		}
		if id := s.Resolve(p.Keyspace, p.Key); id != 0 {
			return types.Author{ID: id, Raw: p.Key}
		}
	}
	return types.Author{ID: 0, Raw: raw}
}

type Lookup struct {
	Keyspace Keyspace
	Key      string
}

// Users returns the known users in load order.
func (s *Snapshot) Users() []*types.User { return s.users }

// Teams returns the known teams in load order.
func (s *Snapshot) Teams() []*types.Team { return s.teams }

// MembersOf returns the resolved user ids belonging to a team.
func (s *Snapshot) MembersOf(teamID string) []int64 {
	if s == nil {
		return nil
	}
	return s.members[teamID]
}
