package participants

import (
	"context"
	"strings"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// UnknownName is shown for senders that no longer resolve to a users row.
const UnknownName = "Unknown"

type Participant struct {
	ID       int64   `json:"id" db:"id"`
	FullName string  `json:"full_name" db:"full_name"`
	Avatar   *string `json:"avatar" db:"avatar"`
	Role     Role    `json:"role" db:"role"`
}

func (p Participant) IsAdmin() bool { return p.Role == RoleAdmin }

type Repo interface {
	GetParticipant(ctx context.Context, id int64) (Participant, error)
	GetParticipants(ctx context.Context, ids []int64) (map[int64]Participant, error)
}

// NormalizeAvatar turns a stored avatar reference into a root-relative
// uploads path. Stored values may or may not carry an "uploads/" prefix and
// may use either slash; an empty reference yields defaultPath.
func NormalizeAvatar(avatar *string, defaultPath string) string {
	if avatar == nil {
		return defaultPath
	}

	rest := strings.TrimLeft(strings.TrimSpace(*avatar), `/\`)
	if after, ok := strings.CutPrefix(rest, "uploads"); ok && after != "" && (after[0] == '/' || after[0] == '\\') {
		rest = strings.TrimLeft(after, `/\`)
	}

	if rest == "" {
		return defaultPath
	}

	return "/uploads/" + strings.ReplaceAll(rest, `\`, "/")
}
