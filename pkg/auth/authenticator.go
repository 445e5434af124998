package auth

import (
	"log/slog"

	"github.com/samber/lo"
)

// authenticator admits only the listed Telegram users. An empty list admits
// nobody.
type authenticator struct {
	authorizedUserIDs []int64
}

func NewAuthenticator(authorizedUserIDs []int64) *authenticator {
	slog.Info("Telegram authorized user IDs", "userIDs", authorizedUserIDs)

	return &authenticator{
		authorizedUserIDs: authorizedUserIDs,
	}
}

func (a *authenticator) IsAuthorized(userID int64) bool {
	return lo.Contains(a.authorizedUserIDs, userID)
}
