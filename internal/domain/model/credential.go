package model

import (
	"strings"
	"time"
)

// botTokenPrefix namespaces the credentials holding bot account tokens.
const botTokenPrefix = "bot:"

// Credential is a secret kept in the credential store under a service name.
type Credential struct {
	ID        int64
	Service   string
	Value     string
	UpdatedAt time.Time
}

// BotTokenService returns the service name of the token of a bot account.
func BotTokenService(login string) string {
	return botTokenPrefix + login
}

// BotLogin returns the bot account the credential belongs to. ok is false
// for credentials that are not bot tokens.
func (c Credential) BotLogin() (login string, ok bool) {
	return strings.CutPrefix(c.Service, botTokenPrefix)
}
