package automod

import "warden/internal/storage"

type Category string

const (
	CategorySpam       Category = "spam"
	CategoryInvites    Category = "invites"
	CategoryPhishing   Category = "phishing"
	CategoryAltAccount Category = "alt_account"
)

type Rule string

const (
	RuleRate       Rule = "rate"
	RuleMention    Rule = "mention"
	RuleDuplicate  Rule = "duplicate"
	RuleInvite     Rule = "invite"
	RuleDomain     Rule = "domain"
	RuleAccountAge Rule = "account_age"
)

// Trigger is one rule firing against one message or join event.
type Trigger struct {
	Category Category
	Rule     Rule
	Reason   string
	Actions  storage.ActionSet

	// PurgeRecent asks enforcement to also sweep the author's recent
	// messages from the channel, not just the triggering one.
	PurgeRecent bool
}
