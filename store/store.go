// Package store is the relay's persistence layer: the instance registry,
// bans, whitelist, runtime configuration and key material. Grounded on
// gnp-x-stegodon's db.GetDB() singleton/transaction idioms, rebuilt against
// the relay's own six-table schema instead of the teacher's social graph.
package store

import (
	"time"

	"github.com/deemkeen/aprelay/domain"
)

// Closed configuration key set. put_config rejects anything else.
const (
	ConfigSchemaVersion     = "schema-version"
	ConfigPrivateKey        = "private-key"
	ConfigApprovalRequired  = "approval-required"
	ConfigWhitelistEnabled  = "whitelist-enabled"
	ConfigLogLevel          = "log-level"
	ConfigName              = "name"
	ConfigNote              = "note"
	ConfigTheme             = "theme"
)

var knownConfigKeys = map[string]string{
	ConfigSchemaVersion:    "int",
	ConfigPrivateKey:       "str",
	ConfigApprovalRequired: "bool",
	ConfigWhitelistEnabled: "bool",
	ConfigLogLevel:         "str",
	ConfigName:             "str",
	ConfigNote:             "str",
	ConfigTheme:            "str",
}

// KnownConfigKeys reports the type ("str"/"int"/"bool") for a given config
// key, and whether it is known at all.
func KnownConfigKeys(key string) (string, bool) {
	t, ok := knownConfigKeys[key]
	return t, ok
}

// Store exposes the transactional operations named in the instance
// registry, bans/whitelist, request queue and configuration. Every method
// here corresponds to one spec'd operation.
type Store interface {
	// GetInstance looks up by domain, actor URL, or inbox URL.
	GetInstance(value string) (*domain.Instance, error)
	// PutInstance upserts; when the row exists, only non-empty fields in in
	// overwrite the stored row.
	PutInstance(in domain.Instance) error
	// DeleteInstance deletes the row for domain. Canonical key is domain
	// (see DESIGN.md); returns relayerr NotFound if no row matched.
	DeleteInstance(domain string) error
	// GetRequests returns instances with Accepted=false.
	GetRequests() ([]domain.Instance, error)
	// PutRequestResponse atomically accepts (Accepted=true) or rejects
	// (deletes the row) a pending request. Returns relayerr NotFound if no
	// pending request exists for domain.
	PutRequestResponse(domain string, accept bool) error

	GetDomainBan(domain string) (*domain.DomainBan, error)
	PutDomainBan(ban domain.DomainBan) error
	UpdateDomainBan(ban domain.DomainBan) error
	DeleteDomainBan(domain string) error
	ListDomainBans() ([]domain.DomainBan, error)

	GetSoftwareBan(name string) (*domain.SoftwareBan, error)
	PutSoftwareBan(ban domain.SoftwareBan) error
	UpdateSoftwareBan(ban domain.SoftwareBan) error
	DeleteSoftwareBan(name string) error
	ListSoftwareBans() ([]domain.SoftwareBan, error)

	GetDomainWhitelist(domain string) (*domain.Whitelist, error)
	PutDomainWhitelist(w domain.Whitelist) error
	DeleteDomainWhitelist(domain string) error
	ListDomainWhitelist() ([]domain.Whitelist, error)

	GetConfig(key string) (string, string, error)
	GetConfigAll() ([]domain.ConfigEntry, error)
	PutConfig(key, value string) error

	// DistillInboxes returns every accepted instance whose domain is
	// neither senderDomain nor objectDomain.
	DistillInboxes(senderDomain, objectDomain string) ([]domain.Instance, error)
	// ListAcceptedInstances returns every instance with Accepted=true, used
	// to render the public followers/following collections and the
	// nodeinfo peer count.
	ListAcceptedInstances() ([]domain.Instance, error)

	Close() error
}

// Clock allows tests to fix "now"; production uses time.Now.
type Clock func() time.Time
