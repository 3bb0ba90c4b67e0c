// Package domain holds the plain data types persisted and passed between
// the relay's components. None of these types know how they are stored.
package domain

import "time"

// Instance is a federated peer known to the relay, keyed by domain.
// Accepted=false represents a pending follow request awaiting approval.
type Instance struct {
	Domain    string
	Actor     string
	Inbox     string
	FollowID  string
	Software  string
	Accepted  bool
	CreatedAt time.Time
}

// DomainBan excludes an entire domain from relaying and from re-admission.
type DomainBan struct {
	Domain    string
	Reason    string
	Note      string
	CreatedAt time.Time
}

// SoftwareBan excludes every instance reporting a given nodeinfo software
// name, checked at Follow time.
type SoftwareBan struct {
	Name      string
	Reason    string
	Note      string
	CreatedAt time.Time
}

// Whitelist entries bypass approval-required and whitelist-enabled checks.
type Whitelist struct {
	Domain    string
	CreatedAt time.Time
}

// ConfigEntry is one row of the closed configuration key set.
type ConfigEntry struct {
	Key   string
	Value string
	Type  string // str|int|bool
}

// CacheItem is one namespaced key/value cache row.
type CacheItem struct {
	Namespace string
	Key       string
	Value     string
	ValueType string // str|int|bool|json|message
	UpdatedAt time.Time
}

// OlderThan reports whether the item was last written more than d ago.
func (i CacheItem) OlderThan(d time.Duration) bool {
	return time.Since(i.UpdatedAt) > d
}

// PostItem is one queued outbound delivery: a signed activity bound for a
// single peer inbox.
type PostItem struct {
	Inbox    string
	Message  []byte
	Instance Instance
}
