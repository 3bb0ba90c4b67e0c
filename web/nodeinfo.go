package web

// WellKnownNodeInfo is the discovery document at /.well-known/nodeinfo.
type WellKnownNodeInfo struct {
	Links []NodeInfoLink `json:"links"`
}

type NodeInfoLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// NodeInfo20 is the subset of the 2.0/2.1 schema the relay publishes.
type NodeInfo20 struct {
	Version           string         `json:"version"`
	Software          NodeInfoSoft   `json:"software"`
	Protocols         []string       `json:"protocols"`
	Usage             NodeInfoUsage  `json:"usage"`
	OpenRegistrations bool           `json:"openRegistrations"`
	Metadata          map[string]any `json:"metadata"`
}

type NodeInfoSoft struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type NodeInfoUsage struct {
	Users NodeInfoUsers `json:"users"`
}

type NodeInfoUsers struct {
	Total int `json:"total"`
}

// GetWellKnownNodeInfo points at both schema versions under /nodeinfo.
func GetWellKnownNodeInfo(host string) string {
	base := "https://" + host + "/nodeinfo/"
	return mustJSON(WellKnownNodeInfo{
		Links: []NodeInfoLink{
			{Rel: "http://nodeinfo.diaspora.software/ns/schema/2.0", Href: base + "2.0"},
			{Rel: "http://nodeinfo.diaspora.software/ns/schema/2.1", Href: base + "2.1"},
		},
	})
}

// GetNodeInfo renders the schema document itself: peer count is the number
// of accepted instances, open_regs is the inverse of whitelist-enabled.
func GetNodeInfo(version string, peerCount int, whitelistEnabled bool, appVersion string) string {
	return mustJSON(NodeInfo20{
		Version:           version,
		Software:          NodeInfoSoft{Name: "aprelay", Version: appVersion},
		Protocols:         []string{"activitypub"},
		Usage:             NodeInfoUsage{Users: NodeInfoUsers{Total: peerCount}},
		OpenRegistrations: !whitelistEnabled,
		Metadata:          map[string]any{},
	})
}
