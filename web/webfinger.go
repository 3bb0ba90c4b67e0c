package web

import (
	"fmt"
	"strings"

	"github.com/deemkeen/aprelay/util"
)

// GetWebfinger resolves "acct:{username}@{host}" to a JRD pointing at
// /actor, but only for the relay's own preferredUsername ("relay"). The
// username is validated with the teacher's WebFinger character-set checker
// before being compared; a resource like "acct:ré@host" fails that check
// and returns the same ("", false) result as a wrong account.
func GetWebfinger(host, resource string) (string, bool) {
	username, resourceHost, ok := parseAcct(resource)
	if !ok {
		return "", false
	}
	if valid, _ := util.IsValidWebFingerUsername(username); !valid {
		return "", false
	}
	if resourceHost != host || username != "relay" {
		return "", false
	}

	actorURI := getIRI(host, "id")
	return mustJSON(map[string]any{
		"subject": fmt.Sprintf("acct:%s@%s", username, host),
		"links": []map[string]string{
			{
				"rel":  "self",
				"type": "application/activity+json",
				"href": actorURI,
			},
		},
	}), true
}

// parseAcct splits an "acct:user@host" resource into its parts.
func parseAcct(resource string) (username, host string, ok bool) {
	rest, ok := strings.CutPrefix(resource, "acct:")
	if !ok {
		return "", "", false
	}
	username, host, found := strings.Cut(rest, "@")
	if !found || username == "" || host == "" {
		return "", "", false
	}
	return username, host, true
}

// GetWebFingerNotFound renders the 404 JRD-error body for an unknown resource.
func GetWebFingerNotFound(resource string) string {
	return mustJSON(map[string]any{"error": fmt.Sprintf("resource %q not found", resource)})
}
