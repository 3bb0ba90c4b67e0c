package web

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GetActorDocument renders the relay's own actor document: the single
// identity this relay federates as, type Application, preferredUsername
// relay, per spec §4.8 / §6.
func GetActorDocument(host, publicKeyPEM, name, note string) string {
	pubKey := strings.ReplaceAll(publicKeyPEM, "\n", "\\n")
	actorURI := getIRI(host, "id")

	return fmt.Sprintf(`{
		"@context": [
			"https://www.w3.org/ns/activitystreams",
			"https://w3id.org/security/v1"
		],
		"id": "%s",
		"type": "Application",
		"preferredUsername": "relay",
		"name": "%s",
		"summary": "%s",
		"inbox": "%s",
		"outbox": "%s",
		"followers": "%s",
		"following": "%s",
		"url": "%s",
		"manuallyApprovesFollowers": true,
		"endpoints": {
			"sharedInbox": "%s"
		},
		"publicKey": {
			"id": "%s#main-key",
			"owner": "%s",
			"publicKeyPem": "%s"
		}
	}`,
		actorURI, jsonEscape(name), jsonEscape(note),
		getIRI(host, "inbox"), getIRI(host, "outbox"),
		getIRI(host, "followers"), getIRI(host, "following"), actorURI,
		getIRI(host, "sharedInbox"), actorURI, actorURI, pubKey)
}

func jsonEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

func getIRI(host, part string) string {
	switch part {
	case "inbox", "sharedInbox":
		return fmt.Sprintf("https://%s/inbox", host)
	case "outbox":
		return fmt.Sprintf("https://%s/outbox", host)
	case "followers":
		return fmt.Sprintf("https://%s/followers", host)
	case "following":
		return fmt.Sprintf("https://%s/following", host)
	default:
		return fmt.Sprintf("https://%s/actor", host)
	}
}

// GetOutbox returns the relay's outbox, always empty per §4.8.
func GetOutbox(host string) string {
	return mustJSON(map[string]any{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           getIRI(host, "outbox"),
		"type":         "OrderedCollection",
		"totalItems":   0,
		"orderedItems": []string{},
	})
}

// GetCollection renders /followers or /following: a plain Collection of
// accepted instances' actor URLs.
func GetCollection(host, which string, actorURIs []string) string {
	return mustJSON(map[string]any{
		"@context":   "https://www.w3.org/ns/activitystreams",
		"id":         getIRI(host, which),
		"type":       "Collection",
		"totalItems": len(actorURIs),
		"items":      actorURIs,
	})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
