package activitypub

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

func hostOf(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

const activityStreamsContext = "https://www.w3.org/ns/activitystreams"

// newAnnounce builds the outbound Announce template of spec §6: a fresh id
// under the relay's own host, addressed to its followers collection,
// wrapping object (a bare id string, or an entire nested message for
// handle_forward).
func newAnnounce(host string, object any) ([]byte, error) {
	objectJSON, err := json.Marshal(object)
	if err != nil {
		return nil, fmt.Errorf("activitypub: marshal announce object: %w", err)
	}

	msg := struct {
		Context any             `json:"@context"`
		ID      string          `json:"id"`
		Type    string          `json:"type"`
		To      []string        `json:"to"`
		Actor   string          `json:"actor"`
		Object  json.RawMessage `json:"object"`
	}{
		Context: activityStreamsContext,
		ID:      fmt.Sprintf("https://%s/activities/%s", host, uuid.NewString()),
		Type:    "Announce",
		To:      []string{fmt.Sprintf("https://%s/followers", host)},
		Actor:   fmt.Sprintf("https://%s/actor", host),
		Object:  objectJSON,
	}
	return json.Marshal(msg)
}

// newResponse builds an Accept/Reject/Undo response addressed to a single
// actor, wrapping the referenced object id.
func newResponse(host, activityType, toActor, objectID string) ([]byte, error) {
	msg := struct {
		Context any    `json:"@context"`
		ID      string `json:"id"`
		Type    string `json:"type"`
		Actor   string `json:"actor"`
		To      string `json:"to,omitempty"`
		Object  any    `json:"object"`
	}{
		Context: activityStreamsContext,
		ID:      fmt.Sprintf("https://%s/activities/%s", host, uuid.NewString()),
		Type:    activityType,
		Actor:   fmt.Sprintf("https://%s/actor", host),
		To:      toActor,
		Object:  objectID,
	}
	return json.Marshal(msg)
}

// newFollow builds a relay-originated Follow of a peer actor, used to
// reciprocate non-mastodon Follow acceptance per §4.6 step 5.
func newFollow(host, targetActor string) ([]byte, error) {
	msg := struct {
		Context any    `json:"@context"`
		ID      string `json:"id"`
		Type    string `json:"type"`
		Actor   string `json:"actor"`
		Object  string `json:"object"`
	}{
		Context: activityStreamsContext,
		ID:      fmt.Sprintf("https://%s/activities/%s", host, uuid.NewString()),
		Type:    "Follow",
		Actor:   fmt.Sprintf("https://%s/actor", host),
		Object:  targetActor,
	}
	return json.Marshal(msg)
}

// newUndo wraps a Follow (the relay's own reciprocal follow, or the
// response to an inbound Undo) for the host's own actor.
func newUndo(host string, followMessage json.RawMessage) ([]byte, error) {
	msg := struct {
		Context any             `json:"@context"`
		ID      string          `json:"id"`
		Type    string          `json:"type"`
		Actor   string          `json:"actor"`
		Object  json.RawMessage `json:"object"`
	}{
		Context: activityStreamsContext,
		ID:      fmt.Sprintf("https://%s/activities/%s", host, uuid.NewString()),
		Type:    "Undo",
		Actor:   fmt.Sprintf("https://%s/actor", host),
		Object:  followMessage,
	}
	return json.Marshal(msg)
}
