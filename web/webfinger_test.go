package web

import (
	"encoding/json"
	"testing"
)

func TestGetWebfingerResolvesRelayAccount(t *testing.T) {
	result, ok := GetWebfinger("relay.example", "acct:relay@relay.example")
	if !ok {
		t.Fatal("expected the relay's own acct resource to resolve")
	}

	var jrd map[string]any
	if err := json.Unmarshal([]byte(result), &jrd); err != nil {
		t.Fatalf("webfinger response is not valid JSON: %v", err)
	}
	if jrd["subject"] != "acct:relay@relay.example" {
		t.Errorf("unexpected subject %v", jrd["subject"])
	}
	links, ok := jrd["links"].([]any)
	if !ok || len(links) != 1 {
		t.Fatalf("expected exactly one link, got %v", jrd["links"])
	}
	link := links[0].(map[string]any)
	if link["href"] != "https://relay.example/actor" {
		t.Errorf("unexpected link href %v", link["href"])
	}
}

func TestGetWebfingerRejectsOtherUsernames(t *testing.T) {
	if _, ok := GetWebfinger("relay.example", "acct:someoneelse@relay.example"); ok {
		t.Error("expected a non-relay username to be rejected")
	}
}

func TestGetWebfingerRejectsWrongHost(t *testing.T) {
	if _, ok := GetWebfinger("relay.example", "acct:relay@other.example"); ok {
		t.Error("expected a resource for a different host to be rejected")
	}
}

func TestGetWebfingerRejectsMalformedResource(t *testing.T) {
	for _, resource := range []string{"", "relay@relay.example", "acct:relay", "acct:@relay.example", "acct:relay@"} {
		if _, ok := GetWebfinger("relay.example", resource); ok {
			t.Errorf("expected resource %q to be rejected as malformed", resource)
		}
	}
}

func TestGetWebfingerRejectsInvalidUsernameCharacters(t *testing.T) {
	if _, ok := GetWebfinger("relay.example", "acct:reläy@relay.example"); ok {
		t.Error("expected a non-WebFinger-safe username to be rejected")
	}
}

func TestGetWebFingerNotFoundBody(t *testing.T) {
	result := GetWebFingerNotFound("acct:ghost@relay.example")

	var jrd map[string]any
	if err := json.Unmarshal([]byte(result), &jrd); err != nil {
		t.Fatalf("404 body is not valid JSON: %v", err)
	}
	if _, ok := jrd["error"]; !ok {
		t.Error("expected an error field in the 404 body")
	}
}
