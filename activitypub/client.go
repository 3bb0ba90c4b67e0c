package activitypub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deemkeen/aprelay/domain"
)

const (
	userAgent       = "aprelay/" + "0.1.0"
	requestCacheNS  = "request"
	responseMaxAge  = 48 * time.Hour
	pushSignatureTTL = 5 * time.Minute
)

// Actor is the subset of an ActivityPub actor document the relay needs:
// its public key and, for nodeinfo backfill, its type/inbox.
type Actor struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	PreferredUsername string `json:"preferredUsername"`
	Inbox             string `json:"inbox"`
	Endpoints         struct {
		SharedInbox string `json:"sharedInbox"`
	} `json:"endpoints"`
	PublicKey struct {
		ID           string `json:"id"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

// SharedOrInbox prefers the actor's declared shared inbox, falling back to
// its personal inbox, matching how handle_follow records Instance.Inbox.
func (a Actor) SharedOrInbox() string {
	if a.Endpoints.SharedInbox != "" {
		return a.Endpoints.SharedInbox
	}
	return a.Inbox
}

// WellKnownNodeinfo is the discovery document at /.well-known/nodeinfo.
type WellKnownNodeinfo struct {
	Links []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

// Nodeinfo is the subset of the nodeinfo 2.x document the relay reads.
type Nodeinfo struct {
	Software struct {
		Name string `json:"name"`
	} `json:"software"`
}

// Get performs a signed or anonymous GET, consulting and populating the
// "request" cache namespace per §4.3. Returns (nil, nil) on any non-success
// outcome rather than an error, matching the "callers must handle absence"
// contract.
func Get(d Deps, url string, sign bool, force bool) ([]byte, error) {
	url = stripFragment(url)

	if !force {
		if item, err := d.Cache.Get(requestCacheNS, url); err == nil && !item.OlderThan(responseMaxAge) {
			return []byte(item.Value), nil
		}
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, nil
	}
	req.Header.Set("Accept", "application/activity+json, application/json;q=0.9")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	if sign {
		key, err := ParsePrivateKey(d.PrivateKey)
		if err != nil {
			return nil, nil
		}
		if err := SignRequest(req, key, d.KeyID); err != nil {
			return nil, nil
		}
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, nil
	}

	_ = d.Cache.Set(domain.CacheItem{
		Namespace: requestCacheNS,
		Key:       url,
		Value:     string(body),
		ValueType: "str",
		UpdatedAt: time.Now(),
	})
	return body, nil
}

func stripFragment(url string) string {
	if i := strings.IndexByte(url, '#'); i >= 0 {
		return url[:i]
	}
	return url
}

// GetActor fetches and parses an actor document, signed, bypassing cache
// force semantics are left to the caller (the inbox handler's signature
// check always forces a fresh fetch; the processor's acceptFollow does not).
func GetActor(d Deps, url string, force bool) (*Actor, error) {
	body, err := Get(d, url, true, force)
	if err != nil || body == nil {
		return nil, fmt.Errorf("activitypub: actor fetch failed for %s", url)
	}
	var actor Actor
	if err := json.Unmarshal(body, &actor); err != nil {
		return nil, fmt.Errorf("activitypub: actor parse failed for %s: %w", url, err)
	}
	return &actor, nil
}

// Post signs and delivers message to inbox, selecting hs2019 or original
// per AlgorithmFor(instance.Software). Every failure, including a non-200/202
// response, is returned as an error; the push worker logs it and moves on.
func Post(d Deps, inboxURL string, message []byte, instance domain.Instance) error {
	req, err := http.NewRequest(http.MethodPost, inboxURL, bytes.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Digest", Digest(message))

	key, err := ParsePrivateKey(d.PrivateKey)
	if err != nil {
		return err
	}

	if AlgorithmFor(instance.Software) == "hs2019" {
		if err := SignRequestHS2019(req, key, d.KeyID, pushSignatureTTL); err != nil {
			return err
		}
	} else {
		req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
		if err := SignRequest(req, key, d.KeyID); err != nil {
			return err
		}
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("activitypub: post to %s returned %d", inboxURL, resp.StatusCode)
	}
	return nil
}

// FetchNodeinfo performs the two-hop nodeinfo discovery of §4.3, preferring
// schema 2.1 over 2.0 when both are advertised.
func FetchNodeinfo(d Deps, host string) (*Nodeinfo, error) {
	wellKnownBody, err := Get(d, "https://"+host+"/.well-known/nodeinfo", false, false)
	if err != nil || wellKnownBody == nil {
		return nil, fmt.Errorf("activitypub: nodeinfo discovery failed for %s", host)
	}

	var wk WellKnownNodeinfo
	if err := json.Unmarshal(wellKnownBody, &wk); err != nil {
		return nil, fmt.Errorf("activitypub: nodeinfo discovery parse failed for %s: %w", host, err)
	}

	var href string
	for _, l := range wk.Links {
		switch l.Rel {
		case "http://nodeinfo.diaspora.software/ns/schema/2.0":
			if href == "" {
				href = l.Href
			}
		case "http://nodeinfo.diaspora.software/ns/schema/2.1":
			href = l.Href // 2.1 wins if both present
		}
	}
	if href == "" {
		return nil, fmt.Errorf("activitypub: no usable nodeinfo link for %s", host)
	}

	body, err := Get(d, href, false, false)
	if err != nil || body == nil {
		return nil, fmt.Errorf("activitypub: nodeinfo fetch failed for %s", host)
	}
	var ni Nodeinfo
	if err := json.Unmarshal(body, &ni); err != nil {
		return nil, fmt.Errorf("activitypub: nodeinfo parse failed for %s: %w", host, err)
	}
	return &ni, nil
}
