package activitypub

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/deemkeen/aprelay/domain"
	"github.com/deemkeen/aprelay/relayerr"
	"github.com/deemkeen/aprelay/store"
)

const (
	handleRelayNS   = "handle-relay"
	handleForwardNS = "handle-forward"
)

// Process dispatches an admitted message to its handler per §4.6's
// Type -> Handler table, after the cross-cutting nodeinfo/actor backfill.
func Process(d Deps, msg Message, senderActor *Actor) {
	backfill(d, msg, senderActor)

	switch msg.Type {
	case "Announce", "Create":
		handleRelay(d, msg)
	case "Delete", "Update":
		handleForward(d, msg)
	case "Follow":
		handleFollow(d, msg, senderActor)
	case "Undo":
		handleUndo(d, msg)
	default:
		log.Printf("activitypub: no handler for activity type %q", msg.Type)
	}
}

// backfill fills in Instance.Software/Actor when either is still unset,
// the pre-step every dispatch performs per §4.6.
func backfill(d Deps, msg Message, senderActor *Actor) {
	host := hostOf(msg.Actor)
	if host == "" {
		return
	}
	inst, err := d.Store.GetInstance(host)
	if err != nil {
		return
	}
	if inst.Software != "" && inst.Actor != "" {
		return
	}

	changed := false
	if inst.Actor == "" && msg.Actor != "" {
		inst.Actor = msg.Actor
		changed = true
	}
	if inst.Software == "" {
		if ni, err := FetchNodeinfo(d, host); err == nil {
			inst.Software = ni.Software.Name
			changed = true
		}
	}
	if changed {
		_ = d.Store.PutInstance(*inst)
	}
}

// handleRelay dedups by object.id and fans out a fresh Announce wrapping
// the object id to every distilled inbox.
func handleRelay(d Deps, msg Message) {
	key := msg.ObjectID()
	if key == "" {
		log.Printf("activitypub: relay message %s has no object id, dropping", msg.ID)
		return
	}

	if _, err := d.Cache.Get(handleRelayNS, key); err == nil {
		log.Printf("activitypub: duplicate relay of %s, skipping", key)
		return
	}

	payload, err := newAnnounce(d.Host, key)
	if err != nil {
		log.Printf("activitypub: build announce for %s: %v", key, err)
		return
	}

	_ = d.Cache.Set(domain.CacheItem{
		Namespace: handleRelayNS, Key: key, Value: "1", ValueType: "bool", UpdatedAt: time.Now(),
	})

	fanOut(d, hostOf(msg.Actor), msg.ObjectHost(), payload)
}

// handleForward dedups by the message's own id and wraps the *entire*
// inbound message as the Announce's object.
func handleForward(d Deps, msg Message) {
	if msg.ID == "" {
		log.Printf("activitypub: forward message has no id, dropping")
		return
	}

	if _, err := d.Cache.Get(handleForwardNS, msg.ID); err == nil {
		log.Printf("activitypub: duplicate forward of %s, skipping", msg.ID)
		return
	}

	payload, err := newAnnounce(d.Host, msg)
	if err != nil {
		log.Printf("activitypub: build forward announce for %s: %v", msg.ID, err)
		return
	}

	_ = d.Cache.Set(domain.CacheItem{
		Namespace: handleForwardNS, Key: msg.ID, Value: "1", ValueType: "bool", UpdatedAt: time.Now(),
	})

	fanOut(d, hostOf(msg.Actor), msg.ObjectHost(), payload)
}

func fanOut(d Deps, senderDomain, objectDomain string, payload []byte) {
	instances, err := d.Store.DistillInboxes(senderDomain, objectDomain)
	if err != nil {
		log.Printf("activitypub: distill inboxes: %v", err)
		return
	}
	for _, inst := range instances {
		enqueue(d, inst, payload)
	}
}

func enqueue(d Deps, inst domain.Instance, payload []byte) {
	if d.Queue == nil {
		return
	}
	select {
	case d.Queue <- QueueItem{Instance: inst, Payload: payload}:
	default:
		log.Printf("activitypub: push queue full, dropping delivery to %s", inst.Domain)
	}
}

// handleFollow implements §4.6's acceptance decision tree.
func handleFollow(d Deps, msg Message, senderActor *Actor) {
	senderDomain := hostOf(msg.Actor)
	if senderDomain == "" {
		return
	}

	ni, niErr := FetchNodeinfo(d, senderDomain)
	software := ""
	if niErr == nil {
		software = ni.Software.Name
	}

	if software != "" {
		if _, err := d.Store.GetSoftwareBan(software); err == nil {
			rejectFollow(d, msg, senderActor, software)
			return
		}
	}

	if !isRelayActor(senderActor, senderDomain, software) {
		rejectFollow(d, msg, senderActor, software)
		return
	}

	approvalRequired, _ := configBool(d, store.ConfigApprovalRequired, true)
	whitelistEnabled, _ := configBool(d, store.ConfigWhitelistEnabled, false)

	_, whitelisted := d.Store.GetDomainWhitelist(senderDomain)
	inWhitelist := whitelisted == nil

	switch {
	case inWhitelist:
		acceptFollow(d, msg, senderDomain, software)
	case approvalRequired:
		_ = d.Store.PutInstance(domain.Instance{
			Domain: senderDomain, Actor: msg.Actor, Inbox: inboxOf(senderActor, msg.Actor),
			FollowID: msg.ID, Software: software, Accepted: false,
		})
	case whitelistEnabled:
		rejectFollow(d, msg, senderActor, software)
	default:
		acceptFollow(d, msg, senderDomain, software)
	}
}

// isRelayActor allows type=Application, plus the akkoma/pleroma exception
// for a canonical https://{domain}/relay actor URL.
func isRelayActor(actor *Actor, domain string, software string) bool {
	if actor == nil {
		return false
	}
	if actor.Type == "Application" {
		return true
	}
	switch strings.ToLower(software) {
	case "akkoma", "pleroma":
		return actor.ID == fmt.Sprintf("https://%s/relay", domain)
	}
	return false
}

func inboxOf(actor *Actor, fallback string) string {
	if actor != nil {
		if shared := actor.SharedOrInbox(); shared != "" {
			return shared
		}
	}
	return fallback
}

func acceptFollow(d Deps, msg Message, senderDomain, software string) {
	actor, _ := GetActor(d, msg.Actor, false)
	inbox := msg.Actor
	if actor != nil {
		inbox = actor.SharedOrInbox()
	}

	_ = d.Store.PutInstance(domain.Instance{
		Domain: senderDomain, Actor: msg.Actor, Inbox: inbox,
		FollowID: msg.ID, Software: software, Accepted: true,
	})

	if payload, err := newResponse(d.Host, "Accept", msg.Actor, msg.ID); err == nil {
		enqueue(d, domain.Instance{Domain: senderDomain, Inbox: inbox, Software: software}, payload)
	}

	if !strings.EqualFold(software, "mastodon") {
		if payload, err := newFollow(d.Host, msg.Actor); err == nil {
			enqueue(d, domain.Instance{Domain: senderDomain, Inbox: inbox, Software: software}, payload)
		}
	}
}

func rejectFollow(d Deps, msg Message, senderActor *Actor, software string) {
	senderDomain := hostOf(msg.Actor)
	inbox := inboxOf(senderActor, msg.Actor)

	payload, err := newResponse(d.Host, "Reject", msg.Actor, msg.ID)
	if err != nil {
		return
	}
	enqueue(d, domain.Instance{Domain: senderDomain, Inbox: inbox, Software: software}, payload)
}

func configBool(d Deps, key string, fallback bool) (bool, error) {
	value, _, err := d.Store.GetConfig(key)
	if err != nil {
		if relayerr.KindOf(err) == relayerr.NotFound {
			return fallback, nil
		}
		return fallback, err
	}
	return value == "true" || value == "1", nil
}

// handleUndo ignores anything but Undo{Follow}, and ignores a superseded
// unfollow whose object.id doesn't match the stored followid.
func handleUndo(d Deps, msg Message) {
	if msg.ObjectType() != "Follow" {
		return
	}

	senderDomain := hostOf(msg.Actor)
	if senderDomain == "" {
		return
	}
	inst, err := d.Store.GetInstance(senderDomain)
	if err != nil {
		return
	}
	if inst.FollowID != "" && inst.FollowID != msg.ObjectID() {
		return
	}

	if err := d.Store.DeleteInstance(senderDomain); err != nil {
		log.Printf("activitypub: delete instance %s on undo: %v", senderDomain, err)
		return
	}

	if payload, err := newUndo(d.Host, msg.Object); err == nil {
		enqueue(d, domain.Instance{Domain: senderDomain, Inbox: inst.Inbox, Software: inst.Software}, payload)
	}
}

// RespondToRequest sends an Accept or Reject for a follow request straight
// away rather than through the push queue, the way original_source's
// `relay request accept`/`deny` CLI commands post synchronously so the
// admin sees the delivery result immediately. Callers must fetch inst
// before calling store.Store.PutRequestResponse, since a reject deletes
// the instance row.
func RespondToRequest(d Deps, inst domain.Instance, accept bool) error {
	activityType := "Reject"
	if accept {
		activityType = "Accept"
	}
	payload, err := newResponse(d.Host, activityType, inst.Actor, inst.FollowID)
	if err != nil {
		return err
	}
	if err := Post(d, inst.Inbox, payload, inst); err != nil {
		return err
	}
	if accept && !strings.EqualFold(inst.Software, "mastodon") {
		followPayload, err := newFollow(d.Host, inst.Actor)
		if err != nil {
			return err
		}
		return Post(d, inst.Inbox, followPayload, inst)
	}
	return nil
}
