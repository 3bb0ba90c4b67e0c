package activitypub

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deemkeen/aprelay/relayerr"
)

const maxInboxBodyBytes = 1 << 20 // 1MB, matches gnp-x-stegodon's inbound body cap

// HandleInbox implements the §4.5 state machine for POST /inbox (and
// /actor, which accepts the same traffic). Admission is synchronous;
// processing is handed off to the worker-backed processor asynchronously.
func HandleInbox(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Signature") == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing signature"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInboxBodyBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}

		var msg Message
		if err := json.Unmarshal(body, &msg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse"})
			return
		}

		if msg.Actor == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no actor"})
			return
		}

		actor, err := GetActor(d, msg.Actor, true)
		if err != nil {
			if msg.Type == "Delete" {
				// LD-Signatures for tombstones aren't implemented; drop silently.
				c.Status(http.StatusAccepted)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "actor fetch failed"})
			return
		}

		// Restore the body so the signing-string reconstruction sees the same
		// headers the caller signed over (Host/Date/Digest read from c.Request).
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		actorURI, err := VerifyInboundSignature(c.Request, body, actor.PublicKey.PublicKeyPem)
		if err != nil || actorURI != msg.Actor {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
			return
		}

		senderDomain := hostOf(msg.Actor)
		if _, err := d.Store.GetDomainBan(senderDomain); err == nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		if msg.Type != "Follow" {
			if _, err := d.Store.GetInstance(senderDomain); err != nil {
				if relayerr.KindOf(err) == relayerr.NotFound {
					c.JSON(http.StatusUnauthorized, gin.H{"error": "not a follower"})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
		}

		c.Status(http.StatusAccepted)
		go Process(d, msg, actor)
	}
}
