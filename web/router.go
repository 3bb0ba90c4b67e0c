package web

import (
	"log"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/deemkeen/aprelay/activitypub"
	"github.com/deemkeen/aprelay/config"
	"github.com/deemkeen/aprelay/relayerr"
	"github.com/deemkeen/aprelay/store"
	"github.com/deemkeen/aprelay/util"
)

const maxInboxBytes = 1 << 20

// Router wires the relay's public surface: the shared inbox, the actor
// document, followers/following/outbox, webfinger and nodeinfo.
func Router(cfg *config.Config, deps activitypub.Deps, publicKeyPEM string) *gin.Engine {
	gin.DefaultWriter = util.GetLogWriter()
	gin.DefaultErrorWriter = util.GetLogWriter()

	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	globalLimiter := NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	g.Use(RateLimitMiddleware(globalLimiter))

	host := cfg.Host

	actorHandler := func(c *gin.Context) {
		c.Data(http.StatusOK, "application/activity+json", []byte(
			GetActorDocument(host, publicKeyPEM, cfg.Name, cfg.Note)))
	}
	g.GET("/actor", actorHandler)
	g.GET("/inbox", actorHandler)

	inboxLimiter := NewRateLimiter(rate.Limit(cfg.RateLimitRPS/2), cfg.RateLimitBurst/2)
	inboxGroup := g.Group("/")
	inboxGroup.Use(MaxBytesMiddleware(maxInboxBytes), RateLimitMiddleware(inboxLimiter))
	inboxGroup.POST("/inbox", activitypub.HandleInbox(deps))
	inboxGroup.POST("/actor", activitypub.HandleInbox(deps))

	g.GET("/outbox", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/activity+json", []byte(GetOutbox(host)))
	})

	g.GET("/followers", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/activity+json", []byte(
			GetCollection(host, "followers", acceptedActorURIs(deps.Store))))
	})
	g.GET("/following", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/activity+json", []byte(
			GetCollection(host, "following", acceptedActorURIs(deps.Store))))
	})

	g.GET("/.well-known/webfinger", func(c *gin.Context) {
		resource := c.Query("resource")
		if body, ok := GetWebfinger(host, resource); ok {
			c.Data(http.StatusOK, "application/jrd+json", []byte(body))
			return
		}
		c.Data(http.StatusNotFound, "application/jrd+json", []byte(GetWebFingerNotFound(resource)))
	})

	g.GET("/.well-known/nodeinfo", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(GetWellKnownNodeInfo(host)))
	})
	g.GET("/nodeinfo/:version", func(c *gin.Context) {
		version := c.Param("version")
		if version != "2.0" && version != "2.1" {
			c.JSON(http.StatusNotFound, gin.H{"error": "unsupported nodeinfo version"})
			return
		}
		peers, whitelistEnabled := nodeinfoCounts(deps.Store)
		c.Data(http.StatusOK, "application/json", []byte(
			GetNodeInfo(version, peers, whitelistEnabled, util.GetVersion())))
	})

	return g
}

func acceptedActorURIs(s store.Store) []string {
	instances, err := s.ListAcceptedInstances()
	if err != nil {
		log.Printf("web: list accepted instances: %v", err)
		return nil
	}
	uris := make([]string, 0, len(instances))
	for _, in := range instances {
		uris = append(uris, in.Actor)
	}
	return uris
}

func nodeinfoCounts(s store.Store) (int, bool) {
	whitelistEnabled := false
	if value, _, err := s.GetConfig(store.ConfigWhitelistEnabled); err == nil {
		whitelistEnabled = value == "true"
	} else if relayerr.KindOf(err) != relayerr.NotFound {
		log.Printf("web: read whitelist-enabled: %v", err)
	}
	peers, err := s.ListAcceptedInstances()
	if err != nil {
		log.Printf("web: list accepted instances: %v", err)
		return 0, whitelistEnabled
	}
	return len(peers), whitelistEnabled
}
