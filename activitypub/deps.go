package activitypub

import (
	"net/http"
	"time"

	"github.com/deemkeen/aprelay/cache"
	"github.com/deemkeen/aprelay/domain"
	"github.com/deemkeen/aprelay/store"
)

// HTTPClient defines the HTTP client operations this package needs. Requests
// going out through it are already signed by the caller (see client.go);
// this interface only exists so tests can swap in a fake transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPClient is the production HTTPClient.
type DefaultHTTPClient struct {
	client *http.Client
}

func NewDefaultHTTPClient(timeout time.Duration) *DefaultHTTPClient {
	return &DefaultHTTPClient{client: &http.Client{Timeout: timeout}}
}

func (c *DefaultHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req)
}

// Deps bundles the injected dependencies the handlers and functions in this
// package take explicitly, the way gnp-x-stegodon's activitypub package
// threads Database/HTTPClient through its WithDeps variants.
type Deps struct {
	Store      store.Store
	Cache      cache.Cache
	HTTPClient HTTPClient
	PrivateKey string // PEM, used to sign outbound requests
	KeyID      string // https://{host}/actor#main-key
	Host       string
	Queue      chan<- QueueItem
}

// QueueItem is one signed delivery handed to the push worker pool. Instance
// carries Software so the worker can pick hs2019 vs original at send time.
type QueueItem struct {
	Instance domain.Instance
	Payload  []byte
}
