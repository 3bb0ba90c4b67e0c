package activitypub

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deemkeen/aprelay/domain"
)

func newInboxRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/inbox", HandleInbox(d))
	return r
}

func TestHandleInboxMissingSignature(t *testing.T) {
	d, _, _, _ := testDeps(t)
	router := newInboxRouter(d)

	body := []byte(`{"type":"Follow","actor":"https://follower.example/actor"}`)
	req := httptest.NewRequest(http.MethodPost, "/inbox", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/activity+json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a missing Signature header, got %d", rr.Code)
	}
}

func TestHandleInboxInvalidJSON(t *testing.T) {
	d, _, _, _ := testDeps(t)
	router := newInboxRouter(d)

	req := httptest.NewRequest(http.MethodPost, "/inbox", bytes.NewReader([]byte(`{not json`)))
	req.Header.Set("Signature", `keyId="https://follower.example/actor#main-key",algorithm="rsa-sha256",headers="(request-target)",signature="x"`)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", rr.Code)
	}
}

func TestHandleInboxNoActor(t *testing.T) {
	d, _, _, _ := testDeps(t)
	router := newInboxRouter(d)

	body := []byte(`{"type":"Follow"}`)
	req := httptest.NewRequest(http.MethodPost, "/inbox", bytes.NewReader(body))
	req.Header.Set("Signature", `keyId="https://follower.example/actor#main-key",algorithm="rsa-sha256",headers="(request-target)",signature="x"`)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 when actor is empty, got %d", rr.Code)
	}
}

func TestHandleInboxUnknownActorDeleteStillAccepted(t *testing.T) {
	d, _, _, _ := testDeps(t)
	d.HTTPClient = &stubHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusAccepted, Body: http.NoBody}, nil
	}}
	router := newInboxRouter(d)

	body := []byte(`{"type":"Delete","actor":"https://gone.example/actor","object":"https://gone.example/actor"}`)
	req := httptest.NewRequest(http.MethodPost, "/inbox", bytes.NewReader(body))
	req.Header.Set("Signature", `keyId="https://gone.example/actor#main-key",algorithm="rsa-sha256",headers="(request-target)",signature="x"`)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Errorf("expected 202 when a Delete's actor can no longer be fetched, got %d", rr.Code)
	}
}

func TestHandleInboxUnknownActorOtherwiseRejected(t *testing.T) {
	d, _, _, _ := testDeps(t)
	d.HTTPClient = &stubHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusAccepted, Body: http.NoBody}, nil
	}}
	router := newInboxRouter(d)

	body := []byte(`{"type":"Create","actor":"https://gone.example/actor","object":{"id":"https://gone.example/notes/1","type":"Note"}}`)
	req := httptest.NewRequest(http.MethodPost, "/inbox", bytes.NewReader(body))
	req.Header.Set("Signature", `keyId="https://gone.example/actor#main-key",algorithm="rsa-sha256",headers="(request-target)",signature="x"`)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 when a non-Delete actor fetch fails, got %d", rr.Code)
	}
}

func TestHandleInboxFollowFromUnknownSenderIsAdmitted(t *testing.T) {
	priv, pub, err := generateTestKeyPair()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pubPEM, err := publicKeyToPEM(pub)
	if err != nil {
		t.Fatalf("public key pem: %v", err)
	}

	actorDoc, _ := json.Marshal(Actor{
		ID: "https://follower.example/actor", Type: "Application",
		Inbox: "https://follower.example/inbox",
		PublicKey: struct {
			ID           string `json:"id"`
			PublicKeyPem string `json:"publicKeyPem"`
		}{ID: "https://follower.example/actor#main-key", PublicKeyPem: pubPEM},
	})

	d, _, _, _ := testDeps(t)
	d.HTTPClient = &stubHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/actor") {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(actorDoc))}, nil
		}
		return &http.Response{StatusCode: http.StatusAccepted, Body: http.NoBody}, nil
	}}
	router := newInboxRouter(d)

	body := []byte(`{"id":"https://follower.example/follows/1","type":"Follow","actor":"https://follower.example/actor","object":"https://relay.example/actor"}`)
	req := httptest.NewRequest(http.MethodPost, "/inbox", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.Host)
	hash := sha256.Sum256(body)
	req.Header.Set("Digest", "SHA-256="+base64.StdEncoding.EncodeToString(hash[:]))
	if err := SignRequest(req, priv, "https://follower.example/actor#main-key"); err != nil {
		t.Fatalf("sign request: %v", err)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Errorf("expected a Follow from a never-seen sender to be admitted (202), got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleInboxNonFollowFromNonFollowerRejected(t *testing.T) {
	priv, pub, err := generateTestKeyPair()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pubPEM, err := publicKeyToPEM(pub)
	if err != nil {
		t.Fatalf("public key pem: %v", err)
	}

	actorDoc, _ := json.Marshal(Actor{
		ID: "https://stranger.example/actor", Type: "Application",
		Inbox: "https://stranger.example/inbox",
		PublicKey: struct {
			ID           string `json:"id"`
			PublicKeyPem string `json:"publicKeyPem"`
		}{ID: "https://stranger.example/actor#main-key", PublicKeyPem: pubPEM},
	})

	d, _, _, _ := testDeps(t)
	d.HTTPClient = &stubHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/actor") {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(actorDoc))}, nil
		}
		return &http.Response{StatusCode: http.StatusAccepted, Body: http.NoBody}, nil
	}}
	router := newInboxRouter(d)

	body := []byte(`{"id":"https://stranger.example/activities/1","type":"Create","actor":"https://stranger.example/actor","object":{"id":"https://stranger.example/notes/1","type":"Note"}}`)
	req := httptest.NewRequest(http.MethodPost, "/inbox", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.Host)
	hash := sha256.Sum256(body)
	req.Header.Set("Digest", "SHA-256="+base64.StdEncoding.EncodeToString(hash[:]))
	if err := SignRequest(req, priv, "https://stranger.example/actor#main-key"); err != nil {
		t.Fatalf("sign request: %v", err)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a non-Follow from a domain the relay never accepted, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleInboxBannedDomainRejected(t *testing.T) {
	priv, pub, err := generateTestKeyPair()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pubPEM, err := publicKeyToPEM(pub)
	if err != nil {
		t.Fatalf("public key pem: %v", err)
	}

	actorDoc, _ := json.Marshal(Actor{
		ID: "https://banned.example/actor", Type: "Application",
		Inbox: "https://banned.example/inbox",
		PublicKey: struct {
			ID           string `json:"id"`
			PublicKeyPem string `json:"publicKeyPem"`
		}{ID: "https://banned.example/actor#main-key", PublicKeyPem: pubPEM},
	})

	d, store, _, _ := testDeps(t)
	_ = store.PutDomainBan(domain.DomainBan{Domain: "banned.example"})
	d.HTTPClient = &stubHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/actor") {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(actorDoc))}, nil
		}
		return &http.Response{StatusCode: http.StatusAccepted, Body: http.NoBody}, nil
	}}
	router := newInboxRouter(d)

	body := []byte(`{"id":"https://banned.example/follows/1","type":"Follow","actor":"https://banned.example/actor","object":"https://relay.example/actor"}`)
	req := httptest.NewRequest(http.MethodPost, "/inbox", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.Host)
	hash := sha256.Sum256(body)
	req.Header.Set("Digest", "SHA-256="+base64.StdEncoding.EncodeToString(hash[:]))
	if err := SignRequest(req, priv, "https://banned.example/actor#main-key"); err != nil {
		t.Fatalf("sign request: %v", err)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a banned domain, got %d: %s", rr.Code, rr.Body.String())
	}
}
