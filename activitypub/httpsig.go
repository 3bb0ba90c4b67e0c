package activitypub

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"code.superseriousbusiness.org/httpsig"
)

// ParsePrivateKey accepts either PKCS#1 ("RSA PRIVATE KEY") or PKCS#8
// ("PRIVATE KEY") PEM, matching both stegodon vintages' key material.
func ParsePrivateKey(pemString string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemString))
	if block == nil {
		return nil, fmt.Errorf("httpsig: failed to decode PEM block containing private key")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("httpsig: parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("httpsig: private key is not RSA")
	}
	return key, nil
}

// ParsePublicKey accepts PKCS#1 ("RSA PUBLIC KEY") or PKIX ("PUBLIC KEY")
// PEM, matching both stegodon vintages' key material.
func ParsePublicKey(pemString string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemString))
	if block == nil {
		return nil, fmt.Errorf("httpsig: failed to decode PEM block containing public key")
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("httpsig: parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("httpsig: public key is not RSA")
	}
	return key, nil
}

// signedHeaders lists, in order, the header names included in the signing
// string. digest is included only when the request has a Digest header.
func signedHeaders(req *http.Request) []string {
	headers := []string{httpsig.RequestTarget, "host", "date"}
	if req.Header.Get("Digest") != "" {
		headers = append(headers, "digest")
	}
	return headers
}

// bodyForSigning re-reads the request body via GetBody, which net/http
// populates automatically for requests built from a *bytes.Reader (see
// client.go's Post), without disturbing the body the request will later
// send. Requests with no body (GETs) have a nil GetBody.
func bodyForSigning(req *http.Request) ([]byte, error) {
	if req.GetBody == nil {
		return nil, nil
	}
	rc, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// SignRequest signs req with the "original" (draft-cavage) RSA-SHA256
// scheme: keyId/algorithm/headers/signature, covering (request-target),
// host, date and digest (when present). Delegates the canonicalization and
// signing to code.superseriousbusiness.org/httpsig, the way klppl-klistr's
// ap/client.go drives the same library family (go-fed/httpsig) for its own
// DeliverActivity.
func SignRequest(req *http.Request, key *rsa.PrivateKey, keyId string) error {
	body, err := bodyForSigning(req)
	if err != nil {
		return fmt.Errorf("httpsig: read body for signing: %w", err)
	}

	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		signedHeaders(req),
		httpsig.Signature,
		0,
	)
	if err != nil {
		return fmt.Errorf("httpsig: create signer: %w", err)
	}
	if err := signer.SignRequest(key, keyId, req, body); err != nil {
		return fmt.Errorf("httpsig: sign: %w", err)
	}
	return nil
}

// SignRequestHS2019 signs req the way hs2019 requires: a "created"
// pseudo-header (now) and "expires" (now+ttl) folded into the signing
// string alongside (request-target), host and digest. The library computes
// both pseudo-headers itself from ttl, so unlike SignRequest this never
// touches (created)/(expires) by hand.
func SignRequestHS2019(req *http.Request, key *rsa.PrivateKey, keyId string, ttl time.Duration) error {
	body, err := bodyForSigning(req)
	if err != nil {
		return fmt.Errorf("httpsig: read body for signing: %w", err)
	}

	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.Algorithm("hs2019")},
		httpsig.DigestSha256,
		[]string{httpsig.RequestTarget, "(created)", "(expires)", "host", "digest"},
		httpsig.Signature,
		int64(ttl.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("httpsig: create hs2019 signer: %w", err)
	}
	if err := signer.SignRequest(key, keyId, req, body); err != nil {
		return fmt.Errorf("httpsig: sign hs2019: %w", err)
	}
	return nil
}

func parseSignatureHeader(value string) map[string]string {
	fields := map[string]string{}
	for _, part := range strings.Split(value, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		fields[strings.TrimSpace(kv[0])] = strings.Trim(kv[1], `"`)
	}
	return fields
}

// VerifyRequest checks the request's Signature header against publicKeyPEM
// and returns the actor URI (keyId with any #fragment stripped). The
// algorithm (rsa-sha256 vs hs2019) is read off the Signature header itself,
// the way AlgorithmFor picks it per-peer at sign time.
func VerifyRequest(req *http.Request, publicKeyPEM string) (string, error) {
	sigHeader := req.Header.Get("Signature")
	if sigHeader == "" {
		return "", fmt.Errorf("httpsig: request has no Signature header")
	}
	fields := parseSignatureHeader(sigHeader)
	if fields["keyId"] == "" {
		return "", fmt.Errorf("httpsig: Signature header missing keyId")
	}

	algo := httpsig.Algorithm(fields["algorithm"])
	if algo == "" {
		algo = httpsig.RSA_SHA256
	}

	verifier, err := httpsig.NewVerifier(req)
	if err != nil {
		return "", fmt.Errorf("httpsig: create verifier: %w", err)
	}

	publicKey, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return "", fmt.Errorf("httpsig: %w", err)
	}

	if err := verifier.Verify(publicKey, algo); err != nil {
		return "", fmt.Errorf("httpsig: signature verification failed: %w", err)
	}

	return strings.SplitN(verifier.KeyId(), "#", 2)[0], nil
}

// Digest computes the outbound Digest header value for a POST body.
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
}
