package signer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainerrors "gridconsent/pkg/domain-errors"
)

const defaultVaultTimeout = 10 * time.Second

// Vault signs digests through the Vault transit engine. The key never leaves
// Vault; this client submits prehashed input and unwraps the returned
// signature.
type Vault struct {
	addr       string
	token      string
	keyName    string
	httpClient *http.Client
}

// VaultOption configures a Vault signer.
type VaultOption func(*Vault)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) VaultOption {
	return func(v *Vault) {
		if hc != nil {
			v.httpClient = hc
		}
	}
}

// WithTimeout bounds each signing call.
func WithTimeout(d time.Duration) VaultOption {
	return func(v *Vault) {
		if d > 0 {
			v.httpClient.Timeout = d
		}
	}
}

// NewVault constructs a transit signer for the named key.
func NewVault(addr, token, keyName string, opts ...VaultOption) *Vault {
	v := &Vault{
		addr:       strings.TrimRight(addr, "/"),
		token:      token,
		keyName:    keyName,
		httpClient: &http.Client{Timeout: defaultVaultTimeout},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type transitSignRequest struct {
	Input         string `json:"input"`
	Prehashed     bool   `json:"prehashed"`
	HashAlgorithm string `json:"hash_algorithm"`
}

type transitSignResponse struct {
	Data struct {
		Signature string `json:"signature"`
	} `json:"data"`
}

// Sign submits the digest to the transit engine and returns the raw signature
// bytes.
func (v *Vault) Sign(ctx context.Context, digest []byte) ([]byte, error) {
	if len(digest) == 0 {
		return nil, domainerrors.New(domainerrors.CodeInternal, "empty digest")
	}

	body, err := json.Marshal(transitSignRequest{
		Input:         base64.StdEncoding.EncodeToString(digest),
		Prehashed:     true,
		HashAlgorithm: "sha2-256",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal transit sign request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/transit/sign/%s", v.addr, v.keyName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build transit sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Vault-Token", v.token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domainerrors.Wrap(err, domainerrors.CodeTimeout, "signer call timed out")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeDependency, "signer unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domainerrors.Newf(domainerrors.CodeDependency, "signer returned status %d", resp.StatusCode)
	}

	var out transitSignResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeDependency, "signer returned an unreadable body")
	}
	return decodeTransitSignature(out.Data.Signature)
}

// decodeTransitSignature unwraps the "vault:vN:BASE64" envelope transit uses.
func decodeTransitSignature(s string) ([]byte, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] != "vault" {
		return nil, domainerrors.New(domainerrors.CodeDependency, "signer returned a malformed signature envelope")
	}
	sig, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeDependency, "signer returned undecodable signature bytes")
	}
	if len(sig) == 0 {
		return nil, domainerrors.New(domainerrors.CodeDependency, "signer returned an empty signature")
	}
	return sig, nil
}
