package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cmgrayb/libdyson-rest/account"
)

// fakeBackend is an in-memory stand-in for the vendor API. It issues a fresh
// challenge ID per begin-login call and accepts only the matching
// challenge/OTP pair on verify.
type fakeBackend struct {
	mu sync.Mutex

	otpCode    string
	token      string
	accountID  string
	apiVersion string

	issued           []string // challenge IDs, in issue order
	lastVerifyID     string   // challengeId received on the last verify call
	beginCalls       int
	manifest         string
	iotPayload       string
	pendingPayload   string
	rejectIdentifier bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		otpCode:    "123456",
		token:      "VALID-TOKEN-1",
		accountID:  "9f4c6f8a-0000-4000-8000-000000000001",
		apiVersion: "5.0.21061",
		manifest: `[{"serialNumber":"XW1-EU-ABC1234A","name":"Living Room","version":"21.04.03",
			"localCredentials":"blob","autoUpdate":true,"newVersionAvailable":false,
			"productType":"358","category":"ec","connectionCategory":"wifiOnly"}]`,
		iotPayload: `{"Endpoint":"a1-ats.iot.example.com","IoTCredentials":{
			"ClientId":"12345678-1234-5678-9abc-123456789abc","CustomAuthorizerName":"authorizer",
			"TokenKey":"token","TokenSignature":"sig","TokenValue":"87654321-4321-8765-cba9-987654321abc"}}`,
		pendingPayload: `{"version":"438MPF.00.01.007.0002","pushed":false}`,
	}
}

func (b *fakeBackend) lastIssued() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.issued) == 0 {
		return ""
	}
	return b.issued[len(b.issued)-1]
}

// router mirrors the endpoint families the client consumes. Both the email
// and mobile path families are mounted; tests for regional behavior decide
// which host the server impersonates.
func (b *fakeBackend) router() http.Handler {
	r := chi.NewRouter()

	r.Get("/v1/provisioningservice/application/Android/version", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(b.apiVersion)
	})

	for _, family := range []string{"email", "mobile"} {
		family := family
		r.Route("/v3/userregistration/"+family, func(r chi.Router) {
			r.Post("/userstatus", func(w http.ResponseWriter, r *http.Request) {
				if !b.hasIdentifier(r, family) {
					http.Error(w, "missing identifier", http.StatusBadRequest)
					return
				}
				method := "EMAIL_PWD_2FA"
				if family == "mobile" {
					method = "MOBILE_OTP"
				}
				_ = json.NewEncoder(w).Encode(map[string]string{
					"accountStatus":        "ACTIVE",
					"authenticationMethod": method,
				})
			})
			r.Post("/auth", func(w http.ResponseWriter, r *http.Request) {
				b.mu.Lock()
				b.beginCalls++
				reject := b.rejectIdentifier
				b.mu.Unlock()
				if !b.hasIdentifier(r, family) {
					http.Error(w, "missing identifier", http.StatusBadRequest)
					return
				}
				if reject {
					http.Error(w, "unknown account", http.StatusUnauthorized)
					return
				}
				id := uuid.NewString()
				b.mu.Lock()
				b.issued = append(b.issued, id)
				b.mu.Unlock()
				_ = json.NewEncoder(w).Encode(map[string]string{"challengeId": id})
			})
			r.Post("/verify", func(w http.ResponseWriter, r *http.Request) {
				var req map[string]string
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					http.Error(w, "bad body", http.StatusBadRequest)
					return
				}
				b.mu.Lock()
				b.lastVerifyID = req["challengeId"]
				known := false
				for _, id := range b.issued {
					if id == req["challengeId"] {
						known = true
					}
				}
				b.mu.Unlock()
				if !known || req["otpCode"] != b.otpCode {
					http.Error(w, "wrong challenge or code", http.StatusUnauthorized)
					return
				}
				_ = json.NewEncoder(w).Encode(map[string]string{
					"account":   b.accountID,
					"token":     b.token,
					"tokenType": "Bearer",
				})
			})
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(b.requireBearer)
		r.Get("/v3/manifest", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(b.manifest))
		})
		r.Get("/v3/manifest/{serial}/pendingrelease", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(b.pendingPayload))
		})
		r.Post("/v2/authorize/iot-credentials", func(w http.ResponseWriter, r *http.Request) {
			var req map[string]string
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req["Serial"] == "" {
				http.Error(w, "missing Serial", http.StatusBadRequest)
				return
			}
			w.Write([]byte(b.iotPayload))
		})
	})

	return r
}

func (b *fakeBackend) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+b.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *fakeBackend) hasIdentifier(r *http.Request, family string) bool {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return false
	}
	if family == "mobile" {
		return req["mobile"] != ""
	}
	return req["email"] != ""
}

func newTestClient(t *testing.T, cfg Config) (*Client, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	srv := httptest.NewServer(backend.router())
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return c, backend
}

// countingDoer counts exchanges; used to prove local failures never reach
// the network.
type countingDoer struct {
	calls int
}

func (d *countingDoer) Do(*http.Request) (*http.Response, error) {
	d.calls++
	return nil, errors.New("no network in this test")
}

func TestNewDefaults(t *testing.T) {
	c, err := New(Config{Email: "user@example.com"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if c.country != "US" {
		t.Errorf("default country = %q; want US", c.country)
	}
	if c.baseURL != "https://appapi.cp.dyson.com" {
		t.Errorf("default base URL = %q", c.baseURL)
	}
	if c.culture != "en-US" {
		t.Errorf("default culture = %q; want en-US", c.culture)
	}
	if c.AuthToken() != "" {
		t.Errorf("fresh client has token %q; want empty", c.AuthToken())
	}
}

func TestNewRegionalBaseURL(t *testing.T) {
	c, err := New(Config{Email: "user@example.com", Country: "AU"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if c.baseURL != "https://appapi.cp.dyson.au" {
		t.Errorf("AU base URL = %q", c.baseURL)
	}
}

func TestNewRejectsMobileOutsideCN(t *testing.T) {
	doer := &countingDoer{}
	_, err := New(Config{Mobile: "+8613800000000", Country: "US", HTTPClient: doer})
	var invalid *account.InvalidIdentifierError
	if !errors.As(err, &invalid) {
		t.Fatalf("New error = %v; want *account.InvalidIdentifierError", err)
	}
	if doer.calls != 0 {
		t.Errorf("transport saw %d calls; identifier validation must not touch the network", doer.calls)
	}
}

func TestNewRejectsEmailAndMobileTogether(t *testing.T) {
	_, err := New(Config{Email: "user@example.com", Mobile: "+8613800000000", Country: "CN"})
	if err == nil {
		t.Fatal("New accepted both Email and Mobile")
	}
}

func TestNewRejectsBadKeySizes(t *testing.T) {
	if _, err := New(Config{Email: "u@e.com", LocalCredentialsKey: []byte("short")}); err == nil {
		t.Error("New accepted a 5-byte key")
	}
	if _, err := New(Config{Email: "u@e.com", LocalCredentialsIV: []byte("short")}); err == nil {
		t.Error("New accepted a 5-byte IV")
	}
}

func TestProvision(t *testing.T) {
	c, _ := newTestClient(t, Config{Email: "user@example.com"})

	if c.Provisioned() {
		t.Fatal("client reports provisioned before Provision")
	}
	version, err := c.Provision(context.Background())
	if err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}
	if version != "5.0.21061" {
		t.Errorf("Provision = %q; want 5.0.21061", version)
	}
	if !c.Provisioned() {
		t.Error("client does not report provisioned after Provision")
	}

	// idempotent
	if _, err := c.Provision(context.Background()); err != nil {
		t.Fatalf("second Provision returned error: %v", err)
	}
}

func TestTransportFailureWrapped(t *testing.T) {
	c, err := New(Config{Email: "user@example.com", HTTPClient: &countingDoer{}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = c.Provision(context.Background())
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Provision error = %v; want *TransportError", err)
	}
}

func TestServerErrorSurfacesAsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(Config{Email: "user@example.com", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = c.Provision(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Provision error = %v; want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d; want 500", apiErr.StatusCode)
	}
}
