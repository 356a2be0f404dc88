package gcal

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"github.com/perbu/calcat/config"
)

// State is where the Authenticator is in the OAuth handshake.
type State int

const (
	StateNoCredential State = iota
	StateAwaitingCode
	StateValid
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateNoCredential:
		return "no-credential"
	case StateAwaitingCode:
		return "awaiting-code"
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrAuthorizationRequired means the operator has to visit AuthCodeURL and
// hand the resulting code to Exchange.
var ErrAuthorizationRequired = errors.New("authorization required")

// Authenticator owns the OAuth client config and the persisted token.
type Authenticator struct {
	conf   *oauth2.Config
	store  config.TokenStore
	logger *log.Logger
	now    func() time.Time

	mu       sync.Mutex
	token    *oauth2.Token
	oauthKey string // state parameter of the last issued URL
}

// NewAuthenticator parses the client configuration and loads any stored token.
func NewAuthenticator(credBytes []byte, store config.TokenStore, logger *log.Logger) (*Authenticator, error) {
	conf, err := google.ConfigFromJSON(credBytes, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	a := &Authenticator{conf: conf, store: store, logger: logger, now: time.Now}

	tokenBytes, err := store.LoadToken()
	switch {
	case errors.Is(err, config.ErrNoToken):
	case err != nil:
		return nil, fmt.Errorf("loading token: %w", err)
	default:
		var tok oauth2.Token
		if err := json.Unmarshal(tokenBytes, &tok); err != nil {
			return nil, fmt.Errorf("unmarshalling token: %w", err)
		}
		a.token = &tok
	}
	return a, nil
}

// State reports the handshake state at the current time.
func (a *Authenticator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

func (a *Authenticator) stateLocked() State {
	if a.token == nil {
		if a.oauthKey != "" {
			return StateAwaitingCode
		}
		return StateNoCredential
	}
	if a.token.AccessToken == "" {
		return StateExpired
	}
	if !a.token.Expiry.IsZero() && !a.now().Before(a.token.Expiry) {
		return StateExpired
	}
	return StateValid
}

// AuthCodeURL issues a fresh authorization URL and moves to awaiting-code.
func (a *Authenticator) AuthCodeURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.oauthKey = randomString(16)
	return a.conf.AuthCodeURL(a.oauthKey, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades a one-time code for a token. The input may be the bare code
// or the whole redirect URL copied from the browser.
func (a *Authenticator) Exchange(ctx context.Context, input string) error {
	code, state, err := parseCodeInput(input)
	if err != nil {
		return err
	}

	a.mu.Lock()
	expected := a.oauthKey
	a.mu.Unlock()
	if state != "" && state != expected {
		return errors.New("state mismatch: the code belongs to another authorization attempt")
	}
	return a.exchange(ctx, code)
}

func (a *Authenticator) exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) error {
	tok, err := a.conf.Exchange(ctx, code, opts...)
	if err != nil {
		return fmt.Errorf("unable to retrieve token from web: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.oauthKey = ""
	return a.setTokenLocked(tok)
}

// TokenSource returns a token source for API calls. An expired token is
// refreshed silently; when that is impossible the stored token is dropped and
// ErrAuthorizationRequired is returned.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.stateLocked() {
	case StateNoCredential, StateAwaitingCode:
		return nil, ErrAuthorizationRequired
	case StateExpired:
		if a.token.RefreshToken == "" {
			a.token = nil
			return nil, fmt.Errorf("token expired without refresh token: %w", ErrAuthorizationRequired)
		}
		tok, err := a.conf.TokenSource(ctx, a.token).Token()
		if err != nil {
			if !refreshRejected(err) {
				// The refresh token may still be good; try again on the next call.
				return nil, fmt.Errorf("refreshing token: %w", err)
			}
			a.token = nil
			return nil, fmt.Errorf("refreshing token: %w: %w", ErrAuthorizationRequired, err)
		}
		a.logger.Info("refreshed access token", "expiry", tok.Expiry)
		if err := a.setTokenLocked(tok); err != nil {
			return nil, err
		}
	}

	return &persistingSource{
		base: oauth2.ReuseTokenSource(a.token, a.conf.TokenSource(ctx, a.token)),
		auth: a,
		last: a.token.AccessToken,
	}, nil
}

// refreshRejected reports whether the token endpoint refused the refresh token
// itself, e.g. invalid_grant. Network errors and 5xx answers are transient.
func refreshRejected(err error) bool {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return false
	}
	return rerr.Response == nil || rerr.Response.StatusCode < http.StatusInternalServerError
}

func (a *Authenticator) setTokenLocked(tok *oauth2.Token) error {
	if tok.RefreshToken == "" && a.token != nil {
		tok.RefreshToken = a.token.RefreshToken
	}
	tokenBytes, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("json.Marshal token: %w", err)
	}
	if err := a.store.SaveToken(tokenBytes); err != nil {
		return fmt.Errorf("unable to save token: %w", err)
	}
	a.token = tok
	return nil
}

// persistingSource writes every newly minted token back to the store.
type persistingSource struct {
	base oauth2.TokenSource
	auth *Authenticator

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.auth.mu.Lock()
		err := p.auth.setTokenLocked(tok)
		p.auth.mu.Unlock()
		if err != nil {
			p.auth.logger.Warn("could not persist refreshed token", "err", err)
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}

func parseCodeInput(input string) (code, state string, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", "", errors.New("empty authorization code")
	}
	if !strings.Contains(input, "://") {
		return input, "", nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", "", fmt.Errorf("url.Parse: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", "", fmt.Errorf("authorization denied: %s", e)
	}
	code = q.Get("code")
	if code == "" {
		return "", "", errors.New("no code parameter in the pasted URL")
	}
	return code, q.Get("state"), nil
}

// randomString generates a random hex string of the given length.
func randomString(n int) string {
	b := make([]byte, (n+1)/2)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	return hex.EncodeToString(b)[:n]
}
