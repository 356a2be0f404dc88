package gcal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// LoopbackAddr is where AuthorizeLoopback listens for the redirect.
const LoopbackAddr = "127.0.0.1:8066"

// AuthorizeLoopback runs the browser flow with a temporary local HTTP server
// receiving the redirect. announce is called with the URL the operator must
// open. It blocks until a code arrives or ctx is done.
func (a *Authenticator) AuthorizeLoopback(ctx context.Context, addr string, announce func(authURL string)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("net.Listen(%s): %w", addr, err)
	}
	redirectURL := fmt.Sprintf("http://%s/", ln.Addr().String())

	state := randomString(16)
	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "Invalid state", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Missing code", http.StatusBadRequest)
			return
		}
		_, _ = fmt.Fprintln(w, "Received authentication code. You can close this page now.")
		select {
		case codeCh <- code:
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("loopback server", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("HTTP server Shutdown", "err", err)
		}
	}()

	a.mu.Lock()
	a.oauthKey = state
	a.mu.Unlock()

	announce(a.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("redirect_uri", redirectURL),
	))

	select {
	case code := <-codeCh:
		return a.exchange(ctx, code, oauth2.SetAuthURLParam("redirect_uri", redirectURL))
	case <-ctx.Done():
		return fmt.Errorf("waiting for authorization code: %w", ctx.Err())
	}
}
