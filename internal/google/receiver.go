package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	// DefaultCallbackPort is the loopback port registered for the installed app.
	DefaultCallbackPort = 8888

	// CallbackPath receives the authorization response.
	CallbackPath = "/Callback"
)

var (
	// ErrStateMismatch is returned when the callback carries an unexpected state value.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrAuthorizationDenied is returned when the consent screen reports an error.
	ErrAuthorizationDenied = errors.New("authorization denied")
)

// CodeReceiver obtains an authorization code for a consent flow. ready is
// called with the redirect URL once the receiver can accept the callback.
type CodeReceiver interface {
	Receive(ctx context.Context, state string, ready func(redirectURL string) error) (string, error)
}

// LocalServerReceiver runs a short-lived HTTP server on the loopback
// interface and captures the redirect from the consent screen.
type LocalServerReceiver struct {
	Host string
	Port int
	Path string
}

// NewLocalServerReceiver returns a receiver for http://localhost:<port>/Callback.
// Port 0 picks a free port.
func NewLocalServerReceiver(port int) *LocalServerReceiver {
	return &LocalServerReceiver{Host: "localhost", Port: port, Path: CallbackPath}
}

type callbackResult struct {
	code string
	err  error
}

// Receive binds the listener, calls ready, and blocks until the callback
// arrives or ctx is done. The server is shut down before returning.
func (r *LocalServerReceiver) Receive(ctx context.Context, state string, ready func(redirectURL string) error) (string, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(r.Host, strconv.Itoa(r.Port)))
	if err != nil {
		return "", fmt.Errorf("failed to listen for oauth callback: %w", err)
	}

	port := ln.Addr().(*net.TCPAddr).Port
	redirectURL := "http://" + net.JoinHostPort(r.Host, strconv.Itoa(port)) + r.Path

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(r.Path, func(w http.ResponseWriter, req *http.Request) {
		res := parseCallback(req, state)
		if res.err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, "Authorization failed, you can close this window.")
		} else {
			fmt.Fprintln(w, "Authorization complete, you can close this window.")
		}

		select {
		case results <- res:
		default:
		}
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		_ = server.Serve(ln)
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := ready(redirectURL); err != nil {
		return "", err
	}

	select {
	case res := <-results:
		return res.code, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("oauth callback not received: %w", ctx.Err())
	}
}

func parseCallback(req *http.Request, state string) callbackResult {
	q := req.URL.Query()
	switch {
	case q.Get("error") != "":
		return callbackResult{err: fmt.Errorf("%w: %s", ErrAuthorizationDenied, q.Get("error"))}
	case q.Get("state") != state:
		return callbackResult{err: ErrStateMismatch}
	case q.Get("code") == "":
		return callbackResult{err: errors.New("oauth callback is missing the authorization code")}
	}
	return callbackResult{code: q.Get("code")}
}
