package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
)

const (
	defaultCallbackPath = "/oauth/callback"
	stateBytes          = 24
)

var launchBrowser = openBrowser

// authorizationCode runs the PKCE (S256) flow: a loopback server waits for
// the redirect while the browser visits the authorization URL.
func (m *Manager) authorizationCode(ctx context.Context, cfg Config) (Token, error) {
	if err := require(
		"client id", cfg.ClientID,
		"auth url", cfg.AuthURL,
		"token url", cfg.TokenURL,
	); err != nil {
		return Token{}, err
	}

	state, err := pickState(cfg.State)
	if err != nil {
		return Token{}, err
	}

	redirect, ln, err := prepareRedirect(cfg.RedirectURL)
	if err != nil {
		return Token{}, err
	}
	defer func() {
		_ = ln.Close()
	}()

	srv := newCodeServer(redirect, state)
	srv.serve(ln)
	defer srv.shutdown(context.Background())

	cfg.RedirectURL = redirect.String()
	oc := oauth2Config(cfg)
	verifier := oauth2.GenerateVerifier()
	link := oc.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	if err := launchBrowser(link); err != nil {
		fmt.Fprintf(os.Stderr, "Open this URL to complete OAuth: %s\n", link)
	}
	m.logger.Info("waiting for oauth authorization", "redirect", cfg.RedirectURL)

	code, err := srv.wait(ctx)
	if err != nil {
		return Token{}, err
	}

	tok, err := oc.Exchange(m.withClient(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Token{}, errdef.Wrap(errdef.CodeNetwork, err, "exchange authorization code")
	}
	return fromOAuth2(tok), nil
}

func pickState(raw string) (string, error) {
	if strings.TrimSpace(raw) != "" {
		return strings.TrimSpace(raw), nil
	}
	return randString(stateBytes)
}

func prepareRedirect(raw string) (*url.URL, net.Listener, error) {
	var (
		host  = "127.0.0.1"
		path  = defaultCallbackPath
		query string
	)

	raw = strings.TrimSpace(raw)
	if raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, nil, errdef.Wrap(errdef.CodeValidation, err, "parse redirect uri")
		}
		if u.Scheme != "" && u.Scheme != "http" {
			return nil, nil, errdef.New(errdef.CodeValidation, "redirect uri must use http")
		}
		if u.Path != "" {
			path = u.Path
		}
		if u.Host != "" {
			host = u.Host
		}
		if u.RawQuery != "" {
			query = u.RawQuery
		}
	}

	h, p := splitHostPort(host)
	if h == "" {
		h = "127.0.0.1"
	}
	if !isLoopback(h) {
		return nil, nil, errdef.New(errdef.CodeValidation, "redirect uri host must be loopback")
	}
	if p == "" {
		p = "0"
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(h, p))
	if err != nil {
		return nil, nil, errdef.Wrap(errdef.CodeNetwork, err, "listen for oauth redirect")
	}

	addr := ln.Addr().(*net.TCPAddr)
	targetHost := net.JoinHostPort(h, strconv.Itoa(addr.Port))
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u := &url.URL{
		Scheme:   "http",
		Host:     targetHost,
		Path:     path,
		RawQuery: query,
	}
	return u, ln, nil
}

func splitHostPort(input string) (string, string) {
	if input == "" {
		return "", ""
	}
	if strings.Contains(input, ":") {
		host, port, err := net.SplitHostPort(input)
		if err == nil {
			return host, port
		}
	}
	return input, ""
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

type codeServer struct {
	path   string
	state  string
	codeCh chan string
	errCh  chan error
	srv    *http.Server
	once   sync.Once
}

func newCodeServer(redirect *url.URL, state string) *codeServer {
	path := redirect.Path
	if path == "" {
		path = defaultCallbackPath
	}
	return &codeServer{
		path:   path,
		state:  state,
		codeCh: make(chan string, 1),
		errCh:  make(chan error, 1),
	}
}

func (s *codeServer) serve(ln net.Listener) {
	handler := http.NewServeMux()
	handler.HandleFunc("/", s.handle)

	s.srv = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.report(err)
		}
	}()
}

func (s *codeServer) report(err error) {
	select {
	case s.errCh <- err:
	default:
	}
}

func (s *codeServer) shutdown(ctx context.Context) {
	s.once.Do(func() {
		if s.srv != nil {
			_ = s.srv.Shutdown(ctx)
		}
	})
}

func (s *codeServer) wait(ctx context.Context) (string, error) {
	defer s.shutdown(context.Background())
	select {
	case code := <-s.codeCh:
		return code, nil
	case err := <-s.errCh:
		if errdef.CodeOf(err) != errdef.CodeUnknown {
			return "", err
		}
		return "", errdef.Wrap(errdef.CodeNetwork, err, "oauth callback server")
	case <-ctx.Done():
		return "", errdef.Wrap(errdef.CodeNetwork, ctx.Err(), "waiting for oauth authorization")
	}
}

func (s *codeServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.path {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	if errText := strings.TrimSpace(q.Get("error")); errText != "" {
		http.Error(w, "authorization failed", http.StatusBadRequest)
		s.report(errdef.New(errdef.CodeValidation, "authorization failed: %s", errText))
		return
	}

	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		s.report(errdef.New(errdef.CodeValidation, "authorization response missing code"))
		return
	}
	if strings.TrimSpace(q.Get("state")) != s.state {
		http.Error(w, "state mismatch", http.StatusBadRequest)
		s.report(errdef.New(errdef.CodeValidation, "state mismatch"))
		return
	}

	select {
	case s.codeCh <- code:
	default:
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(
		"<html><body><h1>Authorization complete</h1><p>You may close this window and return to CommandPost.</p></body></html>",
	))
}

func openBrowser(link string) error {
	cmd := browserCommand(link)
	if cmd == nil {
		return errdef.New(errdef.CodeUnknown, "unsupported platform for browser launch")
	}
	return cmd.Start()
}

func browserCommand(link string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", link)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", link)
	default:
		return exec.Command("xdg-open", link)
	}
}

func randString(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", errdef.Wrap(errdef.CodeUnknown, err, "generate random string")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
