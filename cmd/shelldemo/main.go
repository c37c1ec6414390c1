// Command shelldemo is a stand-in for a desktop shell (an Electron-style
// app) using the authbridge library. It signs in through the system
// browser: the web app is opened with desktop=true, the relay hands the
// session back as a custom-scheme deep link, and the shell redeems the
// one-shot token it carries. Session state persists on disk so the shell
// stays signed in across restarts.
//
// Usage:
//
//	shelldemo login              open the browser and wait for the deep link
//	shelldemo redeem <url>       process a deep link passed by the OS
//	shelldemo status             show the current session
//	shelldemo whoami             call the backend through the interceptor
//	shelldemo logout             drop the session
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/dottedlabs/authbridge"
	"github.com/dottedlabs/authbridge/client"
	"github.com/dottedlabs/authbridge/stores/fs"
)

type config struct {
	BackendURL     string `env:"BACKEND_URL,default=http://localhost:8080"`
	AnonKey        string `env:"BACKEND_ANON_KEY,default=dev-anon-key"`
	WebAppURL      string `env:"WEBAPP_URL,default=http://localhost:8080"`
	DeepLinkScheme string `env:"DEEP_LINK_SCHEME,default=authbridge-demo://auth"`
	StateDir       string `env:"STATE_DIR"`
}

type shell struct {
	store  *authbridge.Store
	state  *fs.FSStateStore
	logger *slog.Logger
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	var cfg config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		fatal("invalid configuration: %v", err)
	}
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fatal("cannot determine home directory: %v", err)
		}
		cfg.StateDir = filepath.Join(home, ".authbridge-demo")
	}

	state := fs.NewFSStateStore(cfg.StateDir)
	gateway := authbridge.NewRemoteGateway(cfg.BackendURL, cfg.AnonKey)
	if token, err := state.SessionToken(); err == nil && token != "" {
		gateway.RestoreSession(token)
	}

	store := authbridge.NewStore(gateway, state, &authbridge.Config{
		BackendURL:     cfg.BackendURL,
		BackendKey:     cfg.AnonKey,
		DeepLinkScheme: cfg.DeepLinkScheme,
		WebAppAuthURL:  cfg.WebAppURL,
	})

	sh := &shell{store: store, state: state, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
	}

	var err error
	switch args[0] {
	case "login":
		err = sh.login(ctx)
	case "redeem":
		if len(args) < 2 {
			usage()
		}
		err = sh.redeem(ctx, args[1])
	case "status":
		err = sh.status(ctx)
	case "whoami":
		err = sh.whoami(ctx, cfg)
	case "logout":
		err = sh.logout(ctx)
	default:
		usage()
	}
	if err != nil {
		fatal("%v", err)
	}
}

// login opens the system browser on the web app's login page with
// desktop=true, then waits for the deep link to be pasted on stdin. A real
// shell would register the custom scheme with the OS instead of reading the
// link manually.
func (s *shell) login(ctx context.Context) error {
	authURL, err := s.store.ExternalAuthURL("/login", nil)
	if err != nil {
		return err
	}

	fmt.Println("Opening browser:", authURL)
	if err := openBrowser(authURL); err != nil {
		fmt.Println("Could not open a browser; visit the URL manually.")
	}

	fmt.Print("Paste the deep link shown after signing in: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	return s.redeem(ctx, strings.TrimSpace(line))
}

// redeem processes a received deep link and persists the session.
func (s *shell) redeem(ctx context.Context, rawURL string) error {
	if err := s.store.ProcessDeepLink(ctx, rawURL); err != nil {
		return err
	}
	if err := s.state.SaveSessionToken(s.store.BearerToken()); err != nil {
		return fmt.Errorf("session works but could not be persisted: %w", err)
	}
	user := s.store.User()
	fmt.Printf("Signed in as %s (%s)\n", user.DisplayName(), user.Email)
	return nil
}

func (s *shell) status(ctx context.Context) error {
	authed, err := s.store.CheckAuth(ctx)
	if err != nil {
		return err
	}
	if !authed {
		fmt.Println("Not signed in.")
		return nil
	}
	user := s.store.User()
	fmt.Printf("Signed in as %s (%s)\n", user.DisplayName(), user.Email)
	return nil
}

// whoami fetches the user through an HTTP client that attaches the bearer
// token automatically, the way an app's API calls would.
func (s *shell) whoami(ctx context.Context, cfg config) error {
	httpClient := client.NewHTTPClient(s.store)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(cfg.BackendURL, "/")+"/auth/v1/user", nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", cfg.AnonKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend answered %s", resp.Status)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}
	out, _ := json.MarshalIndent(payload, "", "  ")
	fmt.Println(string(out))
	return nil
}

func (s *shell) logout(ctx context.Context) error {
	if err := s.store.SignOut(ctx); err != nil {
		return err
	}
	if err := s.state.ClearSession(); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func openBrowser(target string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	default:
		return exec.Command("xdg-open", target).Start()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: shelldemo login | redeem <url> | status | whoami | logout")
	os.Exit(2)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
