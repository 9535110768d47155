package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

const (
	// ClientSecretsFile is the Google API credentials.json downloaded from the
	// Cloud Console, placed in the config directory.
	ClientSecretsFile = "credentials.json"

	// TokenFile caches the access and refresh tokens in the config directory.
	TokenFile = "token.json"

	// LocalhostAuthPort receives the OAuth redirect.
	LocalhostAuthPort = "6789"

	authTimeout = 5 * time.Minute
)

// Scopes needed to manage events in an existing calendar.
var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// Authenticator runs the installed-app OAuth flow and caches the token in Dir.
type Authenticator struct {
	Dir    string
	Logger *log.Logger
}

func New(dir string, logger *log.Logger) *Authenticator {
	if logger == nil {
		logger = log.Default()
	}
	return &Authenticator{Dir: dir, Logger: logger}
}

func (a *Authenticator) TokenPath() string {
	return filepath.Join(a.Dir, TokenFile)
}

// GetConfig reads the client secrets and points the redirect at LocalhostAuthPort.
func (a *Authenticator) GetConfig() (*oauth2.Config, error) {
	path := filepath.Join(a.Dir, ClientSecretsFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", path, err)
	}

	config, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = a.redirectURL(config.RedirectURL)
	return config, nil
}

func (a *Authenticator) redirectURL(configured string) string {
	fallback := fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
	if configured == "" || configured == "urn:ietf:wg:oauth:2.0:oob" {
		return fallback
	}

	parsed, err := url.Parse(configured)
	if err != nil {
		a.Logger.Printf("Warning: could not parse RedirectURL %q: %v. Using it as is.", configured, err)
		return configured
	}
	host := parsed.Hostname()
	if host != "localhost" && host != "127.0.0.1" {
		a.Logger.Printf("Warning: RedirectURL %q is not a localhost callback. Ensure this is correct for your setup.", configured)
		return configured
	}
	if parsed.Port() != LocalhostAuthPort {
		parsed.Host = net.JoinHostPort(host, LocalhostAuthPort)
	}
	return parsed.String()
}

// Reset removes the cached token so the next client runs the web flow again.
func (a *Authenticator) Reset() error {
	err := os.Remove(a.TokenPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not delete token file %s: %w", a.TokenPath(), err)
	}
	return nil
}

// Client returns an HTTP client that refreshes the cached token, running the
// web authorization flow first if there is no token yet.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	config, err := a.GetConfig()
	if err != nil {
		return nil, err
	}

	tok, err := tokenFromFile(a.TokenPath())
	if err != nil {
		a.Logger.Printf("No existing token found at %s. Initiating web authorization flow...", a.TokenPath())
		tok, err = a.tokenFromWeb(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
	}

	// The token source refreshes an expired access token; persist whatever it
	// hands back so the refresh is not repeated next run.
	src := oauth2.ReuseTokenSource(tok, config.TokenSource(ctx, tok))
	current, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if err := saveToken(a.TokenPath(), current); err != nil {
		a.Logger.Printf("Warning: could not cache token: %v", err)
	}
	return oauth2.NewClient(ctx, src), nil
}

// tokenFromWeb runs the authorization code flow, capturing the redirect on a local server.
// promptAuthorization logs the consent URL the user must open.
func (a *Authenticator) promptAuthorization(config *oauth2.Config) string {
	// AccessTypeOffline is required for a refresh token.
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	a.Logger.Printf("Please open the following URL in your browser to authorize taskfile:\n%s", authURL)
	return authURL
}

func (a *Authenticator) tokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", net.JoinHostPort("localhost", LocalhostAuthPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				select {
				case errCh <- errors.New("authorization code not found in redirect URL"):
				default:
				}
				return
			}
			fmt.Fprintf(w, "Authentication successful! You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case errCh <- fmt.Errorf("HTTP server error: %w", err):
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
		<-done
	}()

	a.promptAuthorization(config)
	a.Logger.Println("Waiting for authorization code...")

	select {
	case code := <-codeCh:
		exchangeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := config.Exchange(exchangeCtx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, errors.New("authorization timed out. Please try again")
	}
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
