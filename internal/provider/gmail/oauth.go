package gmail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
)

// No credentials are embedded in the binary. Users must supply their own
// Google Cloud OAuth credentials via one of:
//   - Config file (~/.config/mailrules/config.toml) under [gmail]
//   - Environment variables GMAIL_CLIENT_ID and GMAIL_CLIENT_SECRET

var oauthConfig = &oauth2.Config{
	Scopes: []string{
		gmailapi.GmailModifyScope,
		gmailapi.GmailLabelsScope,
	},
	Endpoint: google.Endpoint,
}

// ErrNoCredentials is returned when no OAuth client has been configured.
var ErrNoCredentials = errors.New("gmail OAuth credentials not configured; set them in ~/.config/mailrules/config.toml under [gmail] or via GMAIL_CLIENT_ID / GMAIL_CLIENT_SECRET env vars")

// SetCredentials sets the OAuth client ID and secret.
func SetCredentials(clientID, clientSecret string) {
	oauthConfig.ClientID = clientID
	oauthConfig.ClientSecret = clientSecret
}

// HasCredentials reports whether OAuth credentials have been configured.
func HasCredentials() bool {
	return oauthConfig.ClientID != "" && oauthConfig.ClientSecret != ""
}

// EnsureCredentials returns ErrNoCredentials unless SetCredentials was
// called with a client ID and secret.
func EnsureCredentials() error {
	if HasCredentials() {
		return nil
	}
	return ErrNoCredentials
}

// Prompt shows the user the consent URL of the OAuth flow.
type Prompt func(url string)

func authenticate(ctx context.Context, prompt Prompt) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	oauthConfig.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d", port)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			select {
			case errCh <- fmt.Errorf("no code in callback: %s", r.URL.Query().Get("error")):
			default:
			}
			fmt.Fprint(w, "Authentication failed. You can close this tab.")
			return
		}
		select {
		case codeCh <- code:
		default:
		}
		fmt.Fprint(w, "Authentication successful! You can close this tab.")
	})

	server := &http.Server{Handler: mux}
	go server.Serve(listener)
	defer server.Shutdown(context.Background())

	prompt(oauthConfig.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	select {
	case code := <-codeCh:
		token, err := oauthConfig.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange auth code: %w", err)
		}
		return token, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
