package gmail

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/lu-zhengda/mailrules/internal/domain"
	"github.com/lu-zhengda/mailrules/internal/provider"
	"github.com/lu-zhengda/mailrules/internal/store"
)

const (
	userID    = "me"
	batchSize = 100
)

// Provider implements provider.Source and provider.Mutator for Gmail.
type Provider struct {
	tokenStore store.TokenStore
	account    string
	label      string
	logger     *zap.Logger

	mu       sync.Mutex
	service  *gmailapi.Service
	labelIDs map[string]string // lower-cased name -> id
}

// Option configures a Provider.
type Option func(*Provider)

// WithLabel sets the label FetchMessages reads from. The default is INBOX.
func WithLabel(label string) Option {
	return func(p *Provider) {
		if label != "" {
			p.label = label
		}
	}
}

// WithLogger sets the provider logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) { p.logger = l.Named("gmail") }
}

// WithService uses an already configured Gmail service instead of loading a
// token from the token store.
func WithService(srv *gmailapi.Service) Option {
	return func(p *Provider) { p.service = srv }
}

// New creates a new Gmail provider for the given keyring account.
func New(account string, tokenStore store.TokenStore, opts ...Option) *Provider {
	p := &Provider{
		account:    account,
		tokenStore: tokenStore,
		label:      domain.LabelInbox,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Authenticate runs the OAuth2 flow, saves the token, and initializes the
// Gmail service. prompt receives the consent URL.
func (p *Provider) Authenticate(ctx context.Context, prompt Prompt) error {
	if err := EnsureCredentials(); err != nil {
		return err
	}
	token, err := authenticate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("failed to authenticate gmail: %w", err)
	}

	if err := p.tokenStore.SaveToken(p.account, token); err != nil {
		return fmt.Errorf("failed to save gmail token: %w", err)
	}

	srv, err := gmailapi.NewService(ctx, option.WithTokenSource(oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		return fmt.Errorf("failed to create gmail service: %w", err)
	}
	p.mu.Lock()
	p.service = srv
	p.mu.Unlock()
	return nil
}

// ensureService lazily loads the token from the keyring and creates the
// Gmail service.
func (p *Provider) ensureService(ctx context.Context) (*gmailapi.Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.service != nil {
		return p.service, nil
	}

	token, err := p.tokenStore.LoadToken(p.account)
	if err != nil {
		return nil, fmt.Errorf("failed to load gmail token: %w", err)
	}
	srv, err := gmailapi.NewService(ctx, option.WithTokenSource(oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	p.service = srv
	return srv, nil
}

// FetchMessages pages through the configured label until max messages have
// been read.
func (p *Provider) FetchMessages(ctx context.Context, max int) ([]domain.Email, error) {
	srv, err := p.ensureService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure gmail service: %w", err)
	}

	var emails []domain.Email
	pageToken := ""
	for len(emails) < max {
		call := srv.Users.Messages.List(userID).
			LabelIds(p.label).
			MaxResults(int64(min(batchSize, max-len(emails))))
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list gmail messages: %w", err)
		}

		for _, m := range resp.Messages {
			msg, err := srv.Users.Messages.Get(userID, m.Id).Format("full").Context(ctx).Do()
			if err != nil {
				return nil, fmt.Errorf("failed to get gmail message %s: %w", m.Id, err)
			}
			emails = append(emails, *mapMessage(msg))
			if len(emails) == max {
				break
			}
		}

		p.logger.Debug("fetched page", zap.Int("messages", len(resp.Messages)), zap.Int("total", len(emails)))
		if resp.NextPageToken == "" || len(resp.Messages) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	return emails, nil
}

// modifyLabels adds and removes labels on a message.
func (p *Provider) modifyLabels(ctx context.Context, msgID string, add, remove []string) error {
	srv, err := p.ensureService(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure gmail service: %w", err)
	}

	req := &gmailapi.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}
	if _, err := srv.Users.Messages.Modify(userID, msgID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to modify labels on message %s: %w", msgID, err)
	}
	return nil
}

// MarkRead removes the UNREAD label.
func (p *Provider) MarkRead(ctx context.Context, msgID string) error {
	return p.modifyLabels(ctx, msgID, nil, []string{domain.LabelUnread})
}

// MarkUnread adds the UNREAD label.
func (p *Provider) MarkUnread(ctx context.Context, msgID string) error {
	return p.modifyLabels(ctx, msgID, []string{domain.LabelUnread}, nil)
}

// MoveMessage moves a message to destination.
func (p *Provider) MoveMessage(ctx context.Context, msgID, destination string) (string, error) {
	srv, err := p.ensureService(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to ensure gmail service: %w", err)
	}
	labelID, err := p.resolveLabel(ctx, destination)
	if err != nil {
		return "", err
	}

	msg, err := srv.Users.Messages.Get(userID, msgID).Format("minimal").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get gmail message %s: %w", msgID, err)
	}

	var remove []string
	for _, l := range msg.LabelIds {
		if l == labelID {
			continue
		}
		if domain.IsLocationLabel(l) || isUserLabel(l) {
			remove = append(remove, l)
		}
	}
	if err := p.modifyLabels(ctx, msgID, []string{labelID}, remove); err != nil {
		return "", err
	}
	p.logger.Debug("moved message",
		zap.String("email_id", msgID),
		zap.String("destination", destination),
		zap.Strings("removed", remove),
	)
	return labelID, nil
}

// AddLabel adds destination to a message.
func (p *Provider) AddLabel(ctx context.Context, msgID, destination string) (string, error) {
	labelID, err := p.resolveLabel(ctx, destination)
	if err != nil {
		return "", err
	}
	if err := p.modifyLabels(ctx, msgID, []string{labelID}, nil); err != nil {
		return "", err
	}
	return labelID, nil
}

// resolveLabel returns the id of the label named name, creating a user label
// when none exists. System folder names map to their fixed ids.
func (p *Provider) resolveLabel(ctx context.Context, name string) (string, error) {
	name = domain.NormalizeDestination(name)
	if domain.IsLocationLabel(name) {
		return name, nil
	}

	srv, err := p.ensureService(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to ensure gmail service: %w", err)
	}

	key := strings.ToLower(name)
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.labelIDs == nil {
		labels, err := listLabels(ctx, srv)
		if err != nil {
			return "", err
		}
		p.labelIDs = make(map[string]string, len(labels))
		for _, l := range labels {
			p.labelIDs[strings.ToLower(l.Name)] = l.ID
		}
	}
	if id, ok := p.labelIDs[key]; ok {
		return id, nil
	}

	created, err := srv.Users.Labels.Create(userID, &gmailapi.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create gmail label %q: %w", name, err)
	}
	p.labelIDs[key] = created.Id
	p.logger.Info("created label", zap.String("name", name), zap.String("id", created.Id))
	return created.Id, nil
}

// ListLabels returns every label of the mailbox.
func (p *Provider) ListLabels(ctx context.Context) ([]domain.Label, error) {
	srv, err := p.ensureService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure gmail service: %w", err)
	}
	return listLabels(ctx, srv)
}

func listLabels(ctx context.Context, srv *gmailapi.Service) ([]domain.Label, error) {
	resp, err := srv.Users.Labels.List(userID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list gmail labels: %w", err)
	}
	labels := make([]domain.Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labelType := domain.LabelTypeUser
		if l.Type == "system" {
			labelType = domain.LabelTypeSystem
		}
		labels = append(labels, domain.Label{ID: l.Id, Name: l.Name, Type: labelType})
	}
	return labels, nil
}

// isUserLabel reports whether id names a label created by the user.
func isUserLabel(id string) bool {
	return strings.HasPrefix(id, "Label_")
}

// Compile-time interface compliance check.
var _ provider.Provider = (*Provider)(nil)
