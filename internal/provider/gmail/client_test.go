package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"testing"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/lu-zhengda/mailrules/internal/domain"
)

func encodeBase64URL(s string) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(s))
}

// fakeGmail serves the subset of the Gmail REST API the provider calls.
type fakeGmail struct {
	mu       sync.Mutex
	messages map[string]*gmailapi.Message
	order    []string
	labels   []*gmailapi.Label
	modifies []modifyCall
	created  int
}

type modifyCall struct {
	id     string
	add    []string
	remove []string
}

func newFakeGmail(t *testing.T) (*fakeGmail, *Provider) {
	t.Helper()
	f := &fakeGmail{
		messages: make(map[string]*gmailapi.Message),
		labels: []*gmailapi.Label{
			{Id: "INBOX", Name: "INBOX", Type: "system"},
			{Id: "Label_1", Name: "Work", Type: "user"},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages", f.list)
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}", f.get)
	mux.HandleFunc("POST /gmail/v1/users/me/messages/{id}/modify", f.modify)
	mux.HandleFunc("GET /gmail/v1/users/me/labels", f.listLabels)
	mux.HandleFunc("POST /gmail/v1/users/me/labels", f.createLabel)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc, err := gmailapi.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	return f, New("test", nil, WithService(svc))
}

func (f *fakeGmail) add(id string, labels ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[id] = &gmailapi.Message{
		Id:       id,
		ThreadId: "t-" + id,
		LabelIds: labels,
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "Subject", Value: "subject " + id},
				{Name: "From", Value: "sender@example.com"},
			},
			Body: &gmailapi.MessagePartBody{Data: encodeBase64URL("body " + id)},
		},
	}
	f.order = append(f.order, id)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (f *fakeGmail) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	max, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
	start, _ := strconv.Atoi(r.URL.Query().Get("pageToken"))
	end := min(start+max, len(f.order))

	resp := &gmailapi.ListMessagesResponse{}
	for _, id := range f.order[start:end] {
		resp.Messages = append(resp.Messages, &gmailapi.Message{Id: id})
	}
	if end < len(f.order) {
		resp.NextPageToken = strconv.Itoa(end)
	}
	writeJSON(w, resp)
}

func (f *fakeGmail) get(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[r.PathValue("id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, msg)
}

func (f *fakeGmail) modify(w http.ResponseWriter, r *http.Request) {
	var req gmailapi.ModifyMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("id")
	msg, ok := f.messages[id]
	if !ok {
		http.NotFound(w, r)
		return
	}
	f.modifies = append(f.modifies, modifyCall{id: id, add: req.AddLabelIds, remove: req.RemoveLabelIds})

	labels := slices.DeleteFunc(slices.Clone(msg.LabelIds), func(l string) bool {
		return slices.Contains(req.RemoveLabelIds, l)
	})
	for _, l := range req.AddLabelIds {
		if !slices.Contains(labels, l) {
			labels = append(labels, l)
		}
	}
	msg.LabelIds = labels
	writeJSON(w, msg)
}

func (f *fakeGmail) listLabels(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, &gmailapi.ListLabelsResponse{Labels: f.labels})
}

func (f *fakeGmail) createLabel(w http.ResponseWriter, r *http.Request) {
	var label gmailapi.Label
	if err := json.NewDecoder(r.Body).Decode(&label); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	label.Id = fmt.Sprintf("Label_new%d", f.created)
	f.labels = append(f.labels, &label)
	writeJSON(w, &label)
}

func (f *fakeGmail) labelsOf(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.messages[id].LabelIds)
}

func TestFetchMessages_Pages(t *testing.T) {
	f, p := newFakeGmail(t)
	for i := 0; i < 250; i++ {
		f.add(fmt.Sprintf("m%03d", i), "INBOX")
	}

	emails, err := p.FetchMessages(context.Background(), 180)
	if err != nil {
		t.Fatalf("FetchMessages() error: %v", err)
	}
	if len(emails) != 180 {
		t.Fatalf("got %d emails, want 180", len(emails))
	}
	if emails[0].ID != "m000" || emails[179].ID != "m179" {
		t.Errorf("emails span %s..%s, want m000..m179", emails[0].ID, emails[179].ID)
	}
	if emails[5].Subject != "subject m005" || emails[5].Body != "body m005" {
		t.Errorf("email mapped as %+v", emails[5])
	}
}

func TestFetchMessages_FewerThanMax(t *testing.T) {
	f, p := newFakeGmail(t)
	f.add("a", "INBOX")
	f.add("b", "INBOX")

	emails, err := p.FetchMessages(context.Background(), 50)
	if err != nil {
		t.Fatalf("FetchMessages() error: %v", err)
	}
	if len(emails) != 2 {
		t.Errorf("got %d emails, want 2", len(emails))
	}
}

func TestMarkReadUnread(t *testing.T) {
	f, p := newFakeGmail(t)
	f.add("m1", "INBOX", "UNREAD")
	ctx := context.Background()

	if err := p.MarkRead(ctx, "m1"); err != nil {
		t.Fatalf("MarkRead() error: %v", err)
	}
	if got := f.labelsOf("m1"); slices.Contains(got, "UNREAD") {
		t.Errorf("labels after MarkRead = %v", got)
	}
	if err := p.MarkUnread(ctx, "m1"); err != nil {
		t.Fatalf("MarkUnread() error: %v", err)
	}
	if got := f.labelsOf("m1"); !slices.Contains(got, "UNREAD") {
		t.Errorf("labels after MarkUnread = %v", got)
	}
}

func TestMoveMessage_ExistingLabel(t *testing.T) {
	f, p := newFakeGmail(t)
	f.add("m1", "INBOX", "UNREAD", "IMPORTANT", "CATEGORY_UPDATES", "Label_9")

	id, err := p.MoveMessage(context.Background(), "m1", "work")
	if err != nil {
		t.Fatalf("MoveMessage() error: %v", err)
	}
	if id != "Label_1" {
		t.Errorf("MoveMessage() = %q, want %q", id, "Label_1")
	}

	got := f.labelsOf("m1")
	slices.Sort(got)
	want := []string{"CATEGORY_UPDATES", "IMPORTANT", "Label_1", "UNREAD"}
	if !slices.Equal(got, want) {
		t.Errorf("labels = %v, want %v", got, want)
	}
}

func TestMoveMessage_CreatesLabelOnce(t *testing.T) {
	f, p := newFakeGmail(t)
	f.add("m1", "INBOX")
	f.add("m2", "INBOX")
	ctx := context.Background()

	id1, err := p.MoveMessage(ctx, "m1", "Receipts")
	if err != nil {
		t.Fatalf("MoveMessage() error: %v", err)
	}
	id2, err := p.MoveMessage(ctx, "m2", "Receipts")
	if err != nil {
		t.Fatalf("MoveMessage() error: %v", err)
	}
	if id1 != id2 {
		t.Errorf("label ids differ: %q vs %q", id1, id2)
	}
	f.mu.Lock()
	created := f.created
	f.mu.Unlock()
	if created != 1 {
		t.Errorf("created %d labels, want 1", created)
	}
}

func TestMoveMessage_SystemDestination(t *testing.T) {
	f, p := newFakeGmail(t)
	f.add("m1", "INBOX", "STARRED", "Label_1")

	id, err := p.MoveMessage(context.Background(), "m1", "trash")
	if err != nil {
		t.Fatalf("MoveMessage() error: %v", err)
	}
	if id != "TRASH" {
		t.Errorf("MoveMessage() = %q, want TRASH", id)
	}
	got := f.labelsOf("m1")
	slices.Sort(got)
	if want := []string{"STARRED", "TRASH"}; !slices.Equal(got, want) {
		t.Errorf("labels = %v, want %v", got, want)
	}
}

func TestAddLabel_KeepsExisting(t *testing.T) {
	f, p := newFakeGmail(t)
	f.add("m1", "Label_1")

	if _, err := p.AddLabel(context.Background(), "m1", "Later"); err != nil {
		t.Fatalf("AddLabel() error: %v", err)
	}
	got := f.labelsOf("m1")
	if !slices.Contains(got, "Label_1") || len(got) != 2 {
		t.Errorf("labels = %v, want Label_1 plus the new label", got)
	}
}

func TestListLabels(t *testing.T) {
	_, p := newFakeGmail(t)
	labels, err := p.ListLabels(context.Background())
	if err != nil {
		t.Fatalf("ListLabels() error: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("got %d labels, want 2", len(labels))
	}
	if labels[0].ID != "INBOX" || labels[0].Type != domain.LabelTypeSystem {
		t.Errorf("labels[0] = %+v, want system INBOX", labels[0])
	}
	if labels[1].Name != "Work" || labels[1].Type != domain.LabelTypeUser {
		t.Errorf("labels[1] = %+v, want user label Work", labels[1])
	}
}
