package notify

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/propital/dane-automation/internal/logger"
)

// fakeTransport records the last message and fails on demand.
type fakeTransport struct {
	sent []Message
	err  error
}

func (f *fakeTransport) Send(msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testNotifier(transport Transport) *Notifier {
	return NewNotifier(NewTemplateStore(), transport, logger.NewWithWriter(os.Stderr))
}

func writeAttachment(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.csv")
	if err := os.WriteFile(path, []byte("a,b\n"), 0o644); err != nil {
		t.Fatalf("write attachment: %v", err)
	}
	return path
}

func TestTemplateStore_Render(t *testing.T) {
	store := NewTemplateStore()
	store.Add("greeting", Template{Subject: "Hi %NAME%", Body: "Total: %TOTAL%, again %TOTAL%"})

	tpl, err := store.Render("greeting", map[string]string{"name": "Ana", "total": "160"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if tpl.Subject != "Hi Ana" {
		t.Errorf("subject = %q", tpl.Subject)
	}
	if tpl.Body != "Total: 160, again 160" {
		t.Errorf("body = %q", tpl.Body)
	}
}

func TestTemplateStore_UnmatchedPlaceholderKept(t *testing.T) {
	store := NewTemplateStore()
	store.Add("partial", Template{Body: "known %KNOWN%, unknown %UNKNOWN%"})

	tpl, err := store.Render("partial", map[string]string{"known": "yes"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(tpl.Body, "%UNKNOWN%") {
		t.Errorf("unmatched placeholder must stay as-is, body = %q", tpl.Body)
	}
}

func TestTemplateStore_NotFound(t *testing.T) {
	_, err := NewTemplateStore().Render("missing", nil)
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestDispatch(t *testing.T) {
	transport := &fakeTransport{}
	n := testNotifier(transport)
	attachment := writeAttachment(t)

	res, err := n.Dispatch(TemplateReport, map[string]string{"total": "160"}, attachment, []string{"a@example.com", "b@example.com"})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !res.Success {
		t.Errorf("result = %+v, want success", res)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("sent %d messages, want a single message for all recipients", len(transport.sent))
	}
	msg := transport.sent[0]
	if len(msg.To) != 2 {
		t.Errorf("To = %v, want both recipients", msg.To)
	}
	if msg.AttachmentPath != attachment {
		t.Errorf("AttachmentPath = %q", msg.AttachmentPath)
	}
	if !strings.Contains(msg.Body, "160") {
		t.Errorf("body missing substituted total: %q", msg.Body)
	}
}

func TestDispatch_TransportFailureIsNotAnError(t *testing.T) {
	n := testNotifier(&fakeTransport{err: errors.New("connection refused")})

	res, err := n.Dispatch(TemplateReport, nil, "", []string{"a@example.com"})
	if err != nil {
		t.Fatalf("transport failure must not surface as error, got %v", err)
	}
	if res.Success {
		t.Error("result should be unsuccessful")
	}
	if !strings.Contains(res.Reason, "connection refused") {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestDispatch_MissingAttachment(t *testing.T) {
	n := testNotifier(&fakeTransport{})

	_, err := n.Dispatch(TemplateReport, nil, filepath.Join(t.TempDir(), "gone.csv"), []string{"a@example.com"})
	if !errors.Is(err, ErrAttachmentMissing) {
		t.Errorf("expected ErrAttachmentMissing, got %v", err)
	}
}

func TestDispatch_UnknownTemplate(t *testing.T) {
	n := testNotifier(&fakeTransport{})

	_, err := n.Dispatch("nope", nil, "", []string{"a@example.com"})
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestDispatch_NoRecipients(t *testing.T) {
	n := testNotifier(&fakeTransport{})

	_, err := n.Dispatch(TemplateReport, nil, "", nil)
	if !errors.Is(err, ErrNoRecipients) {
		t.Errorf("expected ErrNoRecipients, got %v", err)
	}
}
