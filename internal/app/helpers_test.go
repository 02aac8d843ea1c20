package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"teamchat/api/internal/config"
	"teamchat/api/internal/session"
	"teamchat/api/internal/store"
	"teamchat/api/internal/util"
)

type fakeBlobs struct {
	mu   sync.Mutex
	puts int
}

func (f *fakeBlobs) PutBlob(_ context.Context, content io.Reader, _ int64, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, content); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	return fmt.Sprintf("blb_%04x", f.puts), nil
}

func (f *fakeBlobs) ResolveURL(_ context.Context, handle string) (string, error) {
	if handle == "blb_broken" {
		return "", errors.New("object store offline")
	}
	return "https://blobs.test/" + handle, nil
}

func (f *fakeBlobs) UploadURL(context.Context) (string, string, error) {
	return "blb_upload", "https://blobs.test/upload/blb_upload", nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mem := newMemStore()
	cfg := config.Config{
		JWTSecret:       "test-secret",
		AccessTTL:       time.Hour,
		RefreshTTL:      24 * time.Hour,
		PageSizeDefault: 20,
		PageSizeMax:     100,
	}
	svc := New(cfg, mem, &fakeBlobs{}, session.NewRedisStoreWithClient(client), log.New(io.Discard))
	return svc, mem
}

func seedUser(t *testing.T, mem *memStore, name string) Caller {
	t.Helper()
	user := store.User{
		ID:    util.NewID("usr"),
		Name:  name,
		Email: strings.ToLower(name) + "@example.com",
		Image: "https://img.test/" + strings.ToLower(name) + ".png",
	}
	if err := mem.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return Caller{UserID: user.ID}
}

// chatFixture is one workspace where alice is the admin, bob a member and
// carol an outsider.
type chatFixture struct {
	svc *Service
	mem *memStore
	ctx context.Context

	alice, bob, carol Caller

	workspaceID string
	generalID   string
	aliceMember store.Member
	bobMember   store.Member
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	svc, mem := newTestService(t)
	f := &chatFixture{svc: svc, mem: mem, ctx: context.Background()}
	f.alice = seedUser(t, mem, "Alice")
	f.bob = seedUser(t, mem, "Bob")
	f.carol = seedUser(t, mem, "Carol")

	workspaceID, err := svc.CreateWorkspace(f.ctx, f.alice, "Acme")
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	f.workspaceID = workspaceID
	workspace, _ := mem.GetWorkspace(f.ctx, workspaceID)
	if _, err := svc.JoinWorkspace(f.ctx, f.bob, workspaceID, workspace.JoinCode); err != nil {
		t.Fatalf("join workspace: %v", err)
	}

	channels, _ := mem.ListChannels(f.ctx, workspaceID)
	if len(channels) != 1 {
		t.Fatalf("expected one bootstrap channel, got %d", len(channels))
	}
	f.generalID = channels[0].ID
	f.aliceMember, _ = mem.GetMemberByWorkspaceAndUser(f.ctx, workspaceID, f.alice.UserID)
	f.bobMember, _ = mem.GetMemberByWorkspaceAndUser(f.ctx, workspaceID, f.bob.UserID)
	return f
}

func (f *chatFixture) post(t *testing.T, caller Caller, input CreateMessageInput) string {
	t.Helper()
	if input.WorkspaceID == "" {
		input.WorkspaceID = f.workspaceID
	}
	if input.Body == "" {
		input.Body = `{"ops":[{"insert":"hello\n"}]}`
	}
	id, err := f.svc.CreateMessage(f.ctx, caller, input)
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	return id
}

func (f *chatFixture) dm(t *testing.T) string {
	t.Helper()
	id, err := f.svc.CreateOrGetConversation(f.ctx, f.alice, f.workspaceID, f.bobMember.ID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return id
}

func assertCode(t *testing.T, err error, want *DomainError) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %s, got %v", want.Code, err)
	}
}
