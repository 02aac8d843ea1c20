package app

import (
	"errors"
	"testing"

	"teamchat/api/internal/store"
)

func TestListAndGetMembers(t *testing.T) {
	f := newChatFixture(t)

	members, err := f.svc.ListMembers(f.ctx, f.bob, f.workspaceID)
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 2 || members[0].User.Name != "Alice" || members[1].User.Name != "Bob" {
		t.Fatalf("unexpected members %+v", members)
	}
	outsider, _ := f.svc.ListMembers(f.ctx, f.carol, f.workspaceID)
	if outsider == nil || len(outsider) != 0 {
		t.Fatalf("outsider should get an empty list, got %+v", outsider)
	}

	delete(f.mem.users, f.bob.UserID)
	members, _ = f.svc.ListMembers(f.ctx, f.alice, f.workspaceID)
	if len(members) != 1 {
		t.Fatalf("member without a user should be skipped, got %+v", members)
	}
	if view, _ := f.svc.GetMember(f.ctx, f.alice, f.bobMember.ID); view != nil {
		t.Fatalf("member without a user should be nil, got %+v", view)
	}
	if view, _ := f.svc.GetMember(f.ctx, f.carol, f.aliceMember.ID); view != nil {
		t.Fatalf("outsider should not see members, got %+v", view)
	}
}

func TestCurrentMember(t *testing.T) {
	f := newChatFixture(t)

	view, err := f.svc.CurrentMember(f.ctx, f.alice, f.workspaceID)
	if err != nil || view == nil || view.Role != "admin" || view.ID != f.aliceMember.ID {
		t.Fatalf("CurrentMember() = %+v, %v", view, err)
	}
	if view, _ := f.svc.CurrentMember(f.ctx, f.carol, f.workspaceID); view != nil {
		t.Fatalf("outsider has no membership, got %+v", view)
	}
	if view, _ := f.svc.CurrentMember(f.ctx, Caller{}, f.workspaceID); view != nil {
		t.Fatalf("anonymous caller has no membership, got %+v", view)
	}
}

func TestUpdateMemberRole(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.UpdateMemberRole(f.ctx, f.bob, f.aliceMember.ID, "member")
	assertCode(t, err, ErrUnauthorized)
	_, err = f.svc.UpdateMemberRole(f.ctx, f.alice, f.bobMember.ID, "owner")
	assertCode(t, err, ErrValidation)
	_, err = f.svc.UpdateMemberRole(f.ctx, f.alice, "mem_missing", "admin")
	assertCode(t, err, ErrNotFound)
	_, err = f.svc.UpdateMemberRole(f.ctx, f.alice, f.aliceMember.ID, "member")
	assertCode(t, err, ErrLastAdmin)

	if _, err := f.svc.UpdateMemberRole(f.ctx, f.alice, f.bobMember.ID, "admin"); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if _, err := f.svc.UpdateMemberRole(f.ctx, f.alice, f.aliceMember.ID, "member"); err != nil {
		t.Fatalf("demote with another admin present: %v", err)
	}
	alice, _ := f.mem.GetMember(f.ctx, f.aliceMember.ID)
	if alice.Role != "member" {
		t.Fatalf("expected alice demoted, got %q", alice.Role)
	}
}

func TestRemoveMemberCascades(t *testing.T) {
	f := newChatFixture(t)
	workspace, _ := f.mem.GetWorkspace(f.ctx, f.workspaceID)
	if _, err := f.svc.JoinWorkspace(f.ctx, f.carol, f.workspaceID, workspace.JoinCode); err != nil {
		t.Fatalf("JoinWorkspace() error = %v", err)
	}

	aliceParent := f.post(t, f.alice, CreateMessageInput{ChannelID: f.generalID})
	bobReply := f.post(t, f.bob, CreateMessageInput{ParentMessageID: aliceParent})
	bobParent := f.post(t, f.bob, CreateMessageInput{ChannelID: f.generalID})
	f.post(t, f.alice, CreateMessageInput{ParentMessageID: bobParent})
	dm := f.dm(t)
	f.post(t, f.alice, CreateMessageInput{ConversationID: dm})
	for _, toggle := range []struct {
		caller  Caller
		message string
	}{{f.bob, aliceParent}, {f.carol, bobParent}, {f.carol, aliceParent}} {
		if _, err := f.svc.ToggleReaction(f.ctx, toggle.caller, toggle.message, "👍"); err != nil {
			t.Fatalf("ToggleReaction() error = %v", err)
		}
	}

	if _, err := f.svc.RemoveMember(f.ctx, f.alice, f.bobMember.ID); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}

	if _, err := f.mem.GetMember(f.ctx, f.bobMember.ID); !isNoRows(err) {
		t.Fatalf("member should be gone, got %v", err)
	}
	if _, err := f.mem.GetMessage(f.ctx, bobReply); !isNoRows(err) {
		t.Fatalf("bob's reply should be gone, got %v", err)
	}
	if n := f.mem.countMessages(func(store.Message) bool { return true }); n != 1 {
		t.Fatalf("only alice's channel message should survive, got %d messages", n)
	}
	if _, err := f.mem.GetMessage(f.ctx, aliceParent); err != nil {
		t.Fatalf("alice's message should survive: %v", err)
	}
	if len(f.mem.conversations) != 0 {
		t.Fatalf("bob's conversations should be gone, got %d", len(f.mem.conversations))
	}
	// Carol's reaction on alice's message stays; everything touching bob goes.
	if n := f.mem.countReactions(func(store.Reaction) bool { return true }); n != 1 {
		t.Fatalf("expected one surviving reaction, got %d", n)
	}
	if _, err := f.mem.GetUserByID(f.ctx, f.bob.UserID); err != nil {
		t.Fatalf("user record must survive membership removal: %v", err)
	}
}

func TestRemoveMemberPermissions(t *testing.T) {
	f := newChatFixture(t)
	workspace, _ := f.mem.GetWorkspace(f.ctx, f.workspaceID)
	if _, err := f.svc.JoinWorkspace(f.ctx, f.carol, f.workspaceID, workspace.JoinCode); err != nil {
		t.Fatalf("JoinWorkspace() error = %v", err)
	}
	carolMember, _ := f.mem.GetMemberByWorkspaceAndUser(f.ctx, f.workspaceID, f.carol.UserID)

	_, err := f.svc.RemoveMember(f.ctx, f.bob, f.aliceMember.ID)
	assertCode(t, err, ErrAdminNotRemovable)
	_, err = f.svc.RemoveMember(f.ctx, f.alice, f.aliceMember.ID)
	assertCode(t, err, ErrAdminNotRemovable)
	_, err = f.svc.RemoveMember(f.ctx, f.bob, carolMember.ID)
	assertCode(t, err, ErrUnauthorized)
	_, err = f.svc.RemoveMember(f.ctx, f.bob, "mem_missing")
	assertCode(t, err, ErrNotFound)

	if _, err := f.svc.RemoveMember(f.ctx, f.carol, carolMember.ID); err != nil {
		t.Fatalf("member leaving: %v", err)
	}
	if _, err := f.mem.GetMember(f.ctx, carolMember.ID); !isNoRows(err) {
		t.Fatalf("carol should have left, got %v", err)
	}
}

func TestUnauthenticatedCallers(t *testing.T) {
	f := newChatFixture(t)
	anon := Caller{}

	if items, err := f.svc.ListChannels(f.ctx, anon, f.workspaceID); err != nil || len(items) != 0 {
		t.Fatalf("ListChannels() = %+v, %v", items, err)
	}
	if items, err := f.svc.ListMembers(f.ctx, anon, f.workspaceID); err != nil || len(items) != 0 {
		t.Fatalf("ListMembers() = %+v, %v", items, err)
	}
	if page, err := f.svc.ListMessages(f.ctx, anon, MessageQuery{ChannelID: f.generalID}); err != nil || len(page.Page) != 0 {
		t.Fatalf("ListMessages() = %+v, %v", page, err)
	}
	if view, err := f.svc.GetWorkspace(f.ctx, anon, f.workspaceID); err != nil || view != nil {
		t.Fatalf("GetWorkspace() = %+v, %v", view, err)
	}
	if view, err := f.svc.CurrentUser(f.ctx, anon); err != nil || view != nil {
		t.Fatalf("CurrentUser() = %+v, %v", view, err)
	}

	mutations := map[string]func() error{
		"rename workspace": func() error { _, err := f.svc.RenameWorkspace(f.ctx, anon, f.workspaceID, "x"); return err },
		"rotate code":      func() error { _, err := f.svc.RotateJoinCode(f.ctx, anon, f.workspaceID); return err },
		"create channel":   func() error { _, err := f.svc.CreateChannel(f.ctx, anon, f.workspaceID, "x"); return err },
		"remove channel":   func() error { _, err := f.svc.RemoveChannel(f.ctx, anon, f.generalID); return err },
		"update role":      func() error { _, err := f.svc.UpdateMemberRole(f.ctx, anon, f.bobMember.ID, "admin"); return err },
		"remove member":    func() error { _, err := f.svc.RemoveMember(f.ctx, anon, f.bobMember.ID); return err },
		"open dm":          func() error { _, err := f.svc.CreateOrGetConversation(f.ctx, anon, f.workspaceID, f.bobMember.ID); return err },
		"upload url":       func() error { _, err := f.svc.GenerateUploadURL(f.ctx, anon); return err },
	}
	for name, mutate := range mutations {
		if err := mutate(); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}
}
