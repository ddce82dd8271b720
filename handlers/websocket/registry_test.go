package websocket

import (
	"fmt"
	"sync"
	"testing"
)

func TestFirstJoinerBecomesAdmin(t *testing.T) {
	reg := NewRegistry()

	res := reg.Join("sock-a", "room-1")
	if !res.Editable {
		t.Error("First joiner should be editable")
	}
	if res.Content != DefaultContent {
		t.Errorf("Expected default content %q, got %q", DefaultContent, res.Content)
	}
	if res.Count != 1 {
		t.Errorf("Expected member count 1, got %d", res.Count)
	}
	if len(res.Others) != 0 {
		t.Errorf("Expected no other members, got %v", res.Others)
	}

	admin, ok := reg.Admin("room-1")
	if !ok || admin != "sock-a" {
		t.Errorf("Expected admin sock-a, got %q (ok=%v)", admin, ok)
	}
}

func TestSecondJoinerIsReadOnly(t *testing.T) {
	reg := NewRegistry()
	reg.Join("sock-a", "room-1")

	res := reg.Join("sock-b", "room-1")
	if res.Editable {
		t.Error("Second joiner should be read-only")
	}
	if res.Count != 2 {
		t.Errorf("Expected member count 2, got %d", res.Count)
	}
	if len(res.Others) != 1 || res.Others[0] != "sock-a" {
		t.Errorf("Expected existing member sock-a to be notified, got %v", res.Others)
	}
}

func TestNonAdminEditIgnored(t *testing.T) {
	reg := NewRegistry()
	reg.Join("sock-a", "room-1")
	reg.Join("sock-b", "room-1")

	res := reg.Edit("sock-b", "room-1", "stolen content")
	if res.Accepted {
		t.Error("Edit from non-admin should be dropped")
	}
	if len(res.Recipients) != 0 {
		t.Errorf("Dropped edit should have no recipients, got %v", res.Recipients)
	}

	content, _ := reg.Content("room-1")
	if content != DefaultContent {
		t.Errorf("Content should be unchanged, got %q", content)
	}
}

func TestAdminEditPropagates(t *testing.T) {
	reg := NewRegistry()
	reg.Join("sock-a", "room-1")
	reg.Join("sock-b", "room-1")
	reg.Join("sock-c", "room-1")

	res := reg.Edit("sock-a", "room-1", "updated code")
	if !res.Accepted {
		t.Fatal("Edit from admin should be accepted")
	}
	if len(res.Recipients) != 2 {
		t.Fatalf("Expected 2 recipients, got %d", len(res.Recipients))
	}
	for _, r := range res.Recipients {
		if r == "sock-a" {
			t.Error("Sender must never be a recipient of its own edit")
		}
	}

	content, _ := reg.Content("room-1")
	if content != "updated code" {
		t.Errorf("Expected stored content %q, got %q", "updated code", content)
	}
}

func TestEditInvalidInputs(t *testing.T) {
	reg := NewRegistry()
	reg.Join("sock-a", "room-1")

	if res := reg.Edit("sock-a", "no-such-room", "x"); res.Accepted {
		t.Error("Edit to nonexistent room should be ignored")
	}
	if res := reg.Edit("sock-a", "room-1", ""); res.Accepted {
		t.Error("Edit with empty content should be ignored")
	}
}

func TestAdminHandoffOnDisconnect(t *testing.T) {
	reg := NewRegistry()
	reg.Join("sock-a", "room-1")
	reg.Join("sock-b", "room-1")
	reg.Join("sock-c", "room-1")

	deps := reg.Disconnect("sock-a")
	if len(deps) != 1 {
		t.Fatalf("Expected 1 departure, got %d", len(deps))
	}
	dep := deps[0]
	if dep.RoomID != "room-1" {
		t.Errorf("Expected departure from room-1, got %s", dep.RoomID)
	}
	if dep.Count != 2 {
		t.Errorf("Expected remaining count 2, got %d", dep.Count)
	}
	if dep.Deleted {
		t.Error("Room with remaining members must not be deleted")
	}
	if dep.NewAdmin != "sock-b" && dep.NewAdmin != "sock-c" {
		t.Errorf("Expected one of the remaining members to be promoted, got %q", dep.NewAdmin)
	}

	admin, ok := reg.Admin("room-1")
	if !ok || admin != dep.NewAdmin {
		t.Errorf("Registry admin %q does not match promoted member %q", admin, dep.NewAdmin)
	}
}

func TestNonAdminDisconnectKeepsAdmin(t *testing.T) {
	reg := NewRegistry()
	reg.Join("sock-a", "room-1")
	reg.Join("sock-b", "room-1")

	deps := reg.Disconnect("sock-b")
	if len(deps) != 1 {
		t.Fatalf("Expected 1 departure, got %d", len(deps))
	}
	if deps[0].NewAdmin != "" {
		t.Errorf("Admin should be unchanged, got promotion of %q", deps[0].NewAdmin)
	}

	admin, _ := reg.Admin("room-1")
	if admin != "sock-a" {
		t.Errorf("Expected admin sock-a, got %q", admin)
	}
}

func TestOrphanCleanup(t *testing.T) {
	reg := NewRegistry()
	reg.Join("sock-a", "room-1")
	reg.Join("sock-b", "room-1")
	reg.Edit("sock-a", "room-1", "session content")

	reg.Disconnect("sock-a")
	deps := reg.Disconnect("sock-b")
	if len(deps) != 1 || !deps[0].Deleted {
		t.Fatalf("Expected room deletion on last departure, got %+v", deps)
	}

	if _, ok := reg.Content("room-1"); ok {
		t.Error("Empty room must not persist in the registry")
	}

	// A later join with the same id is a fresh room, not a rejoin.
	res := reg.Join("sock-c", "room-1")
	if !res.Editable {
		t.Error("Joiner of a recreated room should be admin")
	}
	if res.Content != DefaultContent {
		t.Errorf("Recreated room should have default content, got %q", res.Content)
	}
}

func TestDisconnectUnknownSocket(t *testing.T) {
	reg := NewRegistry()
	reg.Join("sock-a", "room-1")

	if deps := reg.Disconnect("stranger"); len(deps) != 0 {
		t.Errorf("Expected no departures for unknown socket, got %+v", deps)
	}
}

func TestSingleAdminInvariant(t *testing.T) {
	reg := NewRegistry()

	// Interleave joins and disconnects across two rooms and verify that
	// after every step each live room's admin is one of its members.
	type step struct {
		join bool
		id   SocketID
		room string
	}
	steps := []step{
		{true, "s1", "r1"}, {true, "s2", "r1"}, {true, "s3", "r2"},
		{true, "s4", "r1"}, {false, "s1", ""}, {true, "s5", "r2"},
		{false, "s3", ""}, {false, "s2", ""}, {true, "s6", "r1"},
		{false, "s4", ""}, {false, "s5", ""},
	}

	for i, st := range steps {
		if st.join {
			reg.Join(st.id, st.room)
		} else {
			reg.Disconnect(st.id)
		}
		for roomID, count := range reg.ActiveRooms() {
			admin, ok := reg.Admin(roomID)
			if !ok {
				t.Fatalf("step %d: room %s listed as active but has no state", i, roomID)
			}
			if admin == "" {
				t.Errorf("step %d: room %s has no admin with %d members", i, roomID, count)
			}
		}
	}
}

func TestSyncPushScoping(t *testing.T) {
	reg := NewRegistry()
	reg.Join("sock-a", "room-1")
	res := reg.Join("sock-b", "room-1")
	if len(res.Others) != 1 {
		t.Fatalf("Expected one announced member, got %v", res.Others)
	}

	if reg.AllowSync("stranger", "sock-b") {
		t.Error("Socket outside the room must not be allowed to sync push")
	}
	if reg.AllowSync("sock-b", "sock-b") {
		t.Error("A socket must not sync push to itself")
	}
	if reg.AllowSync("sock-a", "sock-c") {
		t.Error("Push to a never-announced target must be dropped")
	}
	if !reg.AllowSync("sock-a", "sock-b") {
		t.Error("Announced member should be allowed to sync the joiner")
	}
	if reg.AllowSync("sock-a", "sock-b") {
		t.Error("A sync grant must be consumed by the first push")
	}
}

func TestFirstJoinerNeedsNoSync(t *testing.T) {
	reg := NewRegistry()
	reg.Join("sock-a", "room-1")
	reg.Join("sock-b", "room-1")

	// sock-a was alone when it joined; nobody holds a grant for it.
	if reg.AllowSync("sock-b", "sock-a") {
		t.Error("First joiner was never announced and must not be a sync target")
	}
}

func TestEndToEndSession(t *testing.T) {
	reg := NewRegistry()

	x := reg.Join("sock-x", "r1")
	if x.Content != DefaultContent || !x.Editable {
		t.Fatalf("X join: got content %q editable %v", x.Content, x.Editable)
	}

	y := reg.Join("sock-y", "r1")
	if y.Content != DefaultContent || y.Editable {
		t.Fatalf("Y join: got content %q editable %v", y.Content, y.Editable)
	}

	edit := reg.Edit("sock-x", "r1", "hello")
	if !edit.Accepted || len(edit.Recipients) != 1 || edit.Recipients[0] != "sock-y" {
		t.Fatalf("X edit: got %+v", edit)
	}
	if content, _ := reg.Content("r1"); content != "hello" {
		t.Errorf("Expected stored content hello, got %q", content)
	}

	if res := reg.Edit("sock-y", "r1", "bye"); res.Accepted {
		t.Error("Y edit should be ignored")
	}
	if content, _ := reg.Content("r1"); content != "hello" {
		t.Errorf("Content after rejected edit should remain hello, got %q", content)
	}
}

func TestConcurrentJoinDisconnect(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := SocketID(fmt.Sprintf("sock-%d", i))
			roomID := fmt.Sprintf("room-%d", i%5)
			reg.Join(id, roomID)
			reg.Edit(id, roomID, fmt.Sprintf("content-%d", i))
			reg.Disconnect(id)
		}(i)
	}
	wg.Wait()

	if rooms := reg.ActiveRooms(); len(rooms) != 0 {
		t.Errorf("Expected all rooms cleaned up, got %v", rooms)
	}
}
