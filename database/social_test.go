// ringside/database/social_test.go
package database

import (
	"database/sql"
	"errors"
	"testing"

	"ringside/models"
)

func friendshipRows(t *testing.T, ds *DatabaseService, a, b int64) []models.Friendship {
	t.Helper()
	rows, err := ds.DB.Query(
		"SELECT user_id, friend_id, status FROM friendships WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?) ORDER BY id",
		a, b, b, a)
	if err != nil {
		t.Fatalf("Failed to query friendships: %v", err)
	}
	defer rows.Close()

	var list []models.Friendship
	for rows.Next() {
		var f models.Friendship
		var status string
		if err := rows.Scan(&f.UserID, &f.FriendID, &status); err != nil {
			t.Fatalf("Failed to scan friendship: %v", err)
		}
		f.Status = models.FriendshipStatus(status)
		list = append(list, f)
	}
	return list
}

func TestFriendship_AcceptCreatesMirrorEdge(t *testing.T) {
	ds := setupTestDB(t)
	alice := mustCreateUser(t, ds, "alice", "ali")
	bob := mustCreateUser(t, ds, "bob", "bobby")

	if err := ds.SendFriendRequest(alice, bob); err != nil {
		t.Fatalf("SendFriendRequest failed: %v", err)
	}

	// Only the requester's edge exists while pending.
	edges := friendshipRows(t, ds, alice, bob)
	if len(edges) != 1 || edges[0].Status != models.FriendPending {
		t.Fatalf("Expected one pending edge, got %+v", edges)
	}

	if err := ds.AcceptFriendRequest(bob, alice); err != nil {
		t.Fatalf("AcceptFriendRequest failed: %v", err)
	}

	// Acceptance yields exactly two accepted edges, one per direction.
	edges = friendshipRows(t, ds, alice, bob)
	if len(edges) != 2 {
		t.Fatalf("Expected two edges after acceptance, got %d", len(edges))
	}
	directions := make(map[[2]int64]models.FriendshipStatus)
	for _, e := range edges {
		directions[[2]int64{e.UserID, e.FriendID}] = e.Status
	}
	if directions[[2]int64{alice, bob}] != models.FriendAccepted || directions[[2]int64{bob, alice}] != models.FriendAccepted {
		t.Errorf("Expected accepted edges in both directions, got %+v", directions)
	}

	// Both sides now see each other as friends.
	aliceFriends, err := ds.GetFriends(alice)
	if err != nil {
		t.Fatalf("GetFriends failed: %v", err)
	}
	bobFriends, err := ds.GetFriends(bob)
	if err != nil {
		t.Fatalf("GetFriends failed: %v", err)
	}
	if len(aliceFriends) != 1 || len(bobFriends) != 1 {
		t.Errorf("Expected one friend each, got %d and %d", len(aliceFriends), len(bobFriends))
	}
}

func TestFriendship_DuplicateRequestRejected(t *testing.T) {
	ds := setupTestDB(t)
	alice := mustCreateUser(t, ds, "alice", "ali")
	bob := mustCreateUser(t, ds, "bob", "bobby")

	if err := ds.SendFriendRequest(alice, bob); err != nil {
		t.Fatalf("SendFriendRequest failed: %v", err)
	}

	// Same direction and the reverse direction are both rejected.
	if err := ds.SendFriendRequest(alice, bob); !errors.Is(err, ErrFriendshipExists) {
		t.Errorf("Expected ErrFriendshipExists for a repeat request, got %v", err)
	}
	if err := ds.SendFriendRequest(bob, alice); !errors.Is(err, ErrFriendshipExists) {
		t.Errorf("Expected ErrFriendshipExists for the reverse request, got %v", err)
	}

	// A rejected edge still blocks new requests until it is removed.
	if err := ds.RejectFriendRequest(bob, alice); err != nil {
		t.Fatalf("RejectFriendRequest failed: %v", err)
	}
	if err := ds.SendFriendRequest(alice, bob); !errors.Is(err, ErrFriendshipExists) {
		t.Errorf("Expected ErrFriendshipExists after rejection, got %v", err)
	}
}

func TestFriendship_RemoveDeletesBothEdges(t *testing.T) {
	ds := setupTestDB(t)
	alice := mustCreateUser(t, ds, "alice", "ali")
	bob := mustCreateUser(t, ds, "bob", "bobby")

	if err := ds.SendFriendRequest(alice, bob); err != nil {
		t.Fatalf("SendFriendRequest failed: %v", err)
	}
	if err := ds.AcceptFriendRequest(bob, alice); err != nil {
		t.Fatalf("AcceptFriendRequest failed: %v", err)
	}

	if err := ds.RemoveFriend(alice, bob); err != nil {
		t.Fatalf("RemoveFriend failed: %v", err)
	}
	if edges := friendshipRows(t, ds, alice, bob); len(edges) != 0 {
		t.Errorf("Expected no edges after removal, got %+v", edges)
	}

	// Removal clears the slate entirely; a fresh request is possible again.
	if err := ds.SendFriendRequest(bob, alice); err != nil {
		t.Errorf("Expected a fresh request after removal, got %v", err)
	}
}

func TestFriendship_BlockIsOneDirectional(t *testing.T) {
	ds := setupTestDB(t)
	alice := mustCreateUser(t, ds, "alice", "ali")
	bob := mustCreateUser(t, ds, "bob", "bobby")

	if err := ds.SendFriendRequest(alice, bob); err != nil {
		t.Fatalf("SendFriendRequest failed: %v", err)
	}
	if err := ds.AcceptFriendRequest(bob, alice); err != nil {
		t.Fatalf("AcceptFriendRequest failed: %v", err)
	}

	// Blocking replaces the friendship with a single blocked edge.
	if err := ds.BlockFriend(alice, bob); err != nil {
		t.Fatalf("BlockFriend failed: %v", err)
	}
	edges := friendshipRows(t, ds, alice, bob)
	if len(edges) != 1 || edges[0].Status != models.FriendBlocked || edges[0].UserID != alice {
		t.Fatalf("Expected one blocked edge from the blocker, got %+v", edges)
	}

	// Requests from either side now surface the distinct blocked outcome.
	if err := ds.SendFriendRequest(bob, alice); !errors.Is(err, ErrFriendshipBlocked) {
		t.Errorf("Expected ErrFriendshipBlocked for the blocked user, got %v", err)
	}
	if err := ds.SendFriendRequest(alice, bob); !errors.Is(err, ErrFriendshipBlocked) {
		t.Errorf("Expected ErrFriendshipBlocked for the blocker, got %v", err)
	}

	// Unblocking clears the edge and reopens requests.
	if err := ds.UnblockFriend(alice, bob); err != nil {
		t.Fatalf("UnblockFriend failed: %v", err)
	}
	if err := ds.SendFriendRequest(bob, alice); err != nil {
		t.Errorf("Expected a request after unblock, got %v", err)
	}
}

func TestMessages_SoftDeleteCompaction(t *testing.T) {
	ds := setupTestDB(t)
	alice := mustCreateUser(t, ds, "alice", "ali")
	bob := mustCreateUser(t, ds, "bob", "bobby")

	msgID, err := ds.SendMessage(alice, bob, "hello", "fight night?")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	// One side deleting keeps the row but hides it from that side.
	if err := ds.DeleteMessage(msgID, alice); err != nil {
		t.Fatalf("DeleteMessage (sender) failed: %v", err)
	}
	outbox, err := ds.GetOutbox(alice)
	if err != nil {
		t.Fatalf("GetOutbox failed: %v", err)
	}
	if len(outbox) != 0 {
		t.Errorf("Expected the sender's outbox to be empty, got %d", len(outbox))
	}
	inbox, err := ds.GetInbox(bob)
	if err != nil {
		t.Fatalf("GetInbox failed: %v", err)
	}
	if len(inbox) != 1 {
		t.Fatalf("Expected the receiver to still see the message, got %d", len(inbox))
	}

	// When the second side deletes, the row is physically removed.
	if err := ds.DeleteMessage(msgID, bob); err != nil {
		t.Fatalf("DeleteMessage (receiver) failed: %v", err)
	}
	var n int
	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		t.Fatalf("Count query failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected the message row to be gone, got %d rows", n)
	}
}

func TestMessages_BlockedEdgeStopsDelivery(t *testing.T) {
	ds := setupTestDB(t)
	alice := mustCreateUser(t, ds, "alice", "ali")
	bob := mustCreateUser(t, ds, "bob", "bobby")

	if err := ds.BlockFriend(bob, alice); err != nil {
		t.Fatalf("BlockFriend failed: %v", err)
	}
	if _, err := ds.SendMessage(alice, bob, "hey", "..."); !errors.Is(err, ErrFriendshipBlocked) {
		t.Errorf("Expected ErrFriendshipBlocked, got %v", err)
	}
}

func TestMessages_ReadFlagAndOwnership(t *testing.T) {
	ds := setupTestDB(t)
	alice := mustCreateUser(t, ds, "alice", "ali")
	bob := mustCreateUser(t, ds, "bob", "bobby")
	eve := mustCreateUser(t, ds, "eve", "evey")

	msgID, err := ds.SendMessage(alice, bob, "hello", "fight night?")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	unread, err := ds.GetUnreadCount(bob)
	if err != nil {
		t.Fatalf("GetUnreadCount failed: %v", err)
	}
	if unread != 1 {
		t.Errorf("Expected 1 unread, got %d", unread)
	}

	if err := ds.MarkMessageRead(msgID, bob); err != nil {
		t.Fatalf("MarkMessageRead failed: %v", err)
	}
	unread, err = ds.GetUnreadCount(bob)
	if err != nil {
		t.Fatalf("GetUnreadCount failed: %v", err)
	}
	if unread != 0 {
		t.Errorf("Expected 0 unread after reading, got %d", unread)
	}

	// A third party cannot delete someone else's message.
	if err := ds.DeleteMessage(msgID, eve); !errors.Is(err, ErrMessageNotOwned) {
		t.Errorf("Expected ErrMessageNotOwned, got %v", err)
	}
	if err := ds.DeleteMessage(9999, eve); err != sql.ErrNoRows {
		t.Errorf("Expected sql.ErrNoRows for a missing message, got %v", err)
	}
}
