package streaming

import (
	"testing"
	"time"
)

func urlSource(url string) StreamSource {
	return StreamSource{Kind: SourceURL, URL: url}
}

func newHostSession(now time.Time) *StreamSession {
	return CreateRoom("movie night", urlSource("https://example.com/a.mp4"), "host", now)
}

func TestCreateRoomDefaults(t *testing.T) {
	now := time.Now()
	s := newHostSession(now)
	if !s.IsHost() {
		t.Fatal("CreateRoom should produce a host session")
	}
	room := s.Room()
	if room.RoomID == "" || room.RoomID != s.SessionID {
		t.Fatalf("room ID should be set and match the session ID, got %q", room.RoomID)
	}
	if room.Playback.Playing {
		t.Fatal("a fresh room should start paused")
	}
	if room.Playback.Speed != 1.0 {
		t.Fatalf("a fresh room should play at unit speed, got %v", room.Playback.Speed)
	}
}

func TestExpectedPositionWhilePlaying(t *testing.T) {
	now := time.Now()
	s := newHostSession(now)
	s.Play(now)

	later := now.Add(2 * time.Second)
	got := s.ExpectedPosition(later)
	if got < 1.9 || got > 2.1 {
		t.Fatalf("expected position near 2s, got %v", got)
	}
}

func TestExpectedPositionWhilePausedIsFrozen(t *testing.T) {
	now := time.Now()
	s := newHostSession(now)
	s.Play(now)
	s.Pause(now.Add(time.Second))

	later := now.Add(5 * time.Second)
	got := s.ExpectedPosition(later)
	if got < 0.9 || got > 1.1 {
		t.Fatalf("expected frozen position near 1s, got %v", got)
	}
}

func TestSetSpeedPreservesContinuity(t *testing.T) {
	now := time.Now()
	s := newHostSession(now)
	s.Play(now)

	mid := now.Add(time.Second)
	if err := s.SetSpeed(2.0, mid); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}

	later := mid.Add(time.Second)
	got := s.ExpectedPosition(later)
	// 1s at 1x, then 1s at 2x = 3s total.
	if got < 2.9 || got > 3.1 {
		t.Fatalf("expected position near 3s after speed change, got %v", got)
	}
}

func TestSetSpeedRejectsNonPositive(t *testing.T) {
	s := newHostSession(time.Now())
	if err := s.SetSpeed(0, time.Now()); !IsStreamingError(err, ErrCodeInvalidSpeed) {
		t.Fatalf("expected INVALID_PLAYBACK_SPEED, got %v", err)
	}
	if err := s.SetSpeed(-1, time.Now()); !IsStreamingError(err, ErrCodeInvalidSpeed) {
		t.Fatalf("expected INVALID_PLAYBACK_SPEED, got %v", err)
	}
}

func TestChangeSourceHostOnly(t *testing.T) {
	now := time.Now()
	host := newHostSession(now)
	member := JoinRoom(host.Room())

	if err := member.ChangeSource(urlSource("https://example.com/b.mp4"), now); !IsStreamingError(err, ErrCodeNotHost) {
		t.Fatalf("expected NOT_ROOM_HOST, got %v", err)
	}
	if err := host.ChangeSource(urlSource("https://example.com/b.mp4"), now); err != nil {
		t.Fatalf("host change source: %v", err)
	}
}

func TestChangeSourceResetsPlayback(t *testing.T) {
	now := time.Now()
	s := newHostSession(now)
	s.Play(now)
	s.Seek(30, now)

	if err := s.ChangeSource(urlSource("https://example.com/b.mp4"), now.Add(time.Second)); err != nil {
		t.Fatalf("ChangeSource: %v", err)
	}
	if got := s.ExpectedPosition(now.Add(2 * time.Second)); got != 0 {
		t.Fatalf("expected position reset to 0 after source change, got %v", got)
	}
	if s.Room().Source.URL != "https://example.com/b.mp4" {
		t.Fatal("expected the room source to be replaced")
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	now := time.Now()
	s := newHostSession(now)
	ch := s.Subscribe()
	s.Play(now)

	select {
	case ev := <-ch:
		if ev.Kind != EventPlay {
			t.Fatalf("expected EventPlay, got %v", ev.Kind)
		}
	default:
		t.Fatal("expected a broadcast event on play")
	}
}

func TestHandleEventAppliesRemoteState(t *testing.T) {
	now := time.Now()
	s := JoinRoom(newHostSession(now).Room())
	s.HandleEvent(SyncEvent{Kind: EventPlay, Position: 42}, now)

	if got := s.ExpectedPosition(now); got != 42 {
		t.Fatalf("expected position 42s immediately after HandleEvent, got %v", got)
	}
	if !s.PlaybackState().Playing {
		t.Fatal("a Play event should leave the room playing")
	}
}

func TestHandleEventIsIdempotent(t *testing.T) {
	now := time.Now()
	s := JoinRoom(newHostSession(now).Room())
	ev := SyncEvent{Kind: EventSeek, Position: 12.5}
	s.HandleEvent(ev, now)
	first := s.PlaybackState()
	s.HandleEvent(ev, now)
	if s.PlaybackState() != first {
		t.Fatal("re-applying the same event should leave the state unchanged")
	}
}

func TestHandleEventRebroadcastsToSubscribers(t *testing.T) {
	now := time.Now()
	s := JoinRoom(newHostSession(now).Room())
	ch := s.Subscribe()
	s.HandleEvent(SyncEvent{Kind: EventSeek, Position: 5}, now)

	select {
	case ev := <-ch:
		if ev.Kind != EventSeek {
			t.Fatalf("expected the incoming event re-broadcast, got %v", ev.Kind)
		}
	default:
		t.Fatal("expected HandleEvent to re-broadcast to local subscribers")
	}
}

func TestPeerJoinAndLeave(t *testing.T) {
	now := time.Now()
	s := newHostSession(now)
	s.HandleEvent(SyncEvent{Kind: EventPeerJoined, PeerID: "p1"}, now)
	s.HandleEvent(SyncEvent{Kind: EventPeerJoined, PeerID: "p1"}, now) // duplicate join
	s.HandleEvent(SyncEvent{Kind: EventPeerJoined, PeerID: "p2"}, now)

	if peers := s.Room().Peers; len(peers) != 2 {
		t.Fatalf("expected 2 peers after duplicate-tolerant joins, got %v", peers)
	}
	s.HandleEvent(SyncEvent{Kind: EventPeerLeft, PeerID: "p1"}, now)
	if peers := s.Room().Peers; len(peers) != 1 || peers[0] != "p2" {
		t.Fatalf("expected only p2 to remain, got %v", peers)
	}
}

func TestRequestSyncAnsweredByHost(t *testing.T) {
	now := time.Now()
	host := newHostSession(now)
	host.Play(now)
	ch := host.Subscribe()

	host.HandleEvent(SyncEvent{Kind: EventRequestSync}, now)

	var sawStateSync bool
	for drained := false; !drained; {
		select {
		case ev := <-ch:
			if ev.Kind == EventStateSync {
				sawStateSync = true
				if ev.State == nil || !ev.State.Playing {
					t.Fatalf("StateSync should carry the host's playback state, got %+v", ev.State)
				}
			}
		default:
			drained = true
		}
	}
	if !sawStateSync {
		t.Fatal("expected the host to answer RequestSync with a StateSync")
	}
}

func TestRequestSyncIgnoredByMember(t *testing.T) {
	now := time.Now()
	member := JoinRoom(newHostSession(now).Room())
	ch := member.Subscribe()
	member.HandleEvent(SyncEvent{Kind: EventRequestSync}, now)

	for drained := false; !drained; {
		select {
		case ev := <-ch:
			if ev.Kind == EventStateSync {
				t.Fatal("a non-host member must not answer RequestSync")
			}
		default:
			drained = true
		}
	}
}

func TestBroadcastDropsForLaggingSubscriber(t *testing.T) {
	now := time.Now()
	s := newHostSession(now)
	ch := s.Subscribe()

	for i := 0; i < roomChannelCapacity+10; i++ {
		s.Seek(float64(i), now)
	}

	// The lagging subscriber should not have blocked the publisher, and
	// should still be able to drain without deadlock.
	drained := 0
	for {
		select {
		case <-ch:
			drained++
		default:
			if drained == 0 {
				t.Fatal("expected at least one buffered event")
			}
			return
		}
	}
}

func TestErrorCodesAreDescriptive(t *testing.T) {
	codes := []string{ErrCodeBufferUnderrun, ErrCodeNotHost, ErrCodeUnknownSource, ErrCodeInvalidSpeed, ErrCodeBufferTooSmall}
	for _, c := range codes {
		if len(c) < 10 {
			t.Errorf("error code %q is shorter than 10 characters", c)
		}
	}
}
