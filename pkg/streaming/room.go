package streaming

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// SourceKind discriminates where a stream's bytes come from.
type SourceKind int

const (
	SourceURL SourceKind = iota
	SourceLocalFile
	SourcePeerFile
)

// StreamSource describes the media a room is playing: a URL, a local
// file on the host, or a file shared by a peer.
type StreamSource struct {
	Kind   SourceKind
	URL    string
	Path   string
	HostID string
	FileID string
	Size   uint64
}

// PlaybackState is the room's synchronized position, anchored to a
// wallclock timestamp (SyncTime) so peers can compute where playback
// should be right now without a fresh message every tick.
type PlaybackState struct {
	Playing  bool
	Position float64 // seconds
	Speed    float64
	SyncTime int64 // Unix ms
}

// DefaultPlaybackState returns a paused state at position zero with
// unit speed, anchored at now.
func DefaultPlaybackState(now time.Time) PlaybackState {
	return PlaybackState{Speed: 1.0, SyncTime: now.UnixMilli()}
}

// StreamRoom is the shared record describing one synchronized playback
// session: who hosts it, what it plays, where playback currently is,
// and which peers are connected.
type StreamRoom struct {
	RoomID    string
	Name      string
	HostID    string
	Source    StreamSource
	Playback  PlaybackState
	Peers     []string
	CreatedAt int64 // Unix seconds
}

// SyncEventKind discriminates the playback changes a session broadcasts.
type SyncEventKind int

const (
	EventPlay SyncEventKind = iota
	EventPause
	EventSeek
	EventSpeed
	EventPeerJoined
	EventPeerLeft
	EventSourceChanged
	EventRequestSync
	EventStateSync
)

// SyncEvent is exchanged between peers (and re-broadcast to local
// subscribers) whenever a room's playback state changes. Only the
// fields relevant to Kind are populated.
type SyncEvent struct {
	Kind     SyncEventKind
	Position float64
	Speed    float64
	PeerID   string
	Source   *StreamSource
	State    *PlaybackState
}

// roomChannelCapacity bounds each subscriber's event channel, matching
// the connection state broadcaster's drop-instead-of-block policy for
// subscribers that fall behind.
const roomChannelCapacity = 100

// StreamSession drives one participant's view of a StreamRoom. The
// host is the only participant allowed to change the source, and the
// one that answers RequestSync with a full StateSync.
type StreamSession struct {
	SessionID string

	mu          sync.Mutex
	room        StreamRoom
	isHost      bool
	subscribers []chan SyncEvent
}

// newRoomID returns a fresh random room identifier.
func newRoomID() string {
	var b [16]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// CreateRoom starts a new session as host of a fresh room.
func CreateRoom(name string, source StreamSource, hostID string, now time.Time) *StreamSession {
	roomID := newRoomID()
	return &StreamSession{
		SessionID: roomID,
		room: StreamRoom{
			RoomID:    roomID,
			Name:      name,
			HostID:    hostID,
			Source:    source,
			Playback:  DefaultPlaybackState(now),
			CreatedAt: now.Unix(),
		},
		isHost: true,
	}
}

// JoinRoom starts a session as a member of an existing room.
func JoinRoom(room StreamRoom) *StreamSession {
	return &StreamSession{
		SessionID: room.RoomID,
		room:      room,
		isHost:    false,
	}
}

// IsHost reports whether this session hosts its room.
func (s *StreamSession) IsHost() bool { return s.isHost }

// Room returns a snapshot of the room record.
func (s *StreamSession) Room() StreamRoom {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.room
	room.Peers = append([]string(nil), s.room.Peers...)
	return room
}

// Subscribe returns a channel receiving every subsequent SyncEvent.
// The channel is buffered to roomChannelCapacity; a subscriber that
// falls behind has its oldest pending event dropped rather than
// blocking the publisher.
func (s *StreamSession) Subscribe() <-chan SyncEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan SyncEvent, roomChannelCapacity)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Play resumes playback, re-anchoring the sync time to now.
func (s *StreamSession) Play(now time.Time) {
	s.mu.Lock()
	s.room.Playback.Playing = true
	s.room.Playback.SyncTime = now.UnixMilli()
	ev := SyncEvent{Kind: EventPlay, Position: s.room.Playback.Position}
	subs := s.snapshotSubscribers()
	s.mu.Unlock()
	s.broadcast(subs, ev)
}

// Pause freezes playback at the position it has reached by now.
func (s *StreamSession) Pause(now time.Time) {
	s.mu.Lock()
	s.room.Playback.Position = s.expectedPositionLocked(now)
	s.room.Playback.Playing = false
	s.room.Playback.SyncTime = now.UnixMilli()
	ev := SyncEvent{Kind: EventPause, Position: s.room.Playback.Position}
	subs := s.snapshotSubscribers()
	s.mu.Unlock()
	s.broadcast(subs, ev)
}

// Seek jumps playback to position (in seconds), keeping the current
// play/pause state.
func (s *StreamSession) Seek(position float64, now time.Time) {
	s.mu.Lock()
	s.room.Playback.Position = position
	s.room.Playback.SyncTime = now.UnixMilli()
	ev := SyncEvent{Kind: EventSeek, Position: position}
	subs := s.snapshotSubscribers()
	s.mu.Unlock()
	s.broadcast(subs, ev)
}

// UpdatePosition records the locally observed position without
// re-anchoring the sync time and without emitting an event, for
// periodic reporting during playback.
func (s *StreamSession) UpdatePosition(position float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room.Playback.Position = position
}

// SetSpeed changes the playback rate.
func (s *StreamSession) SetSpeed(speed float64, now time.Time) error {
	if speed <= 0 {
		return &StreamingError{Code: ErrCodeInvalidSpeed, Message: "playback speed must be positive"}
	}
	s.mu.Lock()
	s.room.Playback.Position = s.expectedPositionLocked(now)
	s.room.Playback.Speed = speed
	s.room.Playback.SyncTime = now.UnixMilli()
	ev := SyncEvent{Kind: EventSpeed, Speed: speed}
	subs := s.snapshotSubscribers()
	s.mu.Unlock()
	s.broadcast(subs, ev)
	return nil
}

// ChangeSource switches the room's media source and resets playback.
// Only the host may do this.
func (s *StreamSession) ChangeSource(source StreamSource, now time.Time) error {
	if !s.isHost {
		return &StreamingError{Code: ErrCodeNotHost, Message: "only the host may change the stream source"}
	}
	s.mu.Lock()
	s.room.Source = source
	s.room.Playback = DefaultPlaybackState(now)
	src := source
	ev := SyncEvent{Kind: EventSourceChanged, Source: &src}
	subs := s.snapshotSubscribers()
	s.mu.Unlock()
	s.broadcast(subs, ev)
	return nil
}

// HandleEvent applies an event received from a peer to local room
// state and re-broadcasts it to local subscribers. Applying the same
// event twice leaves the room in the same state. A RequestSync
// arriving at the host additionally answers with a full StateSync.
func (s *StreamSession) HandleEvent(ev SyncEvent, now time.Time) {
	s.mu.Lock()
	var followUp *SyncEvent
	switch ev.Kind {
	case EventPlay:
		s.room.Playback.Playing = true
		s.room.Playback.Position = ev.Position
		s.room.Playback.SyncTime = now.UnixMilli()
	case EventPause:
		s.room.Playback.Playing = false
		s.room.Playback.Position = ev.Position
		s.room.Playback.SyncTime = now.UnixMilli()
	case EventSeek:
		s.room.Playback.Position = ev.Position
		s.room.Playback.SyncTime = now.UnixMilli()
	case EventSpeed:
		s.room.Playback.Speed = ev.Speed
	case EventPeerJoined:
		if !containsPeer(s.room.Peers, ev.PeerID) {
			s.room.Peers = append(s.room.Peers, ev.PeerID)
		}
	case EventPeerLeft:
		s.room.Peers = removePeer(s.room.Peers, ev.PeerID)
	case EventSourceChanged:
		if ev.Source != nil {
			s.room.Source = *ev.Source
		}
		s.room.Playback = DefaultPlaybackState(now)
	case EventRequestSync:
		if s.isHost {
			state := s.room.Playback
			followUp = &SyncEvent{Kind: EventStateSync, State: &state}
		}
	case EventStateSync:
		if ev.State != nil {
			s.room.Playback = *ev.State
		}
	}
	subs := s.snapshotSubscribers()
	s.mu.Unlock()

	s.broadcast(subs, ev)
	if followUp != nil {
		s.broadcast(subs, *followUp)
	}
}

// PlaybackState returns a snapshot of the room's playback state.
func (s *StreamSession) PlaybackState() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room.Playback
}

// ExpectedPosition returns where playback should currently be, in
// seconds: the last-synced position plus elapsed wallclock time
// scaled by speed while playing, or the frozen position while paused.
func (s *StreamSession) ExpectedPosition(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expectedPositionLocked(now)
}

func (s *StreamSession) expectedPositionLocked(now time.Time) float64 {
	if !s.room.Playback.Playing {
		return s.room.Playback.Position
	}
	elapsedSecs := float64(now.UnixMilli()-s.room.Playback.SyncTime) / 1000.0
	return s.room.Playback.Position + elapsedSecs*s.room.Playback.Speed
}

func containsPeer(peers []string, id string) bool {
	for _, p := range peers {
		if p == id {
			return true
		}
	}
	return false
}

func removePeer(peers []string, id string) []string {
	out := peers[:0]
	for _, p := range peers {
		if p != id {
			out = append(out, p)
		}
	}
	return out
}

func (s *StreamSession) snapshotSubscribers() []chan SyncEvent {
	return append([]chan SyncEvent(nil), s.subscribers...)
}

func (s *StreamSession) broadcast(subs []chan SyncEvent, ev SyncEvent) {
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
