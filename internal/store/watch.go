package store

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"bingo-room-backend/internal/model"
)

type loadFunc func(ctx context.Context, id string) (*model.Room, error)

// watchers fans room snapshots out to subscribed callbacks.
type watchers struct {
	load  loadFunc
	mu    sync.Mutex
	rooms map[string]map[*watcher]struct{}
}

func newWatchers(load loadFunc) *watchers {
	return &watchers{
		load:  load,
		rooms: make(map[string]map[*watcher]struct{}),
	}
}

// watcher delivers snapshots to one callback from its own goroutine. Only the
// newest undelivered snapshot is kept, so a slow callback skips states but
// always ends on the latest one.
type watcher struct {
	roomID string
	fn     func(model.Snapshot)

	mu       sync.Mutex
	pending  *model.Snapshot
	version  int64
	terminal bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func (ws *watchers) subscribe(ctx context.Context, roomID string, fn func(model.Snapshot)) (func(), error) {
	w := &watcher{
		roomID: roomID,
		fn:     fn,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	ws.mu.Lock()
	set, ok := ws.rooms[roomID]
	if !ok {
		set = make(map[*watcher]struct{})
		ws.rooms[roomID] = set
	}
	set[w] = struct{}{}
	ws.mu.Unlock()

	go w.run(ws)

	cancel := func() {
		w.stop()
		ws.remove(w)
	}

	// Registration happens before the initial read so a write racing with
	// subscribe is seen either here or through dispatch.
	room, err := ws.load(ctx, roomID)
	switch {
	case errors.Is(err, ErrNotFound):
		w.offer(model.Snapshot{Deleted: true})
	case err != nil:
		cancel()
		return nil, err
	default:
		w.offer(model.Snapshot{Room: room})
	}
	return cancel, nil
}

func (ws *watchers) remove(w *watcher) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	set, ok := ws.rooms[w.roomID]
	if !ok {
		return
	}
	delete(set, w)
	if len(set) == 0 {
		delete(ws.rooms, w.roomID)
	}
}

func (ws *watchers) snapshotTargets(roomID string) []*watcher {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	set := ws.rooms[roomID]
	out := make([]*watcher, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	return out
}

// dispatch reads the room once and offers the snapshot to its watchers.
func (ws *watchers) dispatch(ctx context.Context, roomID string) {
	targets := ws.snapshotTargets(roomID)
	if len(targets) == 0 {
		return
	}

	var snap model.Snapshot
	room, err := ws.load(ctx, roomID)
	switch {
	case errors.Is(err, ErrNotFound):
		snap = model.Snapshot{Deleted: true}
	case err != nil:
		logrus.WithError(err).WithField("room_id", roomID).Warn("failed to load room for watchers")
		return
	default:
		snap = model.Snapshot{Room: room}
	}

	for _, w := range targets {
		w.offer(snap)
	}
}

// consume dispatches every room id read from events until ctx ends.
func (ws *watchers) consume(ctx context.Context, events <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-events:
			if !ok {
				return
			}
			ws.dispatch(ctx, id)
		}
	}
}

// offer queues snap unless it is older than what the watcher already has.
// A deleted snapshot is terminal.
func (w *watcher) offer(snap model.Snapshot) {
	w.mu.Lock()
	if w.terminal {
		w.mu.Unlock()
		return
	}
	if snap.Deleted {
		w.terminal = true
	} else {
		if snap.Room.Version != 0 && snap.Room.Version <= w.version {
			w.mu.Unlock()
			return
		}
		w.version = snap.Room.Version
		snap.Room = snap.Room.Clone()
	}
	w.pending = &snap
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) take() *model.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := w.pending
	w.pending = nil
	return snap
}

func (w *watcher) stop() {
	w.once.Do(func() { close(w.done) })
}

func (w *watcher) run(ws *watchers) {
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
			select {
			case <-w.done:
				return
			default:
			}
			snap := w.take()
			if snap == nil {
				continue
			}
			w.fn(*snap)
			if snap.Deleted {
				w.stop()
				ws.remove(w)
				return
			}
		}
	}
}
