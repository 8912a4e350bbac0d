package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/albapepper/scoracle-alerts/internal/discord"
	"github.com/albapepper/scoracle-alerts/internal/eventstate"
	"github.com/albapepper/scoracle-alerts/internal/metrics"
)

// Chat is the chat platform surface the dispatcher needs.
type Chat interface {
	PostMessage(ctx context.Context, channelID string, msg discord.Message) (discord.MessageRef, error)
	CreateThread(ctx context.Context, channelID, messageID, name string) (discord.ThreadRef, error)
	PatchChannel(ctx context.Context, channelID string, patch discord.ChannelPatch) error
	ExpirePoll(ctx context.Context, channelID, messageID string) error
}

// RefStore persists message refs per game and channel.
type RefStore interface {
	LoadRefs(ctx context.Context, league, gameID, channelID string) (eventstate.MessageRefs, error)
	SaveRefs(ctx context.Context, league, gameID, channelID string, refs eventstate.MessageRefs) error
}

// Delivery is one unit of work for one channel. Message is nil for a
// delivery that only opens a standalone thread.
type Delivery struct {
	ChannelID string
	Category  Category
	EventID   string
	Message   *discord.Message

	RecordPreview bool   // keep the posted message id as the preview ref
	ExpirePoll    bool   // close the preview poll before posting
	OpenThread    bool   // open the discussion thread if none exists
	ThreadName    string // title used when OpenThread creates one
	ArchiveThread bool   // archive the discussion thread after posting
}

// Dispatcher sends deliveries under one supervised task per channel.
// Tasks outlive the caller's poll cycle; Wait blocks until all finish.
type Dispatcher struct {
	chat    Chat
	refs    RefStore
	metrics *metrics.Recorder
	logger  *slog.Logger

	wg sync.WaitGroup

	// tails holds the completion signal of the newest task per
	// (league, game, channel); each task waits for its predecessor.
	tailsMu sync.Mutex
	tails   map[string]chan struct{}
}

// NewDispatcher creates a Dispatcher. rec may be nil.
func NewDispatcher(chat Chat, refs RefStore, rec *metrics.Recorder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		chat:    chat,
		refs:    refs,
		metrics: rec,
		logger:  logger,
		tails:   make(map[string]chan struct{}),
	}
}

// Dispatch groups deliveries by channel and starts one task per channel.
// Each channel receives its deliveries in the given order; channels proceed
// independently. A task starts only after the previous task for the same
// game and channel has finished, so message refs are never updated by two
// tasks at once. Dispatch returns without waiting for any send.
func (d *Dispatcher) Dispatch(ctx context.Context, league, gameID string, deliveries []Delivery) {
	if len(deliveries) == 0 {
		return
	}

	var order []string
	byChannel := make(map[string][]Delivery)
	for _, dl := range deliveries {
		if _, ok := byChannel[dl.ChannelID]; !ok {
			order = append(order, dl.ChannelID)
		}
		byChannel[dl.ChannelID] = append(byChannel[dl.ChannelID], dl)
	}

	// Sends must survive the end of the poll cycle that queued them.
	base := context.WithoutCancel(ctx)
	for _, channelID := range order {
		channelID := channelID // per-iteration copy; go.mod targets go 1.21 loop semantics
		queue := byChannel[channelID]
		logger := d.logger.With("league", league, "game_id", gameID, "channel_id", channelID)
		key := league + "/" + gameID + "/" + channelID
		prev, done := d.enqueue(key)
		d.spawn(logger, func() {
			defer d.release(key, done)
			if prev != nil {
				<-prev
			}
			taskCtx, cancel := context.WithTimeout(base, deliveryTimeout)
			defer cancel()
			d.deliver(taskCtx, logger, league, gameID, channelID, queue)
		})
	}
}

// Wait blocks until every spawned task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// enqueue registers a new task for key and returns the predecessor's
// completion signal (nil if none) and the new task's own.
func (d *Dispatcher) enqueue(key string) (<-chan struct{}, chan struct{}) {
	d.tailsMu.Lock()
	defer d.tailsMu.Unlock()
	done := make(chan struct{})
	var prev <-chan struct{}
	if tail, ok := d.tails[key]; ok {
		prev = tail
	}
	d.tails[key] = done
	return prev, done
}

func (d *Dispatcher) release(key string, done chan struct{}) {
	close(done)
	d.tailsMu.Lock()
	defer d.tailsMu.Unlock()
	if d.tails[key] == done {
		delete(d.tails, key)
	}
}

// spawn runs fn in a goroutine that recovers and logs panics.
func (d *Dispatcher) spawn(logger *slog.Logger, fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Delivery task panicked", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, logger *slog.Logger, league, gameID, channelID string, queue []Delivery) {
	refs, err := d.refs.LoadRefs(ctx, league, gameID, channelID)
	if err != nil {
		logger.Warn("Failed to load message refs", "error", err)
	}
	dirty := false

	for _, dl := range queue {
		if dl.ExpirePoll && refs.PreviewMessageID != "" && !refs.PollExpired {
			if err := d.chat.ExpirePoll(ctx, channelID, refs.PreviewMessageID); err != nil {
				logger.Warn("Failed to expire preview poll", "error", err)
			}
			// Marked either way; a poll that cannot be expired closes on its own.
			refs.PollExpired = true
			dirty = true
		}

		var posted discord.MessageRef
		if dl.Message != nil {
			ref, err := d.chat.PostMessage(ctx, channelID, *dl.Message)
			d.metrics.RecordDelivery(string(dl.Category), err)
			if err != nil {
				logger.Warn("Failed to send notification",
					"category", dl.Category, "event_id", dl.EventID, "error", err)
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					break
				}
				continue
			}
			posted = ref
			if dl.RecordPreview {
				refs.PreviewMessageID = ref.ID
				dirty = true
			}
		}

		if dl.OpenThread && refs.ThreadID == "" {
			thread, err := d.chat.CreateThread(ctx, channelID, posted.ID, dl.ThreadName)
			if err != nil {
				logger.Warn("Failed to open discussion thread", "error", err)
			} else {
				refs.ThreadID = thread.ID
				dirty = true
			}
		}

		if dl.ArchiveThread && refs.ThreadID != "" && !refs.ThreadArchived {
			if err := d.archive(ctx, refs.ThreadID); err != nil {
				logger.Warn("Failed to archive discussion thread", "thread_id", refs.ThreadID, "error", err)
			} else {
				refs.ThreadArchived = true
				dirty = true
			}
		}
	}

	if !dirty {
		return
	}
	if err := d.refs.SaveRefs(ctx, league, gameID, channelID, refs); err != nil {
		logger.Warn("Failed to save message refs", "error", err)
	}
}

func (d *Dispatcher) archive(ctx context.Context, threadID string) error {
	archived, locked := true, true
	if err := d.chat.PatchChannel(ctx, threadID, discord.ChannelPatch{Archived: &archived, Locked: &locked}); err != nil {
		return fmt.Errorf("archive thread: %w", err)
	}
	return nil
}
