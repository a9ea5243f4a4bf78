// Package bot implements the chat-facing behavior: command handling,
// link extraction, dispatching downloads to the supervisor and replying
// with the results.
package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/denyshon/tg-load/internal/core"
	"github.com/denyshon/tg-load/internal/heartbeat"
	"github.com/denyshon/tg-load/internal/notify"
	"github.com/denyshon/tg-load/internal/resource"
	"go.uber.org/zap"
)

// API is the outbound Bot API surface the handlers need.
type API interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	SendFile(ctx context.Context, chatID int64, field, path, caption string) error
	SendMediaGroup(ctx context.Context, chatID int64, items []notify.MediaItem) error
}

// JobRunner drives one download job to a terminal outcome.
type JobRunner interface {
	Run(ctx context.Context, spec core.JobSpec) core.Outcome
}

// Broadcaster mirrors notify.Broadcaster.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string)
}

type Config struct {
	BotName  string
	AdminIDs []int64
	// WorkDir is where per-job download directories are created.
	WorkDir string
	// Messages maps reply keys to templates; {bot_name} and {} are
	// substituted on use.
	Messages map[string]string

	HeartbeatInterval time.Duration
}

type Bot struct {
	api   API
	jobs  JobRunner
	cast  Broadcaster
	flags *resource.FeatureFlags

	activeChats     *resource.IDSet
	noCaptionsChats *resource.IDSet
	bannedUsers     *resource.IDSet

	cfg Config
	log *zap.Logger
}

func NewBot(
	api API,
	jobs JobRunner,
	cast Broadcaster,
	flags *resource.FeatureFlags,
	activeChats, noCaptionsChats, bannedUsers *resource.IDSet,
	cfg Config,
	log *zap.Logger,
) *Bot {
	if cfg.HeartbeatInterval <= 0 {
		// see https://core.telegram.org/bots/api#sendchataction
		cfg.HeartbeatInterval = 5 * time.Second
	}
	return &Bot{
		api:             api,
		jobs:            jobs,
		cast:            cast,
		flags:           flags,
		activeChats:     activeChats,
		noCaptionsChats: noCaptionsChats,
		bannedUsers:     bannedUsers,
		cfg:             cfg,
		log:             log.Named("bot"),
	}
}

// HandleUpdate dispatches one incoming update. Errors are handled by
// replying and logging; the webhook must always be acknowledged.
func (b *Bot) HandleUpdate(ctx context.Context, u *Update) {
	if u == nil || u.Message == nil || u.Message.Chat == nil || u.Message.From == nil {
		return
	}
	msg := u.Message

	cmd, args := msg.Command()
	switch cmd {
	case "start":
		b.reply(ctx, msg, b.message("start"))
	case "help":
		b.reply(ctx, msg, b.message("help"))
	case "enable":
		b.handleEnable(ctx, msg)
	case "disable":
		b.handleDisable(ctx, msg)
	case "enable_captions":
		b.handleEnableCaptions(ctx, msg)
	case "disable_captions":
		b.handleDisableCaptions(ctx, msg)
	case "uncompressed":
		b.handleUncompressed(ctx, msg)
	case "audio":
		b.handleAudio(ctx, msg)
	case "admin_commands":
		b.handleAdminCommands(ctx, msg)
	case "enable_chats":
		b.handleEnableChats(ctx, msg, args)
	case "disable_chats":
		b.handleDisableChats(ctx, msg, args)
	case "ban_users":
		b.handleBanUsers(ctx, msg, args)
	case "unban_users":
		b.handleUnbanUsers(ctx, msg, args)
	case "features":
		b.handleFeatures(ctx, msg, args)
	case "":
		b.handleText(ctx, msg)
	default:
		// unknown commands are ignored, other bots may own them
	}
}

// handleText scans a plain message for links and downloads them. A
// message mentioning the bot also gets its reply-to scanned, so users
// can point the bot at an earlier message.
func (b *Bot) handleText(ctx context.Context, msg *Message) {
	if !b.ensureActiveChat(ctx, msg, false) || !b.ensureNotBanned(ctx, msg) {
		return
	}

	if b.mentioned(msg) {
		b.handleWithReplyTo(ctx, msg, DefaultScanOptions(), true)
		return
	}

	started := b.handleLinks(ctx, msg, DefaultScanOptions(), true)
	if msg.ReplyToMessage == nil && !started {
		b.reply(ctx, msg, b.message("no_links"))
	}
}

func (b *Bot) mentioned(msg *Message) bool {
	return b.cfg.BotName != "" &&
		strings.Contains(msg.EffectiveText(), "@"+b.cfg.BotName)
}

// handleLinks extracts links per opt and runs a download job for each.
// It reports whether any job was started.
func (b *Bot) handleLinks(ctx context.Context, msg *Message, opt ScanOptions, compress bool) bool {
	links := ExtractLinks(msg.EffectiveText(), opt)
	started := false
	for _, link := range links {
		feature := core.FeatureForKind(link.Kind)
		if opt.YT && link.Kind == core.FetchKindSong {
			feature = core.FeatureYT
		}
		if !b.flags.IsEnabled(feature) {
			b.reply(ctx, msg, b.message("feature_disabled", core.FeatureNames[feature]))
			continue
		}
		started = true
		b.runJob(ctx, msg, link, compress)
	}
	return started
}

// runJob drives one link to completion and replies with the result.
// A chat action heartbeat runs for the whole download so the chat shows
// activity the entire time. The job directory is removed on every exit
// path, including fatal and failed outcomes.
func (b *Bot) runJob(ctx context.Context, msg *Message, link Link, compress bool) {
	chatID := msg.Chat.ID
	spec := core.JobSpec{
		ID:   link.ID,
		Kind: link.Kind,
		Dir:  b.jobDir(msg, link),
	}
	defer func() {
		if err := os.RemoveAll(spec.Dir); err != nil {
			b.log.Error("cant remove job dir",
				zap.String("dir", spec.Dir), zap.Error(err))
		}
	}()

	done := make(chan struct{})
	go heartbeat.RepeatUntilDone(ctx, b.cfg.HeartbeatInterval, done,
		func(hctx context.Context) {
			if err := b.api.SendChatAction(hctx, chatID, "typing"); err != nil {
				b.log.Debug("cant send chat action", zap.Error(err))
			}
		})

	out := b.jobs.Run(ctx, spec)
	close(done)

	switch out.State {
	case core.JobStateSucceeded:
		if err := b.api.SendChatAction(ctx, chatID, "upload_document"); err != nil {
			b.log.Debug("cant send chat action", zap.Error(err))
		}
		if link.Kind == core.FetchKindSong || link.Kind == core.FetchKindAlbum {
			b.replyAudios(ctx, chatID, spec.Dir)
		} else {
			withCaption := !b.noCaptionsChats.Contains(chatID)
			b.replyMedia(ctx, chatID, spec.Dir, compress, withCaption)
		}

	case core.JobStateTimedOutFatal:
		b.reply(ctx, msg, b.message("download_timeout", link.ID))
		b.broadcast(ctx, fmt.Sprintf("download of %s %s timed out after %d attempts",
			link.Kind, link.ID, out.Attempts))

	default:
		reply := b.message("download_failed", link.ID)
		if appErr, ok := core.AsAppError(out.Err); ok && appErr.SafeToShow {
			reply += " " + appErr.PublicMessage()
		}
		b.reply(ctx, msg, reply)
		b.broadcast(ctx, fmt.Sprintf("download of %s %s failed (exit code %d)",
			link.Kind, link.ID, out.ExitCode))
	}
}

func (b *Bot) jobDir(msg *Message, link Link) string {
	id := strings.ReplaceAll(link.ID, "/", "-")
	name := fmt.Sprintf("%d-%d-%s-%s", msg.Chat.ID, msg.MessageID, link.Kind, id)
	return filepath.Join(b.cfg.WorkDir, name)
}

// Gates.

func (b *Bot) isAdmin(userID int64) bool {
	for _, id := range b.cfg.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *Bot) ensureAdmin(ctx context.Context, msg *Message) bool {
	if b.isAdmin(msg.From.ID) {
		return true
	}
	b.reply(ctx, msg, b.message("not_admin"))
	return false
}

func (b *Bot) ensureActiveChat(ctx context.Context, msg *Message, publicReply bool) bool {
	if b.activeChats.Contains(msg.Chat.ID) {
		return true
	}
	if msg.Chat.Type == "private" {
		b.reply(ctx, msg, b.message("private_not_enabled"))
	} else if publicReply {
		b.reply(ctx, msg, b.message("not_enabled"))
	}
	return false
}

func (b *Bot) ensureNotBanned(ctx context.Context, msg *Message) bool {
	if !b.bannedUsers.Contains(msg.From.ID) {
		return true
	}
	b.reply(ctx, msg, b.message("banned"))
	return false
}

// Reply plumbing.

func (b *Bot) reply(ctx context.Context, msg *Message, text string) {
	if text == "" {
		return
	}
	if err := b.api.SendMessage(ctx, msg.Chat.ID, text); err != nil {
		b.log.Error("cant reply",
			zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

// message renders the template under key: {bot_name} becomes the
// configured name, each {} consumes one arg in order.
func (b *Bot) message(key string, args ...string) string {
	text, ok := b.cfg.Messages[key]
	if !ok {
		b.log.Warn("missing message template", zap.String("key", key))
		return ""
	}
	text = strings.ReplaceAll(text, "{bot_name}", b.cfg.BotName)
	for _, arg := range args {
		text = strings.Replace(text, "{}", arg, 1)
	}
	return text
}

func (b *Bot) broadcast(ctx context.Context, text string) {
	if b.cast != nil {
		b.cast.Broadcast(ctx, text)
	}
}
