package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/denyshon/tg-load/internal/core"
	"github.com/denyshon/tg-load/internal/resource"
	"go.uber.org/zap"
)

// handleEnable turns the bot on in the current chat. Mutation and backup
// are both awaited before the success reply, so the reply never races the
// persisted state.
func (b *Bot) handleEnable(ctx context.Context, msg *Message) {
	if b.activeChats.Contains(msg.Chat.ID) {
		b.reply(ctx, msg, b.message("enable_no_need"))
		return
	}
	if !b.ensureAdmin(ctx, msg) {
		return
	}
	if b.mutateAndBackup(ctx, msg, b.activeChats.Add(msg.Chat.ID), b.activeChats) {
		b.reply(ctx, msg, b.message("enable_success"))
	}
}

func (b *Bot) handleDisable(ctx context.Context, msg *Message) {
	if !b.activeChats.Contains(msg.Chat.ID) {
		b.reply(ctx, msg, b.message("disable_no_need"))
		return
	}
	if !b.ensureAdmin(ctx, msg) {
		return
	}
	if b.mutateAndBackup(ctx, msg, b.activeChats.Discard(msg.Chat.ID), b.activeChats) {
		b.reply(ctx, msg, b.message("disable_success"))
	}
}

func (b *Bot) handleEnableCaptions(ctx context.Context, msg *Message) {
	if !b.ensureActiveChat(ctx, msg, true) || !b.ensureNotBanned(ctx, msg) {
		return
	}
	if !b.noCaptionsChats.Contains(msg.Chat.ID) {
		b.reply(ctx, msg, b.message("enable_captions_no_need"))
		return
	}
	if b.mutateAndBackup(ctx, msg, b.noCaptionsChats.Discard(msg.Chat.ID), b.noCaptionsChats) {
		b.reply(ctx, msg, b.message("enable_captions_success"))
	}
}

func (b *Bot) handleDisableCaptions(ctx context.Context, msg *Message) {
	if !b.ensureActiveChat(ctx, msg, true) || !b.ensureNotBanned(ctx, msg) {
		return
	}
	if b.noCaptionsChats.Contains(msg.Chat.ID) {
		b.reply(ctx, msg, b.message("disable_captions_no_need"))
		return
	}
	if b.mutateAndBackup(ctx, msg, b.noCaptionsChats.Add(msg.Chat.ID), b.noCaptionsChats) {
		b.reply(ctx, msg, b.message("disable_captions_success"))
	}
}

// handleUncompressed re-handles the message and its reply-to, sending
// Instagram and Shorts media as original-quality documents.
func (b *Bot) handleUncompressed(ctx context.Context, msg *Message) {
	if !b.ensureActiveChat(ctx, msg, true) || !b.ensureNotBanned(ctx, msg) {
		return
	}
	opt := ScanOptions{Inst: true, YTShorts: true}
	b.handleWithReplyTo(ctx, msg, opt, false)
}

// handleAudio re-handles the message and its reply-to, downloading plain
// YouTube and Shorts links as audio.
func (b *Bot) handleAudio(ctx context.Context, msg *Message) {
	if !b.ensureActiveChat(ctx, msg, true) || !b.ensureNotBanned(ctx, msg) {
		return
	}
	opt := ScanOptions{YT: true, YTShorts: true}
	b.handleWithReplyTo(ctx, msg, opt, true)
}

func (b *Bot) handleWithReplyTo(ctx context.Context, msg *Message, opt ScanOptions, compress bool) {
	started := b.handleLinks(ctx, msg, opt, compress)
	if msg.ReplyToMessage != nil {
		replyTo := *msg.ReplyToMessage
		// replies land in the command's chat
		replyTo.Chat = msg.Chat
		if b.handleLinks(ctx, &replyTo, opt, compress) {
			started = true
		}
	}
	if !started {
		b.reply(ctx, msg, b.message("no_links"))
	}
}

func (b *Bot) handleAdminCommands(ctx context.Context, msg *Message) {
	if !b.ensureAdmin(ctx, msg) {
		return
	}
	b.reply(ctx, msg, b.message("admin_commands"))
}

// handleEnableChats enables the bot in every chat id given as an
// argument, replying per argument.
func (b *Bot) handleEnableChats(ctx context.Context, msg *Message, args []string) {
	if !b.ensureAdmin(ctx, msg) {
		return
	}
	for _, arg := range args {
		chatID, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			b.reply(ctx, msg, b.message("enable_chats_arg_not_int", arg))
			continue
		}
		if b.activeChats.Contains(chatID) {
			b.reply(ctx, msg, b.message("enable_chats_no_need", arg))
			continue
		}
		if b.mutateAndBackup(ctx, msg, b.activeChats.Add(chatID), b.activeChats) {
			b.reply(ctx, msg, b.message("enable_chats_success", arg))
		}
	}
}

func (b *Bot) handleDisableChats(ctx context.Context, msg *Message, args []string) {
	if !b.ensureAdmin(ctx, msg) {
		return
	}
	for _, arg := range args {
		chatID, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			b.reply(ctx, msg, b.message("disable_chats_arg_not_int", arg))
			continue
		}
		if !b.activeChats.Contains(chatID) {
			b.reply(ctx, msg, b.message("disable_chats_no_need", arg))
			continue
		}
		if b.mutateAndBackup(ctx, msg, b.activeChats.Discard(chatID), b.activeChats) {
			b.reply(ctx, msg, b.message("disable_chats_success", arg))
		}
	}
}

// handleBanUsers bans every user id given as an argument. Admins cannot
// be banned.
func (b *Bot) handleBanUsers(ctx context.Context, msg *Message, args []string) {
	if !b.ensureAdmin(ctx, msg) {
		return
	}
	for _, arg := range args {
		userID, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			b.reply(ctx, msg, b.message("ban_users_arg_not_int", arg))
			continue
		}
		if b.isAdmin(userID) {
			b.reply(ctx, msg, b.message("ban_users_arg_admin", arg))
			continue
		}
		if b.bannedUsers.Contains(userID) {
			b.reply(ctx, msg, b.message("ban_users_no_need", arg))
			continue
		}
		if b.mutateAndBackup(ctx, msg, b.bannedUsers.Add(userID), b.bannedUsers) {
			b.reply(ctx, msg, b.message("ban_users_success", arg))
		}
	}
}

// handleUnbanUsers intentionally skips the admin-target check: if an
// admin somehow ends up banned there must be a way back.
func (b *Bot) handleUnbanUsers(ctx context.Context, msg *Message, args []string) {
	if !b.ensureAdmin(ctx, msg) {
		return
	}
	for _, arg := range args {
		userID, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			b.reply(ctx, msg, b.message("unban_users_arg_not_int", arg))
			continue
		}
		if !b.bannedUsers.Contains(userID) {
			b.reply(ctx, msg, b.message("unban_users_no_need", arg))
			continue
		}
		if b.mutateAndBackup(ctx, msg, b.bannedUsers.Discard(userID), b.bannedUsers) {
			b.reply(ctx, msg, b.message("unban_users_success", arg))
		}
	}
}

// handleFeatures lists feature states, or with "<name> on|off" arguments
// toggles them. Degraded features are re-enabled this way.
func (b *Bot) handleFeatures(ctx context.Context, msg *Message, args []string) {
	if !b.ensureAdmin(ctx, msg) {
		return
	}

	if len(args) == 0 {
		var sb strings.Builder
		for _, key := range featureOrder() {
			state := "off"
			if b.flags.IsEnabled(key) {
				state = "on"
			}
			sb.WriteString(core.FeatureNames[key] + " (" + key + "): " + state + "\n")
		}
		b.reply(ctx, msg, strings.TrimRight(sb.String(), "\n"))
		return
	}

	if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
		b.reply(ctx, msg, b.message("features_usage"))
		return
	}
	name := args[0]
	if _, known := core.FeatureNames[name]; !known {
		b.reply(ctx, msg, b.message("features_unknown", name))
		return
	}

	on := args[1] == "on"
	if err := b.flags.Set(name, on).Wait(ctx); err != nil {
		b.reply(ctx, msg, b.message("internal_error"))
		return
	}
	if err := b.flags.Backup().Wait(ctx); err != nil {
		b.log.Error("cant backup flags", zap.Error(err))
		b.reply(ctx, msg, b.message("internal_error"))
		return
	}
	b.reply(ctx, msg, b.message("features_success", name))
}

func featureOrder() []string {
	return []string{
		core.FeatureInst,
		core.FeatureYTShorts,
		core.FeatureYTM,
		core.FeatureYT,
	}
}

// mutateAndBackup awaits a mutation handle and then a backup of the same
// resource. On failure it replies with the generic error and reports
// false.
func (b *Bot) mutateAndBackup(ctx context.Context, msg *Message, mutate *resource.Handle, set *resource.IDSet) bool {
	if err := mutate.Wait(ctx); err != nil {
		b.log.Error("mutation failed", zap.Error(err))
		b.reply(ctx, msg, b.message("internal_error"))
		return false
	}
	if err := set.Backup().Wait(ctx); err != nil {
		b.log.Error("backup failed", zap.Error(err))
		b.reply(ctx, msg, b.message("internal_error"))
		return false
	}
	return true
}
