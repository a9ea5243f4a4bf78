package bot

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/denyshon/tg-load/internal/notify"
	"go.uber.org/zap"
)

var imageSuffixes = map[string]bool{
	".jpg": true, ".png": true, ".webp": true,
}

var videoSuffixes = map[string]bool{
	".mp4": true, ".mv4": true, ".f4v": true, ".lrv": true, ".mov": true,
}

// captionLimit is the Bot API cap on message captions, in characters.
const captionLimit = 1024

// mediaGroupLimit is the Bot API cap on items per media group.
const mediaGroupLimit = 10

// replyMedia uploads the images and videos a worker left in dir as media
// groups. A file.txt in dir becomes the caption of the first upload
// unless the chat opted out of captions. compress=false sends everything
// as documents (original quality). Files neither uploader can classify
// are reported and skipped.
func (b *Bot) replyMedia(ctx context.Context, chatID int64, dir string, compress, withCaption bool) {
	names, caption := b.listDownloads(ctx, chatID, dir)
	if !withCaption {
		caption = ""
	}

	var items []notify.MediaItem
	for _, name := range names {
		suffix := strings.ToLower(filepath.Ext(name))
		var kind string
		switch {
		case !compress:
			kind = "document"
		case imageSuffixes[suffix]:
			kind = "photo"
		case videoSuffixes[suffix]:
			kind = "video"
		default:
			b.log.Warn("cant classify file for upload",
				zap.String("dir", dir), zap.String("file", name))
			b.broadcast(ctx, "ignored "+name+" when replying with media")
			continue
		}
		item := notify.MediaItem{Type: kind, Path: filepath.Join(dir, name)}
		if len(items) == 0 {
			item.Caption = caption
		}
		items = append(items, item)
	}
	b.sendGrouped(ctx, chatID, items)
}

// replyAudios uploads the mp3 files a worker left in dir as media groups.
func (b *Bot) replyAudios(ctx context.Context, chatID int64, dir string) {
	names, _ := b.listDownloads(ctx, chatID, dir)

	var items []notify.MediaItem
	for _, name := range names {
		if strings.ToLower(filepath.Ext(name)) != ".mp3" {
			continue
		}
		items = append(items, notify.MediaItem{
			Type: "audio",
			Path: filepath.Join(dir, name),
		})
	}
	b.sendGrouped(ctx, chatID, items)
}

// sendGrouped sends items in media groups of up to ten. A batch of one
// goes as a plain upload, the API rejects single-item groups.
func (b *Bot) sendGrouped(ctx context.Context, chatID int64, items []notify.MediaItem) {
	for start := 0; start < len(items); start += mediaGroupLimit {
		end := min(start+mediaGroupLimit, len(items))
		batch := items[start:end]

		var err error
		if len(batch) == 1 {
			err = b.api.SendFile(ctx, chatID, batch[0].Type, batch[0].Path, batch[0].Caption)
		} else {
			err = b.api.SendMediaGroup(ctx, chatID, batch)
		}
		if err != nil {
			b.log.Error("cant send media",
				zap.Int64("chat_id", chatID), zap.Error(err))
			b.broadcast(ctx, "cant send media: "+err.Error())
		}
	}
}

// listDownloads returns the uploadable file names in dir sorted by name,
// and the caption from file.txt if the worker wrote one. Files the
// uploaders cannot classify are reported and skipped.
func (b *Bot) listDownloads(ctx context.Context, chatID int64, dir string) ([]string, string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		b.log.Error("cant read job dir", zap.String("dir", dir), zap.Error(err))
		return nil, ""
	}

	caption := ""
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		suffix := strings.ToLower(filepath.Ext(name))
		if suffix == ".txt" {
			if name == "file.txt" {
				caption = b.readCaption(filepath.Join(dir, name))
			}
			continue
		}
		if !imageSuffixes[suffix] && !videoSuffixes[suffix] && suffix != ".mp3" {
			b.log.Warn("ignored unexpected file",
				zap.String("dir", dir), zap.String("file", name))
			b.broadcast(ctx, "ignored "+name+" when replying with media")
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, caption
}

// readCaption loads the caption, truncating to the API limit on a rune
// boundary: a byte cut could split a multi-byte character and produce
// invalid UTF-8 the API rejects.
func (b *Bot) readCaption(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		b.log.Warn("cant read caption", zap.String("path", path), zap.Error(err))
		return ""
	}
	caption := string(data)
	runes := []rune(caption)
	if len(runes) > captionLimit {
		caption = string(runes[:captionLimit-1]) + "…"
	}
	return caption
}
