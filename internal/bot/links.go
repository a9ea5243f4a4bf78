package bot

import (
	"strings"

	"github.com/denyshon/tg-load/internal/core"
)

// Link is one downloadable reference found in a message.
type Link struct {
	Kind core.FetchKind
	ID   string
}

// ScanOptions selects which platforms to scan for. Plain youtube.com is
// off by default and only turned on by the /audio command.
type ScanOptions struct {
	Inst     bool
	YTShorts bool
	YTM      bool
	YT       bool
}

func DefaultScanOptions() ScanOptions {
	return ScanOptions{Inst: true, YTShorts: true, YTM: true, YT: false}
}

const (
	instDomain     = "instagram.com/"
	ytShortsDomain = "youtube.com/shorts/"
	ytmDomain      = "music.youtube.com/"
)

// ytDomains match plain YouTube links without also matching
// music.youtube.com.
var ytDomains = []string{" youtube.com/", "www.youtube.com/", "//youtube.com/"}

// idTerminators end an id embedded in a URL.
const idTerminators = "&/? \n"

// ExtractLinks scans text for supported platform links, left to right per
// platform. Unrecognized path shapes are skipped silently.
func ExtractLinks(text string, opt ScanOptions) []Link {
	var links []Link
	if text == "" {
		return links
	}

	if opt.Inst {
		links = append(links, scanInstagram(text)...)
	}
	if opt.YTShorts {
		links = append(links, scanShorts(text)...)
	}
	links = append(links, scanAudio(text, opt)...)
	return links
}

func scanInstagram(text string) []Link {
	var links []Link
	for {
		i := strings.Index(text, instDomain)
		if i < 0 {
			return links
		}
		text = text[i+len(instDomain):]

		slash := indexAny(text, "/")
		linkType := text[:slash]
		text = cutFrom(text, slash+1)

		switch linkType {
		case "p", "reel", "reels":
			shortcode := text[:indexAny(text, "/? \n")]
			if shortcode != "" {
				links = append(links, Link{Kind: core.FetchKindPost, ID: shortcode})
			}
		case "stories":
			username := text[:indexAny(text, "/? \n")]
			if username == "" {
				continue
			}
			rest := cutFrom(text, indexAny(text, "/")+1)
			mediaID := rest[:indexAny(rest, "/? \n")]
			id := username
			if mediaID != "" {
				id += "/" + mediaID
			}
			links = append(links, Link{Kind: core.FetchKindStory, ID: id})
		}
	}
}

func scanShorts(text string) []Link {
	var links []Link
	for {
		i := strings.Index(text, ytShortsDomain)
		if i < 0 {
			return links
		}
		text = text[i+len(ytShortsDomain):]
		videoID := text[:indexAny(text, idTerminators)]
		if videoID != "" {
			links = append(links, Link{Kind: core.FetchKindShort, ID: videoID})
		}
	}
}

func scanAudio(text string, opt ScanOptions) []Link {
	var domains []string
	if opt.YTM {
		domains = append(domains, ytmDomain)
	}
	if opt.YT {
		domains = append(domains, ytDomains...)
	}

	var links []Link
	for len(domains) > 0 {
		next := len(text)
		for _, d := range domains {
			if i := strings.Index(text, d); i >= 0 && i+len(d) < next {
				next = min(next, i+len(d))
			}
		}
		if next == len(text) {
			return links
		}
		text = text[next:]

		end := indexAny(text, "?/")
		linkType := text[:end]
		text = cutFrom(text, end+1)

		switch linkType {
		case "watch":
			const pref = "v="
			i := strings.Index(text, pref)
			if i < 0 {
				continue
			}
			text = text[i+len(pref):]
			songID := text[:indexAny(text, idTerminators)]
			if songID != "" {
				links = append(links, Link{Kind: core.FetchKindSong, ID: songID})
			}
		case "shorts":
			// a plain-YouTube short requested as audio
			videoID := text[:indexAny(text, idTerminators)]
			if videoID != "" {
				links = append(links, Link{Kind: core.FetchKindSong, ID: videoID})
			}
		case "playlist", "browse":
			if linkType == "playlist" {
				const pref = "list="
				i := strings.Index(text, pref)
				if i < 0 {
					continue
				}
				text = text[i+len(pref):]
			}
			playlistID := text[:indexAny(text, idTerminators)]
			if isAlbumID(playlistID) {
				links = append(links, Link{Kind: core.FetchKindAlbum, ID: playlistID})
			}
		}
	}
	return links
}

// isAlbumID accepts album-shaped ids only: non-album playlists are not
// downloadable as albums.
func isAlbumID(id string) bool {
	return strings.HasPrefix(id, "OLAK5uy_") ||
		strings.HasPrefix(id, "MPREb_") ||
		strings.HasPrefix(id, "RDAMPL")
}

// indexAny is like strings.IndexAny but returns len(s) when no separator
// occurs, so slicing to it keeps the whole tail.
func indexAny(s, chars string) int {
	if i := strings.IndexAny(s, chars); i >= 0 {
		return i
	}
	return len(s)
}

func cutFrom(s string, i int) string {
	if i >= len(s) {
		return ""
	}
	return s[i:]
}
