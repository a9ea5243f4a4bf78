package bot

// Telegram Bot API update model, trimmed to the fields the handlers
// read. See https://core.telegram.org/bots/api#update
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      *Chat  `json:"chat"`
	Text      string `json:"text"`
	Caption   string `json:"caption"`

	Entities        []Entity `json:"entities"`
	CaptionEntities []Entity `json:"caption_entities"`

	ReplyToMessage *Message `json:"reply_to_message"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Entity carries markdown links: a text_link entity hides its URL here
// instead of in the visible text.
type Entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	URL    string `json:"url"`
}

// EffectiveText is the message text or, for media messages, the caption,
// with the URLs of markdown links appended so the link scanner sees them.
func (m *Message) EffectiveText() string {
	text := m.Text
	entities := m.Entities
	if text == "" {
		text = m.Caption
		entities = m.CaptionEntities
	}
	if text == "" {
		return ""
	}
	for _, e := range entities {
		if e.Type == "text_link" && e.URL != "" {
			text += " " + e.URL
		}
	}
	return text
}

// Command returns the bot command at the start of the message ("/ban_users")
// without the slash and bot-name suffix, plus the remaining arguments.
func (m *Message) Command() (string, []string) {
	if m.Text == "" || m.Text[0] != '/' {
		return "", nil
	}
	fields := splitFields(m.Text)
	cmd := fields[0][1:]
	for i := range cmd {
		if cmd[i] == '@' {
			cmd = cmd[:i]
			break
		}
	}
	return cmd, fields[1:]
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' || s[i] == '\n' || s[i] == '\t' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	return out
}
