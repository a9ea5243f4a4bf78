package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// TelegramSender talks to the Bot API over plain HTTP. Every response
// body is drained and closed, and the API's ok flag is surfaced as an
// error.
type TelegramSender struct {
	client  *http.Client
	baseURL string
}

const defaultAPIBase = "https://api.telegram.org"

func NewTelegramSender(token string, client *http.Client) (*TelegramSender, error) {
	return newTelegramSender(token, defaultAPIBase, client)
}

// NewTelegramSenderWithBase exists for tests pointing at a local server.
func NewTelegramSenderWithBase(token, base string, client *http.Client) (*TelegramSender, error) {
	return newTelegramSender(token, base, client)
}

func newTelegramSender(token, base string, client *http.Client) (*TelegramSender, error) {
	if token == "" {
		return nil, errors.New("notify: required bot token")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TelegramSender{
		client:  client,
		baseURL: base + "/bot" + token,
	}, nil
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (s *TelegramSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	body := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	return s.call(ctx, "sendMessage", body)
}

// SendChatAction keeps the chat's typing/uploading indicator alive. The
// heartbeat loops call it while a download runs.
func (s *TelegramSender) SendChatAction(ctx context.Context, chatID int64, action string) error {
	body := map[string]any{
		"chat_id": chatID,
		"action":  action,
	}
	return s.call(ctx, "sendChatAction", body)
}

func (s *TelegramSender) call(ctx context.Context, method string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: %s: %w", method, err)
	}
	return s.readResult(resp, method)
}

// SendFile uploads one downloaded file to the chat. field selects the Bot
// API upload kind: document, audio, video or photo.
func (s *TelegramSender) SendFile(ctx context.Context, chatID int64, field, path, caption string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return fmt.Errorf("notify: write field: %w", err)
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return fmt.Errorf("notify: write field: %w", err)
		}
	}
	if err := s.attachFile(mw, field, path); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("notify: close form: %w", err)
	}

	method := "send" + title(field)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/"+method, &buf)
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: %s: %w", method, err)
	}
	return s.readResult(resp, method)
}

// MediaItem is one entry of a media group. Type selects the Bot API
// upload kind: photo, video, audio or document.
type MediaItem struct {
	Type    string
	Path    string
	Caption string
}

// SendMediaGroup uploads up to ten files as one grouped, silent message.
// The Bot API rejects groups of fewer than two items; lone files go
// through SendFile.
func (s *TelegramSender) SendMediaGroup(ctx context.Context, chatID int64, items []MediaItem) error {
	if len(items) == 0 {
		return nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return fmt.Errorf("notify: write field: %w", err)
	}
	if err := mw.WriteField("disable_notification", "true"); err != nil {
		return fmt.Errorf("notify: write field: %w", err)
	}

	type inputMedia struct {
		Type    string `json:"type"`
		Media   string `json:"media"`
		Caption string `json:"caption,omitempty"`
	}
	media := make([]inputMedia, 0, len(items))
	for i, item := range items {
		name := fmt.Sprintf("file%d", i)
		media = append(media, inputMedia{
			Type:    item.Type,
			Media:   "attach://" + name,
			Caption: item.Caption,
		})
		if err := s.attachFile(mw, name, item.Path); err != nil {
			return err
		}
	}
	payload, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("notify: marshal media: %w", err)
	}
	if err := mw.WriteField("media", string(payload)); err != nil {
		return fmt.Errorf("notify: write field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("notify: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/sendMediaGroup", &buf)
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: sendMediaGroup: %w", err)
	}
	return s.readResult(resp, "sendMediaGroup")
}

func (s *TelegramSender) attachFile(mw *multipart.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("notify: open upload: %w", err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile(name, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("notify: create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("notify: copy upload: %w", err)
	}
	return nil
}

func (s *TelegramSender) readResult(resp *http.Response, method string) error {
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("notify: decode %s response: %w", method, err)
	}
	if !out.OK {
		return fmt.Errorf("notify: %s rejected: %s", method, out.Description)
	}
	return nil
}

func title(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
