package config

import (
	"errors"
	"time"

	"github.com/denyshon/tg-load/internal/core"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type AppConfig struct {
	ServerAddr    string `mapstructure:"SERVER_ADDR" validate:"min=2"`
	GinMode       string `mapstructure:"GIN_MODE" validate:"min=4"`
	BotToken      string `mapstructure:"BOT_TOKEN"`
	BotName       string `mapstructure:"BOT_NAME" validate:"min=1"`
	WebhookSecret string `mapstructure:"WEBHOOK_SECRET"`

	StateDir    string `mapstructure:"STATE_DIR" validate:"min=1"`
	WorkDir     string `mapstructure:"WORK_DIR" validate:"min=1"`
	StorageMode string `mapstructure:"STORAGE_MODE" validate:"oneof=file bbolt"`
	BoltPath    string `mapstructure:"BOLT_PATH" validate:"min=1"`

	SongTimeout  time.Duration `mapstructure:"SONG_TIMEOUT" validate:"nonzero_duration"`
	AlbumTimeout time.Duration `mapstructure:"ALBUM_TIMEOUT" validate:"nonzero_duration"`
	ShortTimeout time.Duration `mapstructure:"SHORT_TIMEOUT" validate:"nonzero_duration"`
	PostTimeout  time.Duration `mapstructure:"POST_TIMEOUT" validate:"nonzero_duration"`
	StoryTimeout time.Duration `mapstructure:"STORY_TIMEOUT" validate:"nonzero_duration"`

	MaxAttempts       int           `mapstructure:"MAX_ATTEMPTS" validate:"min=1"`
	HeartbeatInterval time.Duration `mapstructure:"HEARTBEAT_INTERVAL" validate:"nonzero_duration"`

	AdminIDs       []int64 `mapstructure:"ADMIN_IDS"`
	LoggingChatIDs []int64 `mapstructure:"LOGGING_CHAT_IDS"`

	InstaloaderBin string `mapstructure:"INSTALOADER_BIN" validate:"min=1"`
	YTDLPBin       string `mapstructure:"YTDLP_BIN" validate:"min=1"`
	SessionFile    string `mapstructure:"SESSION_FILE"`

	Messages map[string]string `mapstructure:"MESSAGES"`
}

func (c *AppConfig) Validate() error {
	v := validator.New()

	_ = v.RegisterValidation("nonzero_duration", func(fl validator.FieldLevel) bool {
		if d, ok := fl.Field().Interface().(time.Duration); ok {
			return d > 0
		} else {
			return false
		}
	})
	if err := v.Struct(c); err != nil {
		return err
	}
	return nil
}

// Timeouts returns the per-kind attempt timeout map the supervisor runs
// with.
func (c *AppConfig) Timeouts() map[core.FetchKind]time.Duration {
	return map[core.FetchKind]time.Duration{
		core.FetchKindSong:  c.SongTimeout,
		core.FetchKindAlbum: c.AlbumTimeout,
		core.FetchKindShort: c.ShortTimeout,
		core.FetchKindPost:  c.PostTimeout,
		core.FetchKindStory: c.StoryTimeout,
	}
}

func LoadAppConfig(name, ext string, paths ...string) (*AppConfig, error) {
	for _, path := range paths {
		viper.AddConfigPath(path)
	}
	viper.SetConfigName(name)
	viper.SetConfigType(ext)
	viper.AutomaticEnv()

	setDefaults()

	// a missing config file is fine, env and defaults still apply
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	cfg := &AppConfig{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("SERVER_ADDR", ":8082")
	viper.SetDefault("GIN_MODE", "debug")
	viper.SetDefault("BOT_NAME", "tg-load")
	viper.SetDefault("STATE_DIR", "./data/state")
	viper.SetDefault("WORK_DIR", "./data/work")
	viper.SetDefault("STORAGE_MODE", "file")
	viper.SetDefault("BOLT_PATH", "./data/state/snapshots.db")

	viper.SetDefault("SONG_TIMEOUT", 180*time.Second)
	viper.SetDefault("ALBUM_TIMEOUT", 360*time.Second)
	viper.SetDefault("SHORT_TIMEOUT", 180*time.Second)
	viper.SetDefault("POST_TIMEOUT", 180*time.Second)
	viper.SetDefault("STORY_TIMEOUT", 180*time.Second)
	viper.SetDefault("MAX_ATTEMPTS", 3)
	viper.SetDefault("HEARTBEAT_INTERVAL", 5*time.Second)

	viper.SetDefault("INSTALOADER_BIN", "instaloader")
	viper.SetDefault("YTDLP_BIN", "yt-dlp")

	for key, text := range DefaultMessages() {
		viper.SetDefault("MESSAGES."+key, text)
	}
}

// DefaultMessages holds the reply templates. {bot_name} is replaced with
// the configured name, each {} with one handler argument in order.
func DefaultMessages() map[string]string {
	return map[string]string{
		"start": "Hi! I am {bot_name}. Send me a supported link and I will fetch the media for you.",
		"help": "Send a message with an Instagram, YouTube Shorts or YouTube Music link. " +
			"Use /uncompressed for original quality and /audio to extract audio from YouTube links.",

		"not_admin":           "This command is available to the bot administrators only.",
		"banned":              "You are banned from using this bot.",
		"not_enabled":         "The bot is not enabled in this chat.",
		"private_not_enabled": "The bot is not enabled in this private chat. Ask an administrator to enable it.",
		"no_links":            "No supported links found in the message.",
		"internal_error":      "Something went wrong, please try again later.",

		"feature_disabled": "{} downloads are currently disabled.",
		"download_timeout": "Download of {} has failed after several attempts. Please try again later.",
		"download_failed":  "Download of {} has failed.",

		"enable_no_need":  "The bot is already enabled in this chat.",
		"enable_success":  "The bot is now enabled in this chat.",
		"disable_no_need": "The bot is already disabled in this chat.",
		"disable_success": "The bot is now disabled in this chat.",

		"enable_captions_no_need":  "Captions are already enabled in this chat.",
		"enable_captions_success":  "Captions are now enabled in this chat.",
		"disable_captions_no_need": "Captions are already disabled in this chat.",
		"disable_captions_success": "Captions are now disabled in this chat.",

		"admin_commands": "Admin commands: /enable_chats, /disable_chats, /ban_users, /unban_users, /features.",

		"enable_chats_arg_not_int":  "{} is not a chat id.",
		"enable_chats_no_need":      "The bot is already enabled in chat {}.",
		"enable_chats_success":      "The bot is now enabled in chat {}.",
		"disable_chats_arg_not_int": "{} is not a chat id.",
		"disable_chats_no_need":     "The bot is already disabled in chat {}.",
		"disable_chats_success":     "The bot is now disabled in chat {}.",

		"ban_users_arg_not_int":   "{} is not a user id.",
		"ban_users_arg_admin":     "{} is an administrator and cannot be banned.",
		"ban_users_no_need":       "User {} is already banned.",
		"ban_users_success":       "User {} is now banned.",
		"unban_users_arg_not_int": "{} is not a user id.",
		"unban_users_no_need":     "User {} is not banned.",
		"unban_users_success":     "User {} is now unbanned.",

		"features_usage":   "Usage: /features [name on|off]",
		"features_unknown": "Unknown feature {}.",
		"features_success": "Feature {} updated.",
	}
}
