// Package config loads the bot configuration from a TOML file, the
// environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "TSAYBOT"

// Config is the complete bot configuration.
type Config struct {
	Domains   map[string]Domain `mapstructure:"domains" validate:"required,min=1,dive,keys,domainname,endkeys"`
	Paths     Paths             `mapstructure:"paths"`
	Storage   Storage           `mapstructure:"storage"`
	Reminders Reminders         `mapstructure:"reminders"`
	Server    Server            `mapstructure:"server"`
	Debug     bool              `mapstructure:"debug"`
}

// Paths locates the bot's files.
type Paths struct {
	DataDir string `mapstructure:"data_dir" validate:"required"`
	LogsDir string `mapstructure:"logs_dir" validate:"required"`
	Token   string `mapstructure:"token" validate:"required"` // File holding the bot token
}

// Storage selects the session store backend.
type Storage struct {
	Backend         string `mapstructure:"backend" validate:"oneof=local gcs sqlite"`
	Bucket          string `mapstructure:"bucket" validate:"required_if=Backend gcs"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// Server configures the ops HTTP server. Port 0 disables it.
type Server struct {
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// Reminders sets when the daily reminder pass runs.
type Reminders struct {
	Timezone string `mapstructure:"timezone" validate:"required,timezone"`
	Hour     int    `mapstructure:"hour" validate:"gte=0,lte=23"`
}

// Domain binds a club to one guild. Every value is a platform ID.
type Domain struct {
	Guild           string `mapstructure:"guild" validate:"required,numeric"`
	ControlChannel  string `mapstructure:"control_channel" validate:"required,numeric"`
	VoteChannel     string `mapstructure:"vote_channel" validate:"required,numeric"`
	AnnounceChannel string `mapstructure:"announce_channel" validate:"required,numeric"`
	EventChannel    string `mapstructure:"event_channel" validate:"required,numeric"`
	MemberRole      string `mapstructure:"member_role" validate:"required,numeric"`
}

var domainName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// New returns a viper instance with the bot's defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetDefault("paths.data_dir", "./data")
	v.SetDefault("paths.logs_dir", "./logs")
	v.SetDefault("paths.token", "./token.txt")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("server.port", 0)
	v.SetDefault("reminders.hour", 10)
	v.SetDefault("reminders.timezone", "America/New_York")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Names kept from earlier deployments.
	_ = v.BindEnv("paths.token", envPrefix+"_DISCORD_TOKEN_PATH")
	_ = v.BindEnv("paths.logs_dir", envPrefix+"_LOGS_DIR")
	_ = v.BindEnv("paths.data_dir", envPrefix+"_DATA_DIR")
	return v
}

// Load reads the TOML file at path into v and returns the validated configuration.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("domainname", func(fl validator.FieldLevel) bool {
		return domainName.MatchString(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("register validation: %w", err)
	}

	err := validate.Struct(cfg)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ReadToken returns the bot token stored in the file at path.
func ReadToken(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", fmt.Errorf("read token: %s is empty", path)
	}
	return token, nil
}
