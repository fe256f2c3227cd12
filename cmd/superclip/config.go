package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/superclip/internal/clip"
	"go.klb.dev/superclip/internal/logging"
	"go.klb.dev/superclip/internal/surface"
)

// Config keys shared by flags, SUPERCLIP_* variables and superclip.toml.
const (
	keyBackend   = "backend"
	keyDisplay   = "display"
	keyTimeout   = "timeout"
	keyAnchor    = "anchor"
	keyShowMime  = "show-mime"
	keyNoNewline = "no-newline"
	keyConfig    = "config"
)

var userConfigDir = os.UserConfigDir

// bindViper layers a command's settings. Later sources win:
// flag defaults, superclip.toml, SUPERCLIP_* variables, flags set on the
// command line. Without --config the file is looked up in
// $XDG_CONFIG_HOME/superclip and then /etc/superclip; none is fine.
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	if path, _ := cmd.Flags().GetString(keyConfig); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("superclip")
		v.SetConfigType("toml")
		if dir, err := userConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "superclip"))
		}
		v.AddConfigPath("/etc/superclip")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("SUPERCLIP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addPasteFlags registers the paste settings. Every flag can also be set
// from the config file or a SUPERCLIP_* variable.
func addPasteFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolP(keyShowMime, "s", false, "print the advertised MIME types to stderr before reading")
	f.BoolP(keyNoNewline, "n", false, "do not append a newline to the text")
	f.String(keyBackend, clip.BackendWayland, "clipboard backend: wayland|system")
	f.String(keyDisplay, "", "Wayland display name or socket path (default: $WAYLAND_DISPLAY)")
	f.Duration(keyTimeout, 0, "give up if the compositor stops answering (0 waits forever)")
	f.Bool(keyAnchor, true, "map a 1x1 surface first; some compositors require it")
	f.String("log-format", "auto", "log format: auto|text|json")
	f.String("log-level", "", "log level: debug|info|warn|error (default: error, debug with --debug)")
	f.String(keyConfig, "", "path to config file (overrides auto-discovery)")
}

// pasteOptions is the resolved paste configuration.
type pasteOptions struct {
	Backend   string
	Display   string
	Timeout   time.Duration
	Anchor    bool
	ShowMime  bool
	NoNewline bool
}

func loadPasteOptions(v *viper.Viper) (pasteOptions, error) {
	o := pasteOptions{
		Backend:   strings.ToLower(strings.TrimSpace(v.GetString(keyBackend))),
		Display:   v.GetString(keyDisplay),
		Timeout:   v.GetDuration(keyTimeout),
		Anchor:    v.GetBool(keyAnchor),
		ShowMime:  v.GetBool(keyShowMime),
		NoNewline: v.GetBool(keyNoNewline),
	}
	switch o.Backend {
	case "", clip.BackendWayland, clip.BackendSystem:
	default:
		return o, fmt.Errorf("config: unknown backend %q (want %s or %s)", o.Backend, clip.BackendWayland, clip.BackendSystem)
	}
	if o.Timeout < 0 {
		return o, fmt.Errorf("config: timeout must not be negative, got %s", o.Timeout)
	}
	if o.Display != "" && o.Backend == clip.BackendSystem {
		return o, errors.New("config: display only applies to the wayland backend")
	}
	return o, nil
}

// clipConfig translates the options for clip.New. The anchor surface is
// only mapped for the wayland backend.
func (o pasteOptions) clipConfig() clip.Config {
	cfg := clip.Config{Backend: o.Backend, Display: o.Display}
	if o.Anchor && o.Backend != clip.BackendSystem {
		cfg.Anchor = surface.Establish
	}
	return cfg
}

// setupLogging configures slog from log-format, log-level and --debug.
func setupLogging(v *viper.Viper) {
	logging.Setup(
		logging.ParseFormat(v.GetString("log-format")),
		logging.ResolveLevel(v.GetBool("debug"), v.GetString("log-level")),
	)
}
