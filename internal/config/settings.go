package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
)

const (
	SettingsFormatTOML SettingsFormat = "toml"
	SettingsFormatJSON SettingsFormat = "json"
)

const (
	DefaultTimeoutMs      = 5000
	DefaultHistoryLimit   = 15
	DefaultCallbackAddr   = "127.0.0.1:8090"
	DefaultScope          = "openid profile email"
	DefaultHighlightStyle = "monokai"
)

type Settings struct {
	TimeoutMs       int           `json:"timeout_ms"       toml:"timeout_ms"`
	HistoryLimit    int           `json:"history_limit"    toml:"history_limit"`
	Database        string        `json:"database"         toml:"database"`
	FollowRedirects bool          `json:"follow_redirects" toml:"follow_redirects"`
	Insecure        bool          `json:"insecure"         toml:"insecure"`
	Proxy           string        `json:"proxy"            toml:"proxy"`
	HighlightStyle  string        `json:"highlight_style"  toml:"highlight_style"`
	OAuth           OAuthSettings `json:"oauth"            toml:"oauth"`
}

type OAuthSettings struct {
	CallbackAddr string `json:"callback_addr" toml:"callback_addr"`
	DefaultScope string `json:"default_scope" toml:"default_scope"`
}

func DefaultSettings() Settings {
	return Settings{
		TimeoutMs:       DefaultTimeoutMs,
		HistoryLimit:    DefaultHistoryLimit,
		FollowRedirects: true,
		HighlightStyle:  DefaultHighlightStyle,
		OAuth: OAuthSettings{
			CallbackAddr: DefaultCallbackAddr,
			DefaultScope: DefaultScope,
		},
	}
}

// Normalise replaces unset or out of range values with defaults.
func Normalise(in Settings) Settings {
	def := DefaultSettings()
	if in.TimeoutMs <= 0 {
		in.TimeoutMs = def.TimeoutMs
	}
	if in.HistoryLimit <= 0 {
		in.HistoryLimit = def.HistoryLimit
	}
	in.Database = strings.TrimSpace(in.Database)
	in.Proxy = strings.TrimSpace(in.Proxy)
	if strings.TrimSpace(in.HighlightStyle) == "" {
		in.HighlightStyle = def.HighlightStyle
	}
	if strings.TrimSpace(in.OAuth.CallbackAddr) == "" {
		in.OAuth.CallbackAddr = def.OAuth.CallbackAddr
	}
	if strings.TrimSpace(in.OAuth.DefaultScope) == "" {
		in.OAuth.DefaultScope = def.OAuth.DefaultScope
	}
	return in
}

type SettingsFormat string
type SettingsHandle struct {
	Path   string
	Format SettingsFormat
}

// tries loading TOML first, then JSON, then returns empty settings if neither exists.
// parse errors fail immediately but missing files just skip to the next format.
func LoadSettings() (Settings, SettingsHandle, error) {
	dir := Dir()
	candidates := []SettingsHandle{
		{Path: filepath.Join(dir, "settings.toml"), Format: SettingsFormatTOML},
		{Path: filepath.Join(dir, "settings.json"), Format: SettingsFormatJSON},
	}

	var accumulated error
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate.Path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			accumulated = errors.Join(
				accumulated,
				errdef.Wrap(errdef.CodeConfig, err, "read settings %q", candidate.Path),
			)
			continue
		}

		settings, err := decodeSettings(data, candidate.Format)
		if err != nil {
			return Settings{}, SettingsHandle{}, errdef.Wrap(
				errdef.CodeConfig,
				err,
				"parse settings %q",
				candidate.Path,
			)
		}
		return Normalise(settings), candidate, nil
	}

	if accumulated != nil {
		return Settings{}, SettingsHandle{}, accumulated
	}

	return DefaultSettings(), SettingsHandle{
		Path:   candidates[0].Path,
		Format: SettingsFormatTOML,
	}, nil
}

// decodeSettings starts from the defaults so keys missing from the file keep
// their default value.
func decodeSettings(data []byte, format SettingsFormat) (Settings, error) {
	settings := DefaultSettings()
	switch format {
	case SettingsFormatTOML:
		if err := toml.Unmarshal(data, &settings); err != nil {
			return Settings{}, err
		}
	case SettingsFormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&settings); err != nil {
			return Settings{}, err
		}
	default:
		return Settings{}, fmt.Errorf("unsupported settings format %q", format)
	}
	return settings, nil
}

func SaveSettings(settings Settings, handle SettingsHandle) error {
	settings = Normalise(settings)
	path := handle.Path
	format := handle.Format
	if path == "" {
		path = filepath.Join(Dir(), "settings.toml")
	}
	if format == "" {
		format = SettingsFormatTOML
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "ensure settings directory")
	}

	var (
		data []byte
		err  error
	)

	switch format {
	case SettingsFormatTOML:
		data, err = toml.Marshal(settings)
	case SettingsFormatJSON:
		buffer := &bytes.Buffer{}
		encoder := json.NewEncoder(buffer)
		encoder.SetIndent("", "  ")
		if err = encoder.Encode(settings); err == nil {
			data = buffer.Bytes()
		}
	default:
		return errdef.New(errdef.CodeConfig, "unsupported settings format %q", format)
	}
	if err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "encode settings")
	}

	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "write settings %q", path)
	}
	return nil
}

// write to temp file then rename so readers never see partial/corrupt data.
// rename is atomic on most filesystems so the settings file is always valid.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".commandpost-settings-*.tmp")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		closeErr := tmp.Close()
		if closeErr != nil {
			return errors.Join(err, closeErr)
		}
		return err
	}

	if err := tmp.Chmod(perm); err != nil {
		closeErr := tmp.Close()
		if closeErr != nil {
			return errors.Join(err, closeErr)
		}
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	return nil
}
