package aeris

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the set of tunables an Application is constructed with. It is
// ordinarily populated via LoadConfig from a JSON/TOML/YAML file on disk,
// the same extension-dispatch convention the teacher's Serve used for its
// own configuration file.
type Config struct {
	// Address is the TCP address the host server listens on.
	//
	// Default value: "localhost:8080"
	Address string `mapstructure:"address"`

	// ReadTimeout is the maximum duration allowed to read a request,
	// including its body.
	//
	// Default value: 0 (no timeout)
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration allowed to write a response.
	//
	// Default value: 0 (no timeout)
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum duration to wait for the next request
	// on a keep-alive connection.
	//
	// Default value: 0 (falls back to ReadTimeout)
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// MaxHeaderBytes bounds the size of the request line plus headers.
	//
	// Default value: 1048576
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`

	// RouteCacheSize bounds the number of entries kept in the router's
	// match cache (spec.md §4.1).
	//
	// Default value: 4096
	RouteCacheSize int `mapstructure:"route_cache_size"`

	// SpoolMaxMemory bounds how many bytes of multipart part data are
	// buffered in-memory before spilling to disk (spec.md §4.4).
	//
	// Default value: 16777216
	SpoolMaxMemory int `mapstructure:"spool_max_memory"`

	// SpoolDir is the directory spilled multipart parts are written to.
	// Empty means os.TempDir().
	SpoolDir string `mapstructure:"spool_dir"`

	// TrustedProxies lists the CIDRs or IPs allowed to set
	// X-Forwarded-* headers (spec.md §4.8).
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	// TrustedHosts lists the Host header values this deployment accepts.
	// An empty list accepts any host.
	TrustedHosts []string `mapstructure:"trusted_hosts"`

	// ForwardLimit caps how many proxy hops a Forwarded/X-Forwarded-For
	// chain may record before the request is rejected.
	//
	// Default value: 1
	ForwardLimit int `mapstructure:"forward_limit"`

	DebugMode bool `mapstructure:"debug_mode"`

	// ShowErrorDetails, when set, includes the underlying error text in
	// the body of a 500 response for an unexpected (uncaught) error.
	// Off by default: an unexpected error's body is a generic message
	// (spec.md §7 "a generic body or, when show_error_details is
	// enabled, a textual trace").
	ShowErrorDetails bool `mapstructure:"show_error_details"`
}

// DefaultConfig returns a Config with the documented defaults, the same
// way the teacher seeded its own defaultConfig.
func DefaultConfig() Config {
	return Config{
		Address:        "localhost:8080",
		MaxHeaderBytes: 1 << 20,
		RouteCacheSize: 4096,
		SpoolMaxMemory: 16 << 20,
		ForwardLimit:   1,
	}
}

// LoadConfig reads a JSON, TOML, or YAML file (chosen by extension) into an
// intermediate map and decodes it into dest via mapstructure, mirroring the
// teacher's Serve-time configuration loading.
func LoadConfig(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	raw := map[string]interface{}{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		return fmt.Errorf("aeris: unsupported configuration file extension: %s", ext)
	}
	if err != nil {
		return err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dest,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// WatchConfig watches path for writes and calls onChange with a freshly
// LoadConfig-ed dest each time it changes, the same fsnotify-driven reload
// pattern the teacher's Coffer and Renderer used for asset and template
// directories. The returned stop func closes the watcher; WatchConfig
// itself returns once the watcher is established, logging reload errors
// through logger rather than returning them.
func WatchConfig(path string, dest interface{}, logger *Logger, onChange func()) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				eventAbs, err := filepath.Abs(event.Name)
				if err != nil || eventAbs != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := LoadConfig(path, dest); err != nil {
					logger.Warnw("config reload failed", "path", path, "error", err.Error())
					continue
				}
				onChange()
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnw("config watcher error", "error", werr.Error())
			}
		}
	}()

	return watcher.Close, nil
}
