// Package config loads and live-reloads the core's process configuration
// (spec §6's configuration list; SPEC_FULL §4.7): the Graph Backend
// connection target and credentials, Command Broker defaults, and Event
// Bus mailbox bound. Loaded via a process-wide viper instance, split
// between environment, project file, and defaults.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/graphkeep/graphkeep/internal/graphbackend"
)

// EnvPrefix is the environment variable prefix honored for every config
// key (e.g. GRAPHKEEP_BROKER_WAITTIMEOUTMS).
const EnvPrefix = "GRAPHKEEP"

// ProjectConfigName/Type name the project-local config file, searched for
// in the working directory and ./.graphkeep/.
const ProjectConfigName = "graphkeep"
const ProjectConfigType = "toml"

// Backend holds the Graph Backend connection target and credentials.
type Backend struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// AsGraphBackendConfig converts to the shape graphbackend.Open accepts.
func (b Backend) AsGraphBackendConfig() graphbackend.Config {
	return graphbackend.Config{
		Host:     b.Host,
		Port:     b.Port,
		User:     b.User,
		Password: b.Password,
		Database: b.Database,
	}
}

// Config is the core's full, resolved configuration.
type Config struct {
	Backend Backend

	BrokerWaitTimeoutMs   int
	BrokerHistoryCapacity int

	EventBusMailboxBound int

	// NatsURL, when non-empty, enables mirroring Event Bus events to NATS
	// JetStream (SPEC_FULL domain stack, C8 Event Bus). Empty disables JetStream fan-out.
	NatsURL string

	LogLevel  string
	LogFormat string
}

func defaults() *Config {
	return &Config{
		Backend: Backend{
			Host:     "127.0.0.1",
			Port:     3307,
			User:     "root",
			Database: "graphkeep",
		},
		BrokerWaitTimeoutMs:   300000,
		BrokerHistoryCapacity: 1000,
		EventBusMailboxBound:  256,
		NatsURL:               "",
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// Loader owns the viper instance and the currently resolved Config, and
// supports live-reload of the reloadable fields (broker defaults, log
// level/format) when the project config file changes on disk.
type Loader struct {
	v          *viper.Viper
	configFile string
	mu         sync.RWMutex
	cfg        *Config
}

// projectConfigSearchPaths are searched, in order, for graphkeep.toml.
var projectConfigSearchPaths = []string{".", "./.graphkeep"}

// Load builds a Loader: defaults, then the project config file (if
// present, searched in the working directory and ./.graphkeep/), then
// GRAPHKEEP_-prefixed environment variables, in increasing precedence.
//
// The project file is decoded with BurntSushi/toml rather than left to
// viper's own TOML support, then merged into viper's config map with
// MergeConfigMap — this is the codec SPEC_FULL names for the project
// file, and viper's MergeConfigMap accepts any map[string]any however it
// was produced.
func Load() (*Loader, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaultsToViper(v, defaults())

	configFile := locateProjectConfig()
	if configFile != "" {
		decoded, err := decodeProjectConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", configFile, err)
		}
		if err := v.MergeConfigMap(decoded); err != nil {
			return nil, fmt.Errorf("merging project config %s: %w", configFile, err)
		}
	}

	l := &Loader{v: v, configFile: configFile}
	l.cfg = l.resolve()
	return l, nil
}

// locateProjectConfig returns the first graphkeep.toml found on
// projectConfigSearchPaths, or "" if none exists.
func locateProjectConfig() string {
	for _, dir := range projectConfigSearchPaths {
		candidate := filepath.Join(dir, ProjectConfigName+"."+ProjectConfigType)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// decodeProjectConfig decodes a graphkeep.toml file into the generic map
// shape viper.MergeConfigMap expects.
func decodeProjectConfig(path string) (map[string]any, error) {
	var decoded map[string]any
	if _, err := toml.DecodeFile(path, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func applyDefaultsToViper(v *viper.Viper, d *Config) {
	v.SetDefault("backend.host", d.Backend.Host)
	v.SetDefault("backend.port", d.Backend.Port)
	v.SetDefault("backend.user", d.Backend.User)
	v.SetDefault("backend.password", d.Backend.Password)
	v.SetDefault("backend.database", d.Backend.Database)
	v.SetDefault("broker.waittimeoutms", d.BrokerWaitTimeoutMs)
	v.SetDefault("broker.historycapacity", d.BrokerHistoryCapacity)
	v.SetDefault("eventbus.mailboxbound", d.EventBusMailboxBound)
	v.SetDefault("eventbus.natsurl", d.NatsURL)
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("log.format", d.LogFormat)
}

func (l *Loader) resolve() *Config {
	return &Config{
		Backend: Backend{
			Host:     l.v.GetString("backend.host"),
			Port:     l.v.GetInt("backend.port"),
			User:     l.v.GetString("backend.user"),
			Password: l.v.GetString("backend.password"),
			Database: l.v.GetString("backend.database"),
		},
		BrokerWaitTimeoutMs:   l.v.GetInt("broker.waittimeoutms"),
		BrokerHistoryCapacity: l.v.GetInt("broker.historycapacity"),
		EventBusMailboxBound:  l.v.GetInt("eventbus.mailboxbound"),
		NatsURL:               l.v.GetString("eventbus.natsurl"),
		LogLevel:              l.v.GetString("log.level"),
		LogFormat:             l.v.GetString("log.format"),
	}
}

// Current returns the most recently resolved Config. Safe for concurrent
// use with Watch's reload.
func (l *Loader) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Watch live-reloads broker defaults and log level/format when the project
// config file changes on disk. The backend connection target is
// deliberately excluded: changing it requires a process restart, since the
// Graph Backend Adapter's connection pool is not reconstructible in place.
func (l *Loader) Watch() (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}

	if l.configFile == "" {
		watcher.Close()
		return func() error { return nil }, nil
	}
	if err := watcher.Add(l.configFile); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching config file: %w", err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) {
					continue
				}
				decoded, err := decodeProjectConfig(l.configFile)
				if err != nil {
					log.Printf("config: reload failed, keeping previous values: %v", err)
					continue
				}
				if err := l.v.MergeConfigMap(decoded); err != nil {
					log.Printf("config: merging reloaded config failed, keeping previous values: %v", err)
					continue
				}
				l.reloadLocked()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("config: watcher error: %v", err)
			}
		}
	}()

	return watcher.Close, nil
}

// reloadLocked re-resolves the config, but only copies over the fields
// Watch's doc comment says are live-reloadable: Backend is intentionally
// held at its originally resolved value.
func (l *Loader) reloadLocked() {
	next := l.resolve()
	l.mu.Lock()
	defer l.mu.Unlock()
	next.Backend = l.cfg.Backend
	l.cfg = next
	log.Printf("config: reloaded broker/log settings from %s", l.configFile)
}
