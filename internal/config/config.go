// Package config loads and persists the station settings file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	FeedURL             string `json:"feed_url"`
	ArtworkSearchURL    string `json:"artwork_search_url"`
	PlaylistURL         string `json:"playlist_url"`
	DefaultStreamURL    string `json:"default_stream_url"`
	SilenceStreamURL    string `json:"silence_stream_url"`
	DefaultArtworkURL   string `json:"default_artwork_url"`
	StationTitle        string `json:"station_title"`
	PollSeconds         int    `json:"poll_seconds"`
	SilentModeSupported bool   `json:"silent_mode_supported"`
	Debug               bool   `json:"debug"`
}

// Default returns the built-in station settings.
func Default() *Config {
	return &Config{
		FeedURL:             "https://api-nowplaying.amperwave.net/api/v1/prtplus/nowplaying/10/4756/nowplaying.json",
		ArtworkSearchURL:    "https://itunes.apple.com/search",
		PlaylistURL:         "https://live.amperwave.net/playlist/caradio-koztfmaac-ibc3.m3u",
		DefaultStreamURL:    "https://live.amperwave.net/playlist/caradio-koztfmaac-ibc3.m3u",
		SilenceStreamURL:    "https://github.com/anars/blank-audio/blob/master/10-minutes-of-silence.mp3?raw=true",
		DefaultArtworkURL:   "https://kozt.com/wp-content/uploads/KOZT-Logo-No-Tag.png",
		StationTitle:        "KOZT - The Coast",
		PollSeconds:         15,
		SilentModeSupported: true,
	}
}

// userConfigDir is swappable for tests.
var userConfigDir = os.UserConfigDir

func GetAppConfig() (*Config, error) {
	path, err := appPath()
	if err != nil {
		return nil, fmt.Errorf("GetAppConfig: failed to access config path due to error %w:", err)
	}

	cfgfile, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			err := os.MkdirAll(filepath.Dir(path), 0700)
			if err != nil {
				return nil, fmt.Errorf("GetAppConfig: failed to create default path due to error %w:", err)
			}

			conf := Default()

			b, err := json.Marshal(conf)
			if err != nil {
				return nil, fmt.Errorf("GetAppConfig: failed to convert and store default config %w:", err)
			}

			if err := os.WriteFile(path, b, 0644); err != nil {
				return nil, fmt.Errorf("GetAppConfig: failed to create default config due to error %w:", err)
			}

			return conf, nil
		}

		return nil, fmt.Errorf("GetAppConfig: failed to open config due to error %w:", err)
	}
	defer cfgfile.Close()

	conf := &Config{}
	if err := json.NewDecoder(cfgfile).Decode(conf); err != nil {
		return nil, fmt.Errorf("GetAppConfig: failed to decode config due to error %w:", err)
	}

	return conf, nil
}

func appPath() (string, error) {
	oscfg, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("appPath: failed to get config file due to error %w:", err)
	}

	return filepath.Join(oscfg, "castfm", "settings.json"), nil
}

func (s *Config) SaveAppConfig() error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("SaveAppConfig: failed to marshal json due to error %w:", err)
	}

	path, err := appPath()
	if err != nil {
		return fmt.Errorf("SaveAppConfig: failed to access config path due to error %w:", err)
	}

	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("SaveAppConfig: failed save config due to error %w:", err)
	}

	return nil
}
