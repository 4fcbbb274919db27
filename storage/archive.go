package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/NguyenNhut0910/RaspberryPi4B-Server/logger"
)

// Archive mirrors inserted measurements to an append-only JSON-lines file
type Archive struct {
	mu   sync.Mutex
	path string
	file *os.File
}

type archiveRecord struct {
	DeviceID  int64   `json:"device_id"`
	Channel   string  `json:"channel"`
	ChannelID int64   `json:"channel_id"`
	Value     float64 `json:"value"`
	Quality   string  `json:"quality"`
	Timestamp string  `json:"ts"`
}

// NewArchive opens the archive file for appending
func NewArchive(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %v", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file: %v", err)
	}

	logger.Info("measurement archive at %s", path)
	return &Archive{path: path, file: file}, nil
}

// Record appends one measurement as a JSON line
func (a *Archive) Record(deviceID int64, name string, m Measurement) error {
	line, err := json.Marshal(archiveRecord{
		DeviceID:  deviceID,
		Channel:   name,
		ChannelID: m.ChannelID,
		Value:     m.Value,
		Quality:   string(m.Quality),
		Timestamp: m.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize archive record: %v", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write archive record: %v", err)
	}
	return nil
}

// Close closes the archive file
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}
