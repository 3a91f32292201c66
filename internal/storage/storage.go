// Package storage keeps per-guild history in a keshon/datastore file. Live
// playback sessions are never stored here.
package storage

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/keshon/datastore"
)

const (
	commandHistoryLimit int = 50
	tracksHistoryLimit  int = 12
)

type Storage struct {
	// mu serializes read-modify-write of guild records
	mu sync.Mutex
	ds *datastore.DataStore
}

type CommandRecord struct {
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Command   string    `json:"command"`
	Param     string    `json:"param"`
	Datetime  time.Time `json:"datetime"`
}

type TrackRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	URI       string    `json:"uri"`
	Requester string    `json:"requester"`
	PlayedAt  time.Time `json:"played_at"`
}

type Record struct {
	CommandsHistory []CommandRecord `json:"cmd_history"`
	TracksHistory   []TrackRecord   `json:"tracks_history"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, fmt.Errorf("open datastore %s: %w", filePath, err)
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// guildRecord loads the record for a guild, or an empty one. Values read
// back from the file come out as generic maps, hence the JSON round trip.
func (s *Storage) guildRecord(guildID string) (*Record, error) {
	data, exists := s.ds.Get(guildID)
	if !exists {
		return &Record{}, nil
	}
	if rec, ok := data.(*Record); ok {
		cp := *rec
		return &cp, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}
	var record Record
	if err := json.Unmarshal(jsonData, &record); err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}
	return &record, nil
}

// AppendCommand records a command run, keeping the most recent entries.
func (s *Storage) AppendCommand(guildID string, rec CommandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.guildRecord(guildID)
	if err != nil {
		return err
	}
	record.CommandsHistory = keepLast(append(record.CommandsHistory, rec), commandHistoryLimit)
	s.ds.Add(guildID, record)
	return nil
}

// Commands returns the guild's command history, oldest first.
func (s *Storage) Commands(guildID string) ([]CommandRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.guildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistory, nil
}

// AppendTrack records a track that started playing.
func (s *Storage) AppendTrack(guildID string, rec TrackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.guildRecord(guildID)
	if err != nil {
		return err
	}
	record.TracksHistory = keepLast(append(record.TracksHistory, rec), tracksHistoryLimit)
	s.ds.Add(guildID, record)
	return nil
}

// Tracks returns recently played tracks, oldest first.
func (s *Storage) Tracks(guildID string) ([]TrackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.guildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.TracksHistory, nil
}

func keepLast[T any](list []T, n int) []T {
	if len(list) <= n {
		return list
	}
	return append([]T(nil), list[len(list)-n:]...)
}
