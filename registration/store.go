package registration

import (
	"sync"

	"github.com/ruteri/rpt-registration-mock/api"
)

// Store is the set of registered nodes. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]api.RegistrationRecord
	count   int
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]api.RegistrationRecord),
	}
}

// Record stores info under nodeID, replacing any previous record, and
// increments the submission count.
func (s *Store) Record(nodeID string, info api.NodeInfo, clientIP string, clientPort int) {
	record := api.RegistrationRecord{
		Username: info.Node,
		Password: info.Passwd,
		IP:       clientIP,
		Port:     clientPort,
		Remote:   info.Remote,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[nodeID] = record
	s.count++
}

// Snapshot returns a copy of all records and the submission count.
func (s *Store) Snapshot() (map[string]api.RegistrationRecord, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make(map[string]api.RegistrationRecord, len(s.records))
	for id, record := range s.records {
		records[id] = record
	}
	return records, s.count
}

func (s *Store) Get(nodeID string) (api.RegistrationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[nodeID]
	return record, ok
}

// Len returns the number of distinct node ids.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
