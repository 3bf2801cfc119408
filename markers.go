package livemap

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrMarkerExists   = errors.New("marker already exists")
	ErrMarkerNotFound = errors.New("marker does not exist")
	ErrNotMarkerOwner = errors.New("marker does not belong to you")
)

type Marker struct {
	Name  string  `json:"name"`
	Owner string  `json:"owner"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// MarkerStore holds the named map markers and rewrites the marker file on
// every change. A change only becomes visible once the file write succeeded.
type MarkerStore struct {
	sync.RWMutex

	path     string
	markers  map[string]Marker
	notifier Notifier
	log      *logrus.Entry
}

// LoadMarkers reads the marker file at path. A missing file is an empty set.
func LoadMarkers(path string, notifier Notifier) (*MarkerStore, error) {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	s := &MarkerStore{
		path:     path,
		markers:  make(map[string]Marker),
		notifier: notifier,
		log:      logrus.WithField("component", "markers"),
	}

	fd, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open markers %s: %w", path, err)
	}
	defer fd.Close()

	markers, err := readMarkers(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to read markers %s: %w", path, err)
	}
	for _, m := range markers {
		s.markers[m.Name] = m
	}

	return s, nil
}

func readMarkers(r io.Reader) ([]Marker, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 5

	var result []Marker
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		var coords [3]float64
		for i := range coords {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[2+i]), 64)
			if err != nil {
				return nil, fmt.Errorf("marker %q: %w", record[0], err)
			}
			coords[i] = v
		}

		result = append(result, Marker{
			Name:  record[0],
			Owner: record[1],
			X:     coords[0],
			Y:     coords[1],
			Z:     coords[2],
		})
	}
	return result, nil
}

func writeMarkers(w io.Writer, markers []Marker) error {
	writer := csv.NewWriter(w)
	writer.UseCRLF = true
	for _, m := range markers {
		err := writer.Write([]string{
			m.Name,
			m.Owner,
			strconv.FormatFloat(m.X, 'f', -1, 64),
			strconv.FormatFloat(m.Y, 'f', -1, 64),
			strconv.FormatFloat(m.Z, 'f', -1, 64),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// commit persists next and only then swaps it in. Callers hold the lock.
func (s *MarkerStore) commit(next map[string]Marker) error {
	err := writeFileAtomic(s.path, func(w io.Writer) error {
		return writeMarkers(w, sortedMarkers(next))
	})
	if err != nil {
		s.log.Errorf("failed to save %s: %v", s.path, err)
		return err
	}
	s.markers = next
	return nil
}

func (s *MarkerStore) cloneLocked() map[string]Marker {
	next := make(map[string]Marker, len(s.markers)+1)
	for k, v := range s.markers {
		next[k] = v
	}
	return next
}

func (s *MarkerStore) reject(player, name string, err error) error {
	s.notifier.Notify(player, fmt.Sprintf("Map> Marker %q: %v.", name, err))
	return fmt.Errorf("marker %q: %w", name, err)
}

// Add creates a marker owned by player.
func (s *MarkerStore) Add(player, name string, x, y, z float64) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.markers[name]; ok {
		return s.reject(player, name, ErrMarkerExists)
	}

	next := s.cloneLocked()
	next[name] = Marker{Name: name, Owner: player, X: x, Y: y, Z: z}
	return s.commit(next)
}

// Remove deletes a marker. Only its owner may remove it.
func (s *MarkerStore) Remove(player, name string) error {
	s.Lock()
	defer s.Unlock()

	marker, ok := s.markers[name]
	if !ok {
		return s.reject(player, name, ErrMarkerNotFound)
	}
	if !strings.EqualFold(marker.Owner, player) {
		return s.reject(player, name, ErrNotMarkerOwner)
	}

	next := s.cloneLocked()
	delete(next, name)
	return s.commit(next)
}

// Teleport looks up the destination for player travelling to a marker.
// Moving the player is up to the caller.
func (s *MarkerStore) Teleport(player, name string) (Marker, error) {
	marker, ok := s.Get(name)
	if !ok {
		return Marker{}, s.reject(player, name, ErrMarkerNotFound)
	}
	return marker, nil
}

func (s *MarkerStore) Get(name string) (Marker, bool) {
	s.RLock()
	defer s.RUnlock()
	m, ok := s.markers[name]
	return m, ok
}

// List returns all markers sorted by name.
func (s *MarkerStore) List() []Marker {
	s.RLock()
	defer s.RUnlock()
	return sortedMarkers(s.markers)
}

func sortedMarkers(markers map[string]Marker) []Marker {
	result := make([]Marker, 0, len(markers))
	for _, m := range markers {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
