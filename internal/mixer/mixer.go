// ABOUTME: Hardware mixer session with per-channel volume and mute handling
// ABOUTME: Maps left/right volume onto mono or stereo elements and switches
package mixer

import (
	"io"
	"log"
	"sync"
)

// Control is one mixer control: a volume (integer, percent-addressable) or
// a mute switch (boolean). Values are addressed by channel id.
type Control interface {
	NumValues() uint
	Percent(id uint) (int, error)
	SetPercent(id uint, percent int) error
	SetValue(id uint, value int) error
}

// Session owns an open mixer element. It has its own lock so volume calls
// never contend with the audio path. A nil Session is valid: volume reads
// return (0, 0) and writes are no-ops.
type Session struct {
	mu     sync.Mutex
	volume Control
	sw     Control // nil when the element has no mute switch
	closer io.Closer
}

// New builds a session from controls. closer may be nil; the ALSA path
// passes the underlying mixer handle so Close releases it.
func New(volume, sw Control, closer io.Closer) *Session {
	return &Session{volume: volume, sw: sw, closer: closer}
}

// Volume returns the current left/right volume in percent. A mono element
// reports the same value for both channels.
func (s *Session) Volume() (int, int) {
	if s == nil || s.volume == nil {
		return 0, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	left, err := s.volume.Percent(0)
	if err != nil {
		log.Printf("mixer: get volume: %v", err)
		return 0, 0
	}
	if s.volume.NumValues() < 2 {
		return left, left
	}

	right, err := s.volume.Percent(1)
	if err != nil {
		log.Printf("mixer: get volume: %v", err)
		return left, left
	}
	return left, right
}

// SetVolume sets the left/right volume in percent. A mono element gets
// max(left, right). When the element has a mute switch it is tied to
// "volume is zero": joined switches follow max(left, right), independent
// ones follow their own channel.
func (s *Session) SetVolume(left, right int) {
	if s == nil || s.volume == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	loudest := left
	if right > loudest {
		loudest = right
	}

	if s.volume.NumValues() < 2 {
		s.setPercent(0, loudest)
		if s.sw != nil {
			s.setSwitch(0, loudest != 0)
		}
		return
	}

	s.setPercent(0, left)
	s.setPercent(1, right)

	if s.sw == nil {
		return
	}
	if s.sw.NumValues() < 2 { // joined switch controls both channels
		s.setSwitch(0, loudest != 0)
	} else {
		s.setSwitch(0, left != 0)
		s.setSwitch(1, right != 0)
	}
}

// Close releases the mixer handle.
func (s *Session) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closer.Close()
}

func (s *Session) setPercent(id uint, percent int) {
	if err := s.volume.SetPercent(id, percent); err != nil {
		log.Printf("mixer: set volume channel %d: %v", id, err)
	}
}

func (s *Session) setSwitch(id uint, on bool) {
	value := 0
	if on {
		value = 1
	}
	if err := s.sw.SetValue(id, value); err != nil {
		log.Printf("mixer: set switch channel %d: %v", id, err)
	}
}
