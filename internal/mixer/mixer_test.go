// ABOUTME: Tests for mixer volume policy
// ABOUTME: Tests mono/stereo mapping and joined/independent switch handling
package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeControl records values per channel.
type fakeControl struct {
	channels uint
	percents map[uint]int
	values   map[uint]int
}

func newFakeControl(channels uint) *fakeControl {
	return &fakeControl{
		channels: channels,
		percents: make(map[uint]int),
		values:   make(map[uint]int),
	}
}

func (c *fakeControl) NumValues() uint { return c.channels }

func (c *fakeControl) Percent(id uint) (int, error) { return c.percents[id], nil }

func (c *fakeControl) SetPercent(id uint, percent int) error {
	c.percents[id] = percent
	return nil
}

func (c *fakeControl) SetValue(id uint, value int) error {
	c.values[id] = value
	return nil
}

func TestMonoElement(t *testing.T) {
	volume := newFakeControl(1)
	sw := newFakeControl(1)
	s := New(volume, sw, nil)

	// Mono gets the louder channel; switch follows nonzero volume.
	s.SetVolume(80, 60)
	assert.Equal(t, 80, volume.percents[0])
	assert.Equal(t, 1, sw.values[0])

	left, right := s.Volume()
	assert.Equal(t, 80, left)
	assert.Equal(t, 80, right)

	s.SetVolume(0, 0)
	assert.Equal(t, 0, volume.percents[0])
	assert.Equal(t, 0, sw.values[0])
}

func TestStereoElementIndependentSwitch(t *testing.T) {
	volume := newFakeControl(2)
	sw := newFakeControl(2)
	s := New(volume, sw, nil)

	s.SetVolume(70, 0)
	assert.Equal(t, 70, volume.percents[0])
	assert.Equal(t, 0, volume.percents[1])
	assert.Equal(t, 1, sw.values[0])
	assert.Equal(t, 0, sw.values[1])

	left, right := s.Volume()
	assert.Equal(t, 70, left)
	assert.Equal(t, 0, right)
}

func TestStereoElementJoinedSwitch(t *testing.T) {
	volume := newFakeControl(2)
	sw := newFakeControl(1)
	s := New(volume, sw, nil)

	// Joined switch stays on while either channel is audible.
	s.SetVolume(0, 55)
	assert.Equal(t, 0, volume.percents[0])
	assert.Equal(t, 55, volume.percents[1])
	assert.Equal(t, 1, sw.values[0])

	s.SetVolume(0, 0)
	assert.Equal(t, 0, sw.values[0])
}

func TestElementWithoutSwitch(t *testing.T) {
	volume := newFakeControl(2)
	s := New(volume, nil, nil)

	s.SetVolume(40, 50)
	assert.Equal(t, 40, volume.percents[0])
	assert.Equal(t, 50, volume.percents[1])
}

func TestAbsentElement(t *testing.T) {
	var s *Session

	left, right := s.Volume()
	assert.Equal(t, 0, left)
	assert.Equal(t, 0, right)

	s.SetVolume(80, 80) // no-op, must not panic
	assert.NoError(t, s.Close())
}

func TestOpenDisabledElement(t *testing.T) {
	s, err := Open(0, "")
	assert.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(0, "none")
	assert.NoError(t, err)
	assert.Nil(t, s)
}
