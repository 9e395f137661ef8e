// ABOUTME: ALSA-backed mixer element lookup
// ABOUTME: Resolves "<element> Playback Volume/Switch" controls on a card
package mixer

import (
	"errors"
	"fmt"
	"log"

	"github.com/gen2brain/alsa"
)

// ErrNoElement means the configured element has no playback volume control
// on the card. Playback proceeds with volume control disabled.
var ErrNoElement = errors.New("mixer element not found")

// Open attaches to the card and resolves the element's playback controls.
// An empty element name disables hardware volume; that returns a nil
// session and no error.
func Open(card int, element string) (*Session, error) {
	if element == "" || element == "none" {
		return nil, nil
	}

	mx, err := alsa.MixerOpen(uint(card))
	if err != nil {
		return nil, fmt.Errorf("open mixer card %d: %w", card, err)
	}

	ctl, err := mx.CtlByName(element + " Playback Volume")
	if err != nil {
		mx.Close()
		return nil, fmt.Errorf("%w: %q on card %d: %v", ErrNoElement, element, card, err)
	}
	volume := mixerCtl{ctl}

	// The switch is optional; many elements carry only a volume.
	var sw Control
	if ctl, err := mx.CtlByName(element + " Playback Switch"); err == nil {
		sw = mixerCtl{ctl}
	}

	log.Printf("mixer: using element %q on card %d (channels=%d, switch=%v)",
		element, card, volume.NumValues(), sw != nil)

	return New(volume, sw, mx), nil
}

// mixerCtl adapts *alsa.MixerCtl to the Control interface, which counts
// channels as uint.
type mixerCtl struct{ *alsa.MixerCtl }

func (c mixerCtl) NumValues() uint { return uint(c.MixerCtl.NumValues()) }
