package sound

import (
	"os"
	"time"

	"github.com/edaniels/golog"
	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// InitSound starts the player goroutine and returns the channel to send wav
// paths to.  A new sound cuts off the one playing.  Close the channel to
// stop the player.
func InitSound(logger golog.Logger) chan string {
	logger = logger.Named("sound")
	soundsToPlay := make(chan string)
	drain := func() {
		for s := range soundsToPlay {
			logger.Debugw("unable to play", "sound", s)
		}
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Warnw("sound player crashed", "panic", r)
			}
			drain()
		}()
		sampleRate := beep.SampleRate(44100)
		if err := speaker.Init(sampleRate, sampleRate.N(time.Second/5)); err != nil {
			logger.Warnw("failed to open speaker", "error", err)
			return
		}
		var ctrl *beep.Ctrl
		var s beep.StreamSeekCloser
		for soundToPlay := range soundsToPlay {
			if ctrl != nil {
				speaker.Lock()
				ctrl.Paused = true
				ctrl.Streamer = nil
				speaker.Unlock()
				ctrl = nil
			}
			if s != nil {
				s.Close()
				s = nil
			}

			f, err := os.Open(soundToPlay)
			if err != nil {
				logger.Warnw("failed to open sound", "error", err)
				continue
			}
			s, _, err = wav.Decode(f)
			if err != nil {
				logger.Warnw("failed to decode sound", "sound", soundToPlay, "error", err)
				f.Close()
				s = nil
				continue
			}
			ctrl = &beep.Ctrl{Streamer: s}
			speaker.Play(ctrl)
		}
	}()
	return soundsToPlay
}
