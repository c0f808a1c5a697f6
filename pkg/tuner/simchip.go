package tuner

import (
	"errors"
	"sort"
	"sync"

	"github.com/dougsko/microfm/pkg/bus"
)

var errSimProtocol = errors.New("sim: transfer outside transaction")

// SimStation is a broadcaster known to SimChip.
type SimStation struct {
	Channel Channel
	Stereo  bool
	RSSI    uint8
}

type simPhase int

const (
	simIdle simPhase = iota
	simAddress
	simWriting
	simReading
)

// SimChip is a byte-level model of the receiver. It accepts sequential
// register writes from 02H, latches one-shot tune and seek requests at the
// stop condition, and answers reads from 0AH. It implements bus.Transport.
type SimChip struct {
	mu sync.Mutex

	writeAddr uint8
	regs      WriteMirror
	stations  map[Channel]SimStation

	channel Channel
	stc, sf bool

	phase  simPhase
	index  int
	status ReadMirror
	frame  []byte

	frames   [][]byte
	readAcks []bool
	tunes    int
	seeks    int
	resets   int
	failNext error
}

// NewSimChip returns a chip at DefaultWriteAddress with the given stations.
func NewSimChip(stations ...SimStation) *SimChip {
	s := &SimChip{
		writeAddr: DefaultWriteAddress,
		stations:  make(map[Channel]SimStation),
	}
	for _, st := range stations {
		s.stations[st.Channel&MaxChannel] = st
	}
	return s
}

// AddStation registers or replaces a station.
func (s *SimChip) AddStation(st SimStation) {
	s.mu.Lock()
	s.stations[st.Channel&MaxChannel] = st
	s.mu.Unlock()
}

// FailNext makes the next byte transfer fail with err.
func (s *SimChip) FailNext(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

func (s *SimChip) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = simAddress
	s.index = 0
	s.frame = nil
	return nil
}

func (s *SimChip) WriteByte(b byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}

	switch s.phase {
	case simAddress:
		switch b {
		case s.writeAddr:
			s.phase = simWriting
		case s.writeAddr | 1:
			s.phase = simReading
			s.readAcks = nil
			s.status = s.statusLocked()
		default:
			s.phase = simIdle
			return bus.ErrNoAck
		}
		return nil
	case simWriting:
		if s.index >= WriteFrameLen {
			return bus.ErrNoAck
		}
		s.frame = append(s.frame, b)
		s.index++
		return nil
	default:
		return errSimProtocol
	}
}

func (s *SimChip) Receive(ack bool) (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return 0, err
	}
	if s.phase != simReading {
		return 0, errSimProtocol
	}

	var v byte
	if s.index < ReadFrameLen {
		v = s.status[s.index]
	}
	s.index++
	s.readAcks = append(s.readAcks, ack)
	if !ack {
		s.phase = simIdle
	}
	return v, nil
}

func (s *SimChip) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == simWriting && len(s.frame) > 0 {
		s.applyLocked(s.frame)
	}
	s.phase = simIdle
	return nil
}

func (s *SimChip) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	if err != nil {
		s.phase = simIdle
	}
	return err
}

func (s *SimChip) applyLocked(frame []byte) {
	s.frames = append(s.frames, append([]byte(nil), frame...))
	copy(s.regs[:], frame)

	var sent WriteMirror
	copy(sent[:], frame)
	if len(frame) >= 2 && sent.Flag(SoftReset) {
		s.resets++
		s.channel = 0
		s.stc, s.sf = false, false
	}
	if len(frame) >= FlushTune && sent.Flag(Tune) {
		s.tunes++
		s.channel = NormalizeChannel(sent.Get(Chan))
		s.stc, s.sf = true, false
	}
	if len(frame) >= 2 && sent.Flag(Seek) {
		s.seeks++
		s.seekLocked(sent.Flag(SeekUp), !s.regs.Flag(SeekMode))
	}
}

func (s *SimChip) seekLocked(up, wrap bool) {
	chans := make([]int, 0, len(s.stations))
	for c := range s.stations {
		if c <= BandTopChannel {
			chans = append(chans, int(c))
		}
	}
	sort.Ints(chans)

	cur := int(s.channel)
	found := -1
	if up {
		for _, c := range chans {
			if c > cur {
				found = c
				break
			}
		}
		if found < 0 && wrap && len(chans) > 0 && chans[0] != cur {
			found = chans[0]
		}
	} else {
		for i := len(chans) - 1; i >= 0; i-- {
			if chans[i] < cur {
				found = chans[i]
				break
			}
		}
		if found < 0 && wrap && len(chans) > 0 && chans[len(chans)-1] != cur {
			found = chans[len(chans)-1]
		}
	}

	s.stc = true
	if found < 0 {
		s.sf = true
		return
	}
	s.sf = false
	s.channel = Channel(found)
}

func (s *SimChip) statusLocked() ReadMirror {
	var r ReadMirror
	r.Set(ReadChan, uint16(s.channel))
	r.Set(SeekTuneDone, b2u(s.stc))
	r.Set(SeekFail, b2u(s.sf))
	r.Set(FMReady, 1)
	if st, ok := s.stations[s.channel]; ok {
		r.Set(FMTrue, 1)
		r.Set(Stereo, b2u(st.Stereo && !s.regs.Flag(Mono)))
		r.Set(RSSI, uint16(st.RSSI))
	}
	return r
}

func b2u(v bool) uint16 {
	if v {
		return 1
	}
	return 0
}

// Channel is the channel the chip is tuned to.
func (s *SimChip) Channel() Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Registers returns the chip-side copy of the writable registers.
func (s *SimChip) Registers() WriteMirror {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs
}

// Frames returns every completed write frame in order.
func (s *SimChip) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

// LastReadAcks returns the ACK flags the master sent during the last read.
func (s *SimChip) LastReadAcks() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.readAcks...)
}

// TuneCount returns how many tune requests were latched.
func (s *SimChip) TuneCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tunes
}

// SeekCount returns how many seek requests were latched.
func (s *SimChip) SeekCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seeks
}

// ResetCount returns how many soft resets were seen.
func (s *SimChip) ResetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}
