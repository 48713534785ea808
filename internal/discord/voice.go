package discord

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"volo/internal/capture"
	"volo/internal/logging"
	"volo/internal/services"
)

// voiceConn forwards received opus packets to a capture sink, tagged with the
// speaking user resolved from the packet SSRC.
type voiceConn struct {
	vc        *discordgo.VoiceConnection
	guildID   string
	channelID string
	packets   <-chan *discordgo.Packet
	release   func()
	logger    *slog.Logger

	mu     sync.Mutex
	ssrcs  map[uint32]string
	stop   chan struct{}
	done   chan struct{}
	closed bool

	unknown atomic.Int64
}

func newVoiceConn(vc *discordgo.VoiceConnection, logger *slog.Logger) *voiceConn {
	conn := &voiceConn{
		vc:        vc,
		guildID:   vc.GuildID,
		channelID: vc.ChannelID,
		packets:   vc.OpusRecv,
		logger:    logger.With(logging.Guild(vc.GuildID)),
		ssrcs:     make(map[uint32]string),
	}
	vc.AddHandler(func(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
		conn.speaking(uint32(vs.SSRC), vs.UserID)
	})
	return conn
}

func (v *voiceConn) speaking(ssrc uint32, userID string) {
	if userID == "" {
		return
	}
	v.mu.Lock()
	v.ssrcs[ssrc] = userID
	v.mu.Unlock()
}

func (v *voiceConn) user(ssrc uint32) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id, ok := v.ssrcs[ssrc]
	return id, ok
}

// ChannelID returns the joined channel.
func (v *voiceConn) ChannelID() string {
	return v.channelID
}

// StartRecording forwards packets to sink until StopRecording.
func (v *voiceConn) StartRecording(sink capture.FrameSink) error {
	if sink == nil {
		return errors.New("voice: nil frame sink")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return services.Wrap(services.ErrValidation, component, "start recording", "voice connection closed", nil)
	}
	if v.stop != nil {
		return services.Wrap(services.ErrValidation, component, "start recording", "already recording", nil)
	}
	v.stop = make(chan struct{})
	v.done = make(chan struct{})
	go v.forward(sink, v.stop, v.done)
	return nil
}

func (v *voiceConn) forward(sink capture.FrameSink, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case p, ok := <-v.packets:
			if !ok {
				return
			}
			v.route(sink, p)
		}
	}
}

func (v *voiceConn) route(sink capture.FrameSink, p *discordgo.Packet) {
	if p == nil || len(p.Opus) == 0 {
		return
	}
	userID, ok := v.user(p.SSRC)
	if !ok {
		v.unknown.Add(1)
		return
	}
	sink.WriteFrame(capture.Frame{
		UserID:    userID,
		Sequence:  p.Sequence,
		Timestamp: p.Timestamp,
		Opus:      p.Opus,
	})
}

// StopRecording stops forwarding and returns once no further frame reaches
// the sink.
func (v *voiceConn) StopRecording() {
	v.mu.Lock()
	stop, done := v.stop, v.done
	v.stop, v.done = nil, nil
	v.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	if n := v.unknown.Swap(0); n > 0 {
		v.logger.Debug("packets from unknown speakers dropped", logging.Int64("packets", n))
	}
}

// Disconnect stops recording and leaves the channel.
func (v *voiceConn) Disconnect(context.Context) error {
	v.StopRecording()
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.mu.Unlock()
	if v.release != nil {
		v.release()
	}
	if v.vc == nil {
		return nil
	}
	if err := v.vc.Disconnect(); err != nil {
		return services.Wrap(services.ErrTransient, component, "disconnect", "leave voice channel", err)
	}
	return nil
}
