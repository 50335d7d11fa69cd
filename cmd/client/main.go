// Command client is a headless watch-party participant for development and
// diagnostics: it joins a room, mirrors playback against a virtual player,
// answers calls, and prints everything the relay delivers.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/benchmates/theater/internal/adapters/rtc"
	"github.com/benchmates/theater/internal/client"
	"github.com/benchmates/theater/internal/client/call"
	"github.com/benchmates/theater/internal/client/reaction"
	clientsync "github.com/benchmates/theater/internal/client/sync"
	"github.com/benchmates/theater/internal/domain"
	"github.com/benchmates/theater/internal/protocol"
)

func main() {
	url := pflag.String("url", "ws://localhost:8080/api/ws/signal", "relay signal endpoint")
	room := pflag.String("room", "movie-1", "room to join")
	callTimeout := pflag.Duration("call-timeout", 30*time.Second, "negotiation deadline for outgoing calls")
	pflag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	ch, err := client.Dial(ctx, *url)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer ch.Close()

	if err := ch.Emit(protocol.Join{Type: protocol.TypeJoin, Room: domain.RoomID(*room)}); err != nil {
		log.Fatal().Err(err).Msg("join")
	}

	engine, err := rtc.NewEngine()
	if err != nil {
		log.Fatal().Err(err).Msg("rtc engine")
	}
	engine.OnRemoteTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().Str("kind", track.Kind().String()).Msg("partner media stream arrived")
	})

	player := &virtualPlayer{}
	syncer := clientsync.New(ch, player, domain.RoomID(*room))
	syncer.Start()
	defer syncer.Stop()

	overlay := reaction.New(ch, domain.RoomID(*room))
	overlay.OnChange(func() {
		log.Info().Int("on_screen", len(overlay.Snapshot())).Msg("overlay changed")
	})
	overlay.Start()
	defer overlay.Stop()

	// One machine per call attempt; newCall replaces an ended one.
	var machine *call.Machine
	newCall := func() *call.Machine {
		m := call.New(ch, engine, domain.RoomID(*room))
		m.OnIncoming(func(from domain.PeerID) {
			log.Info().Str("from", string(from)).Msg("incoming call, auto-answering")
			ctx, cancel := context.WithTimeout(context.Background(), *callTimeout)
			defer cancel()
			if err := m.Accept(ctx); err != nil {
				log.Error().Err(err).Msg("accept")
			}
		})
		m.OnEnded(func() { log.Info().Msg("call ended") })
		m.Start()
		return m
	}
	machine = newCall()

	unsubFile := ch.Subscribe(protocol.TypeReceiveFileChange, func(data json.RawMessage) {
		var p protocol.FileChange
		if json.Unmarshal(data, &p) == nil {
			log.Info().Str("from", string(p.From)).Str("name", p.Name).Msg("partner loaded file")
		}
	})
	defer unsubFile()

	fmt.Println("commands: play | pause | seek <sec> | react <emoji> | call | end | file <name> | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "play":
			player.Play()
			syncer.OnLocalPlay()
		case "pause":
			player.Pause()
			syncer.OnLocalPause()
		case "seek":
			if len(fields) < 2 {
				continue
			}
			pos, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				log.Error().Err(err).Msg("bad position")
				continue
			}
			player.SetPosition(pos)
			syncer.OnLocalSeek()
		case "react":
			emoji := reaction.Palette[0]
			if len(fields) > 1 {
				emoji = fields[1]
			}
			overlay.Send(emoji)
		case "call":
			if machine.State() == call.StateEnded {
				machine = newCall()
			}
			ctx, cancel := context.WithTimeout(context.Background(), *callTimeout)
			err := machine.Initiate(ctx)
			cancel()
			if err != nil {
				log.Error().Err(err).Msg("initiate")
			}
		case "end":
			machine.End()
		case "file":
			if len(fields) < 2 {
				continue
			}
			_ = ch.Emit(protocol.FileChange{
				Type: protocol.TypeFileChange,
				Room: domain.RoomID(*room),
				Name: fields[1],
			})
		case "quit":
			machine.End()
			return
		default:
			log.Warn().Str("cmd", fields[0]).Msg("unknown command")
		}
	}
}
