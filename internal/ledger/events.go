package ledger

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/rs/zerolog/log"

	"king-tiles-orchestrator/internal/kingtiles"
)

// gameStartedDiscriminator is the Anchor event discriminator for
// GameStartedEvent (sha256("event:GameStartedEvent")[0:8]).
var gameStartedDiscriminator = [8]byte{0x49, 0x9c, 0xa9, 0x14, 0x0e, 0x5b, 0xc0, 0x61}

const programDataPrefix = "Program data: "

// LogStream subscribes to the game program's logs over websocket and yields
// typed GameStarted events. It resubscribes on transport errors until closed.
type LogStream struct {
	endpoint string
	events   chan GameStarted
	cancel   context.CancelFunc
}

// NewLogStream opens a start-event subscription against the given websocket
// endpoint. The returned stream runs until Close is called.
func NewLogStream(ctx context.Context, endpoint string) *LogStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &LogStream{
		endpoint: endpoint,
		events:   make(chan GameStarted, 16),
		cancel:   cancel,
	}
	go s.run(ctx)
	return s
}

// Events yields start notifications. The channel closes when the stream shuts
// down.
func (s *LogStream) Events() <-chan GameStarted {
	return s.events
}

// Close tears down the subscription and closes the event channel.
func (s *LogStream) Close() {
	s.cancel()
}

func (s *LogStream) run(ctx context.Context) {
	defer close(s.events)

	for ctx.Err() == nil {
		if err := s.subscribeOnce(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("Event subscription dropped, reconnecting")
		}
		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *LogStream) subscribeOnce(ctx context.Context) error {
	client, err := ws.Connect(ctx, s.endpoint)
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := client.LogsSubscribeMentions(kingtiles.ProgramID, rpc.CommitmentConfirmed)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	log.Info().Str("endpoint", s.endpoint).Msg("Subscribed to game program logs")

	for {
		res, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		if res.Value.Err != nil {
			// Failed transaction; its events never took effect.
			continue
		}
		for _, line := range res.Value.Logs {
			if gameID, ok := ParseGameStarted(line); ok {
				select {
				case s.events <- GameStarted{GameID: gameID}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// ParseGameStarted decodes one program log line and reports whether it carries
// a GameStartedEvent, returning the event's game id.
func ParseGameStarted(line string) (uint64, bool) {
	if !strings.HasPrefix(line, programDataPrefix) {
		return 0, false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, programDataPrefix))
	if err != nil || len(raw) < 16 {
		return 0, false
	}
	if [8]byte(raw[:8]) != gameStartedDiscriminator {
		return 0, false
	}
	return binary.LittleEndian.Uint64(raw[8:16]), true
}
