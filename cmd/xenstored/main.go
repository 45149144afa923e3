// File: cmd/xenstored/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// xenstored is the command-line entrypoint driving the engine: it
// loads configuration, builds a zap logger, starts one simulated guest
// domain over the in-process loopback host, and exercises the
// request/reply and watch fan-out path end to end so the binary is
// runnable without any real hypervisor primitives.
//
// Grounded on yanet2's coordinator/cmd/coordinator/main.go
// cobra-plus-zap-plus-signal-handling shape.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/momentics/xenstore-go/internal/config"
	"github.com/momentics/xenstore-go/internal/dispatch"
	"github.com/momentics/xenstore-go/internal/engine"
	"github.com/momentics/xenstore-go/internal/ring"
	"github.com/momentics/xenstore-go/internal/simhost"
	"github.com/momentics/xenstore-go/internal/wire"
)

// Cmd holds the parsed command-line flags.
type Cmd struct {
	ConfigPath string
	RingSizeKB int
	DomMax     int
}

var cmd Cmd

var rootCmd = &cobra.Command{
	Use:   "xenstored",
	Short: "In-process XenStore engine demo and smoke-test harness",
	RunE: func(_ *cobra.Command, _ []string) error {
		return run(cmd)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file (optional; defaults are used if omitted)")
	rootCmd.Flags().IntVar(&cmd.RingSizeKB, "ring-size-kb", 0, "Override the configured ring size, in KiB (0 keeps the configured value)")
	rootCmd.Flags().IntVar(&cmd.DomMax, "dom-max", 0, "Override the configured maximum domain count (0 keeps the configured value)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd Cmd) error {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Development = false
	zcfg.Level.SetLevel(zap.InfoLevel)

	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg := config.Default()
	if cmd.ConfigPath != "" {
		cfg, err = config.Load(cmd.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	if cmd.DomMax > 0 {
		cfg.DomMax = cmd.DomMax
	}
	if cmd.RingSizeKB > 0 {
		cfg.RingSize = datasize.ByteSize(cmd.RingSizeKB) * datasize.KB
	}

	eng := engine.New(cfg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := demo(ctx, eng, log); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("demo run failed: %w", err)
	}
	return nil
}

// demo starts one simulated guest domain, writes and reads a value
// through it, installs a watch, triggers it from the library surface,
// and reports what was observed, then tears the domain down cleanly.
func demo(ctx context.Context, eng *engine.Engine, log *zap.SugaredLogger) error {
	const domid = uint16(1)

	host := simhost.New()
	dctx, err := eng.StartDomain(domid, 0 /* dom0 */, 0, host, host, host)
	if err != nil {
		return fmt.Errorf("start domain %d: %w", domid, err)
	}
	defer func() {
		if err := eng.StopDomain(domid); err != nil {
			log.Warnw("stop domain failed", "domid", domid, "error", err)
		}
	}()

	peer, err := host.Peer(domid, ring.NotifierFunc(dctx.Wake))
	if err != nil {
		return err
	}

	reqID := uint32(1)
	roundTrip := func(opcode dispatch.Opcode, payload []byte) (*wire.Message, error) {
		hdr := wire.Header{Type: uint32(opcode), ReqID: reqID}
		reqID++
		peer.WriteRequest(wire.Encode(hdr, payload))
		return waitReply(ctx, peer)
	}

	writePayload := append([]byte("/local/domain/1/example\x00"), []byte("hello")...)
	if _, err := roundTrip(dispatch.OpWrite, writePayload); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	log.Infow("wrote value", "path", "/local/domain/1/example", "value", "hello")

	readPayload := []byte("/local/domain/1/example\x00")
	readReply, err := roundTrip(dispatch.OpRead, readPayload)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	log.Infow("read value back", "value", string(readReply.Payload))

	watchPayload := append([]byte("/local/domain/1/example\x00"), []byte("my-token\x00")...)
	if _, err := roundTrip(dispatch.OpWatch, watchPayload); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	log.Infow("installed watch", "path", "/local/domain/1/example", "token", "my-token")

	// Fire the watch via the public library surface (caller-domid 0),
	// exercising spec §6's direct in-process API alongside the ring path.
	if err := eng.Write("/local/domain/1/example", []byte("updated")); err != nil {
		return fmt.Errorf("library write: %w", err)
	}

	event, err := waitReply(ctx, peer)
	if err != nil {
		return fmt.Errorf("waiting for watch event: %w", err)
	}
	log.Infow("observed watch event", "type", event.Header.Type, "payload", string(event.Payload))

	log.Infow("demo complete", "domains_active", eng.Metrics().Snapshot()["domains.active"])
	return nil
}

// waitReply polls the peer's reply ring until a full frame is
// available or ctx is done. The loopback ring has no blocking read on
// the guest side, so this busy-polls with a short sleep, acceptable
// for a demo harness driving a single in-process domain.
func waitReply(ctx context.Context, peer *ring.Peer) (*wire.Message, error) {
	hdrBuf := make([]byte, wire.HeaderSize)
	if err := readFull(ctx, peer, hdrBuf); err != nil {
		return nil, err
	}

	hdr := wire.Header{
		Type:  binary.LittleEndian.Uint32(hdrBuf[0:4]),
		ReqID: binary.LittleEndian.Uint32(hdrBuf[4:8]),
		TxID:  binary.LittleEndian.Uint32(hdrBuf[8:12]),
		Len:   binary.LittleEndian.Uint32(hdrBuf[12:16]),
	}

	payload := make([]byte, hdr.Len)
	if hdr.Len > 0 {
		if err := readFull(ctx, peer, payload); err != nil {
			return nil, err
		}
	}
	return &wire.Message{Header: hdr, Payload: payload}, nil
}

func readFull(ctx context.Context, peer *ring.Peer, buf []byte) error {
	got := 0
	for got < len(buf) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n := peer.ReadReply(buf[got:])
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		got += n
	}
	return nil
}
