// phone-sim emulates the phone controller for testing without a device.
// It synthesizes a slow tilt sweep, runs it through the same signal
// conditioning the app uses and streams the resulting commands to a
// running server over the control channel.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/uzairdeveloper223/DriveDroid/internal/config"
	"github.com/uzairdeveloper223/DriveDroid/internal/log"
	"github.com/uzairdeveloper223/DriveDroid/pkg/protocol"
	"github.com/uzairdeveloper223/DriveDroid/pkg/steering"
)

func main() {
	addr := flag.String("addr", "localhost:"+config.Port(), "server host:port")
	mode := flag.String("mode", string(protocol.ModeKeyboardAD), "steering mode: GAMEPAD, KEYBOARD_AD or KEYBOARD_ARROWS")
	rate := flag.Int("rate", 50, "sensor sample rate in Hz")
	sweep := flag.Duration("sweep", 8*time.Second, "period of the tilt sweep")
	amplitude := flag.Float64("amplitude", 25, "peak tilt of the sweep in degrees")
	flag.Parse()

	log.Init(config.LogLevel())

	m, err := protocol.ParseMode(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	url := "ws://" + *addr + "/ws/control"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		log.Error("failed to connect", "url", url, "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	log.Info("connected", "url", url)

	if err := send(conn, protocol.NewModeSwitch(m)); err != nil {
		log.Error("mode switch failed", "error", err)
		os.Exit(1)
	}

	cond := steering.NewConditioner(steering.ConditionerConfig{
		Deadzone: config.Deadzone(),
		MaxTilt:  config.MaxTilt(),
		Mode:     m,
	})

	// Drain server frames so control messages do not back up the socket.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			// Center the steering before leaving so no key stays held.
			if err := send(conn, cond.Reset()); err == nil {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				conn.WriteMessage(websocket.CloseMessage, msg)
			}
			log.Info("disconnected")
			return
		case now := <-ticker.C:
			t := now.Sub(start).Seconds()
			angle := *amplitude * math.Sin(2*math.Pi*t/sweep.Seconds())
			cmd, ok := cond.Ingest(steering.Sample{Angle: angle, Time: now, Tier: steering.TierFused})
			if !ok {
				continue
			}
			if err := send(conn, cmd); err != nil {
				log.Error("write failed", "error", err)
				return
			}
		}
	}
}

func send(conn *websocket.Conn, cmd *protocol.Command) error {
	data, err := cmd.Bytes()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
