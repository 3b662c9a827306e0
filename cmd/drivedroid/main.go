// DriveDroid server - turns phone tilt into virtual keyboard/gamepad input.
// Creates the uinput devices, serves the control channel over WebSocket and
// runs the operator console on stdin.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/uzairdeveloper223/DriveDroid/internal/config"
	"github.com/uzairdeveloper223/DriveDroid/internal/log"
	"github.com/uzairdeveloper223/DriveDroid/pkg/console"
	"github.com/uzairdeveloper223/DriveDroid/pkg/device"
	"github.com/uzairdeveloper223/DriveDroid/pkg/server"
	"github.com/uzairdeveloper223/DriveDroid/pkg/session"
	"github.com/uzairdeveloper223/DriveDroid/pkg/steering"
)

func main() {
	port := flag.String("port", config.Port(), "WebSocket listen port")
	cycle := flag.Duration("cycle", config.CyclePeriod(), "PWM steering cycle period")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	level := config.LogLevel()
	if *debug {
		level = "debug"
	}
	log.Init(level)

	keyboard, err := device.NewKeyboard("DriveDroid Keyboard", device.KeyboardKeys())
	if err != nil {
		fatalDevice("virtual keyboard", err)
	}
	gamepad, err := device.NewGamepad("DriveDroid Gamepad")
	if err != nil {
		keyboard.Close()
		fatalDevice("virtual gamepad", err)
	}
	log.Info("virtual devices created")

	// Let the input stack pick up the new node before centering the axis,
	// otherwise the first event can be lost.
	time.Sleep(500 * time.Millisecond)
	if err := gamepad.EmitAxis(device.AbsX, 0); err != nil {
		log.Warn("failed to center gamepad axis", "error", err)
	}

	registry := device.NewRegistry(keyboard, gamepad, device.WmctrlTargets{})
	engine := steering.NewEngine(keyboard, *cycle)
	sess := session.New(registry, engine)
	srv := server.New(sess)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go engine.Run(ctx)
	go func() {
		if err := srv.Listen(*port); err != nil {
			log.Error("server stopped", "error", err)
			cancel()
		}
	}()
	go console.New(sess, os.Stdin, os.Stdout, cancel).Run(ctx)

	printBanner(*port, *cycle)

	<-ctx.Done()
	fmt.Println("\nShutting down...")
	srv.Shutdown()
	sess.Shutdown()
	registry.Close()
}

func fatalDevice(what string, err error) {
	log.Error("failed to create "+what, "error", err)
	fmt.Fprintln(os.Stderr, "\n*** PERMISSION ERROR ***")
	fmt.Fprintln(os.Stderr, "Run: sudo gpasswd -a $USER input")
	fmt.Fprintln(os.Stderr, "Or for a quick test: sudo drivedroid")
	os.Exit(1)
}

func printBanner(port string, cycle time.Duration) {
	line := strings.Repeat("=", 50)
	fmt.Println("\n" + line)
	fmt.Println("          DRIVEDROID SERVER RUNNING")
	fmt.Println(line)
	fmt.Printf("  IP Address : %s\n", localIP())
	fmt.Printf("  Port       : %s\n", port)
	fmt.Println("\n  Steering   : PWM keyboard (proportional feel)")
	fmt.Printf("  Cycle time : %d ms\n", cycle.Milliseconds())
	fmt.Println("\n  -- Runtime Commands --------------------------")
	fmt.Println("  [w]  Switch target window anytime")
	fmt.Println("  [s]  Show current status")
	fmt.Println("  [q]  Quit server")
	fmt.Println("  ----------------------------------------------")
	fmt.Println("  Tip: Start your game AFTER server is running,")
	fmt.Println("       then press [w] to target it.")
	fmt.Println(line + "\n")
}

// localIP finds the address a client on the LAN would reach us at. The
// dial never sends a packet, it only resolves the outbound interface.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
