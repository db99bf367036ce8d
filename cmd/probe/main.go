// Command probe subscribes to a server's overlay feed and prints a rolling
// summary: ticks seen, changed-tile volume, damage and pressure events.
// Useful as a smoke test against a live server.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"atmoscape.dev/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "probe", "client name")
		interval = flag.Duration("interval", 10*time.Second, "summary interval")
		verbose  = flag.Bool("v", false, "print every damage/pressure event")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[probe] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
	}
	hello.Capabilities.MaxQueue = 16
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	var (
		overlays  int
		changed   int
		damage    int
		pressure  int
		lastTick  uint64
		nextPrint = time.Now().Add(*interval)
	)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME client_id=%s world=%s tick_rate=%d gas_digest=%.12s",
				w.ClientID, w.WorldID, w.TickRateHz, w.GasDigest)

		case protocol.TypeOverlay:
			var ov protocol.OverlayMsg
			if err := json.Unmarshal(msg, &ov); err != nil {
				continue
			}
			overlays++
			lastTick = ov.Tick
			for _, g := range ov.Grids {
				changed += len(g.Tiles)
			}
			damage += len(ov.Damage)
			pressure += len(ov.Pressure)
			if *verbose {
				for _, d := range ov.Damage {
					logger.Printf("damage tick=%d grid=%s subject=%s pos=%v amount=%.1f",
						ov.Tick, d.GridID, d.SubjectID, d.Pos, d.Damage)
				}
				for _, p := range ov.Pressure {
					logger.Printf("pressure tick=%d grid=%s pos=%v dir=%s diff=%.2f",
						ov.Tick, p.GridID, p.Pos, p.Direction, p.Difference)
				}
			}
		}

		if time.Now().After(nextPrint) {
			logger.Printf("tick=%d overlays=%d changed_tiles=%d damage=%d pressure=%d",
				lastTick, overlays, changed, damage, pressure)
			overlays, changed, damage, pressure = 0, 0, 0, 0
			nextPrint = time.Now().Add(*interval)
		}
	}
}
