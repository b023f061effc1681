// Command condor-replay feeds captured datagrams through the decoder.
//
// Input is one hex-encoded datagram per line, the format the capture
// scripts log. Useful for regression-checking decoder changes against a
// recorded session without a live server.
//
// Usage:
//
//	condor-replay -input session.hexlog [-delay 5ms] [-max 1000] [-fpl-out task.fpl] [-quiet]
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"condor_feed/internal/condor"
	"condor_feed/internal/decode/fpl"
	"condor_feed/internal/dispatch"
	"condor_feed/internal/geo"
	"condor_feed/internal/session"
)

func main() {
	inPath := flag.String("input", "", "Hex log file, one datagram per line (default: stdin)")
	delay := flag.Duration("delay", 0, "Pause between datagrams")
	maxLines := flag.Int("max", 0, "Stop after this many datagrams (0: no limit)")
	fplOut := flag.String("fpl-out", "", "Write the reassembled task to this .fpl file")
	refLat := flag.Float64("ref-lat", 46.0, "Landscape reference latitude")
	refLon := flag.Float64("ref-lon", 14.0, "Landscape reference longitude")
	quiet := flag.Bool("quiet", false, "Suppress per-datagram output, print only the summary")
	flag.Parse()

	var r io.Reader = os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	table := session.NewTable()
	plan := fpl.NewReassembler()
	d := dispatch.New(table, plan)
	projector := geo.FlatProjector(*refLat, *refLon)

	var completed *fpl.CompletedFlightPlan

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	count := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		datagram, err := hex.DecodeString(strings.ReplaceAll(line, " ", ""))
		if err != nil {
			if !*quiet {
				fmt.Printf("[!] bad hex line: %v\n", err)
			}
			continue
		}

		ev := d.Dispatch(datagram)
		count++

		if !*quiet {
			printEvent(ev)
		}
		if ev.Plan != nil {
			completed = ev.Plan
		}

		if *maxLines > 0 && count >= *maxLines {
			break
		}
		if *delay > 0 {
			time.Sleep(*delay)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(1)
	}

	st := d.Stats()
	fmt.Printf("\nReplayed %d datagrams: telemetry=%d identity=%d ack=%d fpl=%d skipped=%d unknown=%d errors=%d\n",
		count, st.Telemetry, st.Identity, st.Ack, st.FplApply, st.Skipped, st.Unknown, st.Errors)

	if entries := table.Entries(); len(entries) > 0 {
		fmt.Printf("\nIdentities (%d):\n", len(entries))
		for _, e := range entries {
			fmt.Printf("  %08x  %-20s %-10s %-6s %s\n",
				e.Cookie, e.FirstName+" "+e.LastName, e.Registration, e.CompetitionNumber, e.Aircraft)
		}
	}

	if completed != nil {
		text := fpl.Render(completed, projector)
		if *fplOut != "" {
			if err := os.WriteFile(*fplOut, []byte(text), 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *fplOut, err)
				os.Exit(1)
			}
			fmt.Printf("\nFlight plan written to %s\n", *fplOut)
		} else {
			fmt.Printf("\n%s", text)
		}
	}
}

func printEvent(ev dispatch.Event) {
	switch {
	case ev.Err != nil:
		fmt.Printf("[!] %s: %v\n", ev.Tag, ev.Err)
	case ev.Telemetry != nil:
		t := ev.Telemetry
		fmt.Printf("[T] cookie=%08x pos=(%.1f, %.1f) alt=%.1fm speed=%.1fm/s hdg=%.1f vario=%+.1f\n",
			t.Cookie, t.PositionX, t.PositionY, t.AltitudeM,
			t.Derived.SpeedMPS, t.Derived.HeadingDeg, t.Derived.VerticalSpeedMPS)
	case ev.Identity != nil:
		i := ev.Identity
		fmt.Printf("[I] cookie=%08x entity=%d %s %s reg=%s cn=%s aircraft=%s\n",
			i.Cookie, i.EntityID, i.FirstName, i.LastName, i.Registration, i.CompetitionNumber, i.Aircraft)
	case ev.Ack != nil:
		fmt.Printf("[A] counter=%d echo=%d bytes\n", ev.Ack.Counter, len(ev.Ack.Echo))
	case ev.Plan != nil:
		fmt.Printf("[F] flight plan complete: %d turnpoints, %d disabled airspaces\n",
			len(ev.Plan.Task.Turnpoints), len(ev.Plan.DisabledZones.IDs))
	case ev.Skip != condor.SkipNone:
		fmt.Printf("[-] %s: skipped (%s)\n", ev.Tag, ev.Skip)
	case ev.Tag == condor.TagFplTask, ev.Tag == condor.TagFplDisabledFirst,
		ev.Tag == condor.TagFplDisabledCont, ev.Tag == condor.TagFplSettings:
		fmt.Printf("[F] %s: fragment applied\n", ev.Tag)
	default:
		fmt.Printf("[?] %s: no decoder\n", ev.Tag)
	}
}
