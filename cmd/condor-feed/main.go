// Package main provides the condor-feed daemon.
//
// It listens for Condor soaring-server UDP datagrams, decodes telemetry,
// pilot identity and flight-plan fragments, and republishes the merged
// live picture:
//
//   - latest positions to an HTTP collector and/or a NATS subject
//   - an HTTP API with the live position set and the reassembled task
//   - optional ClickHouse archive of every forwarded fix
//   - optional PostgreSQL state (identities, completed flight plans)
//   - optional SQLite snapshot so identities survive a restart
//
// Usage:
//
//	condor-feed [options]
//
// Options:
//
//	-port N             UDP listen port (default: 56298, env: CONDOR_UDP_PORT)
//	-server-name NAME   Server name tag on forwarded positions (env: SERVER_NAME)
//	-endpoint URL       HTTP collector to POST position batches to
//	-nats-url URL       NATS server for the position feed (env: NATS_URL)
//	-api-port N         HTTP port for the local API (default: 8080)
//	-ref-lat/-ref-lon   Landscape reference corner for the flat projection
//	-snapshot PATH      SQLite file for identity snapshots
//	-fpl-out PATH       Write the reassembled task as a .fpl file
//	-archive            Enable the ClickHouse position archive (ch-* flags)
//	-state              Enable PostgreSQL state storage (pg-* flags)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"condor_feed/internal/api"
	"condor_feed/internal/decode/fpl"
	"condor_feed/internal/dispatch"
	"condor_feed/internal/forward"
	"condor_feed/internal/geo"
	"condor_feed/internal/session"
	"condor_feed/internal/storage"
)

func main() {
	// UDP and identity flags.
	port := flag.Int("port", envOrDefaultInt("CONDOR_UDP_PORT", 56298), "UDP listen port")
	serverName := flag.String("server-name", envOrDefault("SERVER_NAME", "condor"), "Server name tag on forwarded positions")

	// Forwarding flags.
	endpoint := flag.String("endpoint", envOrDefault("POSITION_ENDPOINT", ""), "HTTP collector URL for position batches (empty: disabled)")
	natsURL := flag.String("nats-url", envOrDefault("NATS_URL", ""), "NATS server URL for the position feed (empty: disabled)")
	natsSubject := flag.String("nats-subject", forward.DefaultSubject, "NATS subject for position batches")
	flushInterval := flag.Duration("flush-interval", forward.DefaultFlushInterval, "Position batch flush interval")

	// API flags.
	apiPort := flag.Int("api-port", 8080, "HTTP port for the local API")
	staleAfter := flag.Duration("stale-after", api.DefaultStaleAfter, "Drop positions not refreshed within this window")

	// Projection flags.
	refLat := flag.Float64("ref-lat", 46.0, "Landscape reference latitude")
	refLon := flag.Float64("ref-lon", 14.0, "Landscape reference longitude")

	// Persistence flags.
	snapshotPath := flag.String("snapshot", envOrDefault("SNAPSHOT_PATH", ""), "SQLite identity snapshot file (empty: disabled)")
	fplOut := flag.String("fpl-out", "", "Write the reassembled task to this .fpl file (empty: disabled)")

	// ClickHouse archive flags.
	archive := flag.Bool("archive", false, "Archive forwarded fixes to ClickHouse")
	chHost := flag.String("ch-host", envOrDefault("CLICKHOUSE_HOST", "localhost"), "ClickHouse host")
	chPort := flag.Int("ch-port", envOrDefaultInt("CLICKHOUSE_PORT", 9000), "ClickHouse native port")
	chDB := flag.String("ch-database", envOrDefault("CLICKHOUSE_DATABASE", "condor"), "ClickHouse database")
	chUser := flag.String("ch-user", envOrDefault("CLICKHOUSE_USER", "default"), "ClickHouse user")
	chPassword := flag.String("ch-password", envOrDefault("CLICKHOUSE_PASSWORD", ""), "ClickHouse password")

	// PostgreSQL state flags.
	state := flag.Bool("state", false, "Store identities and flight plans in PostgreSQL")
	pgHost := flag.String("pg-host", envOrDefault("POSTGRES_HOST", "localhost"), "PostgreSQL host")
	pgPort := flag.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", 5432), "PostgreSQL port")
	pgUser := flag.String("pg-user", envOrDefault("POSTGRES_USER", "condor"), "PostgreSQL user")
	pgPassword := flag.String("pg-password", envOrDefault("POSTGRES_PASSWORD", "condor"), "PostgreSQL password")
	pgDB := flag.String("pg-database", envOrDefault("POSTGRES_DATABASE", "condor_state"), "PostgreSQL database")

	statsInterval := flag.Duration("stats-interval", time.Minute, "Interval between stats log lines")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Projection with the 10 m grid cache in front.
	cache := geo.NewCache(geo.FlatProjector(*refLat, *refLon))
	projector := cache.Project

	// Session state and dispatcher. The dispatcher is fed only from the
	// UDP loop goroutine.
	table := session.NewTable()
	plan := fpl.NewReassembler()
	d := dispatch.New(table, plan)

	// Identity snapshot: reload first, then persist as identities arrive.
	var snap *session.Snapshotter
	if *snapshotPath != "" {
		var err error
		snap, err = session.OpenSnapshot(*snapshotPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening snapshot: %v\n", err)
			os.Exit(1)
		}
		defer snap.Close()

		n, err := snap.Load(table)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading snapshot: %v\n", err)
			os.Exit(1)
		}
		log.Printf("Snapshot: restored %d identities from %s", n, *snapshotPath)
	}

	// Optional PostgreSQL state.
	var pg *storage.PostgresDB
	if *state {
		var err error
		pg, err = storage.OpenPostgres(ctx, storage.PostgresConfig{
			Host:     *pgHost,
			Port:     *pgPort,
			Database: *pgDB,
			User:     *pgUser,
			Password: *pgPassword,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening PostgreSQL: %v\n", err)
			os.Exit(1)
		}
		defer pg.Close()

		if err := pg.CreateSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating PostgreSQL schema: %v\n", err)
			os.Exit(1)
		}
	}

	// Forwarding sinks.
	var sinks []forward.Sink
	if *endpoint != "" {
		sinks = append(sinks, forward.NewHTTPSink(*endpoint, *serverName, *port, 0))
		log.Printf("Forwarding positions to %s", *endpoint)
	}
	if *natsURL != "" {
		ns, err := forward.NewNATSSink(*natsURL, *natsSubject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to NATS: %v\n", err)
			os.Exit(1)
		}
		defer ns.Close()
		sinks = append(sinks, ns)
		log.Printf("Publishing positions to NATS %s subject %s", *natsURL, *natsSubject)
	}
	if *archive {
		ch, err := storage.OpenClickHouse(ctx, storage.ClickHouseConfig{
			Host:     *chHost,
			Port:     *chPort,
			Database: *chDB,
			User:     *chUser,
			Password: *chPassword,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening ClickHouse: %v\n", err)
			os.Exit(1)
		}
		defer ch.Close()

		if err := ch.CreateSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating ClickHouse schema: %v\n", err)
			os.Exit(1)
		}
		sinks = append(sinks, storage.NewArchiveSink(ch, *serverName))
		log.Printf("Archiving fixes to ClickHouse %s:%d", *chHost, *chPort)
	}

	batcher := forward.NewBatcher(*flushInterval, sinks...)
	go batcher.Run(ctx)

	// Dispatch stats and the identity count are owned by the UDP loop;
	// other goroutines read them through this mutex, never the table.
	var (
		statsMu        sync.Mutex
		lastStats      dispatch.Stats
		lastIdentities int
	)
	readStats := func() (dispatch.Stats, int) {
		statsMu.Lock()
		defer statsMu.Unlock()
		return lastStats, lastIdentities
	}

	store := api.NewPositionStore(*staleAfter)
	server := api.NewServer(store, api.Config{Port: *apiPort, StaleAfter: *staleAfter}, func() map[string]interface{} {
		st, identities := readStats()
		queued, sent, failures := batcher.Stats()
		hits, misses, entries := cache.Stats()
		return map[string]interface{}{
			"telemetry":      st.Telemetry,
			"identity":       st.Identity,
			"ack":            st.Ack,
			"fpl_apply":      st.FplApply,
			"skipped":        st.Skipped,
			"unknown":        st.Unknown,
			"errors":         st.Errors,
			"identities":     identities,
			"batch_queued":   queued,
			"batch_sent":     sent,
			"batch_failures": failures,
			"cache_hits":     hits,
			"cache_misses":   misses,
			"cache_entries":  entries,
		}
	})
	go func() {
		if err := server.Run(); err != nil {
			log.Printf("API server: %v", err)
		}
	}()

	if *state {
		text, err := pg.LatestFlightPlanText(ctx, *serverName)
		if err != nil {
			log.Printf("Flight plan restore: %v", err)
		} else if text != "" {
			server.SetFlightPlan(text)
			log.Printf("Flight plan: restored previous task from PostgreSQL")
		}
	}

	// Stats log line on an interval.
	go func() {
		ticker := time.NewTicker(*statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st, identities := readStats()
				queued, sent, _ := batcher.Stats()
				log.Printf("Stats: telemetry=%d identity=%d ack=%d fpl=%d skipped=%d unknown=%d errors=%d identities=%d queued=%d sent=%d",
					st.Telemetry, st.Identity, st.Ack, st.FplApply, st.Skipped,
					st.Unknown, st.Errors, identities, queued, sent)
			}
		}
	}()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: *port})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listening on UDP port %d: %v\n", *port, err)
		os.Exit(1)
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	log.Printf("condor-feed listening on UDP :%d (server %q)", *port, *serverName)

	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			log.Printf("UDP read: %v", err)
			continue
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		ev := d.Dispatch(datagram)

		statsMu.Lock()
		lastStats = d.Stats()
		lastIdentities = table.Len()
		statsMu.Unlock()

		switch {
		case ev.Telemetry != nil:
			rec := ev.Telemetry
			lat, lon, err := projector(float64(rec.PositionX), float64(rec.PositionY))
			if err != nil {
				continue
			}
			p, err := forward.FromTelemetry(rec, lat, lon, table.LookupByCookie(rec.Cookie))
			if err != nil {
				continue
			}
			batcher.Add(p)
			store.Put(p)

		case ev.Identity != nil:
			if snap != nil {
				if _, err := snap.MaybePersist(table); err != nil {
					log.Printf("Snapshot: %v", err)
				}
			}
			if pg != nil {
				if e := table.LookupByCookie(ev.Identity.Cookie); e != nil {
					if err := pg.UpsertIdentity(ctx, e); err != nil {
						log.Printf("Identity upsert: %v", err)
					}
				}
			}

		case ev.Plan != nil:
			text := fpl.Render(ev.Plan, projector)
			server.SetFlightPlan(text)
			log.Printf("Flight plan complete: %d turnpoints, %d disabled airspaces",
				len(ev.Plan.Task.Turnpoints), len(ev.Plan.DisabledZones.IDs))

			if *fplOut != "" {
				if err := os.WriteFile(*fplOut, []byte(text), 0o644); err != nil {
					log.Printf("Flight plan write: %v", err)
				}
			}
			if pg != nil {
				if err := pg.SaveFlightPlan(ctx, *serverName, ev.Plan, text); err != nil {
					log.Printf("Flight plan save: %v", err)
				}
			}
		}
	}

	// Final snapshot so a clean shutdown loses nothing.
	if snap != nil {
		if err := snap.Persist(table); err != nil {
			log.Printf("Final snapshot: %v", err)
		}
	}
	log.Printf("condor-feed stopped")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
