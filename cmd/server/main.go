package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/drift/meet-app/internal/engine"
	"github.com/drift/meet-app/internal/events"
	"github.com/drift/meet-app/internal/history"
	"github.com/drift/meet-app/internal/metrics"
	"github.com/drift/meet-app/internal/protocol"
	"github.com/drift/meet-app/internal/ratelimit"
	"github.com/drift/meet-app/internal/social"
	"github.com/drift/meet-app/internal/ws"
)

func main() {
	config := ws.DefaultServerConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxConnections = n
		}
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}

	engineCfg := engine.DefaultConfig()
	if v := os.Getenv("MAX_SEARCH_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			engineCfg.MaxSearchWait = d
		}
	}
	sweepInterval := 15 * time.Second
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			sweepInterval = d
		}
	}
	statsInterval := 10 * time.Second
	if v := os.Getenv("STATS_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			statsInterval = d
		}
	}

	// --- NATS ---
	natsConfig := events.DefaultConfig()
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsConfig.URL = natsURL
	}
	publisher, err := events.NewPublisher(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Redis ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	pingCancel()

	limiter := ratelimit.NewLimiter(rdb)
	blocklist := social.NewStore(rdb)

	// --- Postgres call history (optional) ---
	sinks := engine.MultiSink{publisher, engine.SinkFunc(recordMetrics)}
	var (
		historyStore *history.Store
		recorder     *history.Recorder
	)
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		historyStore, err = history.Open(dsn)
		if err != nil {
			log.Fatalf("failed to connect to Postgres: %v", err)
		}
		recorder = history.NewRecorder(historyStore)
		sinks = append(sinks, recorder)
	} else {
		log.Println("POSTGRES_DSN not set, call history disabled")
	}

	eng := engine.New(engineCfg, sinks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if recorder != nil {
		go recorder.Run(ctx)
	}

	log.Printf("Drift pairing server starting")
	log.Printf("  listen_addr:     %s", config.ListenAddr)
	log.Printf("  worker_pool:     %d", config.WorkerPoolSize)
	log.Printf("  max_connections: %d", config.MaxConnections)
	log.Printf("  max_search_wait: %s", engineCfg.MaxSearchWait)
	log.Printf("  sweep_interval:  %s", sweepInterval)
	log.Printf("  nats_url:        %s", natsConfig.URL)
	log.Printf("  redis_addr:      %s", redisAddr)

	var server *ws.Server
	dispatcher := ws.NewMessageDispatcher(nil)

	send := func(connID, msgType string, payload interface{}) {
		data, err := protocol.NewServerMessage(msgType, payload)
		if err != nil {
			log.Printf("failed to build %s for conn=%s: %v", msgType, connID, err)
			return
		}
		if err := server.SendMessage(connID, data); err != nil {
			// The target may be mid-disconnect; delivery is best-effort.
			log.Printf("send %s to conn=%s failed: %v", msgType, connID, err)
		}
	}

	// notifyMatch delivers match_found to both sides of a fresh pair. The
	// requester (whose search completed the pair) is the initiator.
	notifyMatch := func(m *engine.Match) {
		send(m.RequesterID, protocol.TypeMatchFound, protocol.MatchFoundMsg{
			PartnerID:      m.PartnerID,
			PartnerProfile: publicProfile(m.PartnerProfile),
			IsInitiator:    true,
		})
		send(m.PartnerID, protocol.TypeMatchFound, protocol.MatchFoundMsg{
			PartnerID:      m.RequesterID,
			PartnerProfile: publicProfile(m.RequesterProfile),
			IsInitiator:    false,
		})
		metrics.SearchWait.Observe(m.PartnerWaited.Seconds())
		log.Printf("match bound a=%s b=%s (partner waited %s)",
			m.RequesterID, m.PartnerID, m.PartnerWaited.Round(time.Millisecond))
	}

	// -----------------------------------------------------------------------
	// find_match — immediate bind or enqueue
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeFindMatch, func(conn *ws.Connection, msg interface{}) {
		findMsg, ok := msg.(protocol.FindMatchMsg)
		if !ok {
			return
		}
		if allowed, _ := limiter.Allow(ctx, conn.ID, ratelimit.RuleFindMatch); !allowed {
			send(conn.ID, protocol.TypeError, protocol.ErrorMsg{
				Code: "rate_limited", Message: "too many search requests",
			})
			return
		}

		match, pos := eng.FindMatch(conn.ID, findMsg.Preferences)
		if match != nil {
			notifyMatch(match)
			return
		}
		if pos > 0 {
			send(conn.ID, protocol.TypeSearching, protocol.SearchingMsg{QueuePosition: pos})
		}
	})

	// -----------------------------------------------------------------------
	// cancel_search — leave the queue
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeCancelSearch, func(conn *ws.Connection, msg interface{}) {
		if eng.CancelSearch(conn.ID) {
			log.Printf("cancel_search conn=%s", conn.ID)
		}
	})

	// -----------------------------------------------------------------------
	// skip — unbind and immediately re-search (the skipped side stays idle)
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSkip, func(conn *ws.Connection, msg interface{}) {
		former, match, pos := eng.Skip(conn.ID)
		if former == "" {
			return
		}
		send(former, protocol.TypePartnerLeft, protocol.PartnerLeftMsg{Reason: engine.ReasonSkipped})
		if match != nil {
			notifyMatch(match)
			return
		}
		if pos > 0 {
			send(conn.ID, protocol.TypeSearching, protocol.SearchingMsg{QueuePosition: pos})
		}
	})

	// -----------------------------------------------------------------------
	// end_call — unbind without re-searching
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeEndCall, func(conn *ws.Connection, msg interface{}) {
		if former := eng.EndCall(conn.ID); former != "" {
			send(former, protocol.TypePartnerLeft, protocol.PartnerLeftMsg{Reason: engine.ReasonEnded})
		}
	})

	// -----------------------------------------------------------------------
	// offer / answer / ice_candidate — relay opaque negotiation blobs
	// -----------------------------------------------------------------------
	// The partner is resolved under the engine mutex but the write happens
	// after release, so an unbind racing the send can deliver one final
	// message to the former partner. Clients drop in-call messages outside a
	// bound session, and the target is never anyone but the partner-of-record
	// at resolve time.
	relaySignal := func(msgType string) ws.MessageHandler {
		return func(conn *ws.Connection, msg interface{}) {
			signalMsg, ok := msg.(protocol.SignalMsg)
			if !ok {
				return
			}
			to, bound := eng.PartnerFor(conn.ID)
			if !bound {
				// Expected after a racing unbind; drop silently.
				metrics.RelaysTotal.WithLabelValues("signal", "dropped").Inc()
				return
			}
			send(to, msgType, protocol.ServerSignalMsg{Payload: signalMsg.Payload})
			metrics.RelaysTotal.WithLabelValues("signal", "forwarded").Inc()
		}
	}
	dispatcher.Register(protocol.TypeOffer, relaySignal(protocol.TypeOffer))
	dispatcher.Register(protocol.TypeAnswer, relaySignal(protocol.TypeAnswer))
	dispatcher.Register(protocol.TypeICECandidate, relaySignal(protocol.TypeICECandidate))

	// -----------------------------------------------------------------------
	// chat_message — sanitize and relay to the partner
	// -----------------------------------------------------------------------
	// Same resolve-then-send window as the signal relay above.
	dispatcher.Register(protocol.TypeChatMessage, func(conn *ws.Connection, msg interface{}) {
		chatMsg, ok := msg.(protocol.ChatMsg)
		if !ok {
			return
		}
		if allowed, _ := limiter.Allow(ctx, conn.ID, ratelimit.RuleChat); !allowed {
			send(conn.ID, protocol.TypeError, protocol.ErrorMsg{
				Code: "rate_limited", Message: "too many messages",
			})
			return
		}

		to, clean, bound := eng.RelayChat(conn.ID, chatMsg.Text)
		if !bound {
			metrics.RelaysTotal.WithLabelValues("chat", "dropped").Inc()
			return
		}
		send(to, protocol.TypeChatMessage, protocol.ServerChatMsg{
			Text: clean,
			Ts:   time.Now().Unix(),
		})
		metrics.RelaysTotal.WithLabelValues("chat", "forwarded").Inc()
	})

	// -----------------------------------------------------------------------
	// block_partner — persist the block and feed the matcher
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeBlockPartner, func(conn *ws.Connection, msg interface{}) {
		partner, bound := eng.PartnerFor(conn.ID)
		if !bound {
			return
		}
		eng.Block(conn.ID, partner)
		blockCtx, blockCancel := context.WithTimeout(ctx, 3*time.Second)
		defer blockCancel()
		if err := blocklist.Add(blockCtx, conn.ID, partner); err != nil {
			log.Printf("block_partner conn=%s: %v", conn.ID, err)
		}
		log.Printf("block_partner conn=%s blocked=%s", conn.ID, partner)
	})

	server = ws.NewServer(config, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	server.SetUpgradeGate(func(remoteIP string) error {
		allowed, err := limiter.Allow(ctx, remoteIP, ratelimit.RuleConnect)
		if err == nil && !allowed {
			return errRateLimited
		}
		return nil
	})

	server.SetOnConnect(func(conn *ws.Connection) {
		eng.Connect(conn.ID)
		data, err := protocol.NewServerMessage(protocol.TypeSessionCreated, protocol.SessionCreatedMsg{
			SessionID: conn.ID,
		})
		if err == nil {
			_ = conn.WriteMessage(data)
		}
	})

	server.SetOnDisconnect(func(connID string, reason string) {
		former := eng.Disconnect(connID, reason)
		if former != "" {
			send(former, protocol.TypePartnerLeft, protocol.PartnerLeftMsg{Reason: reason})
		}
		go func() {
			clearCtx, clearCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer clearCancel()
			_ = blocklist.Clear(clearCtx, connID)
		}()
	})

	server.Handle("/metrics", metrics.Handler())
	server.Handle("/stats", statsHandler(eng))

	// Housekeeping sweep: search timeouts + stale queue reconciliation.
	go eng.RunSweeper(ctx, sweepInterval, func(ids []string) {
		for _, id := range ids {
			send(id, protocol.TypeSearchTimeout, protocol.SearchTimeoutMsg{})
		}
	})

	// Periodic stats broadcast + gauge refresh.
	go func() {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := eng.Stats()
				metrics.ConnectionsTotal.Set(float64(st.OnlineCount))
				metrics.SearchingTotal.Set(float64(st.SearchingCount))
				metrics.ActiveSessions.Set(float64(st.ActiveSessionCount))

				data, err := protocol.NewServerMessage(protocol.TypeStats, protocol.StatsMsg{
					OnlineCount:        st.OnlineCount,
					SearchingCount:     st.SearchingCount,
					ActiveSessionCount: st.ActiveSessionCount,
				})
				if err == nil {
					server.Connections().Broadcast(data)
				}
			}
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		publisher.Close()
		if historyStore != nil {
			if err := historyStore.Close(); err != nil {
				log.Printf("history close error: %v", err)
			}
		}
		if err := rdb.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func publicProfile(p engine.Profile) protocol.PartnerProfile {
	return protocol.PartnerProfile{
		Gender:   p.Gender,
		Region:   p.Region,
		Language: p.Language,
	}
}

// recordMetrics is the engine sink that keeps Prometheus counters in step
// with lifecycle events. It must not block.
func recordMetrics(ev engine.Event) {
	switch ev.Type {
	case engine.EventSessionStarted:
		metrics.MatchesTotal.Inc()
	case engine.EventSessionEnded:
		metrics.SessionsEndedTotal.WithLabelValues(ev.Reason).Inc()
	case engine.EventSearchTimeout:
		metrics.SearchTimeoutsTotal.Inc()
	}
}
