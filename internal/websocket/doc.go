// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package websocket streams alerts to connected operator dashboards.
//
// The Hub owns the client set and fans each broadcast out to every
// connection. It runs as a supervised service: Run processes lifecycle and
// broadcast traffic until its context is cancelled, then closes every
// client so a restart never leaks connections.
//
// Delivery is strictly best-effort. Broadcast and per-client queues are
// bounded; a full queue drops the message, and a client that stops reading
// is disconnected rather than allowed to stall the stream. The webhook
// notifier and the ledger are the reliable records — this stream is a live
// mirror for humans watching.
//
// Wiring into the alerting pipeline goes through AlertSink, which adapts
// the hub to alerting.Notifier:
//
//	hub := websocket.NewHub()
//	dispatcher.RegisterNotifier(websocket.NewAlertSink(hub))
//
// The HTTP layer upgrades connections and hands them over:
//
//	client := websocket.NewClient(hub, conn)
//	hub.Register <- client
//	client.Start()
//
// Clients may send {"type":"ping"} frames and receive {"type":"pong"};
// everything else inbound is ignored. Protocol-level ping/pong keeps idle
// connections alive and reaps dead ones via read deadlines.
package websocket
