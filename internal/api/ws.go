/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/autorj/internal/telemetry"
)

const wsPingInterval = 15 * time.Second

// wsEnvelope is the JSON frame shape sent over the websocket: either a
// replayed/live event or a fresh full snapshot.
type wsEnvelope struct {
	Type     string           `json:"type"`
	Revision int64            `json:"revision"`
	Event    *revisionedEvent `json:"event,omitempty"`
	Snapshot any              `json:"snapshot,omitempty"`
}

// Websocket upgrades the connection and replays events since lastRevision
// (or a fresh snapshot if that revision has already scrolled out of the
// retained window), then streams subsequent events as they occur.
func (a *API) Websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.Logger.Error().Err(err).Msg("api: websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIActiveConnections.Inc()
	defer telemetry.APIActiveConnections.Dec()

	ctx := r.Context()
	lastRevision := parseLastRevision(r)

	missed, ok := a.eventsSince(lastRevision)
	if !ok {
		snap := a.Engine.Snapshot()
		if err := writeWSEnvelope(ctx, conn, wsEnvelope{Type: "snapshot", Revision: a.currentRevision(), Snapshot: snap}); err != nil {
			return
		}
	} else {
		for _, ev := range missed {
			e := ev
			if err := writeWSEnvelope(ctx, conn, wsEnvelope{Type: "event", Revision: e.Revision, Event: &e}); err != nil {
				return
			}
		}
	}

	live, unsubscribe := a.subscribeLive()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case <-done:
			conn.Close(ws.StatusNormalClosure, "client disconnected")
			return
		case <-ping.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case ev := <-live:
			e := ev
			if err := writeWSEnvelope(ctx, conn, wsEnvelope{Type: "event", Revision: e.Revision, Event: &e}); err != nil {
				return
			}
		}
	}
}

func writeWSEnvelope(ctx context.Context, conn *ws.Conn, env wsEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, data)
}
