package net

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	"github.com/clover-storm/unit-simulator/internal/net/ws"
	"github.com/clover-storm/unit-simulator/internal/session"
	"github.com/clover-storm/unit-simulator/internal/telemetry"
)

type HTTPHandlerConfig struct {
	Logger telemetry.Logger
	// Metrics, when it is a *telemetry.Counters, is reported by /diagnostics.
	Metrics     telemetry.Metrics
	EnablePprof bool
}

// NewHTTPHandler routes the websocket endpoint and the JSON status pages.
func NewHTTPHandler(sessions *session.Manager, cfg HTTPHandlerConfig) nethttp.Handler {
	mux := nethttp.NewServeMux()
	wsHandler := ws.NewHandler(sessions, ws.HandlerConfig{Logger: cfg.Logger})
	mux.HandleFunc("/ws", wsHandler.Handle)

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, struct {
			Status   string `json:"status"`
			Sessions int    `json:"sessions"`
		}{Status: "ok", Sessions: sessions.Len()})
	})

	mux.HandleFunc("/sessions", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, sessions.List())
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string            `json:"status"`
			ServerTime int64             `json:"serverTime"`
			TickRate   int               `json:"tickRate"`
			Sessions   []session.Info    `json:"sessions"`
			Telemetry  map[string]uint64 `json:"telemetry,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			TickRate:   sessions.Config().TickRate,
			Sessions:   sessions.List(),
		}
		if counters, ok := cfg.Metrics.(*telemetry.Counters); ok {
			payload.Telemetry = counters.Snapshot()
		}
		writeJSON(w, payload)
	})

	if cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
