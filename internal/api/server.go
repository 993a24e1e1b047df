package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"ShardDir/internal/directory"
	"ShardDir/internal/logger"
)

// StatusProvider exposes the directory service's round state for
// monitoring.
type StatusProvider interface {
	Role() directory.Role
	Phase() directory.Phase
	Epoch() uint64
	Round() uint32
	BatchSize() int
	ReportedShards() []uint32
	ShardCount() int
}

// BatchReader loads archived batches for inspection.
type BatchReader interface {
	Batch(epoch uint64, round uint32) ([]directory.ShardSummary, error)
}

// Server is the HTTP diagnostics server.
type Server struct {
	addr    string         // addr is the HTTP listen address
	status  StatusProvider // status provides round state for monitoring
	batches BatchReader    // batches serves archived rounds; may be nil
	server  *http.Server   // server is the underlying HTTP server
}

// New creates a new diagnostics server. batches may be nil if no
// archive is configured.
func New(addr string, status StatusProvider, batches BatchReader) *Server {
	return &Server{
		addr:    addr,
		status:  status,
		batches: batches,
	}
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /batch", s.handleBatch)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("diagnostics api started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is the GET /status payload.
type statusResponse struct {
	Role           string   `json:"role"`
	Phase          string   `json:"phase"`
	Epoch          uint64   `json:"epoch"`
	Round          uint32   `json:"round"`
	BatchSize      int      `json:"batch_size"`
	ShardCount     int      `json:"shard_count"`
	ReportedShards []uint32 `json:"reported_shards"`
}

// handleStatus handles GET /status requests.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Role:           s.status.Role().String(),
		Phase:          s.status.Phase().String(),
		Epoch:          s.status.Epoch(),
		Round:          s.status.Round(),
		BatchSize:      s.status.BatchSize(),
		ShardCount:     s.status.ShardCount(),
		ReportedShards: s.status.ReportedShards(),
	})
}

// batchEntry is one summary in the GET /batch payload.
type batchEntry struct {
	Shard     uint32 `json:"shard"`
	BlockNum  uint64 `json:"block_num"`
	Producer  string `json:"producer"`
	Timestamp uint64 `json:"timestamp"`
	TxRoot    string `json:"tx_root"`
	Signers   int    `json:"signers"`
}

// handleBatch handles GET /batch?epoch=N&round=M requests.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if s.batches == nil {
		writeError(w, http.StatusNotFound, "no archive configured")
		return
	}

	epoch, err := strconv.ParseUint(r.URL.Query().Get("epoch"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid epoch")
		return
	}

	round, err := strconv.ParseUint(r.URL.Query().Get("round"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid round")
		return
	}

	batch, err := s.batches.Batch(epoch, uint32(round))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if batch == nil {
		writeError(w, http.StatusNotFound, "batch not archived")
		return
	}

	entries := make([]batchEntry, len(batch))

	for i, item := range batch {
		entries[i] = batchEntry{
			Shard:     item.Shard,
			BlockNum:  item.Summary.Header.BlockNum,
			Producer:  hex.EncodeToString(item.Summary.Header.Producer[:]),
			Timestamp: item.Summary.Header.Timestamp,
			TxRoot:    hex.EncodeToString(item.Summary.Header.TxRoot[:]),
			Signers:   item.Summary.Bitmap.SetCount(),
		}
	}

	writeJSON(w, http.StatusOK, entries)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
