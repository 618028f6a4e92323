package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/hubenschmidt/go-dupimg/event"
	"github.com/hubenschmidt/go-dupimg/index"
	"github.com/hubenschmidt/go-dupimg/match"
	"github.com/hubenschmidt/go-dupimg/notify"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Flush())
}

func (s *Server) handleMetricsReset(w http.ResponseWriter, r *http.Request) {
	s.collector.(metricsResetter).Reset()
	w.WriteHeader(http.StatusNoContent)
}

// handleEvent dispatches one message. Notifications go to the configured
// sink and to a per-request recorder whose contents become the replies.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody)).Decode(&req); err != nil {
		s.writeError(w, r, badRequest(err))
		return
	}

	msg, err := req.toMessage()
	if err != nil {
		s.writeError(w, r, badRequest(err))
		return
	}

	rec := &notify.Recorder{}
	res, err := s.dispatcher.WithSink(notify.Multi{s.sink, rec}).Handle(r.Context(), msg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := EventResponse{
		Ingest:  outcomeInfo(res.Ingest),
		Replies: replies(rec.Notifications()),
	}
	if res.Compare != nil {
		info := outcomeInfo(*res.Compare)
		resp.Compare = &info
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePartition(w http.ResponseWriter, r *http.Request) {
	partition, err := pathPartition(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	inspector, ok := s.index.(index.Inspector)
	if !ok {
		http.Error(w, "index does not support inspection", http.StatusNotImplemented)
		return
	}

	label, known, err := inspector.Label(r.Context(), partition)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	count, err := inspector.Count(r.Context(), partition)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PartitionInfo{
		PartitionID: int64(partition),
		Label:       label,
		Known:       known,
		Images:      count,
	})
}

// handleIngest takes the raw image as the request body. Query parameters:
// record_id (required), label, threshold (defaults to the server's).
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	partition, err := pathPartition(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	record, err := queryInt(q.Get("record_id"), "record_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	threshold := s.threshold
	if v := q.Get("threshold"); v != "" {
		if threshold, err = strconv.Atoi(v); err != nil {
			s.writeError(w, r, badRequest(fmt.Errorf("threshold: %w", err)))
			return
		}
	}

	img, err := s.readAttachment(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	label := q.Get("label")
	if label == "" {
		label = event.UnknownLabel
	}

	out, err := s.policy.Ingest(r.Context(), partition, label, core.RecordID(record), img, threshold)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeInfo(out))
}

// handleCompare takes the raw image as the request body and the record to
// leave out as ?exclude=.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	partition, err := pathPartition(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	exclude, err := queryInt(r.URL.Query().Get("exclude"), "exclude")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	img, err := s.readAttachment(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.policy.CompareAgainst(r.Context(), partition, img, core.RecordID(exclude))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeInfo(out))
}

// readAttachment reads the body as a photo, or as a document when the
// request names a specific Content-Type.
func (s *Server) readAttachment(w http.ResponseWriter, r *http.Request) (match.Attachment, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		return match.Attachment{}, badRequest(err)
	}

	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return match.Photo(data), nil
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || mediaType == "application/octet-stream" {
		return match.Photo(data), nil
	}
	return match.Document(mediaType, data), nil
}

type requestError struct{ err error }

func (e requestError) Error() string { return e.err.Error() }
func (e requestError) Unwrap() error { return e.err }

func badRequest(err error) error { return requestError{err: err} }

func pathPartition(r *http.Request) (core.PartitionID, error) {
	id, err := queryInt(r.PathValue("partition"), "partition")
	return core.PartitionID(id), err
}

func queryInt(v, name string) (int64, error) {
	if v == "" {
		return 0, badRequest(fmt.Errorf("%s is required", name))
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, badRequest(fmt.Errorf("%s: %w", name, err))
	}
	return n, nil
}

func statusFor(err error) int {
	var reqErr requestError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &reqErr), errors.Is(err, core.ErrInvalidThreshold):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrDuplicateRecord):
		return http.StatusConflict
	case errors.Is(err, core.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"component", "server", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
