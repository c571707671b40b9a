package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tripwell/crew-planner-api/internal/domain"
	"github.com/tripwell/crew-planner-api/internal/ports/out/idempotency"
)

type replayOutcome int

const (
	replayNone replayOutcome = iota
	replayHit
	replayConflict
)

func hashBody(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// checkReplay implements the Idempotency-Key contract for a route:
//   - same actor+key+route+bodyHash replays the stored response
//   - same actor+key+route with a different bodyHash is rejected (409)
//
// The first request for a key records its body hash under a BodyHash-less fingerprint.
func (s *Server) checkReplay(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, replayOutcome, error) {
	if s.Idem == nil || fp.Key == "" {
		return idempotency.Record{}, replayNone, nil
	}
	bodyHash := fp.BodyHash

	metaFP := fp
	metaFP.BodyHash = ""
	meta, ok, err := s.Idem.Get(ctx, metaFP)
	if err != nil {
		return idempotency.Record{}, replayNone, err
	}
	if ok {
		if string(meta.Body) != bodyHash {
			return idempotency.Record{}, replayConflict, nil
		}
	} else {
		if err := s.Idem.Put(ctx, metaFP, idempotency.Record{
			StatusCode:  0,
			ContentType: "text/plain",
			Body:        []byte(bodyHash),
			CreatedAt:   s.clk.Now(),
		}); err != nil {
			return idempotency.Record{}, replayNone, err
		}
	}

	rec, ok, err := s.Idem.Get(ctx, fp)
	if err != nil {
		return idempotency.Record{}, replayNone, err
	}
	if ok && rec.StatusCode != 0 && strings.HasPrefix(rec.ContentType, "application/json") {
		return rec, replayHit, nil
	}
	return idempotency.Record{}, replayNone, nil
}

// storeReplay records a successful response for later replay. Failures are logged only.
func (s *Server) storeReplay(ctx context.Context, fp idempotency.Fingerprint, status int, payload any) {
	if s.Idem == nil || fp.Key == "" {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.Idem.Put(ctx, fp, idempotency.Record{
		StatusCode:  status,
		ContentType: "application/json",
		Body:        b,
		CreatedAt:   s.clk.Now(),
	}); err != nil {
		s.log.Warn("store idempotent response", zap.String("route", fp.Route), zap.Error(err))
	}
}

func writeReplay(w http.ResponseWriter, rec idempotency.Record) {
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(rec.StatusCode)
	_, _ = w.Write(rec.Body)
}

func idempotencyFingerprint(r *http.Request, subject string, route string, bodyHash string) idempotency.Fingerprint {
	return idempotency.Fingerprint{
		Key:      idempotency.Key(strings.TrimSpace(r.Header.Get("Idempotency-Key"))),
		Subject:  domain.SubjectID(subject),
		Method:   r.Method,
		Route:    route,
		BodyHash: bodyHash,
	}
}
