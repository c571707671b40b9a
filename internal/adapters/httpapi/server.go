package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tripwell/crew-planner-api/internal/app/crews"
	"github.com/tripwell/crew-planner-api/internal/app/travelers"
	"github.com/tripwell/crew-planner-api/internal/app/trips"
	"github.com/tripwell/crew-planner-api/internal/domain"
	clockport "github.com/tripwell/crew-planner-api/internal/ports/out/clock"
	"github.com/tripwell/crew-planner-api/internal/ports/out/idempotency"
)

const maxBodyBytes = 1 << 20

// Server holds the application services behind the HTTP handlers.
type Server struct {
	Travelers *travelers.Service
	Crews     *crews.Service
	Trips     *trips.Service
	Idem      idempotency.Store

	clk      clockport.Clock
	log      *zap.Logger
	validate *validator.Validate
}

func NewServer(travelersSvc *travelers.Service, crewsSvc *crews.Service, tripsSvc *trips.Service, idem idempotency.Store, clk clockport.Clock, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in validation details.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{
		Travelers: travelersSvc,
		Crews:     crewsSvc,
		Trips:     tripsSvc,
		Idem:      idem,
		clk:       clk,
		log:       log.Named("httpapi"),
		validate:  v,
	}
}

// readBody returns the raw request body, bounded by maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "request body too large", nil)
		return nil, false
	}
	return b, true
}

// bind decodes body into dst and runs struct validation. An empty body is accepted when
// allowEmpty is set.
func (s *Server) bind(w http.ResponseWriter, r *http.Request, body []byte, dst any, allowEmpty bool) bool {
	if len(strings.TrimSpace(string(body))) == 0 {
		if !allowEmpty {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "missing request body", nil)
			return false
		}
	} else {
		dec := json.NewDecoder(strings.NewReader(string(body)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid request body", map[string]any{"body": err.Error()})
			return false
		}
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]any, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = "failed " + fe.Tag() + " validation"
			}
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid request", details)
			return false
		}
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid request", nil)
		return false
	}
	return true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	body, ok := readBody(w, r)
	if !ok {
		return false
	}
	return s.bind(w, r, body, dst, allowEmpty)
}

// caller resolves the authenticated traveler. A subject without a traveler profile gets 401
// TRAVELER_NOT_PROVISIONED; clients hydrate via POST /travelers/me first.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.TravelerID, bool) {
	sub, ok := SubjectFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject", nil)
		return "", false
	}
	t, err := s.Travelers.GetMe(r.Context(), domain.SubjectID(sub))
	if err != nil {
		if te := (*travelers.Error)(nil); errors.As(err, &te) && te.Status == http.StatusNotFound {
			writeError(w, r, http.StatusUnauthorized, te.Code, te.Message, nil)
			return "", false
		}
		s.writeAppError(w, r, err)
		return "", false
	}
	return t.ID, true
}
