// Package origin is a minimal FHIR server answering Patient searches by
// family name. It stands in for a real FHIR server in tests and local runs.
package origin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/always-cache/cachebench/fhir"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Delay added to every search, simulating a slow origin.
	Latency time.Duration
	// Freshness lifetime sent in Cache-Control. Zero sends no-store.
	MaxAge time.Duration
	// Patients to serve. Searches match family names by case-insensitive prefix.
	Patients []fhir.Patient
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

type Server struct {
	latency  time.Duration
	maxAge   time.Duration
	patients []fhir.Patient
	log      zerolog.Logger
	requests atomic.Int64
}

func New(config Config) *Server {
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}
	return &Server{
		latency:  config.Latency,
		maxAge:   config.MaxAge,
		patients: config.Patients,
		log:      logger.With().Str("component", "origin").Logger(),
	}
}

// Handler returns the routes of the server. The search is served both at
// the root and below a base path, e.g. /baseR4/Patient.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("url", r.URL.String()).
			Int("status", status).
			Dur("duration", duration).
			Msg("Search served")
	}))
	r.Get("/Patient", s.searchPatients)
	r.Get("/{base}/Patient", s.searchPatients)
	return r
}

// Requests returns the number of searches served.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

func (s *Server) searchPatients(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
	}

	family := strings.ToLower(r.URL.Query().Get("family"))
	bundle := fhir.Bundle{ResourceType: "Bundle", Type: "searchset"}
	for i := range s.patients {
		p := &s.patients[i]
		name, ok := p.FamilyName()
		if !ok || !strings.HasPrefix(strings.ToLower(name), family) {
			continue
		}
		bundle.Entry = append(bundle.Entry, fhir.BundleEntry{
			FullURL:  fmt.Sprintf("Patient/%s", p.ID),
			Resource: p,
		})
	}
	total := len(bundle.Entry)
	bundle.Total = &total

	if s.maxAge > 0 {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(s.maxAge/time.Second)))
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.Header().Set("Content-Type", "application/fhir+json")
	if err := json.NewEncoder(w).Encode(bundle); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Could not write bundle")
	}
}

// GeneratePatients creates count patients for every family name,
// numbered given names and birth dates spread over the year 1980.
func GeneratePatients(families []string, count int) []fhir.Patient {
	patients := make([]fhir.Patient, 0, len(families)*count)
	birth := time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, family := range families {
		for i := 0; i < count; i++ {
			id := len(patients) + 1
			patients = append(patients, fhir.Patient{
				ResourceType: "Patient",
				ID:           strconv.Itoa(id),
				Name:         []fhir.HumanName{{Family: family, Given: []string{fmt.Sprintf("Test%d", i+1)}}},
				BirthDate:    birth.AddDate(0, 0, id%365).Format(time.DateOnly),
			})
		}
	}
	return patients
}
