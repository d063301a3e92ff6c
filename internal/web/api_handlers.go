package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/evcraddock/nfc-timecontrol/internal/location"
	"github.com/evcraddock/nfc-timecontrol/internal/scan"
	"github.com/evcraddock/nfc-timecontrol/internal/tag"
	"github.com/evcraddock/nfc-timecontrol/internal/visit"
)

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// placeVar returns the decoded {place} path variable.
func placeVar(r *http.Request) (string, error) {
	place, err := url.PathUnescape(mux.Vars(r)["place"])
	if err != nil {
		return "", fmt.Errorf("invalid place name")
	}
	place = strings.TrimSpace(place)
	if place == "" {
		return "", fmt.Errorf("place name is required")
	}
	return place, nil
}

// visitView is a visit with its duration in minutes.
type visitView struct {
	*visit.Visit
	Minutes int64 `json:"minutes"`
}

// openView is the open/closed state of one place.
type openView struct {
	Place   string     `json:"place"`
	Open    bool       `json:"open"`
	CheckIn *time.Time `json:"check_in,omitempty"`
	Minutes int64      `json:"minutes"`
	Visits  int64      `json:"visits,omitempty"`
}

// statusView is the response of GET /api/status.
type statusView struct {
	Empty bool        `json:"empty"`
	Open  []*openView `json:"open"`
}

// scanRequest is the body of POST /api/scan. Exactly one of Tag (base64 NDEF
// bytes) or Place is set.
type scanRequest struct {
	Tag   string          `json:"tag" validate:"required_without=Place,omitempty,base64"`
	Place string          `json:"place" validate:"required_without=Tag"`
	Fixes []*location.Fix `json:"fixes" validate:"omitempty,dive"`
}

// scanView is the response of POST /api/scan.
type scanView struct {
	Ignored  bool          `json:"ignored"`
	Reason   string        `json:"reason,omitempty"`
	Action   visit.Action  `json:"action,omitempty"`
	Label    string        `json:"label,omitempty"`
	Visit    *visit.Visit  `json:"visit,omitempty"`
	Location *location.Fix `json:"location,omitempty"`
}

// apiListPlaces returns a summary of every place.
func (s *Server) apiListPlaces(w http.ResponseWriter, r *http.Request) {
	sums, err := s.visitRepo.Summaries(r.Context())
	if err != nil {
		apiError(w, fmt.Sprintf("listing places: %v", err), http.StatusInternalServerError)
		return
	}
	apiJSON(w, sums, http.StatusOK)
}

// apiListVisits returns the visits of a place, newest first.
func (s *Server) apiListVisits(w http.ResponseWriter, r *http.Request) {
	place, err := placeVar(r)
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	visits, err := s.visitRepo.ListByPlace(r.Context(), place)
	if err != nil {
		apiError(w, fmt.Sprintf("listing visits: %v", err), http.StatusInternalServerError)
		return
	}

	now := s.now()
	views := make([]visitView, 0, len(visits))
	for _, v := range visits {
		views = append(views, visitView{Visit: v, Minutes: v.Minutes(now)})
	}
	apiJSON(w, views, http.StatusOK)
}

// apiOpenStatus reports whether a place has an open visit, for how long,
// and how many visits it has in total.
func (s *Server) apiOpenStatus(w http.ResponseWriter, r *http.Request) {
	place, err := placeVar(r)
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	open, err := s.visitRepo.IsOpen(ctx, place)
	if err != nil {
		apiError(w, fmt.Sprintf("checking place: %v", err), http.StatusInternalServerError)
		return
	}
	count, err := s.visitRepo.VisitCount(ctx, place)
	if err != nil {
		apiError(w, fmt.Sprintf("counting visits: %v", err), http.StatusInternalServerError)
		return
	}

	view := &openView{Place: place, Open: open, Visits: count}
	if open {
		latest, err := s.visitRepo.Latest(ctx, place)
		if err != nil {
			apiError(w, fmt.Sprintf("loading visit: %v", err), http.StatusInternalServerError)
			return
		}
		view.CheckIn = &latest.CheckIn

		view.Minutes, err = s.visitRepo.OpenDurationMinutes(ctx, place, s.now())
		if err != nil {
			apiError(w, fmt.Sprintf("measuring visit: %v", err), http.StatusInternalServerError)
			return
		}
	}

	apiJSON(w, view, http.StatusOK)
}

// apiDeletePlace removes a place and all its visits.
func (s *Server) apiDeletePlace(w http.ResponseWriter, r *http.Request) {
	place, err := placeVar(r)
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	removed, err := s.visitRepo.DeletePlace(r.Context(), place)
	if errors.Is(err, visit.ErrNotFound) {
		apiError(w, "place not found", http.StatusNotFound)
		return
	}
	if err != nil {
		apiError(w, fmt.Sprintf("deleting place: %v", err), http.StatusInternalServerError)
		return
	}

	apiJSON(w, map[string]interface{}{"place": place, "removed": removed}, http.StatusOK)
}

// apiStatus lists the places with an open visit.
func (s *Server) apiStatus(w http.ResponseWriter, r *http.Request) {
	empty, err := s.visitRepo.IsEmpty(r.Context())
	if err != nil {
		apiError(w, fmt.Sprintf("checking visits: %v", err), http.StatusInternalServerError)
		return
	}

	open, err := s.visitRepo.OpenVisits(r.Context())
	if err != nil {
		apiError(w, fmt.Sprintf("listing open visits: %v", err), http.StatusInternalServerError)
		return
	}

	now := s.now()
	resp := statusView{Empty: empty, Open: make([]*openView, 0, len(open))}
	for _, v := range open {
		resp.Open = append(resp.Open, &openView{
			Place:   v.Place,
			Open:    true,
			CheckIn: &v.CheckIn,
			Minutes: v.Minutes(now),
		})
	}
	apiJSON(w, resp, http.StatusOK)
}

// apiScan handles a tag read or a manual check toggle.
func (s *Server) apiScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		apiError(w, validationMessage(err), http.StatusBadRequest)
		return
	}
	if req.Tag != "" && req.Place != "" {
		apiError(w, "give either tag or place, not both", http.StatusBadRequest)
		return
	}

	now := s.now()
	var (
		res *visit.ScanResult
		err error
	)
	if req.Tag != "" {
		raw, decodeErr := base64.StdEncoding.DecodeString(req.Tag)
		if decodeErr != nil {
			apiError(w, "tag must be base64", http.StatusBadRequest)
			return
		}
		res, err = s.scans.HandleTag(r.Context(), raw, now)
	} else {
		res, err = s.scans.CheckPlace(r.Context(), req.Place, now)
	}

	fix := location.Best(req.Fixes)
	switch {
	case scan.Ignored(err):
		apiJSON(w, scanView{Ignored: true, Reason: err.Error(), Location: fix}, http.StatusOK)
		return
	case errors.Is(err, tag.ErrInvalidPlace):
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		apiError(w, fmt.Sprintf("recording scan: %v", err), http.StatusInternalServerError)
		return
	}

	apiJSON(w, scanView{
		Action:   res.Action,
		Label:    res.Action.Label(),
		Visit:    res.Visit,
		Location: fix,
	}, http.StatusOK)
}

// validationMessage turns validator errors into a short client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
