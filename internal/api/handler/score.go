// Package handler provides HTTP handlers for the SafeRoute API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/scoring"
)

// ScoreHandler handles route scoring and point prediction endpoints.
type ScoreHandler struct {
	routes    *scoring.Service
	predictor *scoring.Predictor
}

// NewScoreHandler creates a new ScoreHandler.
func NewScoreHandler(routes *scoring.Service, predictor *scoring.Predictor) *ScoreHandler {
	return &ScoreHandler{routes: routes, predictor: predictor}
}

// ScoreRoute handles POST /v1/routes:score - score a route polyline for a
// demographic profile.
func (h *ScoreHandler) ScoreRoute(w http.ResponseWriter, r *http.Request) {
	var input models.ScoreRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if fieldErrors := validateScoreRouteRequest(input); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "request validation failed", fieldErrors)
		return
	}

	result, err := h.routes.ScoreRoute(r.Context(), models.Coordinates(input.Route), input.Demographics)
	if err != nil {
		switch {
		case errors.Is(err, scoring.ErrInvalidRoute), errors.Is(err, scoring.ErrEmptyRoute):
			response.BadRequest(w, r, err.Error(), nil)
		case errors.Is(err, scoring.ErrMissingDemographics):
			response.BadRequest(w, r, err.Error(), nil)
		default:
			response.InternalError(w, r, "route scoring failed")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewRouteSafetyResponse(result))
}

// PredictPoint handles POST /v1/points:predict - predict safety at a single
// coordinate.
func (h *ScoreHandler) PredictPoint(w http.ResponseWriter, r *http.Request) {
	var input models.PredictPointRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if fieldErrors := validatePredictPointRequest(input); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "request validation failed", fieldErrors)
		return
	}

	point := geo.Coordinate{Lat: input.Point.Lat, Lon: input.Point.Lon}
	prediction, err := h.predictor.PredictPoint(r.Context(), point, input.Demographics, input.PlaceType, input.RadiusMeters)
	if err != nil {
		if errors.Is(err, scoring.ErrMissingDemographics) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		response.InternalError(w, r, "point prediction failed")
		return
	}

	response.JSON(w, r, http.StatusOK, prediction)
}

func validateScoreRouteRequest(input models.ScoreRouteRequest) []models.FieldError {
	var fieldErrors []models.FieldError
	if len(input.Route) < 2 {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "route",
			Message: "route must contain at least two coordinates",
			Code:    "min",
		})
	}
	for i, p := range input.Route {
		fieldErrors = validatePoint(fieldErrors, p, "route", i)
	}
	if input.Demographics == nil {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "demographics",
			Message: "demographics is required",
			Code:    "required",
		})
	}
	return fieldErrors
}

func validatePredictPointRequest(input models.PredictPointRequest) []models.FieldError {
	var fieldErrors []models.FieldError
	fieldErrors = validatePoint(fieldErrors, input.Point, "point", -1)
	if input.RadiusMeters < 0 || input.RadiusMeters > 5000 {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "radiusMeters",
			Message: "radiusMeters must be between 0 and 5000",
			Code:    "range",
		})
	}
	if input.Demographics == nil {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "demographics",
			Message: "demographics is required",
			Code:    "required",
		})
	}
	return fieldErrors
}

func validatePoint(fieldErrors []models.FieldError, p models.Point, field string, index int) []models.FieldError {
	name := field
	if index >= 0 {
		name = field + "[" + strconv.Itoa(index) + "]"
	}
	if p.Lat < -90 || p.Lat > 90 {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   name + ".lat",
			Message: "latitude must be between -90 and 90",
			Code:    "range",
		})
	}
	if p.Lon < -180 || p.Lon > 180 {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   name + ".lon",
			Message: "longitude must be between -180 and 180",
			Code:    "range",
		})
	}
	return fieldErrors
}
