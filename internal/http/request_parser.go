// Package http serves the forecast JSON API.
//
// This file parses query parameters, path values and JSON bodies into
// domain values. Malformed input is reported as core.ValidationError so
// handlers map it to 422 the same way the services do.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"forecast/internal/core"
)

const maxBodyBytes = 1 << 20

var (
	// errBadBody marks a body that is not decodable JSON. It maps to 400.
	errBadBody      = errors.New("invalid request body")
	errRequired     = errors.New("required")
	errUnknownGroup = errors.New("group must be month or category")
)

// WindowParams selects a ledger window. Year wins over Start/End.
type WindowParams struct {
	Year  string `json:"year"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Window resolves the parameters. With nothing set it covers the calendar
// year of now.
func (p WindowParams) Window(now time.Time) (core.Window, error) {
	if y := strings.TrimSpace(p.Year); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil || year < 1900 || year > 9999 {
			return core.Window{}, core.NewValidationError("year", fmt.Errorf("not a year: %q", y))
		}
		return core.YearWindow(year), nil
	}
	start, end := strings.TrimSpace(p.Start), strings.TrimSpace(p.End)
	switch {
	case start == "" && end == "":
		return core.YearWindow(now.Year()), nil
	case start == "" || end == "":
		return core.Window{}, core.NewValidationError("window", errors.New("start and end must be given together"))
	}
	w, err := core.ParseWindow(start, end)
	if err != nil && !errors.Is(err, core.ErrValidation) {
		return core.Window{}, core.NewValidationError("window", err)
	}
	return w, err
}

// ParseWindowParams reads year or start/end from the query string.
func ParseWindowParams(query url.Values) WindowParams {
	return WindowParams{
		Year:  query.Get("year"),
		Start: query.Get("start"),
		End:   query.Get("end"),
	}
}

// ParseMonthParam parses a required "YYYY-MM" value.
func ParseMonthParam(field, value string) (core.Month, error) {
	if strings.TrimSpace(value) == "" {
		return core.Month{}, core.NewValidationError(field, errRequired)
	}
	m, err := core.ParseMonth(value)
	if err != nil {
		return core.Month{}, core.NewValidationError(field, err)
	}
	return m, nil
}

// ParseAsOf parses the optional as_of month, defaulting to the month of now.
func ParseAsOf(value string, now time.Time) (core.Month, error) {
	if strings.TrimSpace(value) == "" {
		return core.MonthOf(now), nil
	}
	return ParseMonthParam("as_of", value)
}

// PathID reads a positive integer path value.
func PathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(name, fmt.Errorf("not a positive integer: %q", raw))
	}
	return id, nil
}

// DecodeJSON reads at most 1 MiB of JSON into dst. An empty body leaves
// dst untouched so every field of a request body is optional at this
// layer.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var syntax *json.SyntaxError
		var typ *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typ):
			field := typ.Field
			if field == "" {
				field = "body"
			}
			return core.NewValidationError(field, err)
		case errors.As(err, &syntax), errors.Is(err, io.ErrUnexpectedEOF),
			strings.HasPrefix(err.Error(), "json: unknown field"):
			return fmt.Errorf("%w: %v", errBadBody, err)
		}
		// month, date and money values reject themselves
		return core.NewValidationError("body", err)
	}
	return nil
}

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
