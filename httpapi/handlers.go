package httpapi

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

	"github.com/julienschmidt/httprouter"

	"github.com/jacentio/roster/student"
)

func (s *Server) root(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	sendReply(w, map[string]string{"message": "Welcome to the Student API!"})
}

// GET /students
//
// query parameters:
//
//	country=<string>   exact match on address.country
//	age=<int>          minimum age, inclusive
func (s *Server) list(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		sendError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	records, err := s.service.List(r.Context(), f)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	sendReply(w, records)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	record, err := s.service.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	sendReply(w, record)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, ok := s.readPatch(w, r)
	if !ok {
		return
	}

	record, err := s.service.Create(r.Context(), p)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/students/"+record.ID)
	sendStatus(w, http.StatusCreated, record)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	// identifier errors take precedence over body errors
	if _, err := student.ParseIdentifier(ps.ByName("id")); err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	p, ok := s.readPatch(w, r)
	if !ok {
		return
	}

	record, err := s.service.Update(r.Context(), ps.ByName("id"), p)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	sendReply(w, record)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	record, err := s.service.Delete(r.Context(), ps.ByName("id"))
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	sendReply(w, record)
}

func parseFilter(q url.Values) (student.Filter, error) {
	f := student.Filter{Country: q.Get("country")}

	if v := q.Get("age"); v != "" {
		age, err := strconv.Atoi(v)
		if err != nil {
			return student.Filter{}, fmt.Errorf("age must be an integer, got %q", v)
		}
		f.MinAge = &age
	}
	return f, nil
}

// readPatch decodes the request body into a Patch. On failure it has already
// written the response.
func (s *Server) readPatch(w http.ResponseWriter, r *http.Request) (student.Patch, bool) {
	var p student.Patch

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return p, false
		}
		sendError(w, "cannot read request body", http.StatusBadRequest)
		return p, false
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		sendError(w, "request body must be a JSON object", http.StatusUnprocessableEntity)
		return p, false
	}
	if err := json.Unmarshal(body, &p); err != nil {
		sendError(w, decodeMessage(err), http.StatusUnprocessableEntity)
		return p, false
	}
	return p, true
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type)
	}
	return "malformed JSON body"
}

func (s *Server) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, student.ErrInvalidIdentifier):
		sendError(w, "Invalid student id format", http.StatusBadRequest)
	case errors.Is(err, student.ErrNotFound):
		sendError(w, "Student not found", http.StatusNotFound)
	case errors.Is(err, student.ErrValidation):
		sendError(w, strings.TrimPrefix(err.Error(), student.ErrValidation.Error()+": "), http.StatusUnprocessableEntity)
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		sendInternalServerError(w)
	}
}
