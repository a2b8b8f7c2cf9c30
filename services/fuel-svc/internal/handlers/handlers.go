// Package handlers JSON API поверх сервисного слоя
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/domain"
	"fueltracker/services/fuel-svc/internal/middleware"
	"fueltracker/services/fuel-svc/internal/service"
)

const defaultMaxBodyBytes = 1 << 20

// decodeJSON читает тело запроса не больше limit байт, неизвестные поля запрещены
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return pkgerrors.New(pkgerrors.CodeInvalidArgument,
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return pkgerrors.New(pkgerrors.CodeInvalidArgument, "request body is empty")
		default:
			return pkgerrors.Wrap(err, pkgerrors.CodeInvalidArgument, "invalid JSON body").
				WithDetails("reason", err.Error())
		}
	}
	return nil
}

// listOptions собирает параметры выборки из query: from, to, station (повторяемый), limit, offset
func listOptions(r *http.Request) (service.ListOptions, error) {
	q := r.URL.Query()
	opts := service.ListOptions{
		From: strings.TrimSpace(q.Get("from")),
		To:   strings.TrimSpace(q.Get("to")),
	}
	for _, s := range q["station"] {
		if s = strings.TrimSpace(s); s != "" {
			opts.Stations = append(opts.Stations, s)
		}
	}

	var err error
	if opts.Limit, err = queryInt(q.Get("limit"), "limit"); err != nil {
		return opts, err
	}
	if opts.Offset, err = queryInt(q.Get("offset"), "offset"); err != nil {
		return opts, err
	}
	return opts, nil
}

func queryInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.NewWithField(pkgerrors.CodeInvalidPagination,
			fmt.Sprintf("%s must be an integer", field), field)
	}
	return n, nil
}

func queryFloat(raw, field string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0, pkgerrors.NewWithField(pkgerrors.CodeInvalidArgument,
			fmt.Sprintf("%s must be a non-negative number", field), field)
	}
	return f, nil
}

func queryBool(raw string) bool {
	b, _ := strconv.ParseBool(raw)
	return b
}

// formValue строковое поле формы, которое в JSON может прийти числом
type formValue string

func (v *formValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = formValue(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", b)
		}
		*v = formValue(n.String())
	}
	return nil
}

// recordForm тело запроса создания/изменения записи
type recordForm struct {
	Date    formValue `json:"date"`
	Amount  formValue `json:"amount"`
	Cost    formValue `json:"cost"`
	Mileage formValue `json:"mileage"`
	Station formValue `json:"station"`
}

func (f recordForm) input() domain.FormInput {
	return domain.FormInput{
		Date:    string(f.Date),
		Amount:  string(f.Amount),
		Cost:    string(f.Cost),
		Mileage: string(f.Mileage),
		Station: string(f.Station),
	}
}

// attachment отдаёт файл с Content-Disposition
func attachment(w http.ResponseWriter, file *service.File) {
	h := w.Header()
	h.Set("Content-Type", file.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(file.Data)))
	h.Set("Content-Disposition", contentDisposition(file.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

func contentDisposition(filename string) string {
	// mime кодирует не-ASCII имя как filename*=utf-8''...
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	middleware.WriteJSON(w, status, v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	middleware.WriteError(w, r, err)
}
