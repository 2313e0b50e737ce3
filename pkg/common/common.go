package common

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net/http"

	"golang.org/x/crypto/argon2"

	"lostfound/pkg/apperror"
	"lostfound/pkg/logger"
)

type Msg struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func WriteMsg(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	WriteRespJSON(w, Msg{Message: msg})
}

// WriteError maps application errors to HTTP statuses. Unknown errors are
// reported as 500 with the raw message so the client can show it.
func WriteError(w http.ResponseWriter, err error) {
	status, msg := ErrorMsg(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	WriteRespJSON(w, msg)
}

// ErrorMsg is the HTTP status and body WriteError would send for err.
func ErrorMsg(err error) (int, Msg) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperror.ErrPermission):
		status = http.StatusForbidden
	case errors.Is(err, apperror.ErrUnauthorized), errors.Is(err, apperror.ErrReauth):
		status = http.StatusUnauthorized
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return status, Msg{Message: appErr.Message, Field: appErr.Field}
	}
	return status, Msg{Message: err.Error()}
}

var letterRunes = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

func RandStringRunes(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letterRunes[rand.Intn(len(letterRunes))]
	}
	return string(b)
}

// HashPass returns salt followed by the argon2id key. Salt must be 8 bytes.
func HashPass(plainPassword, salt string) []byte {
	hashedPass := argon2.IDKey([]byte(plainPassword), []byte(salt), 1, 64*1024, 4, 32)
	res := []byte(salt)
	return append(res, hashedPass...)
}

func ParseReqBody(body io.Reader, ptr interface{}) error {
	err := json.NewDecoder(body).Decode(ptr)
	if err != nil {
		return err
	}
	return nil
}

func WriteRespJSON(w http.ResponseWriter, data interface{}) {
	resp, err := json.Marshal(data)
	if err != nil {
		logger.Log(context.Background()).Errorf("common: JSON marshaling failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	_, err = w.Write(resp)
	if err != nil {
		logger.Log(context.Background()).Errorf("common: failed writing response: %v", err)
	}
}
