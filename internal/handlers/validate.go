package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"taskBoard/internal/board"
	"taskBoard/internal/models/task"
)

func checkContentType(r *http.Request, target string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == target
}

// parseFilter читает status, subteam и q из строки запроса.
func parseFilter(r *http.Request, scope board.Scope) (board.Filter, error) {
	query := r.URL.Query()
	f := board.Filter{
		Status:  board.Status(strings.TrimSpace(query.Get("status"))),
		Subteam: task.Subteam(strings.TrimSpace(query.Get("subteam"))),
		Query:   query.Get("q"),
		Scope:   scope,
	}
	if !f.Status.Valid() {
		return board.Filter{}, fmt.Errorf("неизвестный статус %q", f.Status)
	}
	if f.Subteam != "" && f.Subteam != "All" && !f.Subteam.Valid() {
		return board.Filter{}, fmt.Errorf("неизвестная подкоманда %q", f.Subteam)
	}
	if f.Subteam == "All" {
		f.Subteam = ""
	}
	return f, nil
}
