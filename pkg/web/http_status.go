package web

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

// statusHandler renders a point-in-time snapshot as JSON.
type statusHandler struct {
	status StatusFunc
}

func (sh *statusHandler) serveStatus(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("content-type", "application/json")
	enc := jsoniter.NewEncoder(w)
	_ = enc.Encode(sh.status())
}
