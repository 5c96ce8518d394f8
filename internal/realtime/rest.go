package realtime

import (
	"encoding/json"
	"net/http"
	"time"
)

// UploadInfo describes a video received through a start command.
type UploadInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{Status: "ok", Clients: s.ClientCount()})
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Uploads())
}

// Uploads returns the uploads received so far, oldest first.
func (s *Server) Uploads() []UploadInfo {
	s.uploadsMu.RLock()
	defer s.uploadsMu.RUnlock()
	uploads := make([]UploadInfo, len(s.uploads))
	copy(uploads, s.uploads)
	return uploads
}
