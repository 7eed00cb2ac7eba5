package domain

import (
	"strings"
	"time"
)

type ContentType string

const (
	ContentDrama  ContentType = "drama"
	ContentAnime  ContentType = "anime"
	ContentKomik  ContentType = "komik"
	ContentShorts ContentType = "shorts"
)

// ContentTypes lists every supported content type in display order.
func ContentTypes() []ContentType {
	return []ContentType{ContentDrama, ContentShorts, ContentAnime, ContentKomik}
}

func NormalizeContentType(raw string) ContentType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "drama", "dramas":
		return ContentDrama
	case "anime":
		return ContentAnime
	case "komik", "comic", "comics", "manga":
		return ContentKomik
	case "shorts", "short":
		return ContentShorts
	default:
		return ""
	}
}

const UntitledTitle = "Untitled"

// CanonicalItem is the normalized representation of one piece of content.
type CanonicalItem struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Cover    string      `json:"cover"`
	Subtitle string      `json:"subtitle,omitempty"`
	Rating   *float64    `json:"rating,omitempty"`
	Episodes *int        `json:"episodes,omitempty"`
	Year     string      `json:"year,omitempty"`
	Quality  string      `json:"quality,omitempty"`
	Duration string      `json:"duration,omitempty"`
	Genres   []string    `json:"genres,omitempty"`
	Type     ContentType `json:"type,omitempty"`
	Source   string      `json:"source,omitempty"`
}

type BatchStatus string

const (
	BatchLoading BatchStatus = "loading"
	BatchOK      BatchStatus = "ok"
	BatchEmpty   BatchStatus = "empty"
	BatchFailed  BatchStatus = "failed"
)

// ResolveBatchStatus derives the terminal status of a finished batch.
func ResolveBatchStatus(succeeded, items int) BatchStatus {
	switch {
	case succeeded == 0:
		return BatchFailed
	case items == 0:
		return BatchEmpty
	default:
		return BatchOK
	}
}

type EndpointStatus struct {
	Name      string `json:"name"`
	Source    string `json:"source"`
	OK        bool   `json:"ok"`
	Count     int    `json:"count"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsedMs"`
}

type ListRequest struct {
	Type    ContentType
	Tab     string
	View    string
	NoCache bool
}

type ListResponse struct {
	Type               ContentType      `json:"type"`
	Tab                string           `json:"tab"`
	Items              []CanonicalItem  `json:"items"`
	SucceededEndpoints int              `json:"succeededEndpointCount"`
	TotalEndpoints     int              `json:"totalEndpointCount"`
	Status             BatchStatus      `json:"status"`
	IsLoading          bool             `json:"isLoading"`
	Failed             bool             `json:"failed"`
	Endpoints          []EndpointStatus `json:"endpoints,omitempty"`
	Generation         uint64           `json:"generation,omitempty"`
	ElapsedMS          int64            `json:"elapsedMs"`
	Final              bool             `json:"final,omitempty"`
	Phase              string           `json:"phase,omitempty"`
}

// SetStatus keeps the derived flags in line with Status.
func (r *ListResponse) SetStatus(status BatchStatus) {
	r.Status = status
	r.IsLoading = status == BatchLoading
	r.Failed = status == BatchFailed
}

type RandomRequest struct {
	Type ContentType
	Tab  string
}

type RandomResponse struct {
	Item               CanonicalItem `json:"item"`
	PoolSize           int           `json:"poolSize"`
	SucceededEndpoints int           `json:"succeededEndpointCount"`
	ElapsedMS          int64         `json:"elapsedMs"`
}

type Suggestion struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	Type  ContentType `json:"type"`
}

type SuggestResponse struct {
	Query       string       `json:"query"`
	Suggestions []Suggestion `json:"suggestions"`
}

type SearchSection struct {
	Type               ContentType     `json:"type"`
	Items              []CanonicalItem `json:"items"`
	SucceededEndpoints int             `json:"succeededEndpointCount"`
	Status             BatchStatus     `json:"status"`
}

type SearchResponse struct {
	Query     string          `json:"query"`
	Sections  []SearchSection `json:"sections"`
	Total     int             `json:"total"`
	ElapsedMS int64           `json:"elapsedMs"`
}

type HomeSection struct {
	Type               ContentType     `json:"type"`
	Title              string          `json:"title"`
	Items              []CanonicalItem `json:"items"`
	SucceededEndpoints int             `json:"succeededEndpointCount"`
	Status             BatchStatus     `json:"status"`
}

type HomeResponse struct {
	Hero      []CanonicalItem `json:"hero"`
	Sections  []HomeSection   `json:"sections"`
	Failed    bool            `json:"failed"`
	ElapsedMS int64           `json:"elapsedMs"`
}

type Chapter struct {
	ID     string `json:"id"`
	Title  string `json:"title,omitempty"`
	Number string `json:"number,omitempty"`
}

type DetailResponse struct {
	Item     CanonicalItem   `json:"item"`
	Source   string          `json:"source"`
	Chapters []Chapter       `json:"chapters,omitempty"`
	Related  []CanonicalItem `json:"related,omitempty"`
}

type ProviderInfo struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	BaseURL string `json:"baseUrl"`
	Auth    bool   `json:"auth"`
	Enabled bool   `json:"enabled"`
}

type ProviderDiagnostics struct {
	Name               string                `json:"name"`
	Label              string                `json:"label"`
	Enabled            bool                  `json:"enabled"`
	TotalRequests      int64                 `json:"totalRequests"`
	TotalFailures      int64                 `json:"totalFailures"`
	TotalMisses        int64                 `json:"totalMisses"`
	TimeoutCount       int64                 `json:"timeoutCount"`
	FailingEndpoints   int                   `json:"failingEndpoints"`
	LastError          string                `json:"lastError,omitempty"`
	LastFailedEndpoint string                `json:"lastFailedEndpoint,omitempty"`
	LastSuccessAt      *time.Time            `json:"lastSuccessAt,omitempty"`
	LastFailureAt      *time.Time            `json:"lastFailureAt,omitempty"`
	Endpoints          []EndpointDiagnostics `json:"endpoints,omitempty"`
}

// EndpointDiagnostics is the running record of one catalog route. A miss is a
// 404 inside a detail fallback chain and does not count as a failure.
type EndpointDiagnostics struct {
	Route               string     `json:"route"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	LastStatus          int        `json:"lastStatus,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	Requests            int64      `json:"requests"`
	Failures            int64      `json:"failures"`
	Misses              int64      `json:"misses"`
}
