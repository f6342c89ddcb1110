package catalog

import "encoding/json"

// Artifact kinds returned by the intelligence service.
type Kind string

const (
	KindFile   Kind = "file"
	KindURL    Kind = "url"
	KindDomain Kind = "domain"
)

// Known returns true for the artifact kinds the pipeline can process.
func (k Kind) Known() bool {
	switch k {
	case KindFile, KindURL, KindDomain:
		return true
	}
	return false
}

// AnalysisStats summarizes the last analysis verdicts for an artifact.
type AnalysisStats struct {
	Harmless   int `json:"harmless"`
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Undetected int `json:"undetected"`
}

// EngineResult is a single antivirus engine's verdict from the last analysis.
type EngineResult struct {
	EngineName   string `json:"engine_name"`
	Category     string `json:"category"`
	Result       string `json:"result"`
	EngineUpdate string `json:"engine_update"`
}

// FileAttributes carries the fields rendered for file artifacts.
type FileAttributes struct {
	MD5             string                  `json:"md5"`
	SHA1            string                  `json:"sha1"`
	SHA256          string                  `json:"sha256"`
	VHash           string                  `json:"vhash"`
	Magic           string                  `json:"magic"`
	TypeTag         string                  `json:"type_tag"`
	Tags            []string                `json:"tags"`
	Size            int64                   `json:"size"`
	FirstSubmission int64                   `json:"first_submission_date"`
	LastSubmission  int64                   `json:"last_submission_date"`
	TimesSubmitted  int                     `json:"times_submitted"`
	UniqueSources   int                     `json:"unique_sources"`
	Results         map[string]EngineResult `json:"last_analysis_results"`
}

// DomainAttributes carries the fields rendered for domain artifacts.
type DomainAttributes struct {
	Registrar        string   `json:"registrar"`
	Tags             []string `json:"tags"`
	CreationDate     int64    `json:"creation_date"`
	LastModification int64    `json:"last_modification_date"`
	LastUpdate       int64    `json:"last_update_date"`
}

// URLAttributes carries the fields rendered for URL artifacts.
type URLAttributes struct {
	URL             string   `json:"url"`
	FinalURL        string   `json:"last_final_url"`
	Title           string   `json:"title"`
	Tags            []string `json:"tags"`
	FirstSubmission int64    `json:"first_submission_date"`
	LastSubmission  int64    `json:"last_submission_date"`
	TimesSubmitted  int      `json:"times_submitted"`
}

// Object is a single artifact record returned by the catalog. Exactly one of
// the per-kind attribute pointers is set, matching Kind. Records are never
// mutated after creation.
type Object struct {
	Kind   Kind
	ID     string
	File   *FileAttributes
	Domain *DomainAttributes
	URL    *URLAttributes
	Stats  *AnalysisStats
}

// Identifier returns the value written to the artifact log and used as the
// on-disk filename. For URLs this is the opaque object ID, not the URL text.
func (o *Object) Identifier() string {
	return o.ID
}

// Report is the raw behavior-analysis payload for a file artifact. It is
// persisted to disk verbatim and read back verbatim on a cache hit.
type Report = json.RawMessage

// decodeObject maps the wire representation onto the tagged Object variant.
func decodeObject(data []byte) (*Object, error) {
	var raw struct {
		ID         string          `json:"id"`
		Type       string          `json:"type"`
		Attributes json.RawMessage `json:"attributes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	obj := &Object{Kind: Kind(raw.Type), ID: raw.ID}

	if len(raw.Attributes) > 0 {
		var stats struct {
			LastAnalysisStats *AnalysisStats `json:"last_analysis_stats"`
		}
		if err := json.Unmarshal(raw.Attributes, &stats); err == nil {
			obj.Stats = stats.LastAnalysisStats
		}

		switch obj.Kind {
		case KindFile:
			attrs := &FileAttributes{}
			if err := json.Unmarshal(raw.Attributes, attrs); err != nil {
				return nil, err
			}
			obj.File = attrs
		case KindDomain:
			attrs := &DomainAttributes{}
			if err := json.Unmarshal(raw.Attributes, attrs); err != nil {
				return nil, err
			}
			obj.Domain = attrs
		case KindURL:
			attrs := &URLAttributes{}
			if err := json.Unmarshal(raw.Attributes, attrs); err != nil {
				return nil, err
			}
			obj.URL = attrs
		}
	}

	return obj, nil
}
