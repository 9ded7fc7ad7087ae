// Package stream ingests feature observations published on Kafka by an
// external extractor and accumulates them in PostgreSQL, from where the
// batch pipeline can load a corpus instead of reading sample files.
package stream

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
)

const maxKeyLength = 512

// ObservationEvent is the Kafka payload: Count occurrences of Key in one
// file of a corpus (for example "train" or "test").
type ObservationEvent struct {
	Corpus string `json:"corpus"`
	FileID string `json:"file_id"`
	Key    string `json:"key"`
	Count  int64  `json:"count"`
}

func (e ObservationEvent) Observation() features.Observation {
	return features.Observation{FileID: e.FileID, Key: e.Key, Count: e.Count}
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s:%s", f, e.Fields[f])
	}
	return strings.Join(parts, "; ")
}

// Validate reports every malformed field of e.
func Validate(e ObservationEvent) error {
	errs := make(map[string]string)
	if strings.TrimSpace(e.Corpus) == "" {
		errs["corpus"] = "corpus is required"
	}
	if strings.TrimSpace(e.FileID) == "" {
		errs["file_id"] = "file id is required"
	}
	key := strings.TrimSpace(e.Key)
	if key == "" {
		errs["key"] = "feature key is required"
	} else if len(key) > maxKeyLength {
		errs["key"] = fmt.Sprintf("feature key must be at most %d characters", maxKeyLength)
	}
	if e.Count < 0 {
		errs["count"] = "count must not be negative"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
