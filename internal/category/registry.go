// Package category defines the capability profile of each event category:
// how its subject key and source timestamp are derived from sensor fields,
// what identity deduplication uses, which payload facets are filterable,
// and any category-specific sort orders. The store and projector stay
// schema-agnostic by consulting profiles instead of switching on names.
package category

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harrier-systems/harrierwatch/internal/models"
)

// FacetFunc reports whether a record matches one facet value.
type FacetFunc func(rec models.EventRecord, want string) bool

// CompareFunc orders two records for a named sort; it returns true when a
// sorts before b in the sort's natural (descending-priority) direction.
type CompareFunc func(a, b models.EventRecord) bool

// Profile describes one event category's capabilities.
type Profile struct {
	Name        string
	Class       string
	Cap         int // default bounded log capacity
	Subject     func(fields map[string]interface{}) string
	SourceTime  func(fields map[string]interface{}) time.Time
	DedupKey    func(typ, subject string, fields map[string]interface{}) string
	Facets      map[string]FacetFunc
	Comparators map[string]CompareFunc
}

var profiles = map[string]*Profile{
	models.CategoryFile: {
		Name:    models.CategoryFile,
		Class:   models.ClassFile,
		Cap:     1000,
		Subject: fieldString("path"),
		SourceTime: func(fields map[string]interface{}) time.Time {
			return parseTime(fields["detected_at"])
		},
		DedupKey: func(typ, subject string, fields map[string]interface{}) string {
			// A sensor-assigned change_id is the event's identity across
			// the channel and snapshot feeds. Fall back to content shape
			// for sensors that do not assign one.
			if id, _ := fields["change_id"].(string); id != "" {
				return "file:" + id
			}
			return fingerprint("file", typ, subject, fields, "hash", "previous_hash", "size")
		},
		Facets: map[string]FacetFunc{
			"hash": payloadEquals("hash"),
		},
	},
	models.CategoryPacket: {
		Name:  models.CategoryPacket,
		Class: models.ClassNetwork,
		Cap:   10000,
		Subject: func(fields map[string]interface{}) string {
			src, _ := fields["src"].(string)
			dst, _ := fields["dst"].(string)
			proto, _ := fields["protocol"].(string)
			return fmt.Sprintf("%s>%s/%s", src, dst, proto)
		},
		SourceTime: func(fields map[string]interface{}) time.Time {
			return parseTime(fields["captured_at"])
		},
		DedupKey: func(typ, subject string, fields map[string]interface{}) string {
			return fingerprint("packet", typ, subject, fields, "length", "captured_at", "src_port", "dst_port")
		},
		Facets: map[string]FacetFunc{
			"protocol": payloadEqualsFold("protocol"),
			"src":      payloadEquals("src"),
			"dst":      payloadEquals("dst"),
		},
	},
	models.CategoryAlert: {
		Name:  models.CategoryAlert,
		Class: models.ClassNetwork,
		Cap:   100,
		Subject: func(fields map[string]interface{}) string {
			if id, _ := fields["id"].(string); id != "" {
				return id
			}
			rule, _ := fields["rule"].(string)
			src, _ := fields["src"].(string)
			return rule + "@" + src
		},
		SourceTime: func(fields map[string]interface{}) time.Time {
			return parseTime(fields["timestamp"])
		},
		DedupKey: func(typ, subject string, fields map[string]interface{}) string {
			return fingerprint("alert", typ, subject, fields, "rule", "message", "severity")
		},
		Facets: map[string]FacetFunc{
			"severity": payloadEqualsFold("severity"),
			"rule":     payloadEquals("rule"),
		},
		Comparators: map[string]CompareFunc{
			"severity": func(a, b models.EventRecord) bool {
				ra, rb := severityRank(a), severityRank(b)
				if ra != rb {
					return ra > rb
				}
				return a.SequenceID > b.SequenceID
			},
		},
	},
}

// ByName returns the profile for a category name.
func ByName(name string) (*Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// Classify resolves a sensor event type within a resource class to its
// category profile. File-class sensors emit change types; network-class
// sensors discriminate packets from alerts by type.
func Classify(class, typ string) (*Profile, bool) {
	switch class {
	case models.ClassFile:
		switch typ {
		case models.TypeAdded, models.TypeModified, models.TypeDeleted, models.TypeRenamed:
			return profiles[models.CategoryFile], true
		}
	case models.ClassNetwork:
		switch typ {
		case models.TypePacket:
			return profiles[models.CategoryPacket], true
		case models.TypeAlert:
			return profiles[models.CategoryAlert], true
		}
	}
	return nil, false
}

// ByClass returns the profiles belonging to a resource class, in stable
// name order.
func ByClass(class string) []*Profile {
	var out []*Profile
	for _, p := range profiles {
		if p.Class == class {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns all category names in stable order.
func Names() []string {
	out := make([]string, 0, len(profiles))
	for name := range profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func severityRank(rec models.EventRecord) int {
	sev, _ := rec.Payload["severity"].(string)
	switch strings.ToUpper(sev) {
	case models.SeverityHigh:
		return 3
	case models.SeverityMedium:
		return 2
	case models.SeverityLow:
		return 1
	}
	return 0
}

func fieldString(key string) func(map[string]interface{}) string {
	return func(fields map[string]interface{}) string {
		s, _ := fields[key].(string)
		return s
	}
}

func payloadEquals(key string) FacetFunc {
	return func(rec models.EventRecord, want string) bool {
		s, _ := rec.Payload[key].(string)
		return s == want
	}
}

func payloadEqualsFold(key string) FacetFunc {
	return func(rec models.EventRecord, want string) bool {
		s, _ := rec.Payload[key].(string)
		return strings.EqualFold(s, want)
	}
}

// fingerprint hashes the identity-bearing fields into a stable dedup key.
func fingerprint(cat, typ, subject string, fields map[string]interface{}, keys ...string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s", cat, typ, subject)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%v", k, fields[k])
	}
	return cat + ":" + hex.EncodeToString(h.Sum(nil))[:24]
}

func parseTime(v interface{}) time.Time {
	switch t := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts
			}
		}
	case float64:
		sec := int64(t)
		nsec := int64((t - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC()
	}
	return time.Time{}
}
