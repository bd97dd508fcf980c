package loyalty

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

const sheetTimestampLayout = "2006-01-02 15:04:05"

// Customer mirrors one row of the remote customer sheet. The remote service
// owns every field; the console only renders them.
//
// Decoding is lenient: keys match case-insensitively, numbers may arrive as
// strings, empty cells decode to zero values, and keys perkdesk does not know
// are kept in Extra so MarshalJSON re-emits them.
type Customer struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	Spend       float64
	Goal        float64
	Visits      int
	LastVisit   string
	TimesHit200 int
	CreatedAt   string
	UpdatedAt   string
	Notes       string
	Deleted     bool

	Extra map[string]json.RawMessage
}

// Wire names of the known sheet columns.
const (
	fieldID          = "ID"
	fieldName        = "Name"
	fieldEmail       = "Email"
	fieldPhone       = "Phone"
	fieldSpend       = "Spend"
	fieldGoal        = "Goal"
	fieldVisits      = "Visits"
	fieldLastVisit   = "LastVisit"
	fieldTimesHit200 = "TimesHit200"
	fieldCreatedAt   = "CreatedAt"
	fieldUpdatedAt   = "UpdatedAt"
	fieldNotes       = "Notes"
	fieldDeleted     = "Deleted"
)

var knownFields = []string{
	fieldID, fieldName, fieldEmail, fieldPhone, fieldSpend, fieldGoal, fieldVisits,
	fieldLastVisit, fieldTimesHit200, fieldCreatedAt, fieldUpdatedAt, fieldNotes, fieldDeleted,
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Customer) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// An exact column name wins over case variants; the first variant in
	// sorted order fills a column that has no exact key. Every other key,
	// colliding variants included, is kept in Extra.
	fields := make(map[string]json.RawMessage, len(knownFields))
	claimed := make(map[string]bool, len(knownFields))
	for _, key := range keys {
		if name, ok := canonicalField(key); ok && name == key {
			fields[name] = raw[key]
			claimed[key] = true
		}
	}
	var extra map[string]json.RawMessage
	for _, key := range keys {
		if claimed[key] {
			continue
		}
		if name, ok := canonicalField(key); ok {
			if _, taken := fields[name]; !taken {
				fields[name] = raw[key]
				continue
			}
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[key] = raw[key]
	}

	*c = Customer{
		ID:          asString(fields[fieldID]),
		Name:        asString(fields[fieldName]),
		Email:       asString(fields[fieldEmail]),
		Phone:       asString(fields[fieldPhone]),
		Spend:       asFloat(fields[fieldSpend]),
		Goal:        asFloat(fields[fieldGoal]),
		Visits:      asInt(fields[fieldVisits]),
		LastVisit:   asString(fields[fieldLastVisit]),
		TimesHit200: asInt(fields[fieldTimesHit200]),
		CreatedAt:   asString(fields[fieldCreatedAt]),
		UpdatedAt:   asString(fields[fieldUpdatedAt]),
		Notes:       asString(fields[fieldNotes]),
		Deleted:     asBool(fields[fieldDeleted]),
		Extra:       extra,
	}
	return nil
}

// MarshalJSON implements json.Marshaler. Optional fields are omitted when
// empty; Extra keys are emitted alongside the known ones.
func (c Customer) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(knownFields)+len(c.Extra))
	for key, value := range c.Extra {
		out[key] = value
	}
	out[fieldID] = c.ID
	out[fieldName] = c.Name
	out[fieldSpend] = c.Spend
	out[fieldGoal] = c.Goal
	out[fieldVisits] = c.Visits
	out[fieldTimesHit200] = c.TimesHit200
	out[fieldCreatedAt] = c.CreatedAt
	out[fieldUpdatedAt] = c.UpdatedAt
	setIfNotEmpty(out, fieldEmail, c.Email)
	setIfNotEmpty(out, fieldPhone, c.Phone)
	setIfNotEmpty(out, fieldLastVisit, c.LastVisit)
	setIfNotEmpty(out, fieldNotes, c.Notes)
	if c.Deleted {
		out[fieldDeleted] = true
	}
	return json.Marshal(out)
}

// Progress returns spend as a whole percentage of the goal, clamped to 0-100.
// A missing or non-positive goal yields 0.
func (c Customer) Progress() int {
	if c.Goal <= 0 || math.IsNaN(c.Spend) {
		return 0
	}
	pct := math.Round(c.Spend / c.Goal * 100)
	return int(math.Max(0, math.Min(100, pct)))
}

// GoalReached reports whether the customer's spend meets a positive goal.
func (c Customer) GoalReached() bool {
	return c.Goal > 0 && c.Spend >= c.Goal
}

// ParsedLastVisit returns the parsed LastVisit timestamp.
func (c Customer) ParsedLastVisit() time.Time {
	return parseTime(c.LastVisit)
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (c Customer) ParsedCreatedAt() time.Time {
	return parseTime(c.CreatedAt)
}

// ParsedUpdatedAt returns the parsed UpdatedAt timestamp.
func (c Customer) ParsedUpdatedAt() time.Time {
	return parseTime(c.UpdatedAt)
}

// CustomerInput is the add-or-update request. Empty optional fields are
// dropped before transmission.
type CustomerInput struct {
	Name  string
	Email string
	Phone string
}

type upsertPayload struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type spendPayload struct {
	ID     string  `json:"id"`
	Amount float64 `json:"amount"`
}

type resetPayload struct {
	ID string `json:"id"`
}

func canonicalField(key string) (string, bool) {
	for _, name := range knownFields {
		if strings.EqualFold(key, name) {
			return name, true
		}
	}
	return "", false
}

func setIfNotEmpty(out map[string]any, key, value string) {
	if value != "" {
		out[key] = value
	}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// asString accepts strings and renders numbers and booleans as text, since
// sheet cells holding ids or phone numbers often arrive as numbers.
func asString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

func asFloat(raw json.RawMessage) float64 {
	if isNull(raw) {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	s := strings.TrimSpace(asString(raw))
	s = strings.NewReplacer("$", "", ",", "").Replace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return 0
}

func asInt(raw json.RawMessage) int {
	return int(math.Round(asFloat(raw)))
}

func asBool(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	switch strings.ToLower(strings.TrimSpace(asString(raw))) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(sheetTimestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
