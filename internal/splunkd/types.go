package splunkd

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message is one entry of splunkd's error envelope.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ErrorResponse is the body splunkd sends with 4xx/5xx statuses.
type ErrorResponse struct {
	Messages []Message `json:"messages"`
}

// Text joins the message texts, or returns "" when there are none.
func (e ErrorResponse) Text() string {
	parts := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		if m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, "; ")
}

// PasswordContent is the content block of a storage/passwords entry.
type PasswordContent struct {
	Realm         string `json:"realm"`
	Username      string `json:"username"`
	ClearPassword string `json:"clear_password"`
}

// PasswordEntry is one storage/passwords entry.
type PasswordEntry struct {
	Name    string          `json:"name"`
	Content PasswordContent `json:"content"`
}

// PasswordsFeed is the storage/passwords listing.
type PasswordsFeed struct {
	Entry []PasswordEntry `json:"entry"`
}

// KVKeyResponse is returned by a KV store collection insert.
type KVKeyResponse struct {
	Key string `json:"_key"`
}

// SearchRows is a oneshot search result in output_mode=json_rows.
type SearchRows struct {
	Fields []string   `json:"-"`
	Rows   [][]string `json:"-"`
}

type rawSearchRows struct {
	Fields []json.RawMessage   `json:"fields"`
	Rows   [][]json.RawMessage `json:"rows"`
}

// UnmarshalJSON accepts fields given as plain names or as {"name": ...}
// objects, and cells given as strings, numbers, nulls or multivalue arrays.
func (s *SearchRows) UnmarshalJSON(data []byte) error {
	var raw rawSearchRows
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Fields = make([]string, 0, len(raw.Fields))
	for _, f := range raw.Fields {
		var name string
		if err := json.Unmarshal(f, &name); err == nil {
			s.Fields = append(s.Fields, name)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(f, &obj); err != nil {
			return fmt.Errorf("search field: %w", err)
		}
		s.Fields = append(s.Fields, obj.Name)
	}

	s.Rows = make([][]string, 0, len(raw.Rows))
	for _, r := range raw.Rows {
		row := make([]string, len(r))
		for i, cell := range r {
			row[i] = cellString(cell)
		}
		s.Rows = append(s.Rows, row)
	}
	return nil
}

func cellString(cell json.RawMessage) string {
	var str string
	if err := json.Unmarshal(cell, &str); err == nil {
		return str
	}
	var multi []string
	if err := json.Unmarshal(cell, &multi); err == nil {
		if len(multi) > 0 {
			return multi[0]
		}
		return ""
	}
	if string(cell) == "null" {
		return ""
	}
	return string(cell)
}

// Records returns each row as a field-name map.
func (s SearchRows) Records() []map[string]string {
	out := make([]map[string]string, 0, len(s.Rows))
	for _, row := range s.Rows {
		rec := make(map[string]string, len(s.Fields))
		for i, f := range s.Fields {
			if i < len(row) {
				rec[f] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}
