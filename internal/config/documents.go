package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/hamed0406/homecheck/internal/domain"
)

// Document is a decoded JSON object such as config.json or secrets.json.
type Document map[string]any

// LoadDocument reads a JSON object from path. Any failure (missing file,
// unreadable, not an object) yields an empty Document together with an
// error wrapping domain.ErrConfigurationMissing, so callers can log it and
// carry on with defaults.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", domain.ErrConfigurationMissing, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: parse %s: %v", domain.ErrConfigurationMissing, path, err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

func (d Document) String(key, def string) string {
	switch v := d[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return def
}

func (d Document) Int(key string, def int) int {
	switch v := d[key].(type) {
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Secrets resolves credential references against secrets.json.
//
// A reference may name a plain string (used as the token), or an object with
// "user", "password" and "token" keys. Otherwise the flat keys
// "<ref>_user", "<ref>_password" and "<ref>_token" are consulted, which is
// how the flat device layout (ssh_user, hue_token, ...) is expressed.
type Secrets struct {
	doc Document
}

func NewSecrets(doc Document) *Secrets {
	if doc == nil {
		doc = Document{}
	}
	return &Secrets{doc: doc}
}

func (s *Secrets) Credential(ref string) (domain.Credential, bool) {
	if s == nil || ref == "" {
		return domain.Credential{}, false
	}
	switch v := s.doc[ref].(type) {
	case string:
		return domain.Credential{Token: v}, v != ""
	case map[string]any:
		obj := Document(v)
		c := domain.Credential{
			User:     obj.String("user", ""),
			Password: obj.String("password", ""),
			Token:    obj.String("token", ""),
		}
		return c, c != (domain.Credential{})
	}
	c := domain.Credential{
		User:     s.doc.String(ref+"_user", ""),
		Password: s.doc.String(ref+"_password", ""),
		Token:    s.doc.String(ref+"_token", ""),
	}
	return c, c != (domain.Credential{})
}
