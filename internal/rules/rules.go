// Package rules loads the category rule set the analyzer runs with.
//
// Rules come from one of three sources: the built-in table, an ordered YAML
// list, or the SQLite rule repository. Whatever the source, the set is loaded
// once at startup and handed to the service as an immutable core.CategorySet.
package rules

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cardspend/internal/core"
	"cardspend/internal/storage"
)

const (
	SourceBuiltin = "builtin"
	SourceYAML    = "yaml"
	SourceSQLite  = "sqlite"
)

var defaultRules = []core.CategoryRule{
	{
		Label: "生活開銷",
		Keywords: []string{
			"連加", "超商", "UBER", "小北百貨", "築間", "FOODPANDA", "呷尚寶", "珍煮丹",
			"CoCo", "飲料", "星巴克", "Subway", "麥當勞", "摩斯", "肯德基", "美食",
		},
	},
	{Label: "軟體訂閱", Keywords: []string{"GOOGL"}},
}

// Default returns the built-in rule set.
func Default() core.CategorySet {
	return core.MustCategorySet(defaultRules...)
}

// Options selects where rules are loaded from.
type Options struct {
	Source string // builtin, yaml or sqlite
	File   string // YAML rule file, for SourceYAML
	DBPath string // SQLite database, for SourceSQLite
}

// Load resolves opts into a rule set.
func Load(ctx context.Context, opts Options) (core.CategorySet, error) {
	switch strings.ToLower(opts.Source) {
	case "", SourceBuiltin:
		return Default(), nil
	case SourceYAML:
		return LoadYAML(opts.File)
	case SourceSQLite:
		repo, err := storage.NewRuleRepository(opts.DBPath)
		if err != nil {
			return core.CategorySet{}, fmt.Errorf("open rule repository: %w", err)
		}
		defer repo.Close()
		return repo.LoadCategorySet(ctx)
	default:
		return core.CategorySet{}, fmt.Errorf("unknown rules source %q", opts.Source)
	}
}

// LoadYAML reads an ordered rule list from path.
func LoadYAML(path string) (core.CategorySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.CategorySet{}, fmt.Errorf("read rules file: %w", err)
	}
	set, err := ParseYAML(bytes.NewReader(data))
	if err != nil {
		return core.CategorySet{}, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// ParseYAML decodes a YAML sequence of {label, keywords} entries. Document
// order is rule order.
//
//	- label: Dining
//	  keywords: [星巴克, subway]
//	- label: Subscriptions
//	  keywords: [GOOGL]
func ParseYAML(r io.Reader) (core.CategorySet, error) {
	var list []core.CategoryRule
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&list); err != nil && !errors.Is(err, io.EOF) {
		return core.CategorySet{}, fmt.Errorf("parse rules: %w", err)
	}
	set, err := core.NewCategorySet(list...)
	if err != nil {
		return core.CategorySet{}, fmt.Errorf("invalid rules: %w", err)
	}
	return set, nil
}

// WriteYAML encodes set in the format ParseYAML reads.
func WriteYAML(w io.Writer, set core.CategorySet) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(set.Rules()); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	return enc.Close()
}
