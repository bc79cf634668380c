package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cardspend/internal/core"

	_ "modernc.org/sqlite"
)

const selectRules = `
SELECT r.label, k.keyword
FROM category_rules r
LEFT JOIN category_keywords k ON k.rule_id = r.id
ORDER BY r.position, k.position`

// RuleRepository stores the ordered category rule set in SQLite.
type RuleRepository struct {
	db *sql.DB
}

// NewRuleRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewRuleRepository(dbPath string) (*RuleRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &RuleRepository{db: db}, nil
}

func (r *RuleRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadCategorySet reads every rule in position order.
func (r *RuleRepository) LoadCategorySet(ctx context.Context) (core.CategorySet, error) {
	rows, err := r.db.QueryContext(ctx, selectRules)
	if err != nil {
		return core.CategorySet{}, fmt.Errorf("query category rules: %w", err)
	}
	defer rows.Close()

	var rules []core.CategoryRule
	for rows.Next() {
		var label string
		var keyword sql.NullString
		if err := rows.Scan(&label, &keyword); err != nil {
			return core.CategorySet{}, fmt.Errorf("scan category rule: %w", err)
		}
		if n := len(rules); n == 0 || rules[n-1].Label != label {
			rules = append(rules, core.CategoryRule{Label: label})
		}
		if keyword.Valid {
			last := &rules[len(rules)-1]
			last.Keywords = append(last.Keywords, keyword.String)
		}
	}
	if err := rows.Err(); err != nil {
		return core.CategorySet{}, fmt.Errorf("iterate category rules: %w", err)
	}

	set, err := core.NewCategorySet(rules...)
	if err != nil {
		return core.CategorySet{}, fmt.Errorf("build category set: %w", err)
	}

	slog.DebugContext(ctx, "Category rules loaded from SQLite", "rules", set.Len())
	return set, nil
}

// ReplaceRules overwrites the stored rules with set, atomically.
func (r *RuleRepository) ReplaceRules(ctx context.Context, set core.CategorySet) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM category_keywords`); err != nil {
		return fmt.Errorf("clear keywords: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM category_rules`); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}

	for i, rule := range set.Rules() {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO category_rules (position, label) VALUES (?, ?)`, i+1, rule.Label)
		if err != nil {
			return fmt.Errorf("insert rule %s: %w", rule.Label, err)
		}
		ruleID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("rule id for %s: %w", rule.Label, err)
		}
		for j, keyword := range rule.Keywords {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO category_keywords (rule_id, position, keyword) VALUES (?, ?, ?)`,
				ruleID, j+1, keyword); err != nil {
				return fmt.Errorf("insert keyword %s: %w", keyword, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rules: %w", err)
	}

	slog.InfoContext(ctx, "Category rules replaced", "rules", set.Len())
	return nil
}
