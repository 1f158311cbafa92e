package infra

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
	"github.com/eliteGoblin/focusd/site_block/internal/hostname"
)

const rulesFileName = "rules.json"

// BlockPagePath is the redirect target rules point at; the blocked
// domain rides along as a query parameter.
const BlockPagePath = "/blocked"

// FileRuleTable implements domain.RuleTable as a declarative JSON rules
// file consumed by the enforcement surface (page-guard / local proxy).
// Replace has full-replace semantics: the previous rule set is dropped
// entirely before the new one is written. Rule counts are bounded by
// the blocklist size limit, so no diffing.
type FileRuleTable struct {
	mu   sync.Mutex
	path string
}

// NewFileRuleTable creates a rule table under the given data directory.
func NewFileRuleTable(dataDir string) (*FileRuleTable, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileRuleTable{path: filepath.Join(dataDir, rulesFileName)}, nil
}

// Replace installs exactly one rule per domain, dropping all previous
// rules. IDs are reassigned from 1.
func (t *FileRuleTable) Replace(domains []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rules := make([]domain.BlockRule, 0, len(domains))
	for i, d := range domains {
		rules = append(rules, domain.BlockRule{
			ID:       i + 1,
			Domain:   d,
			Redirect: BlockPagePath + "?domain=" + url.QueryEscape(d),
		})
	}
	return t.write(rules)
}

// RemoveDomain deletes the single rule matching the domain (compared
// after www-stripping), leaving all other rules untouched.
func (t *FileRuleTable) RemoveDomain(d string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rules, err := t.read()
	if err != nil {
		return err
	}

	kept := rules[:0]
	for _, r := range rules {
		if !hostname.Equal(r.Domain, d) {
			kept = append(kept, r)
		}
	}
	return t.write(kept)
}

// Clear removes every installed rule.
func (t *FileRuleTable) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.write(nil)
}

// Rules returns the currently installed rules.
func (t *FileRuleTable) Rules() ([]domain.BlockRule, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.read()
}

func (t *FileRuleTable) read() ([]domain.BlockRule, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules []domain.BlockRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("corrupt rules file: %w", err)
	}
	return rules, nil
}

func (t *FileRuleTable) write(rules []domain.BlockRule) error {
	if rules == nil {
		rules = []domain.BlockRule{}
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", t.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileRuleTable implements domain.RuleTable.
var _ domain.RuleTable = (*FileRuleTable)(nil)
